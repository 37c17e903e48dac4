// Copyright 2015 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package faucet

import (
	"context"
	"time"

	"github.com/EspressoSystems/faucet/log"
)

// balanceWaitInterval is how long a worker sleeps before re-checking
// its balance when funds are insufficient (spec §4.D step 2).
const balanceWaitInterval = 30 * time.Second

// runWorker drains the request channel and services each recipient
// until it has received NumGrants grants or the channel is closed.
// There are Cfg.NumWorkers identical instances of this loop running
// concurrently; per-key serialization is guaranteed because a key is
// never re-enqueued while a worker is actively looping on it.
func runWorker(ctx context.Context, id int, s *State) {
	for {
		req, ok := s.Queue.pop()
		if !ok {
			log.Warn("worker exiting, request queue closed", "worker", id)
			return
		}
		serviceRequest(ctx, id, s, req)
	}
}

// serviceRequest grants req.key records until it has received
// s.Cfg.NumGrants in total, looping on balance-wait as needed.
func serviceRequest(ctx context.Context, id int, s *State, req request) {
	grantsGiven := req.grantsGiven
	for {
		step, err := attemptGrant(ctx, id, s, req.key, grantsGiven)
		if err != nil {
			// Wallet read failure: treat the same as a transfer
			// failure so the request is retried rather than lost.
			log.Error("worker wallet error, re-queueing", "worker", id, "err", err)
			s.Queue.fail(req.key)
			return
		}
		if step.waitedForBalance {
			select {
			case <-ctx.Done():
				return
			case <-time.After(balanceWaitInterval):
			}
			continue
		}
		if step.transferErr != nil {
			log.Error("worker failed to transfer", "worker", id, "err", step.transferErr)
			s.Queue.fail(req.key)
			return
		}

		needsMore, err := s.Queue.grant(req.key, step.newGrants, s.Cfg.NumGrants)
		if err != nil {
			// The transfer already succeeded but we failed to persist
			// that fact. We cannot safely retry (that would risk an
			// unbounded re-grant loop on a storage outage), so this
			// worker iteration ends here; the key keeps its last
			// durably recorded progress and a restart will pick it
			// back up (spec §7, at-least-once). Until then the key
			// stays in the index, so a new request for it is rejected
			// as AlreadyInQueue.
			log.Error("failed to persist grant", "worker", id, "key", req.key, "err", err)
			return
		}
		s.signalBreaker()
		if !needsMore {
			return
		}
		grantsGiven += step.newGrants
	}
}

// grantStep is the outcome of one pass of the balance-wait/grant-decision
// sub-loop (spec §4.D steps 2-4).
type grantStep struct {
	waitedForBalance bool
	newGrants        int
	transferErr      error
}

// attemptGrant holds the wallet lock across the balance check, the
// grant-size decision, and the transfer submission, exactly as spec
// §4.D requires ("Otherwise keep the lock and proceed"). The lock is
// released before this function returns in every case.
func attemptGrant(ctx context.Context, id int, s *State, key Recipient, grantsGiven int) (grantStep, error) {
	var step grantStep
	err := s.WithWallet(func(w Wallet) error {
		balance, err := w.Balance(ctx, NativeAsset)
		if err != nil {
			return err
		}
		if !balance.GreaterOrEqual(s.Cfg.GrantSize) {
			log.Warn("insufficient balance for transfer, sleeping", "worker", id, "wait", balanceWaitInterval)
			step.waitedForBalance = true
			return nil
		}

		records, err := spendableRecords(ctx, w, s.Cfg.GrantSize)
		if err != nil {
			return err
		}
		log.Info("keystore balance before transfer", "worker", id, "balance", balance, "records", len(records))

		remaining := s.Cfg.NumGrants - grantsGiven
		var outputs []Output
		if remaining > 1 && balance.GreaterOrEqual(s.Cfg.GrantSize.Mul(2)) {
			// The transfer-proving key supports up to 3 outputs (two
			// recipient, one change). Fusing two grants into one
			// transfer halves the transaction count for recipients
			// still owed >= 2 grants.
			log.Info("transferring 2 records", "worker", id, "amount", s.Cfg.GrantSize, "to", key)
			outputs = []Output{{To: key, Amount: s.Cfg.GrantSize}, {To: key, Amount: s.Cfg.GrantSize}}
			step.newGrants = 2
		} else {
			log.Info("transferring 1 record", "worker", id, "amount", s.Cfg.GrantSize, "to", key)
			outputs = []Output{{To: key, Amount: s.Cfg.GrantSize}}
			step.newGrants = 1
		}

		_, step.transferErr = w.Transfer(ctx, nil, NativeAsset, outputs, s.Cfg.FeeSize)
		return nil
	})
	return step, err
}

// spendableRecords filters w's records down to the ones eligible to
// fund a transfer of at least minAmount right now (spec §3 "Spendable
// record").
func spendableRecords(ctx context.Context, w Wallet, minAmount Amount) ([]Record, error) {
	height, err := w.BlockHeight(ctx)
	if err != nil {
		return nil, err
	}
	records, err := w.Records(ctx)
	if err != nil {
		return nil, err
	}
	out := records[:0:0]
	for _, r := range records {
		if r.Spendable(minAmount, NativeAsset, height) {
			out = append(out, r)
		}
	}
	return out, nil
}
