package faucet

import (
	"context"

	"github.com/EspressoSystems/faucet/log"
)

// runBreaker is the record-breaker controller (spec §4.E): a single
// long-lived goroutine that splits large owned records into
// GrantSize-sized ones whenever too few spendable records remain to
// sustain concurrent grants.
//
// State machine: Idle -(wake)-> Assessing -(enough records)-> Idle
// Assessing -(too few, large record exists)-> Splitting
// Splitting -(batch submitted)-> WaitingForFinalization
// WaitingForFinalization -(receipts drained)-> Assessing
func runBreaker(ctx context.Context, s *State) {
	for {
		if !waitUntilWorkNeeded(ctx, s) {
			return
		}

		txns, err := BreakUpRecords(ctx, s)
		if err != nil {
			log.Error("record breakup failed", "err", err)
		}
		if len(txns) > 0 {
			// Avoid spurious re-work while the submitted transfers are
			// still pending finalization; we'll have sufficient
			// records once they land.
			log.Info("will have sufficient records once pending transactions finalize", "transactions", len(txns))
			if !awaitWake(ctx, s) {
				return
			}
		}
		// If no large records existed to split, loop immediately back
		// to the wait phase; the condition hasn't changed, but another
		// wake may arrive once grants consume the records we do have.
	}
}

// waitUntilWorkNeeded blocks (Idle -> Assessing, repeatedly) until the
// wallet's spendable-record count drops low enough, and a large enough
// record exists, to justify splitting. Returns false if ctx is done.
func waitUntilWorkNeeded(ctx context.Context, s *State) bool {
	for {
		needsWork, err := assessRecords(ctx, s)
		if err != nil {
			log.Error("record breaker: failed to read wallet state", "err", err)
		}
		if needsWork {
			return true
		}
		if !awaitWake(ctx, s) {
			return false
		}
	}
}

// assessRecords reports whether the breaker should start splitting:
// fewer than NumRecords/2 spendable records exist, and at least one
// record is large enough (> 2*GrantSize) to be worth splitting.
func assessRecords(ctx context.Context, s *State) (bool, error) {
	var needsWork bool
	err := s.WithWallet(func(w Wallet) error {
		records, err := spendableRecords(ctx, w, s.Cfg.GrantSize)
		if err != nil {
			return err
		}
		if len(records) >= s.Cfg.NumRecords/2 {
			log.Info("sufficient spendable records, waiting for a change", "records", len(records), "target", s.Cfg.NumRecords)
			return nil
		}
		threshold := s.Cfg.GrantSize.Mul(2)
		for _, r := range records {
			if r.Amount.Cmp(threshold) > 0 {
				needsWork = true
				return nil
			}
		}
		log.Warn("not enough records, but no large records to break up")
		return nil
	})
	return needsWork, err
}

func awaitWake(ctx context.Context, s *State) bool {
	select {
	case <-ctx.Done():
		return false
	case <-s.breakerWake:
		return true
	}
}

// BreakUpRecords repeatedly splits the wallet's largest spendable
// record in half via a two-output self-transfer, until the spendable
// count (existing records plus twice the in-flight split transactions,
// since each split produces two new records) reaches NumRecords, or no
// record remains large enough to split.
//
// Returns the list of pending receipts once the target is met. When no
// record remains large enough to split, it awaits the receipts of that
// pass itself and re-assesses; once a pass can start no split
// transaction at all, it returns (nil, nil): spec §4.E treats "nothing
// to split" as a non-error outcome. Callers that
// need the replenishment to actually land (bootstrap) should await the
// returned receipts; runBreaker deliberately does not, to avoid holding
// up worker progress on funds that are already sufficient.
func BreakUpRecords(ctx context.Context, s *State) ([]Receipt, error) {
	for {
		var receipts []Receipt
		for {
			var (
				self       Recipient
				spendable  []Record
				haveSender bool
				err        error
			)
			err = s.WithWallet(func(w Wallet) error {
				keys, err := w.SendingKeys(ctx)
				if err != nil {
					return err
				}
				if len(keys) == 0 {
					return nil
				}
				self = keys[0].PubKey
				haveSender = true
				spendable, err = spendableRecords(ctx, w, s.Cfg.GrantSize)
				return err
			})
			if err != nil {
				return receipts, err
			}
			if !haveSender {
				break
			}

			if len(spendable)+2*len(receipts) >= s.Cfg.NumRecords {
				// The pending transactions, once finalized, will meet
				// the target; no need to hold the wallet lock waiting.
				return receipts, nil
			}

			largest, ok := largestRecord(spendable)
			threshold := s.Cfg.GrantSize.Mul(2)
			if !ok || largest.Amount.Cmp(threshold) < 0 {
				break
			}

			split := largest.Amount.Half()
			change := largest.Amount.Sub(split)
			log.Info("breaking up a record", "amount", largest.Amount, "split", split, "change", change)

			var receipt Receipt
			err = s.WithWallet(func(w Wallet) error {
				var terr error
				// Two explicit outputs (rather than one output plus
				// implicit change) force a genuine split even if a
				// change-sized record already exists, which would
				// otherwise let the wallet coalesce it and make no
				// progress.
				receipt, terr = w.Transfer(ctx, &self, NativeAsset, []Output{
					{To: self, Amount: change},
					{To: self, Amount: split},
				}, NewAmount(0))
				return terr
			})
			if err != nil {
				log.Error("record breakup transfer failed", "err", err)
				break
			}
			receipts = append(receipts, receipt)
		}

		if len(receipts) == 0 {
			log.Warn("no large records to break up")
			return nil, nil
		}

		log.Info("waiting for transactions before breaking more records", "transactions", len(receipts))
		if err := awaitReceipts(ctx, s, receipts); err != nil {
			return receipts, err
		}
	}
}

func largestRecord(records []Record) (Record, bool) {
	var best Record
	found := false
	for _, r := range records {
		if !found || r.Amount.Cmp(best.Amount) > 0 {
			best = r
			found = true
		}
	}
	return best, found
}

// awaitReceipts blocks until every receipt finalizes. Non-Retired
// outcomes are logged but are not fatal to the breaker loop (spec
// §4.E). Deliberately does not take the wallet lock: §5 requires that
// the exclusive wallet lock never be held across the breaker's wait
// for receipts, so that worker transfers are not blocked behind
// network confirmation.
func awaitReceipts(ctx context.Context, s *State, receipts []Receipt) error {
	for _, r := range receipts {
		status, err := s.wallet.AwaitTransaction(ctx, r)
		if err != nil {
			return err
		}
		if status != StatusRetired {
			log.Warn("record breakup transfer did not complete successfully", "status", status)
		}
	}
	return nil
}
