package faucet

import (
	"context"

	"github.com/EspressoSystems/faucet/log"
)

// Options configures Bootstrap. ExistingKey, when non-nil, is
// installed as the faucet's sending account (mirrors the original
// system's "faucet key pair, if provided" parameter); otherwise a new
// sending account is generated if the wallet has none yet.
type Options struct {
	Wallet      Wallet
	QueueDir    string
	Cfg         Config
	ExistingKey *KeyPair
	KeyLabel    string
}

// Faucet is the engine: the shared state, plus handles needed to serve
// HTTP requests and to shut the engine down cleanly. A Faucet returned
// by Bootstrap has status Initializing until Finish completes.
type Faucet struct {
	State  *State
	cancel context.CancelFunc

	runCtx context.Context
	opt    Options
}

// Bootstrap performs spec §4.G steps 1-3: open the persistent queue and
// construct State with status Initializing. It deliberately returns
// before anything that talks to the wallet, so callers can start
// serving HTTP (and answering healthcheck as Initializing) immediately,
// then call Finish to run the remaining, potentially slow steps.
func Bootstrap(ctx context.Context, opt Options) (*Faucet, error) {
	queue, err := LoadQueue(opt.QueueDir, opt.Cfg.MaxQueueLen)
	if err != nil {
		return nil, err
	}

	state := NewState(opt.Wallet, queue, opt.Cfg)
	runCtx, cancel := context.WithCancel(ctx)

	return &Faucet{State: state, cancel: cancel, runCtx: runCtx, opt: opt}, nil
}

// Finish runs spec §4.G steps 4-7: sending-key setup, the ledger scan
// for a freshly generated key, the initial record breakup, and starting
// the worker pool and breaker. It flips the faucet to Available when
// done.
//
// Callers must start serving HTTP before calling Finish: the
// healthcheck route needs to be reachable, reporting Initializing,
// while these steps run, so a load balancer doesn't kill the instance
// before it has had a chance to start up.
func (f *Faucet) Finish() error {
	ctx := f.runCtx
	state := f.State
	opt := f.opt

	var newKey *Recipient
	if opt.ExistingKey != nil {
		if err := state.wallet.AddAccount(ctx, *opt.ExistingKey, opt.KeyLabel); err != nil {
			return err
		}
		k := opt.ExistingKey.PubKey
		newKey = &k
	} else {
		keys, err := state.wallet.SendingKeys(ctx)
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			k, err := state.wallet.GenerateSendingAccount(ctx, opt.KeyLabel)
			if err != nil {
				return err
			}
			newKey = &k
		}
	}

	if newKey != nil {
		// A fresh key needs a ledger scan before its genesis record (if
		// any) is visible to Balance/Records.
		if err := state.wallet.AwaitSendingKeyScan(ctx, *newKey); err != nil {
			return err
		}
	}

	balance, err := state.wallet.Balance(ctx, NativeAsset)
	if err != nil {
		return err
	}
	log.Info("wallet balance before init", "balance", balance)

	// Break up records once and await completion, so the faucet starts
	// with (close to) the target record count before taking traffic.
	if receipts, err := BreakUpRecords(ctx, state); err != nil {
		return err
	} else if len(receipts) > 0 {
		if err := awaitReceipts(ctx, state, receipts); err != nil {
			return err
		}
	}

	go runBreaker(ctx, state)
	for i := 0; i < opt.Cfg.NumWorkers; i++ {
		go runWorker(ctx, i, state)
	}

	state.SetAvailable()
	log.Info("faucet available", "workers", opt.Cfg.NumWorkers, "num_records", opt.Cfg.NumRecords)

	return nil
}

// Shutdown closes the request channel (workers drain and exit),
// cancels the breaker, and releases the persistent queue log.
func (f *Faucet) Shutdown() error {
	f.State.Queue.Close()
	f.cancel()
	return f.State.Queue.CloseLog()
}
