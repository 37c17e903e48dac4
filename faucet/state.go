package faucet

import (
	"sync"
)

// Config holds the tunables listed in spec §6's CLI/environment table.
type Config struct {
	GrantSize   Amount // amount per output
	NumGrants   int    // outputs per request
	FeeSize     Amount // fee per user-facing transfer
	NumRecords  int    // target spendable-record count
	NumWorkers  int    // transfer workers
	MaxQueueLen int    // 0 means unbounded
}

// State is the shared, cheaply-cloneable handle aggregating the wallet
// lock, the status cell, the queue, the tunables, and the breaker wake
// signal (spec §4.C). A single *State is constructed once at bootstrap
// and passed by pointer to every worker and to the breaker.
type State struct {
	walletMu sync.Mutex
	wallet   Wallet

	statusMu sync.RWMutex
	status   Status

	Queue *Queue
	Cfg   Config

	breakerWake chan struct{}
}

// NewState constructs a State in the Initializing status.
func NewState(wallet Wallet, queue *Queue, cfg Config) *State {
	return &State{
		wallet: wallet,
		status: StatusInitializing,
		Queue:  queue,
		Cfg:    cfg,
		// Bounded at NumRecords: a crashed or wedged breaker must not
		// cause an unbounded memory leak on the signalling side.
		breakerWake: make(chan struct{}, cfg.NumRecords),
	}
}

// Status returns the faucet's current availability.
func (s *State) Status() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

// SetAvailable flips the status to Available. It is called exactly
// once, at the end of bootstrap, and is not reversible.
func (s *State) SetAvailable() {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status = StatusAvailable
}

// WithWallet runs fn with the wallet lock held, serializing access to
// the single shared wallet handle (spec §5).
func (s *State) WithWallet(fn func(w Wallet) error) error {
	s.walletMu.Lock()
	defer s.walletMu.Unlock()
	return fn(s.wallet)
}

// signalBreaker performs a non-blocking wake of the breaker goroutine.
// A full channel is silently ignored: the breaker re-checks the record
// distribution on its next cycle regardless (spec §4.D step 6).
func (s *State) signalBreaker() {
	select {
	case s.breakerWake <- struct{}{}:
	default:
	}
}
