// Package memwallet is a reference implementation of faucet.Wallet
// backed entirely by in-memory state. It exists so the faucet engine
// is runnable and testable end-to-end (spec §4's seed scenarios)
// without a real ledger; a production deployment substitutes a wallet
// backed by an RPC client to a running node behind the same interface.
package memwallet

import (
	"context"
	"crypto/rand"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/EspressoSystems/faucet/faucet"
)

// pendingTransfer models a submitted-but-not-yet-finalized transaction:
// its outputs become spendable records only once finalizeAfter elapses.
type pendingTransfer struct {
	outputs     []faucet.Output
	finalizeAt  time.Time
	status      faucet.TransactionStatus
}

// Wallet is an in-memory faucet.Wallet. All state is guarded by mu; the
// faucet core additionally serializes calls through its own wallet
// lock, but Wallet is also safe to use standalone (e.g. in tests that
// inspect it directly from another goroutine).
type Wallet struct {
	mu sync.Mutex

	height  uint64
	keys    []faucet.KeyPair
	records map[string]faucet.Record

	pending map[string]*pendingTransfer

	// FinalizeAfter is how long a submitted transfer takes to reach
	// Retired. Defaults to 0 (instant) if unset.
	FinalizeAfter time.Duration
}

// New returns an empty wallet with the given starting block height.
func New(height uint64) *Wallet {
	return &Wallet{
		height:  height,
		records: make(map[string]faucet.Record),
		pending: make(map[string]*pendingTransfer),
	}
}

// Seed adds a record directly to the wallet's holdings, bypassing
// transfer submission. Used by tests and by bootstrap-time genesis
// simulation to give the faucet its starting balance.
func (w *Wallet) Seed(amount faucet.Amount) {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := uuid.NewString()
	w.records[id] = faucet.Record{ID: id, Asset: faucet.NativeAsset, Amount: amount}
}

func (w *Wallet) Balance(_ context.Context, asset faucet.AssetCode) (faucet.Amount, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	total := faucet.NewAmount(0)
	for _, r := range w.records {
		if r.Asset == asset {
			total = total.Add(r.Amount)
		}
	}
	return total, nil
}

func (w *Wallet) Records(_ context.Context) ([]faucet.Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]faucet.Record, 0, len(w.records))
	for _, r := range w.records {
		out = append(out, r)
	}
	// Deterministic order keeps "largest record" selection stable in
	// tests when multiple records share the largest amount.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (w *Wallet) BlockHeight(_ context.Context) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.height, nil
}

// AdvanceBlock lets tests move the simulated chain forward, finalizing
// any pending transfers whose time has come.
func (w *Wallet) AdvanceBlock() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.height++
	w.finalizeDueLocked()
}

// isOwnKeyLocked reports whether r is one of this wallet's own sending
// keys. Only self-addressed outputs land back as spendable records;
// outputs to any other recipient have left the wallet for good, the
// same as on a real ledger.
func (w *Wallet) isOwnKeyLocked(r faucet.Recipient) bool {
	for _, k := range w.keys {
		if k.PubKey == r {
			return true
		}
	}
	return false
}

func (w *Wallet) finalizeDueLocked() {
	now := time.Now()
	for id, p := range w.pending {
		if p.status == faucet.StatusPending && !now.Before(p.finalizeAt) {
			for _, out := range p.outputs {
				if !w.isOwnKeyLocked(out.To) {
					continue
				}
				rid := uuid.NewString()
				w.records[rid] = faucet.Record{ID: rid, Asset: faucet.NativeAsset, Amount: out.Amount}
			}
			p.status = faucet.StatusRetired
			w.pending[id] = p
		}
	}
}

func (w *Wallet) SendingKeys(_ context.Context) ([]faucet.KeyPair, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]faucet.KeyPair, len(w.keys))
	copy(out, w.keys)
	return out, nil
}

func (w *Wallet) AddAccount(_ context.Context, key faucet.KeyPair, _ string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.keys = append(w.keys, key)
	return nil
}

func (w *Wallet) GenerateSendingAccount(_ context.Context, _ string) (faucet.Recipient, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return faucet.Recipient{}, err
	}
	pub := faucet.NewRecipient(buf)
	w.keys = append(w.keys, faucet.KeyPair{PubKey: pub})
	return pub, nil
}

// AwaitSendingKeyScan is a no-op: the in-memory wallet has no ledger to
// scan, so a generated key's balance (none, unless Seeded) is available
// immediately.
func (w *Wallet) AwaitSendingKeyScan(_ context.Context, _ faucet.Recipient) error {
	return nil
}

func (w *Wallet) Transfer(_ context.Context, sender *faucet.Recipient, asset faucet.AssetCode, outputs []faucet.Output, fee faucet.Amount) (faucet.Receipt, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	total := fee
	for _, o := range outputs {
		total = total.Add(o.Amount)
	}

	// Coin selection: candidates largest-first, so a single record that
	// already covers total (the common case for both a worker's grant
	// and a breaker split) leaves every other record untouched. Only
	// spendable records are eligible, matching the same definition
	// spendableRecords uses to decide whether a grant can be funded at
	// all (spec §3): a frozen or on-hold record must not be spent here
	// either.
	var candidates []faucet.Record
	for id, r := range w.records {
		if r.Spendable(faucet.NewAmount(0), asset, w.height) {
			candidates = append(candidates, faucet.Record{ID: id, Asset: r.Asset, Amount: r.Amount})
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Amount.Cmp(candidates[j].Amount) > 0 })

	spent := faucet.NewAmount(0)
	var spendIDs []string
	for _, r := range candidates {
		if spent.GreaterOrEqual(total) {
			break
		}
		spent = spent.Add(r.Amount)
		spendIDs = append(spendIDs, r.ID)
	}
	if !spent.GreaterOrEqual(total) {
		return faucet.Receipt{}, fmt.Errorf("memwallet: insufficient balance: have %s, need %s", spent, total)
	}

	// Consume the spent records now; outputs land once the transfer
	// finalizes, modeling asynchronous confirmation.
	for _, id := range spendIDs {
		delete(w.records, id)
	}
	change := spent.Sub(total)
	if change.Cmp(faucet.NewAmount(0)) > 0 {
		id := uuid.NewString()
		w.records[id] = faucet.Record{ID: id, Asset: asset, Amount: change}
	}

	id := uuid.NewString()
	p := &pendingTransfer{outputs: outputs, finalizeAt: time.Now().Add(w.FinalizeAfter), status: faucet.StatusPending}
	w.pending[id] = p
	if w.FinalizeAfter <= 0 {
		w.finalizeDueLocked()
	}
	return faucet.Receipt{ID: id}, nil
}

func (w *Wallet) AwaitTransaction(ctx context.Context, receipt faucet.Receipt) (faucet.TransactionStatus, error) {
	for {
		w.mu.Lock()
		p, ok := w.pending[receipt.ID]
		if !ok {
			w.mu.Unlock()
			return faucet.StatusRejected, fmt.Errorf("memwallet: unknown receipt %s", receipt.ID)
		}
		if p.status != faucet.StatusPending {
			status := p.status
			w.mu.Unlock()
			return status, nil
		}
		w.finalizeDueLocked()
		status := p.status
		w.mu.Unlock()
		if status != faucet.StatusPending {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return faucet.StatusPending, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}
