package faucet_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/EspressoSystems/faucet/faucet"
	"github.com/EspressoSystems/faucet/faucet/memwallet"
)

// TestBreakUpRecordsSplitsUntilTarget covers S6: a wallet holding one
// large record is split down into several GrantSize-scaled records
// reaching the configured target. FinalizeAfter is non-zero so splits
// stay pending across loop iterations, exercising the same
// await-then-reassess cycle a real asynchronous ledger would force.
func TestBreakUpRecordsSplitsUntilTarget(t *testing.T) {
	dir := t.TempDir()
	w := memwallet.New(0)
	w.FinalizeAfter = 2 * time.Millisecond
	w.Seed(faucet.NewAmount(1000))

	q, err := faucet.LoadQueue(dir, 0)
	require.NoError(t, err)
	defer q.CloseLog()

	cfg := faucet.Config{
		GrantSize:  faucet.NewAmount(10),
		NumGrants:  1,
		NumRecords: 6,
		NumWorkers: 0,
	}
	state := faucet.NewState(w, q, cfg)

	ctx := context.Background()
	err = state.WithWallet(func(wallet faucet.Wallet) error {
		_, genErr := wallet.GenerateSendingAccount(ctx, "test")
		return genErr
	})
	require.NoError(t, err)

	receipts, err := faucet.BreakUpRecords(ctx, state)
	require.NoError(t, err)

	for _, r := range receipts {
		status, err := w.AwaitTransaction(ctx, r)
		require.NoError(t, err)
		require.Equal(t, faucet.StatusRetired, status)
	}

	records, err := w.Records(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(records), cfg.NumRecords)

	balance, err := w.Balance(ctx, faucet.NativeAsset)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), balance.Uint64())
}

// TestBreakUpRecordsNoLargeRecordIsANoop covers the edge case where no
// record clears the split threshold: BreakUpRecords returns no error
// and no receipts.
func TestBreakUpRecordsNoLargeRecordIsANoop(t *testing.T) {
	dir := t.TempDir()
	w := memwallet.New(0)
	w.Seed(faucet.NewAmount(5))

	q, err := faucet.LoadQueue(dir, 0)
	require.NoError(t, err)
	defer q.CloseLog()

	cfg := faucet.Config{
		GrantSize:  faucet.NewAmount(10),
		NumGrants:  1,
		NumRecords: 6,
		NumWorkers: 0,
	}
	state := faucet.NewState(w, q, cfg)

	ctx := context.Background()
	_, err = w.GenerateSendingAccount(ctx, "test")
	require.NoError(t, err)

	receipts, err := faucet.BreakUpRecords(ctx, state)
	require.NoError(t, err)
	require.Empty(t, receipts)
}
