package faucet_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/EspressoSystems/faucet/faucet"
	"github.com/EspressoSystems/faucet/faucet/memwallet"
)

func bootstrapTestFaucet(t *testing.T, cfg faucet.Config) (*faucet.Faucet, *memwallet.Wallet) {
	t.Helper()
	dir := t.TempDir()
	w := memwallet.New(0)
	w.Seed(cfg.GrantSize.Mul(uint64(cfg.NumRecords) * 4))

	ctx, cancel := context.WithCancel(context.Background())
	f, err := faucet.Bootstrap(ctx, faucet.Options{
		Wallet:   w,
		QueueDir: dir,
		KeyLabel: "test",
		Cfg:      cfg,
	})
	require.NoError(t, err)
	require.Equal(t, faucet.StatusInitializing, f.State.Status())
	require.NoError(t, f.Finish())
	t.Cleanup(func() {
		require.NoError(t, f.Shutdown())
		cancel()
	})
	return f, w
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, cond(), "condition not met within %s", timeout)
}

// TestSingleGrant covers S1: a single request is fully serviced.
func TestSingleGrant(t *testing.T) {
	cfg := faucet.Config{
		GrantSize:  faucet.NewAmount(10),
		NumGrants:  1,
		FeeSize:    faucet.NewAmount(1),
		NumRecords: 4,
		NumWorkers: 2,
	}
	f, _ := bootstrapTestFaucet(t, cfg)
	require.Equal(t, faucet.StatusAvailable, f.State.Status())

	key := faucet.NewRecipient([]byte("alice"))
	require.NoError(t, f.State.Queue.Push(key))

	waitFor(t, 2*time.Second, func() bool { return f.State.Queue.Len() == 0 })
}

// TestConcurrentGrants covers S2: many distinct requesters are each
// granted independently by a pool of workers.
func TestConcurrentGrants(t *testing.T) {
	cfg := faucet.Config{
		GrantSize:  faucet.NewAmount(5),
		NumGrants:  2,
		FeeSize:    faucet.NewAmount(1),
		NumRecords: 8,
		NumWorkers: 5,
	}
	f, _ := bootstrapTestFaucet(t, cfg)

	for i := 0; i < 10; i++ {
		key := faucet.NewRecipient([]byte{byte(i)})
		require.NoError(t, f.State.Queue.Push(key))
	}

	waitFor(t, 5*time.Second, func() bool { return f.State.Queue.Len() == 0 })
}

// TestDuplicateKeyRejected covers S5: a second request for a key
// already in the queue is rejected, not silently merged or queued
// twice.
func TestDuplicateKeyRejected(t *testing.T) {
	cfg := faucet.Config{
		GrantSize:  faucet.NewAmount(10),
		NumGrants:  3,
		FeeSize:    faucet.NewAmount(1),
		NumRecords: 4,
		// No workers: nothing can drain bob's request between the two
		// pushes below, so the second push is guaranteed to observe
		// the key still outstanding rather than racing the worker pool.
		NumWorkers: 0,
	}
	f, _ := bootstrapTestFaucet(t, cfg)

	key := faucet.NewRecipient([]byte("bob"))
	require.NoError(t, f.State.Queue.Push(key))

	err := f.State.Queue.Push(key)
	require.Error(t, err, "second push for a still-pending key must be rejected")
	ferr, ok := err.(*faucet.Error)
	require.True(t, ok)
	require.Equal(t, "AlreadyInQueue", ferr.Tag)
}

// TestQueueFullRejectsAdmission covers S4: once MaxQueueLen distinct
// keys are outstanding, further pushes are rejected until one
// completes.
func TestQueueFullRejectsAdmission(t *testing.T) {
	cfg := faucet.Config{
		GrantSize:   faucet.NewAmount(10),
		NumGrants:   1,
		FeeSize:     faucet.NewAmount(1),
		NumRecords:  4,
		NumWorkers:  0, // no workers: nothing drains the queue
		MaxQueueLen: 1,
	}
	f, _ := bootstrapTestFaucet(t, cfg)

	require.NoError(t, f.State.Queue.Push(faucet.NewRecipient([]byte("first"))))

	err := f.State.Queue.Push(faucet.NewRecipient([]byte("second")))
	ferr, ok := err.(*faucet.Error)
	require.True(t, ok)
	require.Equal(t, "QueueFull", ferr.Tag)
}

// TestRestartRecoversQueue covers S3: a fresh LoadQueue against the
// same directory reconstructs pending work after a simulated restart.
func TestRestartRecoversQueue(t *testing.T) {
	dir := t.TempDir()

	q, err := faucet.LoadQueue(dir, 0)
	require.NoError(t, err)

	key := faucet.NewRecipient([]byte("carol"))
	require.NoError(t, q.Push(key))
	require.NoError(t, q.CloseLog())

	q2, err := faucet.LoadQueue(dir, 0)
	require.NoError(t, err)
	defer q2.CloseLog()

	require.Equal(t, 1, q2.Len())
}
