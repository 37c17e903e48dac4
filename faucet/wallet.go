package faucet

import "context"

// Wallet is the narrow contract the faucet core requires of its wallet
// collaborator (spec §6, "Consumed external interfaces"). The faucet
// never inspects how a Wallet implementation scans the ledger, manages
// keys, or talks to the network — it only calls these methods. Workers
// and the breaker call them while holding the core's wallet lock (see
// State); the breaker's AwaitTransaction calls and the bootstrap steps
// in Faucet.Finish do not take that lock.
type Wallet interface {
	// Balance returns the wallet's current balance of asset.
	Balance(ctx context.Context, asset AssetCode) (Amount, error)

	// Records returns every record currently owned by the wallet.
	Records(ctx context.Context) ([]Record, error)

	// BlockHeight returns the current validator block height, used to
	// evaluate a record's on-hold status.
	BlockHeight(ctx context.Context) (uint64, error)

	// SendingKeys returns the wallet's sending key pairs. The faucet
	// uses the first one as its own address for self-transfers.
	SendingKeys(ctx context.Context) ([]KeyPair, error)

	// AddAccount imports an existing key pair under the given label.
	AddAccount(ctx context.Context, key KeyPair, label string) error

	// GenerateSendingAccount creates a new sending key under the given
	// label and returns its public half.
	GenerateSendingAccount(ctx context.Context, label string) (Recipient, error)

	// AwaitSendingKeyScan blocks until the ledger scan for addr (begun
	// by GenerateSendingAccount) has completed.
	AwaitSendingKeyScan(ctx context.Context, addr Recipient) error

	// Transfer submits a transaction paying outputs from sender's
	// funds (or the wallet's default sending key if sender is nil),
	// paying fee to the network.
	Transfer(ctx context.Context, sender *Recipient, asset AssetCode, outputs []Output, fee Amount) (Receipt, error)

	// AwaitTransaction blocks until receipt's transaction reaches a
	// terminal status.
	AwaitTransaction(ctx context.Context, receipt Receipt) (TransactionStatus, error)
}
