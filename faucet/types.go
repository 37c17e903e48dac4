// Package faucet implements the persistent request queue, transfer
// worker pool, and record-breaker controller that make up the faucet's
// dispensing engine.
package faucet

import (
	"encoding/hex"
	"math/big"

	"github.com/holiman/uint256"
)

// Recipient is an opaque public-key value. The faucet core never
// inspects its contents beyond equality, hashing (it is used as a map
// key) and byte serialization.
type Recipient struct {
	raw string // canonical binary encoding, stored as a string so Recipient is a valid map key
}

// NewRecipient wraps the canonical binary encoding of a public key.
func NewRecipient(b []byte) Recipient {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Recipient{raw: string(cp)}
}

// Bytes returns the canonical binary encoding.
func (r Recipient) Bytes() []byte { return []byte(r.raw) }

// String renders the recipient as a hex string for logging.
func (r Recipient) String() string { return hex.EncodeToString([]byte(r.raw)) }

// IsZero reports whether the recipient was never assigned a value.
func (r Recipient) IsZero() bool { return r.raw == "" }

// Amount is a non-negative quantity of the ledger's native asset.
type Amount struct {
	v uint256.Int
}

// NewAmount builds an Amount from a uint64 quantity.
func NewAmount(n uint64) Amount {
	var a Amount
	a.v.SetUint64(n)
	return a
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	var out Amount
	out.v.Add(&a.v, &b.v)
	return out
}

// Mul returns a * n.
func (a Amount) Mul(n uint64) Amount {
	var out Amount
	var m uint256.Int
	m.SetUint64(n)
	out.v.Mul(&a.v, &m)
	return out
}

// Half returns a / 2 (integer division).
func (a Amount) Half() Amount {
	var out Amount
	var two uint256.Int
	two.SetUint64(2)
	out.v.Div(&a.v, &two)
	return out
}

// Sub returns a - b. Callers must ensure a >= b.
func (a Amount) Sub(b Amount) Amount {
	var out Amount
	out.v.Sub(&a.v, &b.v)
	return out
}

// Cmp compares two amounts: -1, 0, or 1.
func (a Amount) Cmp(b Amount) int { return a.v.Cmp(&b.v) }

// GreaterOrEqual reports whether a >= b.
func (a Amount) GreaterOrEqual(b Amount) bool { return a.Cmp(b) >= 0 }

// Uint64 returns the amount truncated to a uint64; used only for logging
// and tests, never for arithmetic.
func (a Amount) Uint64() uint64 { return a.v.Uint64() }

func (a Amount) String() string { return a.v.String() }

// Big returns a big.Int copy of the amount, for interop with code (such
// as tests) that prefers math/big.
func (a Amount) Big() *big.Int { return a.v.ToBig() }

// AssetCode identifies a fungible asset on the ledger. The faucet only
// ever deals in the native asset, but the type is kept opaque so a real
// wallet implementation can plug in its own asset identifiers.
type AssetCode struct {
	raw string
}

// NativeAsset is the well-known code for the ledger's native asset.
var NativeAsset = AssetCode{raw: "native"}

func (a AssetCode) String() string { return a.raw }

// KeyPair is an opaque sending key owned by the faucet wallet.
type KeyPair struct {
	PubKey  Recipient
	address string
}

// Address returns a human-readable identifier for the key, for logging.
func (k KeyPair) Address() string { return k.address }

// Record is a wallet-owned, spendable unit of the native asset (a UTXO
// in ledgers that model balances that way).
type Record struct {
	ID        string
	Asset     AssetCode
	Amount    Amount
	Frozen    bool
	HoldUntil uint64 // block height below which the record is considered on-hold; 0 means never
}

// Spendable reports whether the record can fund a transfer of at least
// minAmount right now, at the given block height.
func (r Record) Spendable(minAmount Amount, asset AssetCode, height uint64) bool {
	return r.Asset == asset &&
		r.Amount.GreaterOrEqual(minAmount) &&
		!r.Frozen &&
		r.HoldUntil <= height
}

// Output is one (recipient, amount) pair of a transfer.
type Output struct {
	To     Recipient
	Amount Amount
}

// TransactionStatus is the terminal or in-flight state of a submitted
// transfer.
type TransactionStatus int

const (
	StatusPending TransactionStatus = iota
	StatusRetired
	StatusRejected
)

func (s TransactionStatus) String() string {
	switch s {
	case StatusRetired:
		return "retired"
	case StatusRejected:
		return "rejected"
	default:
		return "pending"
	}
}

// Receipt is an opaque, awaitable handle to a submitted transfer.
type Receipt struct {
	ID string
}

// Status is the faucet's own availability state, reported on the
// healthcheck endpoint.
type Status int

const (
	StatusInitializing Status = iota
	StatusAvailable
)

func (s Status) String() string {
	if s == StatusAvailable {
		return "available"
	}
	return "initializing"
}
