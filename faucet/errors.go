package faucet

import (
	"fmt"

	"github.com/EspressoSystems/faucet/log"
)

// Error is the closed taxonomy of errors the faucet surfaces to HTTP
// clients. Each variant maps to a distinct JSON tag so callers can
// switch on it without string matching.
type Error struct {
	Tag     string
	Message string
}

func (e *Error) Error() string { return e.Message }

// ErrQueueFull is returned by Push when the index is already at
// MaxQueueLen.
func ErrQueueFull(maxLen int) *Error {
	return &Error{Tag: "QueueFull", Message: fmt.Sprintf("queue is full (max %d)", maxLen)}
}

// ErrAlreadyInQueue is returned by Push when key already owes grants.
func ErrAlreadyInQueue(key Recipient) *Error {
	return &Error{Tag: "AlreadyInQueue", Message: fmt.Sprintf("%s is already in the queue", key)}
}

// ErrUnavailableErr is returned by the request_fee_assets handler when
// the faucet has not finished bootstrapping.
var ErrUnavailableErr = &Error{Tag: "Unavailable", Message: "faucet is not yet available"}

// ErrBadRequest wraps a malformed request body.
func ErrBadRequest(reason string) *Error {
	return &Error{Tag: "BadRequest", Message: reason}
}

// ErrInternal wraps a storage or wallet error that should not be
// exposed to clients in detail. The cause is logged server-side; the
// client-facing Message never includes it.
func ErrInternal(cause error) *Error {
	if cause != nil {
		log.Error("internal error", "err", cause)
	}
	return &Error{Tag: "Internal", Message: "internal error"}
}
