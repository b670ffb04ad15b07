// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keystore

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a kind of error.
type ErrorCode int

const (
	// ErrInvalidPath indicates a derivation path that cannot be parsed or
	// that contains an out of range child index.
	ErrInvalidPath ErrorCode = iota

	// ErrInvalidNetwork indicates an unknown network tag.
	ErrInvalidNetwork

	// ErrInvalidCoin indicates an unknown coin tag.
	ErrInvalidCoin

	// ErrInvalidDerivationStrategy indicates an unknown derivation
	// strategy tag.
	ErrInvalidDerivationStrategy

	// ErrInsufficientEntropy indicates externally supplied entropy that
	// is too short or not hex encoded.
	ErrInsufficientEntropy

	// ErrNetworkMismatch indicates an extended key whose version bytes do
	// not belong to the expected network.
	ErrNetworkMismatch

	// ErrKeyChain indicates an error with the key chain typically either
	// due to the inability to create an extended key or deriving a child
	// extended key.
	ErrKeyChain

	// ErrInvalidPrivateKey indicates a private scalar outside of the
	// curve order.
	ErrInvalidPrivateKey

	// ErrInvalidAccount indicates an account number outside of the
	// hardened child range.
	ErrInvalidAccount

	// lastErr is used for testing, making it possible to iterate over
	// the error codes in order to check that they all have proper
	// translations in errorCodeStrings.
	lastErr
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrInvalidPath:               "ErrInvalidPath",
	ErrInvalidNetwork:            "ErrInvalidNetwork",
	ErrInvalidCoin:               "ErrInvalidCoin",
	ErrInvalidDerivationStrategy: "ErrInvalidDerivationStrategy",
	ErrInsufficientEntropy:       "ErrInsufficientEntropy",
	ErrNetworkMismatch:           "ErrNetworkMismatch",
	ErrKeyChain:                  "ErrKeyChain",
	ErrInvalidPrivateKey:         "ErrInvalidPrivateKey",
	ErrInvalidAccount:            "ErrInvalidAccount",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error is a typed error for all errors arising during key derivation.
type Error struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// Unwrap returns the underlying error, if any.
func (e Error) Unwrap() error {
	return e.Err
}

// newError creates a new Error.
func newError(c ErrorCode, desc string, err error) Error {
	return Error{ErrorCode: c, Description: desc, Err: err}
}

// IsError returns whether the error is an Error with a matching error code.
func IsError(err error, code ErrorCode) bool {
	var e Error
	return errors.As(err, &e) && e.ErrorCode == code
}
