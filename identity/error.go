// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package identity

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a kind of error.
type ErrorCode int

const (
	// ErrInvalidInput indicates a malformed argument such as an unknown
	// tag or an out of range wallet size.
	ErrInvalidInput ErrorCode = iota

	// ErrWatchingOnly indicates an operation that needs private key
	// material was attempted on a watch-only device.
	ErrWatchingOnly

	// ErrLocked indicates an operation that needs the plaintext private
	// key was attempted while it is encrypted.
	ErrLocked

	// ErrAlreadyEncrypted indicates the private key is already encrypted.
	ErrAlreadyEncrypted

	// ErrNotEncrypted indicates a decryption of a device whose private
	// key is not encrypted.
	ErrNotEncrypted

	// ErrDecryptionFailed indicates the private material did not decrypt,
	// most often because of a wrong password.
	ErrDecryptionFailed

	// ErrAccountExists indicates a copayer already exists for the
	// account.
	ErrAccountExists

	// ErrCopayerNotFound indicates no copayer matches the request.
	ErrCopayerNotFound

	// ErrIncompleteWallet indicates wallet information that is needed
	// has not been received yet.
	ErrIncompleteWallet

	// ErrMnemonic indicates an invalid mnemonic.
	ErrMnemonic

	// ErrCrypto indicates a failure of the random source or the key
	// derivation function.
	ErrCrypto

	// lastErr is used for testing, making it possible to iterate over
	// the error codes in order to check that they all have proper
	// translations in errorCodeStrings.
	lastErr
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrInvalidInput:     "ErrInvalidInput",
	ErrWatchingOnly:     "ErrWatchingOnly",
	ErrLocked:           "ErrLocked",
	ErrAlreadyEncrypted: "ErrAlreadyEncrypted",
	ErrNotEncrypted:     "ErrNotEncrypted",
	ErrDecryptionFailed: "ErrDecryptionFailed",
	ErrAccountExists:    "ErrAccountExists",
	ErrCopayerNotFound:  "ErrCopayerNotFound",
	ErrIncompleteWallet: "ErrIncompleteWallet",
	ErrMnemonic:         "ErrMnemonic",
	ErrCrypto:           "ErrCrypto",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error is a typed error for all errors arising from device and copayer
// state.
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

func newError(c ErrorCode, desc string, err error) Error {
	return Error{ErrorCode: c, Description: desc, Err: err}
}

// IsError returns whether the error is an Error with a matching error code.
func IsError(err error, code ErrorCode) bool {
	var e Error
	return errors.As(err, &e) && e.ErrorCode == code
}
