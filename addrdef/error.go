// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package addrdef

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a kind of error.
type ErrorCode int

const (
	// ErrInvalidAddressType indicates an address type other than normal
	// or shared.
	ErrInvalidAddressType ErrorCode = iota

	// ErrRingSizeMismatch indicates a public key ring whose size does not
	// fit the address type.
	ErrRingSizeMismatch

	// ErrEmptyRing indicates an address was requested for an empty public
	// key ring.
	ErrEmptyRing

	// ErrInvalidRequiredSignatures indicates a required signature count
	// outside of 1..n.
	ErrInvalidRequiredSignatures

	// ErrInvalidPath indicates a derivation path that cannot be used for
	// addresses, either malformed or hardened.
	ErrInvalidPath

	// ErrKeyChain indicates an extended key that cannot be decoded or
	// whose child cannot be derived.
	ErrKeyChain

	// ErrKeyIsPrivate indicates an extended private key in a ring that
	// must only carry public keys.
	ErrKeyIsPrivate

	// ErrDuplicatePubKey indicates two ring entries deriving the same
	// leaf key.
	ErrDuplicatePubKey

	// ErrHashing indicates the definition could not be hashed.
	ErrHashing

	// lastErr is used for testing, making it possible to iterate over
	// the error codes in order to check that they all have proper
	// translations in errorCodeStrings.
	lastErr
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrInvalidAddressType:        "ErrInvalidAddressType",
	ErrRingSizeMismatch:          "ErrRingSizeMismatch",
	ErrEmptyRing:                 "ErrEmptyRing",
	ErrInvalidRequiredSignatures: "ErrInvalidRequiredSignatures",
	ErrInvalidPath:               "ErrInvalidPath",
	ErrKeyChain:                  "ErrKeyChain",
	ErrKeyIsPrivate:              "ErrKeyIsPrivate",
	ErrDuplicatePubKey:           "ErrDuplicatePubKey",
	ErrHashing:                   "ErrHashing",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error is a typed error for all errors arising during address derivation.
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
