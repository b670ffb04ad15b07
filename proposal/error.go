// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package proposal

import (
	"errors"
	"fmt"

	"github.com/btcsuite/mswallet/wsjson"
)

// ErrorCode identifies a kind of error.
type ErrorCode int

const (
	// ErrUnknown indicates a service error with a code missing from the
	// protocol table.
	ErrUnknown ErrorCode = iota

	// ErrWalletNotFound indicates the wallet does not exist.
	ErrWalletNotFound

	// ErrWalletFull indicates every copayer of the wallet already joined.
	ErrWalletFull

	// ErrNotAuthorized indicates the request key was refused.
	ErrNotAuthorized

	// ErrAuthExpired indicates the session ended.  It is retried once
	// after logging in again.
	ErrAuthExpired

	// ErrCopayerInWallet indicates the copayer already joined the wallet.
	ErrCopayerInWallet

	// ErrCopayerVoted indicates the copayer already signed or rejected
	// the proposal.
	ErrCopayerVoted

	// ErrInsufficientFunds indicates the wallet cannot pay the outputs.
	ErrInsufficientFunds

	// ErrLockedFunds indicates the funds are locked by pending proposals.
	ErrLockedFunds

	// ErrTxNotFound indicates the proposal does not exist.
	ErrTxNotFound

	// ErrTxNotPending indicates the proposal can no longer be signed.
	ErrTxNotPending

	// ErrInvalidArgs indicates arguments rejected before any request was
	// made.
	ErrInvalidArgs

	// ErrKeyNotInDefinition indicates the copayer's key has no place in
	// the definition of an input address.
	ErrKeyNotInDefinition

	// lastErr is used for testing, making it possible to iterate over
	// the error codes in order to check that they all have proper
	// translations in errorCodeStrings.
	lastErr
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrUnknown:            "ErrUnknown",
	ErrWalletNotFound:     "ErrWalletNotFound",
	ErrWalletFull:         "ErrWalletFull",
	ErrNotAuthorized:      "ErrNotAuthorized",
	ErrAuthExpired:        "ErrAuthExpired",
	ErrCopayerInWallet:    "ErrCopayerInWallet",
	ErrCopayerVoted:       "ErrCopayerVoted",
	ErrInsufficientFunds:  "ErrInsufficientFunds",
	ErrLockedFunds:        "ErrLockedFunds",
	ErrTxNotFound:         "ErrTxNotFound",
	ErrTxNotPending:       "ErrTxNotPending",
	ErrInvalidArgs:        "ErrInvalidArgs",
	ErrKeyNotInDefinition: "ErrKeyNotInDefinition",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// protocolErrors maps the error codes of the wallet service to kinds.
var protocolErrors = map[string]ErrorCode{
	"WALLET_NOT_FOUND":   ErrWalletNotFound,
	"WALLET_FULL":        ErrWalletFull,
	"NOT_AUTHORIZED":     ErrNotAuthorized,
	"SESSION_EXPIRED":    ErrAuthExpired,
	"COPAYER_IN_WALLET":  ErrCopayerInWallet,
	"COPAYER_REGISTERED": ErrCopayerInWallet,
	"COPAYER_VOTED":      ErrCopayerVoted,
	"INSUFFICIENT_FUNDS": ErrInsufficientFunds,
	"LOCKED_FUNDS":       ErrLockedFunds,
	"TX_NOT_FOUND":       ErrTxNotFound,
	"TX_NOT_PENDING":     ErrTxNotPending,
}

// Error is a typed error for all errors arising from proposal requests.
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

// mapError translates a service error into an Error.  Other errors pass
// through unchanged.
func mapError(err error) error {
	var se *wsjson.ServerError
	if err == nil || !errors.As(err, &se) {
		return err
	}
	code, ok := protocolErrors[se.Code]
	if !ok {
		code = ErrUnknown
	}
	return newError(code, "wallet service error", se)
}
