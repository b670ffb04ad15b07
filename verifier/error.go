// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package verifier

import (
	"errors"
	"fmt"
)

// ErrServerCompromised matches every ServerCompromisedError with errors.Is.
var ErrServerCompromised = errors.New("server response failed verification")

// ServerCompromisedError reports a server response that contradicts values
// derived locally.  Nothing derived from the response may be signed or
// broadcast, and the request must not be retried.
type ServerCompromisedError struct {
	// Check names the verification that failed.
	Check string
}

// Error satisfies the error interface.
func (e *ServerCompromisedError) Error() string {
	return fmt.Sprintf("%v: %s", ErrServerCompromised, e.Check)
}

// Is makes errors.Is(err, ErrServerCompromised) hold.
func (e *ServerCompromisedError) Is(target error) bool {
	return target == ErrServerCompromised
}

// Compromised returns the error raised when check returned false.
func Compromised(check string) error {
	return &ServerCompromisedError{Check: check}
}

// Names of the checks, used in ServerCompromisedError.
const (
	CheckAddressName          = "address"
	CheckCopayersName         = "copayers"
	CheckProposalCreationName = "proposal creation"
	CheckProposalInputsName   = "proposal inputs"
	CheckTxProposalSigName    = "proposal signature"
)
