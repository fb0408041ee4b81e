// Copyright (c) 2014 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keymgr

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific ManagerError.
const (
	// ErrMissingMasterKey indicates a manager was created without a seed
	// and without a raw master key.
	ErrMissingMasterKey ErrorCode = iota

	// ErrUnknownScheme indicates a derivation scheme other than bip32,
	// bip44, bip49 or bip84 was requested.
	ErrUnknownScheme

	// ErrUnsupportedScheme indicates a segwit derivation scheme was
	// requested for a network without segwit.
	ErrUnsupportedScheme

	// ErrUtxoNotSynced indicates the transaction owning an output is not
	// known yet.
	ErrUtxoNotSynced

	// ErrCorruptUtxo indicates an output index is out of range for its
	// transaction.
	ErrCorruptUtxo

	// ErrAddressNotOwned indicates an output pays to an address that is
	// not part of the wallet.
	ErrAddressNotOwned

	// ErrNoOutputs indicates a transaction without outputs was requested
	// outside of CPFP.
	ErrNoOutputs

	// ErrSanityCheckFailed indicates a created transaction failed the
	// context free consensus checks.
	ErrSanityCheckFailed

	// ErrContextCheckFailed indicates a created transaction failed the
	// checks against the outputs it spends and the chain height.
	ErrContextCheckFailed

	// ErrNoPrivateKey indicates a signing key is not available.
	ErrNoPrivateKey

	// ErrKeyChain indicates an error with the key chain typically either
	// due to the inability to create an extended key or deriving a child
	// extended key.
	ErrKeyChain

	// ErrInvalidKey indicates a malformed seed, extended key or WIF.
	ErrInvalidKey

	// ErrInvalidAddress indicates an address that can not be decoded for
	// the manager's network.
	ErrInvalidAddress

	// ErrInvalidTx indicates a malformed raw transaction.
	ErrInvalidTx

	// ErrInsufficientFunds indicates the candidate outputs can not fund a
	// transaction.
	ErrInsufficientFunds

	// ErrFeeTooHigh indicates a transaction would pay more than the
	// maximum fee.
	ErrFeeTooHigh

	// ErrLookAhead indicates address look-ahead stopped before the gap
	// limit was restored.
	ErrLookAhead

	// ErrSigningFailed indicates an input script could not be created or
	// did not validate.
	ErrSigningFailed

	// lastErr is used for testing, making it possible to iterate over
	// the error codes in order to check that they all have proper
	// translations in errorCodeStrings.
	lastErr
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrMissingMasterKey:   "ErrMissingMasterKey",
	ErrUnknownScheme:      "ErrUnknownScheme",
	ErrUnsupportedScheme:  "ErrUnsupportedScheme",
	ErrUtxoNotSynced:      "ErrUtxoNotSynced",
	ErrCorruptUtxo:        "ErrCorruptUtxo",
	ErrAddressNotOwned:    "ErrAddressNotOwned",
	ErrNoOutputs:          "ErrNoOutputs",
	ErrSanityCheckFailed:  "ErrSanityCheckFailed",
	ErrContextCheckFailed: "ErrContextCheckFailed",
	ErrNoPrivateKey:       "ErrNoPrivateKey",
	ErrKeyChain:           "ErrKeyChain",
	ErrInvalidKey:         "ErrInvalidKey",
	ErrInvalidAddress:     "ErrInvalidAddress",
	ErrInvalidTx:          "ErrInvalidTx",
	ErrInsufficientFunds:  "ErrInsufficientFunds",
	ErrFeeTooHigh:         "ErrFeeTooHigh",
	ErrLookAhead:          "ErrLookAhead",
	ErrSigningFailed:      "ErrSigningFailed",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// ManagerError provides a single type for errors that can happen during key
// manager operation.  It is used to indicate several types of failures
// including errors with caller requests such as unknown schemes or outputs
// that are not owned by the wallet, as well as failures of the underlying
// key chain and transaction checks.
//
// The caller can use type assertions to determine if an error is a
// ManagerError and access the ErrorCode field to ascertain the specific
// reason for the failure.
//
// The ErrKeyChain, ErrSanityCheckFailed and ErrContextCheckFailed error codes
// will also have the Err field set with the underlying error.
type ManagerError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error
}

// Error satisfies the error interface and prints human-readable errors.
func (e ManagerError) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// Unwrap returns the underlying error, if any.
func (e ManagerError) Unwrap() error {
	return e.Err
}

// managerError creates a ManagerError given a set of arguments.
func managerError(c ErrorCode, desc string, err error) ManagerError {
	return ManagerError{ErrorCode: c, Description: desc, Err: err}
}

// IsError returns whether the error is a ManagerError with a matching error
// code.
func IsError(err error, code ErrorCode) bool {
	var e ManagerError
	return errors.As(err, &e) && e.ErrorCode == code
}
