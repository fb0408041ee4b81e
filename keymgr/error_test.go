// Copyright (c) 2014 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keymgr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestErrorCodeStringer tests that all error codes has a text
// representation and that text representation is still correct,
// ie. that a refactoring and renaming of the error code has not
// drifted from the textual representation.
func TestErrorCodeStringer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   ErrorCode
		want string
	}{
		{ErrMissingMasterKey, "ErrMissingMasterKey"},
		{ErrUnknownScheme, "ErrUnknownScheme"},
		{ErrUnsupportedScheme, "ErrUnsupportedScheme"},
		{ErrUtxoNotSynced, "ErrUtxoNotSynced"},
		{ErrCorruptUtxo, "ErrCorruptUtxo"},
		{ErrAddressNotOwned, "ErrAddressNotOwned"},
		{ErrNoOutputs, "ErrNoOutputs"},
		{ErrSanityCheckFailed, "ErrSanityCheckFailed"},
		{ErrContextCheckFailed, "ErrContextCheckFailed"},
		{ErrNoPrivateKey, "ErrNoPrivateKey"},
		{ErrKeyChain, "ErrKeyChain"},
		{ErrInvalidKey, "ErrInvalidKey"},
		{ErrInvalidAddress, "ErrInvalidAddress"},
		{ErrInvalidTx, "ErrInvalidTx"},
		{ErrInsufficientFunds, "ErrInsufficientFunds"},
		{ErrFeeTooHigh, "ErrFeeTooHigh"},
		{ErrLookAhead, "ErrLookAhead"},
		{ErrSigningFailed, "ErrSigningFailed"},
		{0xffff, "Unknown ErrorCode (65535)"},
	}

	require.Equal(t, len(tests)-1, int(lastErr),
		"wrong number of errorCodeStrings")

	for i, test := range tests {
		require.Equalf(t, test.want, test.in.String(), "String #%d", i)
	}
}

// TestManagerError tests the error output and unwrapping of ManagerError.
func TestManagerError(t *testing.T) {
	t.Parallel()

	cause := errors.New("human-readable error")

	err := managerError(ErrKeyChain, "unable to derive", cause)
	require.Equal(t, "unable to derive: human-readable error", err.Error())
	require.ErrorIs(t, err, cause)
	require.True(t, IsError(err, ErrKeyChain))
	require.False(t, IsError(err, ErrInvalidKey))

	err = managerError(ErrNoOutputs, "no outputs", nil)
	require.Equal(t, "no outputs", err.Error())
	require.Nil(t, err.Unwrap())

	wrapped := errors.Join(errors.New("context"), err)
	require.True(t, IsError(wrapped, ErrNoOutputs))
	require.False(t, IsError(cause, ErrNoOutputs))
}
