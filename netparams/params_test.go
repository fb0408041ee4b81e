// Copyright (c) 2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netparams

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

func TestForName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		params   *Params
		coinType uint32
		segwit   bool
	}{
		{"bitcoin", &MainNetParams, 0, true},
		{"bitcointestnet", &TestNet3Params, 1, true},
		{"bitcointestnet4", &TestNet4Params, 1, true},
		{"bitcoinregtest", &RegressionNetParams, 1, true},
		{"litecoin", &LitecoinParams, 2, true},
		{"dash", &DashParams, 5, false},
	}
	for _, test := range tests {
		params, err := ForName(test.name)
		require.NoError(t, err, test.name)
		require.Same(t, test.params, params, test.name)
		require.Equal(t, test.coinType, params.CoinType, test.name)
		require.Equal(t, test.segwit, params.Segwit(), test.name)
	}

	_, err := ForName("dogecoin")
	require.ErrorIs(t, err, ErrUnknownNetwork)
}

// TestRegistration checks that address prefixes of the added networks are
// known to chaincfg once a network was looked up.
func TestRegistration(t *testing.T) {
	t.Parallel()

	_, err := ForName("litecoin")
	require.NoError(t, err)

	require.True(t, chaincfg.IsPubKeyHashAddrID(
		LitecoinParams.PubKeyHashAddrID,
	))
	require.True(t, chaincfg.IsBech32SegwitPrefix("ltc1"))
	require.True(t, chaincfg.IsPubKeyHashAddrID(DashParams.PubKeyHashAddrID))
}

func TestNames(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{
		"bitcoin", "bitcoinregtest", "bitcointestnet",
		"bitcointestnet4", "dash", "litecoin",
	}, Names())
}
