// Copyright (c) 2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keymgr

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"slices"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/hdengine/netparams"
	"github.com/btcsuite/hdengine/wallet/txsizes"
	"github.com/stretchr/testify/require"
)

func TestParseScheme(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Scheme
		err  bool
	}{
		{in: "", want: SchemeBIP32},
		{in: "bip32", want: SchemeBIP32},
		{in: "bip44", want: SchemeBIP44},
		{in: "BIP49", want: SchemeBIP49},
		{in: "bip84", want: SchemeBIP84},
		{in: "bip86", err: true},
		{in: "electrum", err: true},
	}

	for _, test := range tests {
		scheme, err := ParseScheme(test.in)
		if test.err {
			requireErrorCode(t, err, ErrUnknownScheme)
			continue
		}

		require.NoError(t, err)
		require.Equal(t, test.want, scheme)
	}
}

func TestSelectFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		scheme   Scheme
		net      *netparams.Params
		purpose  uint32
		branches []Branch
		nested   bool
		witness  bool
		err      ErrorCode
		fails    bool
	}{
		{
			name:     "bip32",
			scheme:   SchemeBIP32,
			net:      &netparams.MainNetParams,
			branches: []Branch{BranchReceive},
		},
		{
			name:     "bip44",
			scheme:   SchemeBIP44,
			net:      &netparams.MainNetParams,
			purpose:  44,
			branches: []Branch{BranchReceive, BranchChange},
		},
		{
			name:     "bip49",
			scheme:   SchemeBIP49,
			net:      &netparams.LitecoinParams,
			purpose:  49,
			branches: []Branch{BranchReceive, BranchChange},
			nested:   true,
			witness:  true,
		},
		{
			name:     "bip84",
			scheme:   SchemeBIP84,
			net:      &netparams.TestNet3Params,
			purpose:  84,
			branches: []Branch{BranchReceive, BranchChange},
			witness:  true,
		},
		{
			name:     "bip44 without segwit",
			scheme:   SchemeBIP44,
			net:      &netparams.DashParams,
			purpose:  44,
			branches: []Branch{BranchReceive, BranchChange},
		},
		{
			name:   "bip84 without segwit",
			scheme: SchemeBIP84,
			net:    &netparams.DashParams,
			err:    ErrUnsupportedScheme,
			fails:  true,
		},
		{
			name:   "bip49 without segwit",
			scheme: SchemeBIP49,
			net:    &netparams.DashParams,
			err:    ErrUnsupportedScheme,
			fails:  true,
		},
		{
			name:   "unknown",
			scheme: Scheme("bip86"),
			net:    &netparams.MainNetParams,
			err:    ErrUnknownScheme,
			fails:  true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f, err := SelectFormat(test.scheme, test.net)
			if test.fails {
				requireErrorCode(t, err, test.err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, test.scheme, f.Scheme)
			require.Equal(t, test.purpose, f.Purpose)
			require.Equal(t, test.branches, f.Branches)
			require.Equal(t, test.nested, f.Nested)
			require.Equal(t, test.witness, f.Witness)
			require.Same(t, test.net, f.Net())
		})
	}
}

func TestMasterPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		scheme   Scheme
		account  uint32
		coinType uint32
		want     string
	}{
		{SchemeBIP32, 5, 2, "m/0"},
		{SchemeBIP44, 0, 0, "m/44'/0'/0'"},
		{SchemeBIP49, 1, 2, "m/49'/2'/1'"},
		{SchemeBIP84, 3, 1, "m/84'/1'/3'"},
	}

	for _, test := range tests {
		f, err := SelectFormat(test.scheme, &netparams.MainNetParams)
		require.NoError(t, err)

		path := f.MasterPath(test.account, test.coinType)
		require.Equal(t, test.want, path)

		// Every master path must be derivable.
		_, err = pathComponents(path)
		require.NoError(t, err)
	}
}

// TestKeyAddress tests that keys are encoded as the address type of their
// scheme.
func TestKeyAddress(t *testing.T) {
	t.Parallel()

	privKey, _ := btcec.PrivKeyFromBytes(
		[]byte("keymgr key address test secret!!"),
	)
	pubKey := privKey.PubKey()

	tests := []struct {
		scheme Scheme
		want   func([]byte) bool
	}{
		{SchemeBIP32, txscript.IsPayToPubKeyHash},
		{SchemeBIP44, txscript.IsPayToPubKeyHash},
		{SchemeBIP49, txscript.IsPayToScriptHash},
		{SchemeBIP84, txscript.IsPayToWitnessPubKeyHash},
	}

	for _, test := range tests {
		f, err := SelectFormat(test.scheme, &netparams.MainNetParams)
		require.NoError(t, err)

		addr, err := f.KeyAddress(pubKey)
		require.NoError(t, err)
		require.True(t, addr.IsForNet(netparams.MainNetParams.Params))

		pkScript, err := txscript.PayToAddrScript(addr)
		require.NoError(t, err)
		require.Truef(t, test.want(pkScript), "scheme %s", test.scheme)

		size, ok := f.InputSize(pkScript)
		require.True(t, ok)
		require.Equal(t, f.Witness, size.HasWitness())
	}
}

func TestScriptHash(t *testing.T) {
	t.Parallel()

	pkScript, err := hex.DecodeString(
		"76a91462e907b15cbf27d5425399ebf6f0fb50ebb88f1888ac",
	)
	require.NoError(t, err)

	// The script hash is the sha256 of the script in reversed byte order.
	digest := sha256.Sum256(pkScript)
	slices.Reverse(digest[:])

	require.Equal(t, hex.EncodeToString(digest[:]), ScriptHash(pkScript))
}

func TestEstimateVsize(t *testing.T) {
	t.Parallel()

	pkHash := btcutil.Hash160([]byte("estimate"))
	p2pkh, err := btcutil.NewAddressPubKeyHash(
		pkHash, netparams.MainNetParams.Params,
	)
	require.NoError(t, err)
	p2wpkh, err := btcutil.NewAddressWitnessPubKeyHash(
		pkHash, netparams.MainNetParams.Params,
	)
	require.NoError(t, err)
	p2sh, err := btcutil.NewAddressScriptHashFromHash(
		pkHash, netparams.MainNetParams.Params,
	)
	require.NoError(t, err)

	script := func(addr btcutil.Address) []byte {
		pkScript, err := txscript.PayToAddrScript(addr)
		require.NoError(t, err)
		return pkScript
	}

	bip44, err := SelectFormat(SchemeBIP44, &netparams.MainNetParams)
	require.NoError(t, err)
	bip49, err := SelectFormat(SchemeBIP49, &netparams.MainNetParams)
	require.NoError(t, err)
	bip84, err := SelectFormat(SchemeBIP84, &netparams.MainNetParams)
	require.NoError(t, err)

	require.Equal(t, txsizes.RedeemP2PKHInputSize,
		bip44.EstimateVsize(script(p2pkh)))
	require.Equal(t, 69, bip84.EstimateVsize(script(p2wpkh)))
	require.Equal(t, 92, bip49.EstimateVsize(script(p2sh)))

	// Only nested formats know the redeem script of P2SH outputs.
	require.Equal(t, -1, bip84.EstimateVsize(script(p2sh)))
	require.Equal(t, -1, bip44.EstimateVsize([]byte{txscript.OP_RETURN}))
	require.Equal(t, -1, bip44.EstimateVsize(nil))
}

func TestParseSeed(t *testing.T) {
	t.Parallel()

	f, err := SelectFormat(SchemeBIP84, &netparams.MainNetParams)
	require.NoError(t, err)

	seed, err := f.ParseSeed("  ABANDON abandon abandon abandon abandon " +
		"abandon\tabandon abandon abandon abandon abandon About\n")
	require.NoError(t, err)
	require.Equal(t, testMnemonic, seed)

	raw := base64.StdEncoding.EncodeToString(make([]byte, 32))
	seed, err = f.ParseSeed(raw)
	require.NoError(t, err)
	require.Equal(t, raw, seed)

	_, err = f.ParseSeed(base64.StdEncoding.EncodeToString(make([]byte, 8)))
	requireErrorCode(t, err, ErrInvalidKey)

	_, err = f.ParseSeed(base64.StdEncoding.EncodeToString(
		make([]byte, 65),
	))
	requireErrorCode(t, err, ErrInvalidKey)

	// A mnemonic with a bad checksum is not a seed.
	_, err = f.ParseSeed("abandon abandon abandon abandon abandon " +
		"abandon abandon abandon abandon abandon abandon abandon")
	requireErrorCode(t, err, ErrInvalidKey)
}
