// Copyright (c) 2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keymgr

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/hdengine/internal/zero"
	"github.com/btcsuite/hdengine/netparams"
	"github.com/btcsuite/hdengine/wallet/txsizes"
	"github.com/tyler-smith/go-bip39"
)

// Scheme identifies a derivation scheme.
type Scheme string

// Supported derivation schemes.
const (
	// SchemeBIP32 derives P2PKH addresses from the non-hardened path m/0
	// using a single chain for receive and change addresses.
	SchemeBIP32 Scheme = "bip32"

	// SchemeBIP44 derives P2PKH addresses.
	SchemeBIP44 Scheme = "bip44"

	// SchemeBIP49 derives P2WPKH addresses nested in P2SH.
	SchemeBIP49 Scheme = "bip49"

	// SchemeBIP84 derives native P2WPKH addresses.
	SchemeBIP84 Scheme = "bip84"
)

// ParseScheme returns the scheme named by s.  An empty name selects
// SchemeBIP32.
func ParseScheme(s string) (Scheme, error) {
	switch scheme := Scheme(strings.ToLower(s)); scheme {
	case "":
		return SchemeBIP32, nil

	case SchemeBIP32, SchemeBIP44, SchemeBIP49, SchemeBIP84:
		return scheme, nil

	default:
		str := fmt.Sprintf("unknown derivation scheme %q", s)
		return "", managerError(ErrUnknownScheme, str, nil)
	}
}

// Format holds the rules of a derivation scheme on a network: where the
// wallet's master key lives, which branches exist and which address type
// keys are encoded as.
type Format struct {
	// Scheme is the derivation scheme.
	Scheme Scheme

	// Purpose is the BIP0043 purpose of the master path.  It is zero for
	// SchemeBIP32.
	Purpose uint32

	// Branches lists the branches derived below the master key.
	Branches []Branch

	// Nested is set when keys are encoded as P2WPKH nested in P2SH.
	Nested bool

	// Witness is set when keys are encoded as segwit programs.
	Witness bool

	net *netparams.Params
}

// SelectFormat returns the rules of scheme on net.
func SelectFormat(scheme Scheme, net *netparams.Params) (*Format, error) {
	f := &Format{
		Scheme:   scheme,
		Branches: []Branch{BranchReceive, BranchChange},
		net:      net,
	}

	switch scheme {
	case SchemeBIP32:
		f.Branches = []Branch{BranchReceive}

	case SchemeBIP44:
		f.Purpose = 44

	case SchemeBIP49:
		f.Purpose = 49
		f.Nested = true
		f.Witness = true

	case SchemeBIP84:
		f.Purpose = 84
		f.Witness = true

	default:
		str := fmt.Sprintf("unknown derivation scheme %q", scheme)
		return nil, managerError(ErrUnknownScheme, str, nil)
	}

	if f.Witness && !net.Segwit() {
		str := fmt.Sprintf("scheme %s needs segwit which %s does not "+
			"support", scheme, net.Name)
		return nil, managerError(ErrUnsupportedScheme, str, nil)
	}

	return f, nil
}

// Net returns the network the format encodes addresses for.
func (f *Format) Net() *netparams.Params {
	return f.net
}

// hasBranch returns whether addresses are derived on branch.
func (f *Format) hasBranch(branch Branch) bool {
	for _, b := range f.Branches {
		if b == branch {
			return true
		}
	}
	return false
}

// MasterPath returns the derivation path of the wallet's master key.
func (f *Format) MasterPath(account, coinType uint32) string {
	if f.Scheme == SchemeBIP32 {
		return "m/0"
	}

	return fmt.Sprintf("m/%d'/%d'/%d'", f.Purpose, coinType, account)
}

// KeyAddress returns the address a public key is encoded as.
func (f *Format) KeyAddress(pubKey *btcec.PublicKey) (btcutil.Address, error) {
	pkHash := btcutil.Hash160(pubKey.SerializeCompressed())

	switch {
	case f.Nested:
		witAddr, err := btcutil.NewAddressWitnessPubKeyHash(
			pkHash, f.net.Params,
		)
		if err != nil {
			return nil, err
		}

		witnessProgram, err := txscript.PayToAddrScript(witAddr)
		if err != nil {
			return nil, err
		}

		return btcutil.NewAddressScriptHash(
			witnessProgram, f.net.Params,
		)

	case f.Witness:
		return btcutil.NewAddressWitnessPubKeyHash(pkHash, f.net.Params)

	default:
		return btcutil.NewAddressPubKeyHash(pkHash, f.net.Params)
	}
}

// ScriptHash returns the electrum script hash of an output script: the
// byte-reversed sha256 of the script, hex encoded.
func ScriptHash(pkScript []byte) string {
	return chainhash.HashH(pkScript).String()
}

// DeriveAddress derives the child of a branch key at index and returns its
// address and script hash.
func (f *Format) DeriveAddress(branchKey *hdkeychain.ExtendedKey,
	index uint32) (btcutil.Address, string, error) {

	child, err := branchKey.Derive(index)
	if err != nil {
		return nil, "", err
	}

	pubKey, err := child.ECPubKey()
	if err != nil {
		return nil, "", err
	}

	addr, err := f.KeyAddress(pubKey)
	if err != nil {
		return nil, "", err
	}

	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, "", err
	}

	return addr, ScriptHash(pkScript), nil
}

// InputSize returns the worst case size of an input spending pkScript.  P2SH
// outputs are only sized as nested P2WPKH for nested formats.
func (f *Format) InputSize(pkScript []byte) (txsizes.InputSize, bool) {
	return txsizes.InputSizeForScript(pkScript, f.Nested)
}

// EstimateVsize returns the number of vbytes spending an output with
// pkScript adds to a transaction, or -1 when the script can not be
// classified.
func (f *Format) EstimateVsize(pkScript []byte) int {
	size, ok := f.InputSize(pkScript)
	if !ok {
		return -1
	}

	return size.VirtualSize()
}

// normalizeMnemonic lower cases a mnemonic and collapses its whitespace.
func normalizeMnemonic(seed string) string {
	return strings.Join(strings.Fields(strings.ToLower(seed)), " ")
}

// ParseSeed returns the normalized form of a seed.  A seed is either a BIP0039
// mnemonic or base64 encoded raw seed bytes.
func (f *Format) ParseSeed(seed string) (string, error) {
	if mnemonic := normalizeMnemonic(seed); bip39.IsMnemonicValid(mnemonic) {
		return mnemonic, nil
	}

	raw, err := base64.StdEncoding.DecodeString(seed)
	if err != nil {
		return "", managerError(ErrInvalidKey, "seed is neither a "+
			"mnemonic nor base64", err)
	}
	defer zero.Bytes(raw)

	if len(raw) < hdkeychain.MinSeedBytes ||
		len(raw) > hdkeychain.MaxSeedBytes {

		str := fmt.Sprintf("seed of %d bytes is out of range", len(raw))
		return "", managerError(ErrInvalidKey, str, nil)
	}

	return seed, nil
}

// rootKey returns the BIP0032 root key of a seed.
func (f *Format) rootKey(seed string) (*hdkeychain.ExtendedKey, error) {
	var (
		raw []byte
		err error
	)
	if mnemonic := normalizeMnemonic(seed); bip39.IsMnemonicValid(mnemonic) {
		raw, err = bip39.NewSeedWithErrorChecking(mnemonic, "")
	} else {
		raw, err = base64.StdEncoding.DecodeString(seed)
	}
	if err != nil {
		return nil, managerError(ErrInvalidKey, "unable to decode seed",
			err)
	}
	defer zero.Bytes(raw)

	root, err := hdkeychain.NewMaster(raw, f.net.Params)
	if err != nil {
		return nil, managerError(ErrInvalidKey, "unable to create "+
			"root key", err)
	}

	return root, nil
}

// deriveMasterKey derives the key at masterPath from the seed.
func (f *Format) deriveMasterKey(seed,
	masterPath string) (*hdkeychain.ExtendedKey, error) {

	components, err := pathComponents(masterPath)
	if err != nil {
		return nil, err
	}

	key, err := f.rootKey(seed)
	if err != nil {
		return nil, err
	}

	for _, child := range components {
		key, err = key.Derive(child)
		if err != nil {
			str := fmt.Sprintf("unable to derive %s", masterPath)
			return nil, managerError(ErrKeyChain, str, err)
		}
	}

	return key, nil
}
