// Copyright (c) 2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txauthor

import (
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

var errNoKey = errors.New("no key")

// mapSecrets is a SecretsSource of compressed keys indexed by address.
type mapSecrets map[string]*btcec.PrivateKey

func (s mapSecrets) GetKey(addr btcutil.Address) (*btcec.PrivateKey, bool,
	error) {

	key, ok := s[addr.EncodeAddress()]
	if !ok {
		return nil, false, errNoKey
	}
	return key, true, nil
}

func (s mapSecrets) GetScript(btcutil.Address) ([]byte, error) {
	return nil, errNoKey
}

func (s mapSecrets) ChainParams() *chaincfg.Params {
	return &chaincfg.RegressionNetParams
}

// keyScripts returns the P2PKH, P2WPKH and nested P2WPKH scripts of key and
// registers key for each of them.
func keyScripts(t *testing.T, secrets mapSecrets,
	key *btcec.PrivateKey) [][]byte {

	params := secrets.ChainParams()
	pkHash := btcutil.Hash160(key.PubKey().SerializeCompressed())

	p2pkh, err := btcutil.NewAddressPubKeyHash(pkHash, params)
	require.NoError(t, err)
	p2wpkh, err := btcutil.NewAddressWitnessPubKeyHash(pkHash, params)
	require.NoError(t, err)
	witnessProgram, err := txscript.PayToAddrScript(p2wpkh)
	require.NoError(t, err)
	nested, err := btcutil.NewAddressScriptHash(witnessProgram, params)
	require.NoError(t, err)

	var scripts [][]byte
	for _, addr := range []btcutil.Address{p2pkh, p2wpkh, nested} {
		secrets[addr.EncodeAddress()] = key

		pkScript, err := txscript.PayToAddrScript(addr)
		require.NoError(t, err)
		scripts = append(scripts, pkScript)
	}

	return scripts
}

// spendingTx returns an authored transaction spending one output of each
// script.
func spendingTx(scripts [][]byte) *AuthoredTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	authored := &AuthoredTx{Tx: tx, ChangeIndex: -1}
	for i, pkScript := range scripts {
		prevHash := chainhash.HashH([]byte{byte(i)})
		tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prevHash, 0), nil,
			nil))

		authored.PrevScripts = append(authored.PrevScripts, pkScript)
		authored.PrevInputValues = append(authored.PrevInputValues,
			btcutil.Amount(10000*(i+1)))
	}
	tx.AddTxOut(wire.NewTxOut(5000, scripts[0]))

	return authored
}

// TestAddAllInputScripts checks that every supported input type is signed
// with a valid script.
func TestAddAllInputScripts(t *testing.T) {
	t.Parallel()

	key, _ := btcec.PrivKeyFromBytes([]byte("txauthor signing test secret!!!!"))
	secrets := mapSecrets{}
	scripts := keyScripts(t, secrets, key)

	tx := spendingTx(scripts)
	require.Error(t, tx.ValidateInputScripts())

	require.NoError(t, tx.AddAllInputScripts(secrets))
	require.NoError(t, tx.ValidateInputScripts())

	// Only the P2PKH and nested inputs carry a signature script, only
	// the witness inputs a witness.
	require.NotEmpty(t, tx.Tx.TxIn[0].SignatureScript)
	require.Empty(t, tx.Tx.TxIn[0].Witness)
	require.Empty(t, tx.Tx.TxIn[1].SignatureScript)
	require.Len(t, tx.Tx.TxIn[1].Witness, 2)
	require.NotEmpty(t, tx.Tx.TxIn[2].SignatureScript)
	require.Len(t, tx.Tx.TxIn[2].Witness, 2)

	// A changed input value invalidates the witness signatures.
	tx.PrevInputValues[1]++
	require.Error(t, tx.ValidateInputScripts())
}

// TestAddAllInputScriptsErrors checks missing keys and unsupported scripts.
func TestAddAllInputScriptsErrors(t *testing.T) {
	t.Parallel()

	key, _ := btcec.PrivKeyFromBytes([]byte("txauthor signing test secret!!!!"))
	scripts := keyScripts(t, mapSecrets{}, key)

	for _, pkScript := range scripts {
		tx := spendingTx([][]byte{pkScript})
		err := tx.AddAllInputScripts(mapSecrets{})
		require.Error(t, err)
	}

	tx := spendingTx([][]byte{{txscript.OP_RETURN}})
	err := tx.AddAllInputScripts(mapSecrets{})
	require.ErrorIs(t, err, ErrUnsupportedScript)

	tx = spendingTx(scripts)
	tx.PrevScripts = tx.PrevScripts[1:]
	require.Error(t, tx.AddAllInputScripts(mapSecrets{}))
	require.Error(t, tx.ValidateInputScripts())
}
