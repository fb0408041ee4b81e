// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txauthor provides transaction funding and signing for HD wallets.
package txauthor

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// ErrUnsupportedScript is returned when an input spends an output script the
// signer has no template for.
var ErrUnsupportedScript = errors.New("unsupported previous output script")

// SumOutputValues sums up the list of TxOuts and returns an Amount.
func SumOutputValues(outputs []*wire.TxOut) (totalOutput btcutil.Amount) {
	for _, txOut := range outputs {
		totalOutput += btcutil.Amount(txOut.Value)
	}
	return totalOutput
}

// InputSourceError describes the failure to provide enough input value from
// the candidate outputs to meet a target amount.
type InputSourceError interface {
	error
	InputSourceError()
}

// AuthoredTx holds the state of a newly-created transaction and the change
// output (if one was added).
type AuthoredTx struct {
	Tx              *wire.MsgTx
	PrevScripts     [][]byte
	PrevInputValues []btcutil.Amount
	TotalInput      btcutil.Amount
	Fee             btcutil.Amount
	ChangeIndex     int // negative if no change
}

// ChangeSource provides change output scripts for transaction creation.
type ChangeSource struct {
	// NewScript is a closure that produces the change output script.
	NewScript func() ([]byte, error)

	// ScriptSize is the size in bytes of scripts produced by `NewScript`.
	ScriptSize int
}

// SecretsSource provides the private keys that sign the inputs of a
// transaction.  Keys are looked up by the address of the previous output
// script, encoded for the source's network.  Nested P2WPKH keys are looked
// up by their P2SH address.
type SecretsSource interface {
	txscript.KeyDB
	txscript.ScriptDB
	ChainParams() *chaincfg.Params
}

// AddAllInputScripts signs every input of tx.  Previous output scripts being
// redeemed by each input are passed in prevPkScripts and their values in
// inputValues, both in input order.
func AddAllInputScripts(tx *wire.MsgTx, prevPkScripts [][]byte,
	inputValues []btcutil.Amount, secrets SecretsSource) error {

	fetcher, err := TXPrevOutFetcher(tx, prevPkScripts, inputValues)
	if err != nil {
		return err
	}

	hashCache := txscript.NewTxSigHashes(tx, fetcher)
	chainParams := secrets.ChainParams()

	for i, txIn := range tx.TxIn {
		pkScript := prevPkScripts[i]
		value := int64(inputValues[i])

		switch txscript.GetScriptClass(pkScript) {
		// Script hash outputs of the wallet are always P2WPKH nested
		// in P2SH.
		case txscript.ScriptHashTy:
			err = signWitnessPubKeyHash(
				tx, hashCache, i, value, pkScript, true, secrets,
			)

		case txscript.WitnessV0PubKeyHashTy:
			err = signWitnessPubKeyHash(
				tx, hashCache, i, value, pkScript, false, secrets,
			)

		case txscript.PubKeyHashTy, txscript.PubKeyTy:
			var sigScript []byte
			sigScript, err = txscript.SignTxOutput(
				chainParams, tx, i, pkScript, txscript.SigHashAll,
				secrets, secrets, txIn.SignatureScript,
			)
			txIn.SignatureScript = sigScript

		default:
			err = fmt.Errorf("input %d: %w", i, ErrUnsupportedScript)
		}
		if err != nil {
			return err
		}
	}

	return nil
}

// signWitnessPubKeyHash sets the witness of input idx spending a P2WPKH
// output, or a P2WPKH output nested in the P2SH output pkScript.  For nested
// outputs the signature script pushes the witness program.
//
// The input value must be the value of the spent output since the BIP0143
// sighash commits to it.
func signWitnessPubKeyHash(tx *wire.MsgTx, hashCache *txscript.TxSigHashes,
	idx int, inputValue int64, pkScript []byte, nested bool,
	secrets SecretsSource) error {

	privKey, compressed, err := lookupKey(pkScript, secrets)
	if err != nil {
		return err
	}

	pubKey := privKey.PubKey().SerializeUncompressed()
	if compressed {
		pubKey = privKey.PubKey().SerializeCompressed()
	}

	witAddr, err := btcutil.NewAddressWitnessPubKeyHash(
		btcutil.Hash160(pubKey), secrets.ChainParams(),
	)
	if err != nil {
		return err
	}
	witnessProgram, err := txscript.PayToAddrScript(witAddr)
	if err != nil {
		return err
	}

	txIn := tx.TxIn[idx]
	if nested {
		sigScript, err := txscript.NewScriptBuilder().
			AddData(witnessProgram).Script()
		if err != nil {
			return err
		}
		txIn.SignatureScript = sigScript
	}

	txIn.Witness, err = txscript.WitnessSignature(
		tx, hashCache, idx, inputValue, witnessProgram,
		txscript.SigHashAll, privKey, compressed,
	)

	return err
}

// lookupKey returns the key of the address pkScript pays to.
func lookupKey(pkScript []byte,
	secrets SecretsSource) (*btcec.PrivateKey, bool, error) {

	_, addrs, _, err := txscript.ExtractPkScriptAddrs(
		pkScript, secrets.ChainParams(),
	)
	if err != nil {
		return nil, false, err
	}
	if len(addrs) != 1 {
		return nil, false, ErrUnsupportedScript
	}

	return secrets.GetKey(addrs[0])
}

// AddAllInputScripts signs every input of an authored transaction.
func (tx *AuthoredTx) AddAllInputScripts(secrets SecretsSource) error {
	return AddAllInputScripts(
		tx.Tx, tx.PrevScripts, tx.PrevInputValues, secrets,
	)
}

// PrevOutFetcher returns a fetcher of the outputs spent by the transaction.
func (tx *AuthoredTx) PrevOutFetcher() (*txscript.MultiPrevOutFetcher, error) {
	return TXPrevOutFetcher(tx.Tx, tx.PrevScripts, tx.PrevInputValues)
}

// ValidateInputScripts executes the input scripts of a signed transaction
// against the outputs they spend.
func (tx *AuthoredTx) ValidateInputScripts() error {
	fetcher, err := tx.PrevOutFetcher()
	if err != nil {
		return err
	}

	hashCache := txscript.NewTxSigHashes(tx.Tx, fetcher)
	for i, prevScript := range tx.PrevScripts {
		vm, err := txscript.NewEngine(
			prevScript, tx.Tx, i, txscript.StandardVerifyFlags, nil,
			hashCache, int64(tx.PrevInputValues[i]), fetcher,
		)
		if err != nil {
			return fmt.Errorf("cannot create script engine: %w", err)
		}
		if err := vm.Execute(); err != nil {
			return fmt.Errorf("cannot validate input %d: %w", i, err)
		}
	}

	return nil
}

// TXPrevOutFetcher creates a txscript.PrevOutFetcher from a given slice of
// previous pk scripts and input values.
func TXPrevOutFetcher(tx *wire.MsgTx, prevPkScripts [][]byte,
	inputValues []btcutil.Amount) (*txscript.MultiPrevOutFetcher, error) {

	if len(tx.TxIn) != len(prevPkScripts) {
		return nil, errors.New("tx.TxIn and prevPkScripts slices " +
			"must have equal length")
	}
	if len(tx.TxIn) != len(inputValues) {
		return nil, errors.New("tx.TxIn and inputValues slices " +
			"must have equal length")
	}

	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for idx, txin := range tx.TxIn {
		fetcher.AddPrevOut(txin.PreviousOutPoint, &wire.TxOut{
			Value:    int64(inputValues[idx]),
			PkScript: prevPkScripts[idx],
		})
	}

	return fetcher, nil
}
