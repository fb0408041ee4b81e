// Copyright (c) 2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keymgr

import (
	"fmt"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/hdengine/netparams"
	"github.com/btcsuite/hdengine/wallet/txauthor"
	"github.com/stretchr/testify/require"
)

// testMnemonic is the mnemonic of the BIP0049 and BIP0084 test vectors.
const testMnemonic = "abandon abandon abandon abandon abandon abandon " +
	"abandon abandon abandon abandon abandon about"

// externalAddress returns a P2PKH address on net that is not part of the
// test wallets.
func externalAddress(t *testing.T, net *netparams.Params) string {
	t.Helper()

	pkHash := btcutil.Hash160([]byte("external"))
	addr, err := btcutil.NewAddressPubKeyHash(pkHash, net.Params)
	require.NoError(t, err)

	return addr.EncodeAddress()
}

// testWallet is a manager along with the address and transaction tables a
// sync layer would keep for it.
type testWallet struct {
	*Manager

	addrs AddressInfos
	txs   TxInfos

	// keys records every key notification.
	keys []*RawKeys

	// derived counts address notifications.
	derived int

	nonce int
}

// newTestWallet creates a manager for cfg backed by in memory tables.  The
// test mnemonic is used when cfg carries no key material.  An AddressInfos
// table passed in cfg is kept and extended by the notifier.
func newTestWallet(t *testing.T, cfg *Config) *testWallet {
	t.Helper()

	w := &testWallet{
		addrs: AddressInfos{},
		txs:   TxInfos{},
	}
	if infos, ok := cfg.AddressInfos.(AddressInfos); ok {
		w.addrs = infos
	}

	if cfg.Seed == "" && cfg.RawKeys == nil {
		cfg.Seed = testMnemonic
	}
	cfg.AddressInfos = w.addrs
	cfg.TxInfos = w.txs
	cfg.Notifier = NotifierFuncs{
		OnNewAddress: func(scriptHash, displayAddress, path string) {
			w.derived++
			w.addrs[scriptHash] = AddressInfo{
				Path:           path,
				DisplayAddress: displayAddress,
			}
		},
		OnNewKeys: func(keys *RawKeys) {
			w.keys = append(w.keys, keys)
		},
	}

	m, err := New(cfg)
	require.NoError(t, err)
	w.Manager = m

	return w
}

// newLoadedWallet creates and loads a manager deriving scheme on the main
// network.
func newLoadedWallet(t *testing.T, scheme Scheme) *testWallet {
	t.Helper()

	w := newTestWallet(t, &Config{Scheme: scheme})
	require.NoError(t, w.Load())

	return w
}

// address returns the derived address at index on branch.
func (w *testWallet) address(t *testing.T, branch Branch,
	index uint32) Address {

	t.Helper()

	keys := w.Keys()
	for _, addr := range keys.ring(branch).Children {
		if addr.Index == index {
			return addr
		}
	}

	t.Fatalf("address %d/%d is not derived", branch, index)
	return Address{}
}

// indexes returns the indexes of the derived addresses of a branch.
func (w *testWallet) indexes(branch Branch) []uint32 {
	keys := w.Keys()

	indexes := make([]uint32, 0, len(keys.ring(branch).Children))
	for _, addr := range keys.ring(branch).Children {
		indexes = append(indexes, addr.Index)
	}

	return indexes
}

// markUsed flags the address at index on branch as used.
func (w *testWallet) markUsed(t *testing.T, branch Branch,
	indexes ...uint32) {

	t.Helper()

	for _, index := range indexes {
		addr := w.address(t, branch, index)
		info := w.addrs[addr.ScriptHash]
		info.Used = true
		w.addrs[addr.ScriptHash] = info
	}
}

// fund records a transaction with one output per value paying to the
// address at index on branch and returns its outputs as spendable.
func (w *testWallet) fund(t *testing.T, branch Branch, index uint32,
	values ...int64) []SpendableUtxo {

	t.Helper()

	addr := w.address(t, branch, index)
	pkScript, err := w.payToAddrScript(addr.DisplayAddress)
	require.NoError(t, err)

	return w.fundScript(pkScript, values...)
}

// fundScript records a transaction with one output per value paying to
// pkScript and returns its outputs as spendable.
func (w *testWallet) fundScript(pkScript []byte,
	values ...int64) []SpendableUtxo {

	w.nonce++
	prevHash := chainhash.HashH([]byte(fmt.Sprintf("funding %d", w.nonce)))

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prevHash, 0), nil, nil))
	for _, value := range values {
		tx.AddTxOut(wire.NewTxOut(value, pkScript))
	}

	txid := tx.TxHash().String()
	info := TxInfo{TxID: txid}
	utxos := make([]SpendableUtxo, 0, len(values))
	for i, value := range values {
		info.Outputs = append(info.Outputs, TxOutputInfo{
			ScriptHash: ScriptHash(pkScript),
			Value:      value,
		})
		utxos = append(utxos, SpendableUtxo{
			Utxo: UtxoInfo{
				TxID:  txid,
				Index: uint32(i),
				Value: value,
			},
			Tx:     tx,
			Height: 100,
		})
	}
	w.txs[txid] = info

	return utxos
}

// requireErrorCode fails the test unless err is a ManagerError with code.
func requireErrorCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()

	require.Error(t, err)
	require.Truef(t, IsError(err, code), "got error %v, want %v", err,
		code)
}

// requireValidScripts executes the input scripts of a signed transaction.
func requireValidScripts(t *testing.T, tx *AuthoredTx) {
	t.Helper()

	fetcher, err := txauthor.TXPrevOutFetcher(
		tx.Tx, tx.PrevScripts, tx.PrevInputValues,
	)
	require.NoError(t, err)

	sigHashes := txscript.NewTxSigHashes(tx.Tx, fetcher)
	for i := range tx.Tx.TxIn {
		vm, err := txscript.NewEngine(
			tx.PrevScripts[i], tx.Tx, i,
			txscript.StandardVerifyFlags, nil, sigHashes,
			int64(tx.PrevInputValues[i]), fetcher,
		)
		require.NoError(t, err)
		require.NoErrorf(t, vm.Execute(), "input %d", i)
	}
}
