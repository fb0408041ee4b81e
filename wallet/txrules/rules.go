// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txrules

import (
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/mempool"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/hdengine/pkg/btcunit"
)

// DefaultRelayFeePerKb is the default minimum relay fee policy for a mempool.
const DefaultRelayFeePerKb btcutil.Amount = 1e3

// IsDustAmount determines whether a transaction output value and script would
// cause the output to be considered dust.  Transactions with dust outputs are
// not standard and are rejected by mempools with default policies.
func IsDustAmount(amount btcutil.Amount, pkScript []byte, relayFeePerKb btcutil.Amount) bool {
	return IsDustOutput(wire.NewTxOut(int64(amount), pkScript), relayFeePerKb)
}

// IsDustOutput determines whether a transaction output is considered dust.
// Transactions with dust outputs are not standard and are rejected by mempools
// with default policies.
func IsDustOutput(output *wire.TxOut, relayFeePerKb btcutil.Amount) bool {
	// Unspendable outputs which solely carry data are not checked for dust.
	if txscript.GetScriptClass(output.PkScript) == txscript.NullDataTy {
		return false
	}

	// All other unspendable outputs are considered dust.  The cost of
	// spending witness outputs is discounted the way a relaying node
	// discounts it.
	return mempool.IsDust(output, relayFeePerKb)
}

// Transaction rule violations
var (
	ErrAmountNegative   = errors.New("transaction output amount is negative")
	ErrAmountExceedsMax = errors.New("transaction output amount exceeds maximum value")
	ErrOutputIsDust     = errors.New("transaction output is dust")
	ErrNotFinalized     = errors.New("transaction is not finalized")
)

// CheckOutput performs simple consensus and policy tests on a transaction
// output.
func CheckOutput(output *wire.TxOut, relayFeePerKb btcutil.Amount) error {
	if output.Value < 0 {
		return ErrAmountNegative
	}
	if output.Value > btcutil.MaxSatoshi {
		return ErrAmountExceedsMax
	}
	if IsDustOutput(output, relayFeePerKb) {
		return ErrOutputIsDust
	}
	return nil
}

// FeeForSerializeSize calculates the required fee for a transaction of
// txSerializeSize vbytes at relayFeePerKb.
func FeeForSerializeSize(relayFeePerKb btcutil.Amount,
	txSerializeSize int) btcutil.Amount {

	rate := btcunit.NewSatPerKVByte(relayFeePerKb)
	return rate.FeeForVSize(btcunit.NewVByte(uint64(txSerializeSize)))
}

// CheckSanity performs the context free consensus checks on a transaction.
func CheckSanity(tx *wire.MsgTx) error {
	return blockchain.CheckTransactionSanity(btcutil.NewTx(tx))
}

// PrevTx is a transaction whose outputs are spent by the transaction being
// checked, along with the height of the block that includes it.  Unconfirmed
// transactions carry the height the spending transaction is checked at.
type PrevTx struct {
	Tx     *wire.MsgTx
	Height int32
}

// CheckContext validates tx against the outputs of prevTxs, assuming it is
// included in a block at nextHeight.  Every input must reference an output
// of one of prevTxs, coinbase outputs must have matured, input and output
// amounts must be in range, and the transaction must be final.  The fee paid
// by the transaction is returned.
func CheckContext(tx *wire.MsgTx, prevTxs []PrevTx, nextHeight int32,
	params *chaincfg.Params) (btcutil.Amount, error) {

	view := blockchain.NewUtxoViewpoint()
	for _, prev := range prevTxs {
		prevTx := btcutil.NewTx(prev.Tx)
		for idx := range prev.Tx.TxOut {
			view.AddTxOut(prevTx, uint32(idx), prev.Height)
		}
	}

	utx := btcutil.NewTx(tx)
	fee, err := blockchain.CheckTransactionInputs(
		utx, nextHeight, view, params,
	)
	if err != nil {
		return 0, err
	}

	if !blockchain.IsFinalizedTransaction(utx, nextHeight, time.Now()) {
		return 0, fmt.Errorf("%w: lock time %d at height %d",
			ErrNotFinalized, tx.LockTime, nextHeight)
	}

	return btcutil.Amount(fee), nil
}
