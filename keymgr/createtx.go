// Copyright (c) 2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keymgr

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wtxmgr"
	"github.com/btcsuite/hdengine/wallet/txauthor"
	"github.com/btcsuite/hdengine/wallet/txrules"
	"github.com/davecgh/go-spew/spew"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// RBFSequence is the input sequence number signaling that a transaction may
// be replaced by fee.
const RBFSequence = wire.MaxTxInSequenceNum - 2

// DefaultCPFPLimit is the number of parent outputs a CPFP transaction
// without outputs spends.
const DefaultCPFPLimit = 1

// SpendTarget is an amount paid to an address.
type SpendTarget struct {
	Address string
	Amount  int64
}

// UtxoInfo identifies an unspent output.
type UtxoInfo struct {
	TxID  string
	Index uint32
	Value int64
}

// SpendableUtxo is a candidate input along with the transaction that
// created it and the height it was mined at.  Unconfirmed outputs have a
// height of zero or less.
type SpendableUtxo struct {
	Utxo   UtxoInfo
	Tx     *wire.MsgTx
	Height int32
}

// CreateTxOptions describes the transaction CreateTX builds.
type CreateTxOptions struct {
	// Outputs are the payments of the transaction.  Targets without an
	// address or a positive amount are skipped.
	Outputs []SpendTarget

	// Utxos are the candidate inputs.
	Utxos []SpendableUtxo

	// Height is the current chain height.
	Height int32

	// Rate is the fee rate in satoshis per 1000 vbytes.
	Rate btcutil.Amount

	// MaxFee is the largest fee the transaction may pay.  Zero means no
	// limit.
	MaxFee btcutil.Amount

	// SubtractFee pays the fee out of the outputs.
	SubtractFee bool

	// SetRBF signals replaceability on every input.
	SetRBF bool

	// RBFRaw is the hex encoded transaction being replaced.  The new
	// transaction spends every one of its inputs found among Utxos.
	RBFRaw string

	// CPFP is the id of a parent transaction to bump.  Only outputs of
	// the parent are spent.
	CPFP string

	// CPFPLimit is the number of the parent's largest outputs a CPFP
	// transaction without outputs spends, where zero means all of them.
	// It defaults to DefaultCPFPLimit.
	CPFPLimit fn.Option[int]
}

// AuthoredTx is a transaction created by CreateTX.
type AuthoredTx struct {
	*txauthor.AuthoredTx

	// PrevTxs are the transactions the inputs spend from, in input order.
	PrevTxs []*wire.MsgTx

	witness bool
}

// CreateTX builds an unsigned transaction paying to opts.Outputs with change
// sent to the next change address.
func (m *Manager) CreateTX(opts *CreateTxOptions) (*AuthoredTx, error) {
	// A CPFP transaction may pay everything to the change address.
	if len(opts.Outputs) == 0 && opts.CPFP == "" {
		return nil, managerError(ErrNoOutputs, "no outputs", nil)
	}

	params := m.net.Params

	outputs := make([]*wire.TxOut, 0, len(opts.Outputs))
	for _, target := range opts.Outputs {
		if target.Address == "" || target.Amount <= 0 {
			continue
		}

		pkScript, err := m.payToAddrScript(target.Address)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, wire.NewTxOut(target.Amount, pkScript))
	}

	if len(outputs) == 0 && opts.CPFP == "" {
		return nil, managerError(ErrNoOutputs, "no valid outputs", nil)
	}

	changeAddr := m.ChangeAddress()
	if changeAddr == "" {
		return nil, managerError(ErrInvalidAddress, "no change "+
			"address, the manager is not loaded", nil)
	}
	changeScript, err := m.payToAddrScript(changeAddr)
	if err != nil {
		return nil, err
	}

	utxos := opts.Utxos
	subtractFee := opts.SubtractFee
	strategy := txauthor.PositiveYieldingSelection

	if opts.CPFP != "" {
		var children []SpendableUtxo
		for _, u := range utxos {
			if u.Utxo.TxID == opts.CPFP {
				children = append(children, u)
			}
		}
		utxos = children

		// Without outputs every selected parent output is paid to
		// the change address, fee included.
		if len(outputs) == 0 {
			sort.SliceStable(utxos, func(i, j int) bool {
				return utxos[i].Utxo.Value > utxos[j].Utxo.Value
			})

			limit := opts.CPFPLimit.UnwrapOr(DefaultCPFPLimit)
			if limit > 0 && limit < len(utxos) {
				utxos = utxos[:limit]
			}

			var total int64
			for _, u := range utxos {
				total += u.Utxo.Value
			}

			subtractFee = true
			strategy = txauthor.ConstantSelection
			outputs = append(outputs, wire.NewTxOut(total, changeScript))
		}
	}

	credits, prevTxs, err := m.credits(utxos)
	if err != nil {
		return nil, err
	}

	// Value selection spends the largest outputs first.
	sort.SliceStable(credits, func(i, j int) bool {
		return credits[i].Amount > credits[j].Amount
	})

	var required []wtxmgr.Credit
	if opts.RBFRaw != "" {
		required, credits, err = splitReplaced(opts.RBFRaw, credits)
		if err != nil {
			return nil, err
		}
	}

	authored, err := txauthor.Fund(&txauthor.FundOptions{
		Outputs:      outputs,
		Credits:      credits,
		Required:     required,
		FeeRatePerKb: opts.Rate,
		MaxFee:       opts.MaxFee,
		SubtractFee:  subtractFee,
		Strategy:     strategy,
		Change: &txauthor.ChangeSource{
			NewScript: func() ([]byte, error) {
				return changeScript, nil
			},
			ScriptSize: len(changeScript),
		},
		InputSize: m.format.InputSize,
	})
	if err != nil {
		return nil, fundError(err)
	}

	if opts.SetRBF {
		for _, txIn := range authored.Tx.TxIn {
			txIn.Sequence = RBFSequence
		}
	}

	if err := txrules.CheckSanity(authored.Tx); err != nil {
		return nil, managerError(ErrSanityCheckFailed, "transaction "+
			"failed sanity check", err)
	}

	// The transaction is checked as if mined in the next block.
	nextHeight := opts.Height + 1
	tx := &AuthoredTx{
		AuthoredTx: authored,
		witness:    m.format.Witness,
	}
	checked := make([]txrules.PrevTx, 0, len(authored.Tx.TxIn))
	for _, txIn := range authored.Tx.TxIn {
		prev := prevTxs[txIn.PreviousOutPoint.Hash]
		tx.PrevTxs = append(tx.PrevTxs, prev.Tx)

		height := prev.Height
		if height <= 0 {
			height = nextHeight
		}
		checked = append(checked, txrules.PrevTx{
			Tx:     prev.Tx,
			Height: height,
		})
	}

	_, err = txrules.CheckContext(authored.Tx, checked, nextHeight, params)
	if err != nil {
		return nil, managerError(ErrContextCheckFailed, "transaction "+
			"failed context check", err)
	}

	log.Debugf("Created transaction %v spending %v with fee %v",
		authored.Tx.TxHash(), authored.TotalInput, authored.Fee)
	log.Tracef("Transaction: %v", newLogClosure(func() string {
		return spew.Sdump(authored.Tx)
	}))

	return tx, nil
}

// payToAddrScript returns the output script paying to a display address.
func (m *Manager) payToAddrScript(address string) ([]byte, error) {
	legacy := m.addrFormat.ToLegacy(address)

	addr, err := btcutil.DecodeAddress(legacy, m.net.Params)
	if err != nil {
		str := fmt.Sprintf("unable to decode address %q", address)
		return nil, managerError(ErrInvalidAddress, str, err)
	}
	if !addr.IsForNet(m.net.Params) {
		str := fmt.Sprintf("address %q is not for %s", address,
			m.net.Name)
		return nil, managerError(ErrInvalidAddress, str, nil)
	}

	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		str := fmt.Sprintf("unable to pay to %q", address)
		return nil, managerError(ErrInvalidAddress, str, err)
	}

	return pkScript, nil
}

// credits converts the candidate outputs to credits and indexes their
// transactions by hash.
func (m *Manager) credits(utxos []SpendableUtxo) ([]wtxmgr.Credit,
	map[chainhash.Hash]SpendableUtxo, error) {

	credits := make([]wtxmgr.Credit, 0, len(utxos))
	prevTxs := make(map[chainhash.Hash]SpendableUtxo, len(utxos))
	for _, u := range utxos {
		if u.Tx == nil {
			str := fmt.Sprintf("transaction %s of output %d is "+
				"missing", u.Utxo.TxID, u.Utxo.Index)
			return nil, nil, managerError(ErrUtxoNotSynced, str, nil)
		}

		if u.Utxo.Index >= uint32(len(u.Tx.TxOut)) {
			str := fmt.Sprintf("output %s:%d is out of range",
				u.Utxo.TxID, u.Utxo.Index)
			return nil, nil, managerError(ErrCorruptUtxo, str, nil)
		}

		hash := u.Tx.TxHash()
		txOut := u.Tx.TxOut[u.Utxo.Index]

		credit := wtxmgr.Credit{
			OutPoint:     *wire.NewOutPoint(&hash, u.Utxo.Index),
			Amount:       btcutil.Amount(txOut.Value),
			PkScript:     txOut.PkScript,
			FromCoinBase: blockchain.IsCoinBaseTx(u.Tx),
		}
		if u.Height > 0 {
			credit.Height = u.Height
		} else {
			credit.Height = -1
		}

		credits = append(credits, credit)
		prevTxs[hash] = u
	}

	return credits, prevTxs, nil
}

// splitReplaced splits the credits into the ones spent by the raw
// transaction being replaced and the rest.
func splitReplaced(rawTx string, credits []wtxmgr.Credit) ([]wtxmgr.Credit,
	[]wtxmgr.Credit, error) {

	b, err := hex.DecodeString(rawTx)
	if err != nil {
		return nil, nil, managerError(ErrInvalidTx, "unable to decode "+
			"replaced transaction", err)
	}

	var replaced wire.MsgTx
	if err := replaced.Deserialize(bytes.NewReader(b)); err != nil {
		return nil, nil, managerError(ErrInvalidTx, "unable to "+
			"deserialize replaced transaction", err)
	}

	spent := make(map[wire.OutPoint]struct{}, len(replaced.TxIn))
	for _, txIn := range replaced.TxIn {
		spent[txIn.PreviousOutPoint] = struct{}{}
	}

	var required, rest []wtxmgr.Credit
	for _, credit := range credits {
		if _, ok := spent[credit.OutPoint]; ok {
			required = append(required, credit)
			continue
		}
		rest = append(rest, credit)
	}

	if len(required) == 0 {
		str := fmt.Sprintf("no inputs of replaced transaction %v are "+
			"spendable", replaced.TxHash())
		return nil, nil, managerError(ErrUtxoNotSynced, str, nil)
	}

	return required, rest, nil
}

// fundError maps a funding failure to a ManagerError.
func fundError(err error) error {
	var inputErr txauthor.InputSourceError
	switch {
	case errors.As(err, &inputErr):
		return managerError(ErrInsufficientFunds, "unable to fund "+
			"transaction", err)

	case errors.Is(err, txauthor.ErrFeeTooHigh):
		return managerError(ErrFeeTooHigh, "unable to fund "+
			"transaction", err)

	case errors.Is(err, txrules.ErrOutputIsDust):
		return managerError(ErrInsufficientFunds, "outputs can not "+
			"pay the fee", err)

	default:
		return err
	}
}
