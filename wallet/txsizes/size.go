// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txsizes

import (
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/hdengine/pkg/btcunit"
)

// Worst case script and input/output size estimates.  Signatures are sized
// as 72 byte DER encodings plus the sighash byte and public keys as 33 byte
// compressed serializations.
const (
	// RedeemP2PKHSigScriptSize is the size of the signature script
	// redeeming a P2PKH output: a signature push and a pubkey push.
	RedeemP2PKHSigScriptSize = 1 + 73 + 1 + 33

	// P2PKHPkScriptSize is the size of a P2PKH output script:
	// OP_DUP OP_HASH160 <20 byte hash> OP_EQUALVERIFY OP_CHECKSIG.
	P2PKHPkScriptSize = 1 + 1 + 1 + 20 + 1 + 1

	// RedeemP2PKHInputSize is the size of an input redeeming a P2PKH
	// output: outpoint, script length, signature script and sequence.
	RedeemP2PKHInputSize = 32 + 4 + 1 + RedeemP2PKHSigScriptSize + 4

	// P2PKHOutputSize is the size of an output paying to P2PKH.
	P2PKHOutputSize = 8 + 1 + P2PKHPkScriptSize

	// P2WPKHPkScriptSize is the size of a P2WPKH output script:
	// OP_0 <20 byte hash>.
	P2WPKHPkScriptSize = 1 + 1 + 20

	// P2WPKHOutputSize is the size of an output paying to P2WPKH.
	P2WPKHOutputSize = 8 + 1 + P2WPKHPkScriptSize

	// RedeemP2WPKHScriptSize is the size of the signature script
	// redeeming a P2WPKH output, which must be empty.
	RedeemP2WPKHScriptSize = 0

	// RedeemP2WPKHInputSize is the non-witness size of an input redeeming
	// a P2WPKH output.
	RedeemP2WPKHInputSize = 32 + 4 + 1 + RedeemP2WPKHScriptSize + 4

	// NestedP2WPKHPkScriptSize is the size of the P2SH output script a
	// nested P2WPKH output pays to: OP_HASH160 <20 byte hash> OP_EQUAL.
	NestedP2WPKHPkScriptSize = 1 + 1 + 20 + 1

	// RedeemNestedP2WPKHScriptSize is the size of the signature script
	// redeeming a nested P2WPKH output, a single push of the witness
	// program.
	RedeemNestedP2WPKHScriptSize = 1 + 1 + 1 + 20

	// RedeemNestedP2WPKHInputSize is the non-witness size of an input
	// redeeming a nested P2WPKH output.
	RedeemNestedP2WPKHInputSize = 32 + 4 + 1 +
		RedeemNestedP2WPKHScriptSize + 4

	// RedeemP2WPKHInputWitnessWeight is the weight of the witness of
	// native and nested P2WPKH inputs: the item count, a signature push
	// and a pubkey push.
	RedeemP2WPKHInputWitnessWeight = 1 + 1 + 73 + 1 + 33
)

// SumOutputSerializeSizes sums up the serialized size of the supplied outputs.
func SumOutputSerializeSizes(outputs []*wire.TxOut) (serializeSize int) {
	for _, txOut := range outputs {
		serializeSize += txOut.SerializeSize()
	}
	return serializeSize
}

// InputSize is the worst case size of a transaction input split into its
// non-witness serialize size and its witness weight.
type InputSize struct {
	// Base is the serialize size of the input without witness data.
	Base int

	// Witness is the weight of the input's witness.  It is zero for
	// inputs redeeming non-witness outputs.
	Witness int
}

// VirtualSize returns the number of vbytes the input adds to a transaction.
// The witness portion is discounted by the witness scale factor and rounded
// up.
func (s InputSize) VirtualSize() int {
	witness := btcunit.NewWeightUnit(uint64(s.Witness)).ToVB()
	return s.Base + int(witness.Val())
}

// HasWitness returns whether the input carries witness data.
func (s InputSize) HasWitness() bool {
	return s.Witness > 0
}

// InputSizeForScript returns the worst case size of an input redeeming the
// given output script.  A P2SH output is only recognized as a nested P2WPKH
// output when nested is set, since that is the only P2SH form a wallet
// deriving nested keys creates.  The second return value is false when the
// script can not be classified.
func InputSizeForScript(pkScript []byte, nested bool) (InputSize, bool) {
	switch {
	case txscript.IsPayToPubKeyHash(pkScript):
		return InputSize{Base: RedeemP2PKHInputSize}, true

	case txscript.IsPayToScriptHash(pkScript) && nested:
		return InputSize{
			Base:    RedeemNestedP2WPKHInputSize,
			Witness: RedeemP2WPKHInputWitnessWeight,
		}, true

	case txscript.IsPayToWitnessPubKeyHash(pkScript):
		return InputSize{
			Base:    RedeemP2WPKHInputSize,
			Witness: RedeemP2WPKHInputWitnessWeight,
		}, true

	default:
		return InputSize{}, false
	}
}

// EstimateVirtualSize returns a worst case virtual size estimate for a signed
// transaction that spends the given inputs and contains each transaction
// output from txOuts.  The estimate is incremented for an additional change
// output if changeScriptSize is non-zero.
func EstimateVirtualSize(inputs []InputSize, txOuts []*wire.TxOut,
	changeScriptSize int) int {

	outputCount := len(txOuts)

	changeOutputSize := 0
	if changeScriptSize > 0 {
		changeOutputSize = 8 +
			wire.VarIntSerializeSize(uint64(changeScriptSize)) +
			changeScriptSize
		outputCount++
	}

	// Version 4 bytes + LockTime 4 bytes + Serialized var int size for the
	// number of transaction inputs and outputs + size of redeem scripts +
	// the size out the serialized outputs and change.
	baseSize := 8 +
		wire.VarIntSerializeSize(uint64(len(inputs))) +
		wire.VarIntSerializeSize(uint64(outputCount)) +
		SumOutputSerializeSizes(txOuts) +
		changeOutputSize

	witnessWeight, witnessInputs := 0, 0
	for _, in := range inputs {
		baseSize += in.Base
		if in.HasWitness() {
			witnessWeight += in.Witness
			witnessInputs++
		}
	}

	// If this transaction has any witness inputs, we must count the
	// witness data.
	if witnessInputs > 0 {
		// Additional 2 weight units for segwit marker + flag.
		witnessWeight += 2 +
			wire.VarIntSerializeSize(uint64(witnessInputs))
	}

	witness := btcunit.NewWeightUnit(uint64(witnessWeight)).ToVB()

	return baseSize + int(witness.Val())
}
