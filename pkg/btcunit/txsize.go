// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package btcunit provides the transaction size and fee rate units used for
// fee estimation.
package btcunit

import (
	"fmt"

	"github.com/btcsuite/btcd/blockchain"
)

// WeightUnit is a transaction size in weight units, where the weight of a
// transaction is its size without witness data times three plus its full
// BIP0144 serialized size.
type WeightUnit struct {
	val uint64
}

// NewWeightUnit creates a new WeightUnit from a uint64.
func NewWeightUnit(val uint64) WeightUnit {
	return WeightUnit{val: val}
}

// ToVB converts weight units to virtual bytes, rounding up as BIP0141
// defines.
func (wu WeightUnit) ToVB() VByte {
	vbytes := (wu.val + blockchain.WitnessScaleFactor - 1) /
		blockchain.WitnessScaleFactor

	return VByte{val: vbytes}
}

// Val returns the number of weight units.
func (wu WeightUnit) Val() uint64 {
	return wu.val
}

// String returns the string representation of the weight unit.
func (wu WeightUnit) String() string {
	return fmt.Sprintf("%d wu", wu.val)
}

// VByte is a transaction size in virtual bytes, a quarter weight unit.
type VByte struct {
	val uint64
}

// NewVByte creates a new VByte from a uint64.
func NewVByte(val uint64) VByte {
	return VByte{val: val}
}

// Val returns the number of virtual bytes.
func (vb VByte) Val() uint64 {
	return vb.val
}

// String returns the string representation of the virtual byte.
func (vb VByte) String() string {
	return fmt.Sprintf("%d vb", vb.val)
}
