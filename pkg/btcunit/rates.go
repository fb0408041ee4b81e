// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package btcunit

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
)

// SatsPerKilo is the number of vbytes a SatPerKVByte rate is quoted for.
const SatsPerKilo = 1000

// SatPerKVByte is a fee rate in satoshis per 1000 vbytes.
type SatPerKVByte struct {
	fee btcutil.Amount
}

// NewSatPerKVByte returns the fee rate paying fee per 1000 vbytes.
func NewSatPerKVByte(fee btcutil.Amount) SatPerKVByte {
	return SatPerKVByte{fee: fee}
}

// FeeForVSize returns the fee of vbytes at this rate, truncated to whole
// satoshis.  A positive rate never results in a zero fee, and the fee is
// capped at btcutil.MaxSatoshi.
func (s SatPerKVByte) FeeForVSize(vbytes VByte) btcutil.Amount {
	fee := s.fee * btcutil.Amount(vbytes.Val()) / SatsPerKilo

	if fee == 0 && s.fee > 0 {
		fee = s.fee
	}

	if fee < 0 || fee > btcutil.MaxSatoshi {
		fee = btcutil.MaxSatoshi
	}

	return fee
}

// Val returns the fee paid per 1000 vbytes.
func (s SatPerKVByte) Val() btcutil.Amount {
	return s.fee
}

// String returns the fee rate in sat/kvb.
func (s SatPerKVByte) String() string {
	return fmt.Sprintf("%d sat/kvb", int64(s.fee))
}
