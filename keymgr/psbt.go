// Copyright (c) 2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keymgr

import (
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
)

// Packet returns the unsigned transaction as a PSBT for external signers.
// Every input carries the transaction it spends from, and witness inputs
// also carry the spent output.  It must be called before Sign.
func (tx *AuthoredTx) Packet() (*psbt.Packet, error) {
	packet, err := psbt.NewFromUnsignedTx(tx.Tx)
	if err != nil {
		return nil, err
	}

	for i := range packet.Inputs {
		if i < len(tx.PrevTxs) {
			packet.Inputs[i].NonWitnessUtxo = tx.PrevTxs[i]
		}

		if tx.witness {
			packet.Inputs[i].WitnessUtxo = wire.NewTxOut(
				int64(tx.PrevInputValues[i]), tx.PrevScripts[i],
			)
		}
	}

	return packet, nil
}
