// Copyright (c) 2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keycache

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/hdengine/keymgr"
	"github.com/lightningnetwork/lnd/tlv"
)

// Record types of a serialized address.
const (
	addrPathType    tlv.Type = 0
	addrDisplayType tlv.Type = 1
	addrUsedType    tlv.Type = 2
)

// Record types of a serialized key ring.
const (
	keyXPrivType tlv.Type = 0
	keyXPubType  tlv.Type = 1
)

// Record types of a serialized transaction output.
const (
	outputScriptHashType tlv.Type = 0
	outputValueType      tlv.Type = 1
)

// encodeRecords serializes records as a TLV stream.
func encodeRecords(records ...tlv.Record) ([]byte, error) {
	stream, err := tlv.NewStream(records...)
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	if err := stream.Encode(&b); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// decodeRecords deserializes a TLV stream into records.
func decodeRecords(v []byte, records ...tlv.Record) error {
	stream, err := tlv.NewStream(records...)
	if err != nil {
		return err
	}

	return stream.Decode(bytes.NewReader(v))
}

func serializeAddressInfo(info keymgr.AddressInfo) ([]byte, error) {
	path := []byte(info.Path)
	display := []byte(info.DisplayAddress)

	var used uint8
	if info.Used {
		used = 1
	}

	return encodeRecords(
		tlv.MakePrimitiveRecord(addrPathType, &path),
		tlv.MakePrimitiveRecord(addrDisplayType, &display),
		tlv.MakePrimitiveRecord(addrUsedType, &used),
	)
}

func deserializeAddressInfo(v []byte) (keymgr.AddressInfo, error) {
	var (
		path, display []byte
		used          uint8
	)
	err := decodeRecords(v,
		tlv.MakePrimitiveRecord(addrPathType, &path),
		tlv.MakePrimitiveRecord(addrDisplayType, &display),
		tlv.MakePrimitiveRecord(addrUsedType, &used),
	)
	if err != nil {
		return keymgr.AddressInfo{}, err
	}

	return keymgr.AddressInfo{
		Path:           string(path),
		DisplayAddress: string(display),
		Used:           used != 0,
	}, nil
}

func serializeKeyRing(ring *keymgr.RawKeyRing) ([]byte, error) {
	xpriv := []byte(ring.XPriv)
	xpub := []byte(ring.XPub)

	return encodeRecords(
		tlv.MakePrimitiveRecord(keyXPrivType, &xpriv),
		tlv.MakePrimitiveRecord(keyXPubType, &xpub),
	)
}

func deserializeKeyRing(v []byte) (*keymgr.RawKeyRing, error) {
	var xpriv, xpub []byte
	err := decodeRecords(v,
		tlv.MakePrimitiveRecord(keyXPrivType, &xpriv),
		tlv.MakePrimitiveRecord(keyXPubType, &xpub),
	)
	if err != nil {
		return nil, err
	}

	return &keymgr.RawKeyRing{
		XPriv: string(xpriv),
		XPub:  string(xpub),
	}, nil
}

func serializeTxOutput(output keymgr.TxOutputInfo) ([]byte, error) {
	scriptHash := []byte(output.ScriptHash)
	value := uint64(output.Value)

	return encodeRecords(
		tlv.MakePrimitiveRecord(outputScriptHashType, &scriptHash),
		tlv.MakePrimitiveRecord(outputValueType, &value),
	)
}

func deserializeTxOutput(v []byte) (keymgr.TxOutputInfo, error) {
	var (
		scriptHash []byte
		value      uint64
	)
	err := decodeRecords(v,
		tlv.MakePrimitiveRecord(outputScriptHashType, &scriptHash),
		tlv.MakePrimitiveRecord(outputValueType, &value),
	)
	if err != nil {
		return keymgr.TxOutputInfo{}, err
	}

	return keymgr.TxOutputInfo{
		ScriptHash: string(scriptHash),
		Value:      int64(value),
	}, nil
}

// outputKey returns the key of a transaction output: the transaction id
// followed by the big endian output index, so outputs sort by index.
func outputKey(txid string, index uint32) []byte {
	k := make([]byte, len(txid)+4)
	copy(k, txid)
	binary.BigEndian.PutUint32(k[len(txid):], index)
	return k
}

// parseOutputKey splits an output key into transaction id and index.
func parseOutputKey(k []byte) (string, uint32, error) {
	if len(k) <= 4 {
		return "", 0, fmt.Errorf("short output key %x", k)
	}

	split := len(k) - 4
	return string(k[:split]), binary.BigEndian.Uint32(k[split:]), nil
}
