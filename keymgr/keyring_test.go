// Copyright (c) 2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keymgr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSortChildren(t *testing.T) {
	t.Parallel()

	ring := &KeyRing{
		Children: []Address{
			{DisplayAddress: "c", Index: 2},
			{DisplayAddress: "a", Index: 0},
			{DisplayAddress: "c'", Index: 2},
			{DisplayAddress: "b", Index: 1},
		},
	}
	ring.sortChildren()

	require.Equal(t, []Address{
		{DisplayAddress: "a", Index: 0},
		{DisplayAddress: "b", Index: 1},
		{DisplayAddress: "c", Index: 2},
	}, ring.Children)

	// Copies do not share children.
	dup := ring.copy()
	dup.Children[0].DisplayAddress = "changed"
	require.Equal(t, "a", ring.Children[0].DisplayAddress)
}

func TestKeyRingFromRaw(t *testing.T) {
	t.Parallel()

	w := newTestWallet(t, &Config{Scheme: SchemeBIP44})
	require.NoError(t, w.InitMasterKeys())
	raw := w.keys[0].Master

	// A private key alone also restores the public key.
	ring, err := keyRingFromRaw(&RawKeyRing{XPriv: raw.XPriv})
	require.NoError(t, err)
	require.Equal(t, raw.XPub, ring.PubKey.String())
	require.Equal(t, raw, rawKeyRing(ring))

	ring, err = keyRingFromRaw(&RawKeyRing{XPub: raw.XPub})
	require.NoError(t, err)
	require.Nil(t, ring.PrivKey)
	require.Equal(t, &RawKeyRing{XPub: raw.XPub}, rawKeyRing(ring))

	// Keys of the wrong type are rejected.
	_, err = keyRingFromRaw(&RawKeyRing{XPriv: raw.XPub})
	requireErrorCode(t, err, ErrInvalidKey)
	_, err = keyRingFromRaw(&RawKeyRing{XPub: raw.XPriv})
	requireErrorCode(t, err, ErrInvalidKey)

	ring, err = keyRingFromRaw(nil)
	require.NoError(t, err)
	require.Nil(t, rawKeyRing(ring))
}
