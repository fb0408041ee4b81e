// Copyright (c) 2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keymgr

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	t.Parallel()

	const bip84Path = "m/84'/0'/0'"

	tests := []struct {
		name       string
		path       string
		masterPath string
		want       []uint32
	}{
		{
			name:       "receive",
			path:       "m/84'/0'/0'/0/5",
			masterPath: bip84Path,
			want:       []uint32{0, 5},
		},
		{
			name:       "change",
			path:       "m/84'/0'/0'/1/17",
			masterPath: bip84Path,
			want:       []uint32{1, 17},
		},
		{
			name:       "bip32",
			path:       "m/0/0/3",
			masterPath: "m/0",
			want:       []uint32{0, 3},
		},
		{
			name:       "other account",
			path:       "m/84'/0'/1'/0/5",
			masterPath: bip84Path,
			want:       []uint32{},
		},
		{
			name:       "master path only",
			path:       bip84Path,
			masterPath: bip84Path,
			want:       []uint32{},
		},
		{
			name:       "branch only",
			path:       "m/84'/0'/0'/0",
			masterPath: bip84Path,
			want:       []uint32{},
		},
		{
			name:       "too deep",
			path:       "m/84'/0'/0'/0/5/1",
			masterPath: bip84Path,
			want:       []uint32{},
		},
		{
			name:       "hardened index",
			path:       "m/84'/0'/0'/0/5'",
			masterPath: bip84Path,
			want:       []uint32{},
		},
		{
			name:       "not a number",
			path:       "m/84'/0'/0'/0/x",
			masterPath: bip84Path,
			want:       []uint32{},
		},
		{
			name:       "prefix of another component",
			path:       "m/01/2",
			masterPath: "m/0",
			want:       []uint32{},
		},
		{
			name:       "empty",
			path:       "",
			masterPath: bip84Path,
			want:       []uint32{},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := ParsePath(test.path, test.masterPath)
			require.Equal(t, test.want, got)
		})
	}
}

func TestMakePath(t *testing.T) {
	t.Parallel()

	path := MakePath("m/49'/0'/0'", BranchChange, 42)
	require.Equal(t, "m/49'/0'/0'/1/42", path)
	require.Equal(t, []uint32{1, 42}, ParsePath(path, "m/49'/0'/0'"))
}

func TestPathComponents(t *testing.T) {
	t.Parallel()

	components, err := pathComponents("m/44'/2'/0'")
	require.NoError(t, err)
	require.Equal(t, []uint32{
		hdkeychain.HardenedKeyStart + 44,
		hdkeychain.HardenedKeyStart + 2,
		hdkeychain.HardenedKeyStart,
	}, components)

	components, err = pathComponents("m/0")
	require.NoError(t, err)
	require.Equal(t, []uint32{0}, components)

	components, err = pathComponents("m")
	require.NoError(t, err)
	require.Empty(t, components)

	for _, path := range []string{"44'/0'", "m/x", "m/2147483648", "m/-1"} {
		_, err := pathComponents(path)
		requireErrorCode(t, err, ErrKeyChain)
	}
}
