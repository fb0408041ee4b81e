// Copyright (c) 2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"path/filepath"
	"testing"

	"github.com/btcsuite/hdengine/keycache"
	"github.com/btcsuite/hdengine/keymgr"
	"github.com/btcsuite/hdengine/netparams"
	"github.com/stretchr/testify/require"
)

// TestManagerConfig checks that a manager created from the config derives
// into the key cache and finds its keys there on the next start.
func TestManagerConfig(t *testing.T) {
	t.Parallel()

	cfg := &config{
		DataDir:  t.TempDir(),
		Scheme:   string(keymgr.SchemeBIP84),
		CoinType: -1,
		GapLimit: 5,
		net:      &netparams.MainNetParams,
	}
	require.Equal(t, filepath.Join(cfg.DataDir, "mainnet", "bip84"),
		cfg.cacheDir())

	dbPath := filepath.Join(cfg.cacheDir(), cacheDbName)
	store, err := keycache.Open(dbPath, &keycache.Config{})
	require.NoError(t, err)

	mgr, err := keymgr.New(cfg.managerConfig(store, testMnemonic))
	require.NoError(t, err)
	require.NoError(t, mgr.Load())
	require.Equal(t, "m/84'/0'/0'", mgr.MasterPath())

	receive := mgr.ReceiveAddress()
	require.Equal(t, "bc1qcr8te4kr609gcawutmrza0j4xv80jy8z306fyu", receive)
	require.NoError(t, store.Close())

	// The second start has no seed.
	store, err = keycache.Open(dbPath, &keycache.Config{})
	require.NoError(t, err)
	defer store.Close()

	mgr, err = keymgr.New(cfg.managerConfig(store, ""))
	require.NoError(t, err)
	require.NoError(t, mgr.Load())
	require.Equal(t, receive, mgr.ReceiveAddress())

	// An explicit coin type changes the master path.
	cfg.CoinType = 1
	mgr, err = keymgr.New(cfg.managerConfig(store, testMnemonic))
	require.NoError(t, err)
	require.Equal(t, "m/84'/1'/0'", mgr.MasterPath())
}
