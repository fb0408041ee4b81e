// Copyright (c) 2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keycache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/btcsuite/btcwallet/walletdb"
	_ "github.com/btcsuite/btcwallet/walletdb/bdb" // Register the bdb driver.
	"github.com/btcsuite/hdengine/keymgr"
)

// DefaultDBTimeout is how long opening the database waits for its file lock.
const DefaultDBTimeout = 60 * time.Second

var (
	// addressBucketName holds the derived addresses keyed by script hash.
	addressBucketName = []byte("addresses")

	// keyBucketName holds the serialized key rings keyed by ring name.
	keyBucketName = []byte("keys")

	// txBucketName holds the outputs of known transactions keyed by
	// transaction id and output index.
	txBucketName = []byte("txs")

	masterKeyName  = []byte("master")
	receiveKeyName = []byte("receive")
	changeKeyName  = []byte("change")
)

// ErrUnknownAddress is returned when marking an address that was never
// stored.
var ErrUnknownAddress = errors.New("unknown address")

// Config configures a Store.
type Config struct {
	// NoFreelistSync skips syncing the database freelist to disk.
	NoFreelistSync bool

	// Timeout is how long opening waits for the database file lock.  It
	// defaults to DefaultDBTimeout.
	Timeout time.Duration

	// PublicOnly drops extended private keys before they are written.
	PublicOnly bool
}

// Store persists the addresses and keys announced by a keymgr.Manager along
// with the transactions the wallet knows about.  It implements the
// keymgr.Notifier, keymgr.AddressInfoSource and keymgr.TxInfoSource
// interfaces, so a manager can be created from the state of a previous run.
//
// All records are mirrored in memory and read from there.
type Store struct {
	db         walletdb.DB
	publicOnly bool

	mtx   sync.RWMutex
	addrs keymgr.AddressInfos
	txs   keymgr.TxInfos
	keys  keymgr.RawKeys
}

// Open opens the store at dbPath, creating it if it does not exist yet.
func Open(dbPath string, cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultDBTimeout
	}

	var (
		db  walletdb.DB
		err error
	)
	if _, statErr := os.Stat(dbPath); errors.Is(statErr, os.ErrNotExist) {
		err = os.MkdirAll(filepath.Dir(dbPath), 0700)
		if err != nil {
			return nil, err
		}

		log.Infof("Creating key cache %s", dbPath)
		db, err = walletdb.Create(
			"bdb", dbPath, cfg.NoFreelistSync, timeout,
		)
	} else {
		db, err = walletdb.Open(
			"bdb", dbPath, cfg.NoFreelistSync, timeout,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to open key cache: %w", err)
	}

	s := &Store{
		db:         db,
		publicOnly: cfg.PublicOnly,
		addrs:      keymgr.AddressInfos{},
		txs:        keymgr.TxInfos{},
	}
	if err := s.load(); err != nil {
		db.Close()
		return nil, err
	}

	log.Debugf("Opened key cache with %d addresses and %d transactions",
		len(s.addrs), len(s.txs))

	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// load creates missing buckets and reads all records into memory.
func (s *Store) load() error {
	return walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		for _, name := range [][]byte{
			addressBucketName, keyBucketName, txBucketName,
		} {
			if tx.ReadWriteBucket(name) != nil {
				continue
			}
			if _, err := tx.CreateTopLevelBucket(name); err != nil {
				return fmt.Errorf("unable to create bucket %s: "+
					"%w", name, err)
			}
		}

		err := tx.ReadBucket(addressBucketName).ForEach(
			func(k, v []byte) error {
				info, err := deserializeAddressInfo(v)
				if err != nil {
					return fmt.Errorf("address %s: %w", k,
						err)
				}
				s.addrs[string(k)] = info
				return nil
			},
		)
		if err != nil {
			return err
		}

		keys := tx.ReadBucket(keyBucketName)
		for _, ring := range []struct {
			name []byte
			dst  **keymgr.RawKeyRing
		}{
			{masterKeyName, &s.keys.Master},
			{receiveKeyName, &s.keys.Receive},
			{changeKeyName, &s.keys.Change},
		} {
			v := keys.Get(ring.name)
			if v == nil {
				continue
			}
			*ring.dst, err = deserializeKeyRing(v)
			if err != nil {
				return fmt.Errorf("key ring %s: %w", ring.name,
					err)
			}
		}

		return tx.ReadBucket(txBucketName).ForEach(func(k, v []byte) error {
			txid, index, err := parseOutputKey(k)
			if err != nil {
				return err
			}
			output, err := deserializeTxOutput(v)
			if err != nil {
				return fmt.Errorf("output %s:%d: %w", txid, index,
					err)
			}

			// Keys are ordered, so outputs arrive by index.
			info := s.txs[txid]
			info.TxID = txid
			if uint32(len(info.Outputs)) != index {
				return fmt.Errorf("output %s:%d is out of order",
					txid, index)
			}
			info.Outputs = append(info.Outputs, output)
			s.txs[txid] = info

			return nil
		})
	})
}

// putAddress writes an address record.
func (s *Store) putAddress(scriptHash string, info keymgr.AddressInfo) error {
	v, err := serializeAddressInfo(info)
	if err != nil {
		return err
	}

	return walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		b := tx.ReadWriteBucket(addressBucketName)
		return b.Put([]byte(scriptHash), v)
	})
}

// NewAddress stores a derived address.  Addresses derived again keep their
// usage.
func (s *Store) NewAddress(scriptHash, displayAddress, path string) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	info := s.addrs[scriptHash]
	info.Path = path
	info.DisplayAddress = displayAddress

	if err := s.putAddress(scriptHash, info); err != nil {
		log.Errorf("Unable to store address %s: %v", displayAddress,
			err)
		return
	}
	s.addrs[scriptHash] = info
}

// NewKeys stores the serialized key rings of a manager.
func (s *Store) NewKeys(keys *keymgr.RawKeys) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	stored := keymgr.RawKeys{
		Master:  s.publicRing(keys.Master),
		Receive: s.publicRing(keys.Receive),
		Change:  s.publicRing(keys.Change),
	}

	err := walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		b := tx.ReadWriteBucket(keyBucketName)
		for _, ring := range []struct {
			name []byte
			raw  *keymgr.RawKeyRing
		}{
			{masterKeyName, stored.Master},
			{receiveKeyName, stored.Receive},
			{changeKeyName, stored.Change},
		} {
			if ring.raw == nil {
				if err := b.Delete(ring.name); err != nil {
					return err
				}
				continue
			}

			v, err := serializeKeyRing(ring.raw)
			if err != nil {
				return err
			}
			if err := b.Put(ring.name, v); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		log.Errorf("Unable to store keys: %v", err)
		return
	}

	s.keys = stored
}

// publicRing drops the private key of a ring when the store is public only.
func (s *Store) publicRing(ring *keymgr.RawKeyRing) *keymgr.RawKeyRing {
	if ring == nil {
		return nil
	}

	cpy := *ring
	if s.publicOnly {
		cpy.XPriv = ""
		if cpy.XPub == "" {
			return nil
		}
	}

	return &cpy
}

// RawKeys returns the stored key rings, or nil when no master key was
// stored.
func (s *Store) RawKeys() *keymgr.RawKeys {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if s.keys.Master == nil {
		return nil
	}

	keys := s.keys
	return &keys
}

// AddressInfo returns the stored address with the given script hash.
func (s *Store) AddressInfo(scriptHash string) (keymgr.AddressInfo, bool) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return s.addrs.AddressInfo(scriptHash)
}

// ForEachAddressInfo calls f for every stored address in script hash order.
func (s *Store) ForEachAddressInfo(f func(string, keymgr.AddressInfo)) {
	s.mtx.RLock()
	scriptHashes := make([]string, 0, len(s.addrs))
	for scriptHash := range s.addrs {
		scriptHashes = append(scriptHashes, scriptHash)
	}
	infos := make([]keymgr.AddressInfo, 0, len(s.addrs))
	sort.Strings(scriptHashes)
	for _, scriptHash := range scriptHashes {
		infos = append(infos, s.addrs[scriptHash])
	}
	s.mtx.RUnlock()

	for i, scriptHash := range scriptHashes {
		f(scriptHash, infos[i])
	}
}

// MarkUsed flags a stored address as used.
func (s *Store) MarkUsed(scriptHash string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	info, ok := s.addrs[scriptHash]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAddress, scriptHash)
	}
	if info.Used {
		return nil
	}

	info.Used = true
	if err := s.putAddress(scriptHash, info); err != nil {
		return err
	}
	s.addrs[scriptHash] = info

	return nil
}

// TxInfo returns the stored transaction with the given id.
func (s *Store) TxInfo(txid string) (keymgr.TxInfo, bool) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return s.txs.TxInfo(txid)
}

// PutTx stores a transaction and marks the stored addresses it pays to as
// used.
func (s *Store) PutTx(info keymgr.TxInfo) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	err := walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		txs := tx.ReadWriteBucket(txBucketName)
		addrs := tx.ReadWriteBucket(addressBucketName)

		// A rewritten transaction may have fewer outputs than the
		// stored one.
		for i := range s.txs[info.TxID].Outputs {
			err := txs.Delete(outputKey(info.TxID, uint32(i)))
			if err != nil {
				return err
			}
		}

		for i, output := range info.Outputs {
			v, err := serializeTxOutput(output)
			if err != nil {
				return err
			}
			err = txs.Put(outputKey(info.TxID, uint32(i)), v)
			if err != nil {
				return err
			}

			addr, ok := s.addrs[output.ScriptHash]
			if !ok || addr.Used {
				continue
			}
			addr.Used = true
			v, err = serializeAddressInfo(addr)
			if err != nil {
				return err
			}
			err = addrs.Put([]byte(output.ScriptHash), v)
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("unable to store transaction %s: %w",
			info.TxID, err)
	}

	// Memory is only updated once the records are committed.
	for _, output := range info.Outputs {
		if addr, ok := s.addrs[output.ScriptHash]; ok {
			addr.Used = true
			s.addrs[output.ScriptHash] = addr
		}
	}
	s.txs[info.TxID] = info

	return nil
}

// ResetAddresses forgets every stored address, used before a manager is
// reloaded from scratch.
func (s *Store) ResetAddresses() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	err := walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		if err := tx.DeleteTopLevelBucket(addressBucketName); err != nil {
			return err
		}
		_, err := tx.CreateTopLevelBucket(addressBucketName)
		return err
	})
	if err != nil {
		return fmt.Errorf("unable to reset addresses: %w", err)
	}

	s.addrs = keymgr.AddressInfos{}

	return nil
}
