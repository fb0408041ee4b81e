// Copyright (c) 2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keymgr

import (
	"sort"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// Branch is the child number of an address chain below the master key.
type Branch uint32

const (
	// BranchReceive is the chain of receive addresses.
	BranchReceive Branch = 0

	// BranchChange is the chain of change addresses.
	BranchChange Branch = 1
)

// Address is a derived address.
type Address struct {
	DisplayAddress string
	ScriptHash     string
	Index          uint32
	Branch         Branch
}

// KeyRing holds the keys of the master key or a branch along with the
// addresses derived from it, ordered by index.
type KeyRing struct {
	PubKey   *hdkeychain.ExtendedKey
	PrivKey  *hdkeychain.ExtendedKey
	Children []Address
}

// sortChildren orders the children by index and drops duplicate indexes.
func (k *KeyRing) sortChildren() {
	sort.SliceStable(k.Children, func(i, j int) bool {
		return k.Children[i].Index < k.Children[j].Index
	})

	deduped := k.Children[:0]
	for i, child := range k.Children {
		if i > 0 && child.Index == k.Children[i-1].Index {
			log.Warnf("Dropping duplicate address %s at index %d",
				child.DisplayAddress, child.Index)
			continue
		}
		deduped = append(deduped, child)
	}
	k.Children = deduped
}

// copy returns a copy of the key ring that shares the immutable keys.
func (k *KeyRing) copy() *KeyRing {
	return &KeyRing{
		PubKey:   k.PubKey,
		PrivKey:  k.PrivKey,
		Children: append([]Address(nil), k.Children...),
	}
}

// Keys groups the master key ring and the branch key rings.
type Keys struct {
	Master  *KeyRing
	Receive *KeyRing
	Change  *KeyRing
}

// ring returns the key ring of a branch.
func (k *Keys) ring(branch Branch) *KeyRing {
	if branch == BranchReceive {
		return k.Receive
	}
	return k.Change
}

// RawKeyRing is the serialized form of a key ring's keys.
type RawKeyRing struct {
	XPriv string
	XPub  string
}

// RawKeys is the serialized form of the keys of a wallet.  Nil rings have
// no key material.
type RawKeys struct {
	Master  *RawKeyRing
	Receive *RawKeyRing
	Change  *RawKeyRing
}

// parseKey parses a serialized extended key, where an empty string is no
// key.
func parseKey(key string, private bool) (*hdkeychain.ExtendedKey, error) {
	if key == "" {
		return nil, nil
	}

	extKey, err := hdkeychain.NewKeyFromString(key)
	if err != nil {
		return nil, managerError(ErrInvalidKey, "unable to parse "+
			"extended key", err)
	}

	if extKey.IsPrivate() != private {
		return nil, managerError(ErrInvalidKey, "extended key has the "+
			"wrong type", nil)
	}

	return extKey, nil
}

// keyRingFromRaw rehydrates the keys of a key ring.
func keyRingFromRaw(raw *RawKeyRing) (*KeyRing, error) {
	ring := &KeyRing{}
	if raw == nil {
		return ring, nil
	}

	var err error
	ring.PrivKey, err = parseKey(raw.XPriv, true)
	if err != nil {
		return nil, err
	}

	ring.PubKey, err = parseKey(raw.XPub, false)
	if err != nil {
		return nil, err
	}

	if ring.PubKey == nil && ring.PrivKey != nil {
		ring.PubKey, err = ring.PrivKey.Neuter()
		if err != nil {
			return nil, managerError(ErrKeyChain, "unable to neuter "+
				"private key", err)
		}
	}

	return ring, nil
}

// keysFromRaw rehydrates all key rings.
func keysFromRaw(raw *RawKeys) (*Keys, error) {
	if raw == nil {
		raw = &RawKeys{}
	}

	var (
		keys Keys
		err  error
	)
	if keys.Master, err = keyRingFromRaw(raw.Master); err != nil {
		return nil, err
	}
	if keys.Receive, err = keyRingFromRaw(raw.Receive); err != nil {
		return nil, err
	}
	if keys.Change, err = keyRingFromRaw(raw.Change); err != nil {
		return nil, err
	}

	return &keys, nil
}

// rawKeyRing serializes the keys of a key ring.
func rawKeyRing(ring *KeyRing) *RawKeyRing {
	if ring.PubKey == nil && ring.PrivKey == nil {
		return nil
	}

	raw := &RawKeyRing{}
	if ring.PrivKey != nil {
		raw.XPriv = ring.PrivKey.String()
	}
	if ring.PubKey != nil {
		raw.XPub = ring.PubKey.String()
	}

	return raw
}

// rawKeys serializes all key rings.
func (k *Keys) rawKeys() *RawKeys {
	return &RawKeys{
		Master:  rawKeyRing(k.Master),
		Receive: rawKeyRing(k.Receive),
		Change:  rawKeyRing(k.Change),
	}
}
