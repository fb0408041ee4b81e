// Copyright (c) 2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keymgr

import (
	"fmt"
)

// SetLookAhead extends every branch until gap limit unused addresses follow
// its last used address.  When closeGaps is set, indexes missing below the
// highest derived index are derived first.
//
// Derivation stops at the first failure.  The failure is logged and returned
// and the addresses derived before it are kept, so a later call resumes
// where this one stopped.
func (m *Manager) SetLookAhead(closeGaps bool) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return m.lookAhead(closeGaps)
}

// lookAhead is SetLookAhead with the manager locked.
func (m *Manager) lookAhead(closeGaps bool) error {
	for _, branch := range m.format.Branches {
		err := m.deriveNewKeys(m.keys.ring(branch), branch, closeGaps)
		if err != nil {
			log.Errorf("Unable to look ahead on branch %d: %v",
				branch, err)

			str := fmt.Sprintf("look-ahead of branch %d failed",
				branch)
			return managerError(ErrLookAhead, str, err)
		}
	}

	return nil
}

// deriveNewKeys restores the gap limit of a branch.
func (m *Manager) deriveNewKeys(ring *KeyRing, branch Branch,
	closeGaps bool) error {

	// The branch key is derived the first time the branch is used.
	if ring.PubKey == nil {
		if m.keys.Master.PubKey == nil {
			return managerError(ErrMissingMasterKey, "master public "+
				"key is not loaded", nil)
		}

		pubKey, err := m.keys.Master.PubKey.Derive(uint32(branch))
		if err != nil {
			str := fmt.Sprintf("unable to derive branch %d", branch)
			return managerError(ErrKeyChain, str, err)
		}
		ring.PubKey = pubKey

		m.saveKeysToCache()
	}

	if closeGaps {
		var (
			index  uint32
			length = len(ring.Children)
		)
		for i := 0; i < length; i++ {
			for ; index < ring.Children[i].Index; index++ {
				err := m.deriveAddress(ring, branch, index)
				if err != nil {
					return err
				}
			}
			index = ring.Children[i].Index + 1
		}

		// Gap addresses were appended out of order.
		if len(ring.Children) > length {
			ring.sortChildren()
		}
	}

	// Only the tail of the branch is scanned for usage.
	lastUsed := int64(-1)
	start := max(0, len(ring.Children)-m.gapLimit)
	for _, child := range ring.Children[start:] {
		info, ok := m.addressInfos.AddressInfo(child.ScriptHash)
		if ok && info.Used {
			lastUsed = int64(child.Index)
		}
	}

	var next int64
	if len(ring.Children) > 0 {
		next = int64(ring.Children[len(ring.Children)-1].Index) + 1
	}

	for ; next < lastUsed+1+int64(m.gapLimit); next++ {
		if err := m.deriveAddress(ring, branch, uint32(next)); err != nil {
			return err
		}
	}

	return nil
}

// deriveAddress derives the address at index on a branch, appends it to the
// branch and emits it.
func (m *Manager) deriveAddress(ring *KeyRing, branch Branch,
	index uint32) error {

	addr, scriptHash, err := m.format.DeriveAddress(ring.PubKey, index)
	if err != nil {
		str := fmt.Sprintf("unable to derive address %d/%d", branch,
			index)
		return managerError(ErrKeyChain, str, err)
	}

	displayAddress := m.addrFormat.ToNew(addr.EncodeAddress())
	path := MakePath(m.masterPath, branch, index)

	ring.Children = append(ring.Children, Address{
		DisplayAddress: displayAddress,
		ScriptHash:     scriptHash,
		Index:          index,
		Branch:         branch,
	})

	log.Tracef("Derived address %s at %s", displayAddress, path)

	m.notifier.NewAddress(scriptHash, displayAddress, path)

	return nil
}
