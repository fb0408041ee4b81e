// Copyright (c) 2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keymgr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// ParsePath returns the branch and index of a derivation path below
// masterPath.  The result is empty when the path is not of the form
// <masterPath>/<branch>/<index>, meaning the path is not part of the wallet.
func ParsePath(path, masterPath string) []uint32 {
	suffix, ok := strings.CutPrefix(path, masterPath+"/")
	if !ok {
		return []uint32{}
	}

	parts := strings.Split(suffix, "/")
	if len(parts) != 2 {
		return []uint32{}
	}

	result := make([]uint32, 0, 2)
	for _, part := range parts {
		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return []uint32{}
		}
		result = append(result, uint32(n))
	}

	return result
}

// MakePath returns the derivation path of the address at index on branch.
func MakePath(masterPath string, branch Branch, index uint32) string {
	return fmt.Sprintf("%s/%d/%d", masterPath, branch, index)
}

// pathComponents returns the child numbers of an absolute derivation path
// such as m/44'/0'/0'.
func pathComponents(path string) ([]uint32, error) {
	parts := strings.Split(path, "/")
	if parts[0] != "m" {
		str := fmt.Sprintf("derivation path %q is not absolute", path)
		return nil, managerError(ErrKeyChain, str, nil)
	}

	components := make([]uint32, 0, len(parts)-1)
	for _, part := range parts[1:] {
		var offset uint32
		if trimmed, ok := strings.CutSuffix(part, "'"); ok {
			part = trimmed
			offset = hdkeychain.HardenedKeyStart
		}

		n, err := strconv.ParseUint(part, 10, 31)
		if err != nil {
			str := fmt.Sprintf("invalid derivation path %q", path)
			return nil, managerError(ErrKeyChain, str, err)
		}
		components = append(components, uint32(n)+offset)
	}

	return components, nil
}
