// Copyright (c) 2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keymgr

// AddressInfo is what the wallet's sync layer knows about an address.
type AddressInfo struct {
	// Path is the full derivation path of the address.
	Path string

	// DisplayAddress is the address in display format.
	DisplayAddress string

	// Used is set once the address has received or spent funds.
	Used bool
}

// AddressInfoSource is a read only view of the address infos kept by the
// sync layer, keyed by script hash.  Missing entries mean the address is
// unknown.
type AddressInfoSource interface {
	// AddressInfo returns the info of the address with the given script
	// hash.
	AddressInfo(scriptHash string) (AddressInfo, bool)

	// ForEachAddressInfo calls f for every known address.
	ForEachAddressInfo(f func(scriptHash string, info AddressInfo))
}

// AddressInfos is an AddressInfoSource backed by a map.
type AddressInfos map[string]AddressInfo

// AddressInfo returns the info of the address with the given script hash.
func (a AddressInfos) AddressInfo(scriptHash string) (AddressInfo, bool) {
	info, ok := a[scriptHash]
	return info, ok
}

// ForEachAddressInfo calls f for every address in the map.
func (a AddressInfos) ForEachAddressInfo(f func(string, AddressInfo)) {
	for scriptHash, info := range a {
		f(scriptHash, info)
	}
}

// TxOutputInfo is what the sync layer knows about a transaction output.
type TxOutputInfo struct {
	ScriptHash string
	Value      int64
}

// TxInfo is what the sync layer knows about a transaction.
type TxInfo struct {
	TxID    string
	Outputs []TxOutputInfo
}

// TxInfoSource is a read only view of the transactions kept by the sync
// layer, keyed by transaction id.
type TxInfoSource interface {
	TxInfo(txid string) (TxInfo, bool)
}

// TxInfos is a TxInfoSource backed by a map.
type TxInfos map[string]TxInfo

// TxInfo returns the transaction with the given id.
func (t TxInfos) TxInfo(txid string) (TxInfo, bool) {
	info, ok := t[txid]
	return info, ok
}

// Notifier receives the addresses and keys a Manager derives so they can be
// persisted and watched.  Its methods are called synchronously while the
// manager is locked and must not call back into the manager.
type Notifier interface {
	// NewAddress is called for every newly derived address.
	NewAddress(scriptHash, displayAddress, path string)

	// NewKeys is called whenever the manager's key material changes.
	NewKeys(keys *RawKeys)
}

// NotifierFuncs implements Notifier with optional functions.
type NotifierFuncs struct {
	OnNewAddress func(scriptHash, displayAddress, path string)
	OnNewKeys    func(keys *RawKeys)
}

// NewAddress calls OnNewAddress if it is set.
func (n NotifierFuncs) NewAddress(scriptHash, displayAddress, path string) {
	if n.OnNewAddress != nil {
		n.OnNewAddress(scriptHash, displayAddress, path)
	}
}

// NewKeys calls OnNewKeys if it is set.
func (n NotifierFuncs) NewKeys(keys *RawKeys) {
	if n.OnNewKeys != nil {
		n.OnNewKeys(keys)
	}
}

// AddressFormat converts addresses between the legacy encoding used on the
// wire and the encoding shown to users.
type AddressFormat interface {
	ToLegacy(address string) string
	ToNew(address string) string
}

// identityFormat is the AddressFormat of networks with a single encoding.
type identityFormat struct{}

func (identityFormat) ToLegacy(address string) string { return address }
func (identityFormat) ToNew(address string) string    { return address }
