// Copyright (c) 2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keymgr

import (
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/hdengine/netparams"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// DefaultGapLimit is the number of unused addresses kept past the last used
// address of every branch.
const DefaultGapLimit = 10

// Config is the configuration of a Manager.
type Config struct {
	// Scheme is the derivation scheme.  It defaults to SchemeBIP32.
	Scheme Scheme

	// Account is the BIP0044 account of the wallet.
	Account uint32

	// CoinType overrides the network's BIP0044 coin type.
	CoinType fn.Option[uint32]

	// RawKeys are previously cached extended keys.
	RawKeys *RawKeys

	// Seed is a BIP0039 mnemonic or a base64 encoded raw seed.
	Seed string

	// GapLimit is the number of unused addresses kept past the last used
	// address.  It defaults to DefaultGapLimit.
	GapLimit int

	// Net is the network keys and addresses are derived for.  It defaults
	// to the bitcoin main network.
	Net *netparams.Params

	// Notifier receives derived addresses and keys.
	Notifier Notifier

	// AddressInfos are the addresses known to the sync layer.
	AddressInfos AddressInfoSource

	// TxInfos are the transactions known to the sync layer.
	TxInfos TxInfoSource

	// AddressFormat converts between legacy and display addresses.
	AddressFormat AddressFormat
}

// Manager derives the keys and addresses of an HD wallet, keeps each branch
// a gap limit ahead of its last used address and builds and signs
// transactions spending the wallet's outputs.
//
// The address and transaction tables are owned by the sync layer and only
// read by the manager.
type Manager struct {
	seed       string
	gapLimit   int
	masterPath string
	format     *Format
	net        *netparams.Params

	notifier     Notifier
	addressInfos AddressInfoSource
	txInfos      TxInfoSource
	addrFormat   AddressFormat

	// mtx serializes look-ahead and every access to keys.
	mtx  sync.Mutex
	keys *Keys
}

// New returns a manager for the wallet described by cfg.  Addresses of the
// address table that belong to the wallet are added to their branches, but
// no keys are derived until Load is called.
func New(cfg *Config) (*Manager, error) {
	if cfg.Seed == "" && (cfg.RawKeys == nil || cfg.RawKeys.Master == nil ||
		(cfg.RawKeys.Master.XPriv == "" && cfg.RawKeys.Master.XPub == "")) {

		return nil, managerError(ErrMissingMasterKey, "a seed or a "+
			"master key is required", nil)
	}

	scheme, err := ParseScheme(string(cfg.Scheme))
	if err != nil {
		return nil, err
	}

	net := cfg.Net
	if net == nil {
		net = &netparams.MainNetParams
	}

	format, err := SelectFormat(scheme, net)
	if err != nil {
		return nil, err
	}

	keys, err := keysFromRaw(cfg.RawKeys)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		seed:         cfg.Seed,
		gapLimit:     cfg.GapLimit,
		format:       format,
		net:          net,
		notifier:     cfg.Notifier,
		addressInfos: cfg.AddressInfos,
		txInfos:      cfg.TxInfos,
		addrFormat:   cfg.AddressFormat,
		keys:         keys,
	}
	if m.gapLimit <= 0 {
		m.gapLimit = DefaultGapLimit
	}
	if m.notifier == nil {
		m.notifier = NotifierFuncs{}
	}
	if m.addressInfos == nil {
		m.addressInfos = AddressInfos{}
	}
	if m.txInfos == nil {
		m.txInfos = TxInfos{}
	}
	if m.addrFormat == nil {
		m.addrFormat = identityFormat{}
	}

	coinType := cfg.CoinType.UnwrapOr(net.CoinType)
	m.masterPath = format.MasterPath(cfg.Account, coinType)

	m.addressInfos.ForEachAddressInfo(func(scriptHash string,
		info AddressInfo) {

		path := ParsePath(info.Path, m.masterPath)
		if len(path) == 0 {
			return
		}

		branch := Branch(path[0])
		if !m.format.hasBranch(branch) {
			log.Warnf("Skipping address %s on unknown branch %d",
				info.DisplayAddress, branch)
			return
		}

		ring := m.keys.ring(branch)
		ring.Children = append(ring.Children, Address{
			DisplayAddress: m.addrFormat.ToNew(info.DisplayAddress),
			ScriptHash:     scriptHash,
			Index:          path[1],
			Branch:         branch,
		})
	})

	// The address table is not ordered.
	m.keys.Receive.sortChildren()
	m.keys.Change.sortChildren()

	log.Debugf("Created %s manager at %s with %d receive and %d change "+
		"addresses", scheme, m.masterPath, len(m.keys.Receive.Children),
		len(m.keys.Change.Children))

	return m, nil
}

// MasterPath returns the derivation path of the wallet's master key.
func (m *Manager) MasterPath() string {
	return m.masterPath
}

// Format returns the derivation rules of the wallet.
func (m *Manager) Format() *Format {
	return m.format
}

// Keys returns a copy of the manager's key rings.
func (m *Manager) Keys() Keys {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return Keys{
		Master:  m.keys.Master.copy(),
		Receive: m.keys.Receive.copy(),
		Change:  m.keys.Change.copy(),
	}
}

// Load derives the master public key from the seed if it is not known yet,
// then closes any gaps in the branches and extends them past the gap limit.
func (m *Manager) Load() error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return m.load()
}

// load is Load with the manager locked.
func (m *Manager) load() error {
	if m.keys.Master.PubKey == nil {
		if err := m.initMasterKeys(); err != nil {
			return err
		}
	}

	return m.lookAhead(true)
}

// Reload forgets every derived address and loads the manager again.  It is
// used after the address table was invalidated.
func (m *Manager) Reload() error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	for _, ring := range []*KeyRing{
		m.keys.Master, m.keys.Receive, m.keys.Change,
	} {
		ring.Children = nil
	}

	return m.load()
}

// ReceiveAddress returns the first receive address that is not used yet.
func (m *Manager) ReceiveAddress() string {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return m.nextAvailable(m.keys.Receive.Children)
}

// ChangeAddress returns the first change address that is not used yet.
// Schemes with a single chain return the receive address.
func (m *Manager) ChangeAddress() string {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.format.Scheme == SchemeBIP32 {
		return m.nextAvailable(m.keys.Receive.Children)
	}

	return m.nextAvailable(m.keys.Change.Children)
}

// nextAvailable returns the first address known to the address table as
// unused.  If there is none the last address is returned.
func (m *Manager) nextAvailable(addresses []Address) string {
	for _, addr := range addresses {
		info, ok := m.addressInfos.AddressInfo(addr.ScriptHash)
		if ok && !info.Used {
			return addr.DisplayAddress
		}
	}

	if len(addresses) == 0 {
		return ""
	}

	return addresses[len(addresses)-1].DisplayAddress
}

// UtxoToPath returns the branch and index of the address an output pays to.
func (m *Manager) UtxoToPath(op wire.OutPoint) (Branch, uint32, error) {
	txid := op.Hash.String()

	tx, ok := m.txInfos.TxInfo(txid)
	if !ok {
		str := fmt.Sprintf("transaction %s is not synced yet", txid)
		return 0, 0, managerError(ErrUtxoNotSynced, str, nil)
	}

	if op.Index >= uint32(len(tx.Outputs)) {
		str := fmt.Sprintf("output %v is out of range for %d outputs",
			op, len(tx.Outputs))
		return 0, 0, managerError(ErrCorruptUtxo, str, nil)
	}

	scriptHash := tx.Outputs[op.Index].ScriptHash
	info, ok := m.addressInfos.AddressInfo(scriptHash)
	if !ok {
		str := fmt.Sprintf("output %v is not part of this wallet", op)
		return 0, 0, managerError(ErrAddressNotOwned, str, nil)
	}

	path := ParsePath(info.Path, m.masterPath)
	if len(path) != 2 {
		str := fmt.Sprintf("path %q of output %v is not below %s",
			info.Path, op, m.masterPath)
		return 0, 0, managerError(ErrAddressNotOwned, str, nil)
	}

	// Keys of other branches would be derived into the wrong key ring.
	branch := Branch(path[0])
	if !m.format.hasBranch(branch) {
		str := fmt.Sprintf("path %q of output %v is not on a branch "+
			"of the wallet", info.Path, op)
		return 0, 0, managerError(ErrAddressNotOwned, str, nil)
	}

	return branch, path[1], nil
}

// Seed returns the normalized seed of the wallet, if it has one.
func (m *Manager) Seed() fn.Option[string] {
	if m.seed == "" {
		return fn.None[string]()
	}

	seed, err := m.format.ParseSeed(m.seed)
	if err != nil {
		log.Errorf("Unable to parse seed: %v", err)
		return fn.None[string]()
	}

	return fn.Some(seed)
}

// PublicSeed returns the serialized master public key, if it is known.
func (m *Manager) PublicSeed() fn.Option[string] {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.keys.Master.PubKey == nil {
		return fn.None[string]()
	}

	return fn.Some(m.keys.Master.PubKey.String())
}

// InitMasterKeys derives the master key pair and emits the wallet's keys.
func (m *Manager) InitMasterKeys() error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return m.initMasterKeys()
}

// initMasterKeys derives the master public key from the master private key,
// or both from the seed, and emits the keys.
//
// This function MUST be called with the manager lock held.
func (m *Manager) initMasterKeys() error {
	master := m.keys.Master

	switch {
	case master.PrivKey != nil:
		pubKey, err := master.PrivKey.Neuter()
		if err != nil {
			return managerError(ErrKeyChain, "unable to neuter "+
				"master key", err)
		}
		master.PubKey = pubKey

	case m.seed != "":
		privKey, err := m.format.deriveMasterKey(m.seed, m.masterPath)
		if err != nil {
			return err
		}

		pubKey, err := privKey.Neuter()
		if err != nil {
			return managerError(ErrKeyChain, "unable to neuter "+
				"master key", err)
		}
		master.PrivKey, master.PubKey = privKey, pubKey

	case master.PubKey == nil:
		return managerError(ErrMissingMasterKey, "no seed or master "+
			"key to derive from", nil)
	}

	m.saveKeysToCache()

	return nil
}

// saveKeysToCache emits the serialized keys of every key ring.
//
// This function MUST be called with the manager lock held.
func (m *Manager) saveKeysToCache() {
	keys := m.keys.rawKeys()

	log.Tracef("Saving keys %v", newLogClosure(func() string {
		return fmt.Sprintf("master=%t receive=%t change=%t",
			keys.Master != nil, keys.Receive != nil,
			keys.Change != nil)
	}))

	m.notifier.NewKeys(keys)
}
