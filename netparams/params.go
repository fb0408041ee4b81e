// Copyright (c) 2013-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netparams

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
)

// ErrUnknownNetwork is returned by ForName when no parameters are known for
// the requested network name.
var ErrUnknownNetwork = errors.New("unknown network")

// Params is used to group parameters for the networks a key manager can
// derive keys and addresses for.
type Params struct {
	*chaincfg.Params

	// CoinType is the default BIP0044 coin type of the network.  It is
	// used whenever a wallet does not carry an explicit coin type.
	CoinType uint32

	// register marks parameters that are not known to chaincfg and must
	// be registered before extended keys or addresses can be encoded.
	register bool
}

// Segwit returns whether the network has an encoding for segregated witness
// addresses.
func (p *Params) Segwit() bool {
	return p.Bech32HRPSegwit != ""
}

// MainNetParams contains parameters for the bitcoin main network.
var MainNetParams = Params{
	Params:   &chaincfg.MainNetParams,
	CoinType: chaincfg.MainNetParams.HDCoinType,
}

// TestNet3Params contains parameters for the bitcoin test network (version
// 3).
var TestNet3Params = Params{
	Params:   &chaincfg.TestNet3Params,
	CoinType: chaincfg.TestNet3Params.HDCoinType,
}

// TestNet4Params contains parameters for the bitcoin test network (version
// 4).
var TestNet4Params = Params{
	Params:   &TestNet4ChainParams,
	CoinType: TestNet4ChainParams.HDCoinType,
	register: true,
}

// RegressionNetParams contains parameters for the bitcoin regression test
// network.
var RegressionNetParams = Params{
	Params:   &chaincfg.RegressionNetParams,
	CoinType: chaincfg.RegressionNetParams.HDCoinType,
}

// LitecoinParams contains the key and address encoding parameters of the
// litecoin main network.
var LitecoinParams = Params{
	Params: &chaincfg.Params{
		Name:                    "litecoin",
		Net:                     wire.BitcoinNet(0xdbb6c0fb),
		DefaultPort:             "9333",
		CoinbaseMaturity:        100,
		Bech32HRPSegwit:         "ltc",
		PubKeyHashAddrID:        0x30,
		ScriptHashAddrID:        0x32,
		WitnessPubKeyHashAddrID: 0x06,
		WitnessScriptHashAddrID: 0x0a,
		PrivateKeyID:            0xb0,
		HDPrivateKeyID:          [4]byte{0x04, 0x88, 0xad, 0xe4},
		HDPublicKeyID:           [4]byte{0x04, 0x88, 0xb2, 0x1e},
		HDCoinType:              2,
	},
	CoinType: 2,
	register: true,
}

// DashParams contains the key and address encoding parameters of the dash
// main network.  Dash has no segwit deployment.
var DashParams = Params{
	Params: &chaincfg.Params{
		Name:             "dash",
		Net:              wire.BitcoinNet(0xbd6b0cbf),
		DefaultPort:      "9999",
		CoinbaseMaturity: 100,
		PubKeyHashAddrID: 0x4c,
		ScriptHashAddrID: 0x10,
		PrivateKeyID:     0xcc,
		HDPrivateKeyID:   [4]byte{0x02, 0xfe, 0x52, 0xf8},
		HDPublicKeyID:    [4]byte{0x02, 0xfe, 0x52, 0xcc},
		HDCoinType:       5,
	},
	CoinType: 5,
	register: true,
}

// networks maps the wallet network names to their parameters.
var networks = map[string]*Params{
	"bitcoin":         &MainNetParams,
	"bitcointestnet":  &TestNet3Params,
	"bitcointestnet4": &TestNet4Params,
	"bitcoinregtest":  &RegressionNetParams,
	"litecoin":        &LitecoinParams,
	"dash":            &DashParams,
}

var (
	registerOnce sync.Once
	registerErr  error
)

// registerNetworks registers every network chaincfg does not know about.
// Registration is process wide and happens at most once.
func registerNetworks() error {
	registerOnce.Do(func() {
		for _, name := range Names() {
			params := networks[name]
			if !params.register {
				continue
			}

			err := chaincfg.Register(params.Params)
			if err != nil && !errors.Is(err, chaincfg.ErrDuplicateNet) {
				registerErr = fmt.Errorf("unable to register "+
					"%s: %w", name, err)
				return
			}
		}
	})

	return registerErr
}

// ForName returns the parameters of the named network.
func ForName(name string) (*Params, error) {
	params, ok := networks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNetwork, name)
	}

	if err := registerNetworks(); err != nil {
		return nil, err
	}

	return params, nil
}

// Names returns the sorted names of all known networks.
func Names() []string {
	names := make([]string, 0, len(networks))
	for name := range networks {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
