// Copyright (c) 2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keymgr

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// secretStore is the txauthor.SecretsSource of a signing pass.  Keys are
// looked up by the encoded address they pay to.
type secretStore struct {
	params *chaincfg.Params
	keys   map[string]secret
}

// secret is a private key and whether its public key is serialized
// compressed.
type secret struct {
	key        *btcec.PrivateKey
	compressed bool
}

func newSecretStore(params *chaincfg.Params) *secretStore {
	return &secretStore{
		params: params,
		keys:   make(map[string]secret),
	}
}

// add registers a key under the address it is encoded as.
func (s *secretStore) add(addr btcutil.Address, key *btcec.PrivateKey,
	compressed bool) {

	s.keys[addr.EncodeAddress()] = secret{key: key, compressed: compressed}
}

// addWIF registers a WIF key under every address type it can be spent from.
func (s *secretStore) addWIF(wif *btcutil.WIF) error {
	pkHash := btcutil.Hash160(wif.SerializePubKey())

	p2pkh, err := btcutil.NewAddressPubKeyHash(pkHash, s.params)
	if err != nil {
		return err
	}
	s.add(p2pkh, wif.PrivKey, wif.CompressPubKey)

	// Segwit only commits to compressed keys.
	if !wif.CompressPubKey || s.params.Bech32HRPSegwit == "" {
		return nil
	}

	p2wpkh, err := btcutil.NewAddressWitnessPubKeyHash(pkHash, s.params)
	if err != nil {
		return err
	}
	s.add(p2wpkh, wif.PrivKey, true)

	witnessProgram, err := txscript.PayToAddrScript(p2wpkh)
	if err != nil {
		return err
	}
	np2wpkh, err := btcutil.NewAddressScriptHash(witnessProgram, s.params)
	if err != nil {
		return err
	}
	s.add(np2wpkh, wif.PrivKey, true)

	return nil
}

// GetKey returns the private key paying to addr.
func (s *secretStore) GetKey(addr btcutil.Address) (*btcec.PrivateKey,
	bool, error) {

	sec, ok := s.keys[addr.EncodeAddress()]
	if !ok {
		str := fmt.Sprintf("no private key for address %v", addr)
		return nil, false, managerError(ErrNoPrivateKey, str, nil)
	}

	return sec.key, sec.compressed, nil
}

// GetScript is unused since the wallet creates no P2SH outputs other than
// nested witness programs.
func (s *secretStore) GetScript(addr btcutil.Address) ([]byte, error) {
	str := fmt.Sprintf("no redeem script for address %v", addr)
	return nil, managerError(ErrNoPrivateKey, str, nil)
}

// ChainParams returns the network of the stored keys.
func (s *secretStore) ChainParams() *chaincfg.Params {
	return s.params
}

// Sign signs every input of tx.  When privateKeys are given the inputs are
// signed with those WIF encoded keys only.  Otherwise the key of every input
// is derived from the master private key or the seed.
func (m *Manager) Sign(tx *AuthoredTx, privateKeys []string) error {
	secrets := newSecretStore(m.net.Params)

	for _, key := range privateKeys {
		wif, err := btcutil.DecodeWIF(key)
		if err != nil {
			return managerError(ErrInvalidKey, "unable to decode "+
				"private key", err)
		}
		if !wif.IsForNet(m.net.Params) {
			return managerError(ErrInvalidKey, "private key is not "+
				"for "+m.net.Name, nil)
		}

		if err := secrets.addWIF(wif); err != nil {
			return managerError(ErrInvalidKey, "unable to encode "+
				"private key", err)
		}
	}

	if len(privateKeys) == 0 {
		if err := m.deriveSigningKeys(tx, secrets); err != nil {
			return err
		}
	}

	if err := tx.AddAllInputScripts(secrets); err != nil {
		var mgrErr ManagerError
		if errors.As(err, &mgrErr) {
			return err
		}
		return managerError(ErrSigningFailed, "unable to sign "+
			"transaction", err)
	}

	if err := tx.ValidateInputScripts(); err != nil {
		return managerError(ErrSigningFailed, "signed transaction "+
			"failed validation", err)
	}

	log.Debugf("Signed transaction %v", tx.Tx.TxHash())

	return nil
}

// deriveSigningKeys derives the private key of every input of tx.
func (m *Manager) deriveSigningKeys(tx *AuthoredTx,
	secrets *secretStore) error {

	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.keys.Master.PrivKey == nil && m.seed == "" {
		return managerError(ErrNoPrivateKey, "can not sign without a "+
			"private key", nil)
	}

	if err := m.initMasterKeys(); err != nil {
		return err
	}

	for _, txIn := range tx.Tx.TxIn {
		branch, index, err := m.UtxoToPath(txIn.PreviousOutPoint)
		if err != nil {
			return err
		}

		ring := m.keys.ring(branch)
		if ring.PrivKey == nil {
			ring.PrivKey, err = m.keys.Master.PrivKey.Derive(
				uint32(branch),
			)
			if err != nil {
				str := fmt.Sprintf("unable to derive private "+
					"branch %d", branch)
				return managerError(ErrKeyChain, str, err)
			}

			m.saveKeysToCache()
		}

		child, err := ring.PrivKey.Derive(index)
		if err != nil {
			str := fmt.Sprintf("unable to derive private key %d/%d",
				branch, index)
			return managerError(ErrKeyChain, str, err)
		}

		privKey, err := child.ECPrivKey()
		if err != nil {
			return managerError(ErrKeyChain, "unable to get private "+
				"key", err)
		}

		addr, err := m.format.KeyAddress(privKey.PubKey())
		if err != nil {
			return managerError(ErrKeyChain, "unable to encode "+
				"key address", err)
		}
		secrets.add(addr, privKey, true)
	}

	return nil
}
