// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/hdengine/keycache"
	"github.com/btcsuite/hdengine/keymgr"
	"github.com/tyler-smith/go-bip39"
)

// version is the application version.
const version = "0.1.0"

// mnemonicEntropyBits is the entropy of mnemonics created by --newmnemonic,
// resulting in 12 words.
const mnemonicEntropyBits = 128

func main() {
	// Work around defer not working after os.Exit.
	if err := hdengineMain(); err != nil {
		os.Exit(1)
	}
}

// hdengineMain is a work-around main function that is required since deferred
// functions (such as log flushing) are not called with calls to os.Exit.
// Instead, main runs this function and checks for a non-nil error, at which
// point any defers have already run, and if the error is non-nil, the program
// can be exited with an error exit status.
func hdengineMain() error {
	// Load configuration and parse command line.  This function also
	// initializes logging and configures it accordingly.
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	defer logWriter.Close()

	if cfg.NewMnemonic {
		mnemonic, err := newMnemonic()
		if err != nil {
			log.Errorf("Unable to create mnemonic: %v", err)
			return err
		}
		fmt.Println(mnemonic)

		return nil
	}

	dbPath := filepath.Join(cfg.cacheDir(), cacheDbName)
	store, err := keycache.Open(dbPath, &keycache.Config{
		Timeout:    cfg.DBTimeout,
		PublicOnly: cfg.PublicOnly,
	})
	if err != nil {
		log.Errorf("Unable to open key cache: %v", err)
		return err
	}
	addInterruptHandler(func() {
		log.Infof("Closing key cache %s", dbPath)
		if err := store.Close(); err != nil {
			log.Errorf("Unable to close key cache: %v", err)
		}
	})

	// The seed is only asked for when the cache holds no master key or
	// when it is to be shown.
	var seed string
	if store.RawKeys() == nil || (cfg.ShowSeed && !cfg.PublicOnly) {
		format, err := keymgr.SelectFormat(
			keymgr.Scheme(cfg.Scheme), cfg.net,
		)
		if err != nil {
			return shutdown(err)
		}

		seed, err = provideSeed(format)
		if err != nil {
			log.Errorf("Unable to read seed: %v", err)
			return shutdown(err)
		}
	}

	mgr, err := keymgr.New(cfg.managerConfig(store, seed))
	if err != nil {
		log.Errorf("Unable to create key manager: %v", err)
		return shutdown(err)
	}

	if cfg.Reset {
		if err := store.ResetAddresses(); err != nil {
			log.Errorf("Unable to reset key cache: %v", err)
			return shutdown(err)
		}
		err = mgr.Reload()
	} else {
		err = mgr.Load()
	}
	if err != nil {
		log.Errorf("Unable to load key manager: %v", err)
		return shutdown(err)
	}

	log.Infof("Loaded %s wallet %s on %s", cfg.Scheme, mgr.MasterPath(),
		cfg.net.Name)

	if cfg.ShowSeed {
		mgr.Seed().WhenSome(func(seed string) {
			fmt.Println("Seed:", seed)
		})
		mgr.PublicSeed().WhenSome(func(xpub string) {
			fmt.Println("Master public key:", xpub)
		})
	}

	fmt.Println("Receive address:", mgr.ReceiveAddress())
	fmt.Println("Change address:", mgr.ChangeAddress())

	return shutdown(nil)
}

// shutdown runs the interrupt handlers and returns err.
func shutdown(err error) error {
	simulateInterrupt()
	<-interruptHandlersDone

	return err
}

// newMnemonic returns a new random BIP0039 mnemonic.
func newMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(mnemonicEntropyBits)
	if err != nil {
		return "", err
	}

	return bip39.NewMnemonic(entropy)
}
