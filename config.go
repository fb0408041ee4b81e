// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/hdengine/internal/cfgutil"
	"github.com/btcsuite/hdengine/keycache"
	"github.com/btcsuite/hdengine/keymgr"
	"github.com/btcsuite/hdengine/netparams"
	flags "github.com/jessevdk/go-flags"
	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	defaultConfigFilename = "hdengine.conf"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "hdengine.log"
	defaultMaxLogFiles    = 3
	defaultMaxLogFileSize = 10
	defaultNetwork        = "bitcoin"
	defaultScheme         = string(keymgr.SchemeBIP84)

	cacheDbName = "keys.db"
)

var (
	hdengineHomeDir   = btcutil.AppDataDir("hdengine", false)
	defaultConfigFile = filepath.Join(hdengineHomeDir, defaultConfigFilename)
	defaultDataDir    = hdengineHomeDir
	defaultLogDir     = filepath.Join(hdengineHomeDir, defaultLogDirname)
)

type config struct {
	// General application behavior
	ConfigFile     string        `short:"C" long:"configfile" description:"Path to configuration file"`
	ShowVersion    bool          `short:"V" long:"version" description:"Display version information and exit"`
	DataDir        string        `short:"b" long:"datadir" description:"Directory to store the key cache"`
	DebugLevel     string        `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	LogDir         string        `long:"logdir" description:"Directory to log output."`
	MaxLogFiles    int           `long:"maxlogfiles" description:"Maximum logfiles to keep (0 for no rotation)"`
	MaxLogFileSize int           `long:"maxlogfilesize" description:"Maximum logfile size in MB"`
	DBTimeout      time.Duration `long:"dbtimeout" description:"The timeout value to use when opening the key cache database"`

	// Wallet options
	Network    string `short:"n" long:"network" description:"Network to derive addresses for"`
	Scheme     string `short:"s" long:"scheme" description:"Derivation scheme {bip32, bip44, bip49, bip84}"`
	Account    uint32 `long:"account" description:"BIP0044 account number"`
	CoinType   int64  `long:"cointype" description:"Override the BIP0044 coin type of the network (-1 uses the network's)"`
	GapLimit   int    `long:"gaplimit" description:"Number of unused addresses kept past the last used address"`
	PublicOnly bool   `long:"publiconly" description:"Never write extended private keys to the key cache"`

	// Actions
	NewMnemonic bool `long:"newmnemonic" description:"Print a new BIP0039 mnemonic and exit"`
	Reset       bool `long:"reset" description:"Forget every cached address and derive the branches again"`
	ShowSeed    bool `long:"showseed" description:"Print the wallet seed and master public key"`

	net *netparams.Params
}

// cacheDir returns the directory of the key cache of the configured network
// and scheme.  Keys of different schemes never share a cache.
func (c *config) cacheDir() string {
	return filepath.Join(c.DataDir, c.net.Name, c.Scheme)
}

// managerConfig returns the key manager configuration for the wallet backed
// by store.
func (c *config) managerConfig(store *keycache.Store,
	seed string) *keymgr.Config {

	coinType := fn.None[uint32]()
	if c.CoinType >= 0 {
		coinType = fn.Some(uint32(c.CoinType))
	}

	return &keymgr.Config{
		Scheme:       keymgr.Scheme(c.Scheme),
		Account:      c.Account,
		CoinType:     coinType,
		RawKeys:      store.RawKeys(),
		Seed:         seed,
		GapLimit:     c.GapLimit,
		Net:          c.net,
		Notifier:     store,
		AddressInfos: store,
		TxInfos:      store,
	}
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	return cfgutil.CleanAndExpandPath(path, hdengineHomeDir)
}

// loadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// The above results in hdengine functioning properly without any config
// settings while still allowing the user to override settings with config files
// and command line options.  Command line options always take precedence.
func loadConfig() (*config, []string, error) {
	// Default config.
	cfg := config{
		DebugLevel:     defaultLogLevel,
		ConfigFile:     defaultConfigFile,
		DataDir:        defaultDataDir,
		LogDir:         defaultLogDir,
		MaxLogFiles:    defaultMaxLogFiles,
		MaxLogFileSize: defaultMaxLogFileSize,
		DBTimeout:      keycache.DefaultDBTimeout,
		Network:        defaultNetwork,
		Scheme:         defaultScheme,
		CoinType:       -1,
		GapLimit:       keymgr.DefaultGapLimit,
	}

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.Default)
	_, err := preParser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			preParser.WriteHelp(os.Stderr)
		}
		return nil, nil, err
	}

	// Show the version and exit if the version flag was specified.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", version)
		os.Exit(0)
	}

	// Load additional config from file.
	var configFileError error
	parser := flags.NewParser(&cfg, flags.Default)
	configFile := cleanAndExpandPath(preCfg.ConfigFile)
	exists, err := cfgutil.FileExists(configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}
	if exists {
		err := flags.NewIniParser(parser).ParseFile(configFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			parser.WriteHelp(os.Stderr)
			return nil, nil, err
		}
	} else if preCfg.ConfigFile != defaultConfigFile {
		configFileError = fmt.Errorf("config file %s does not exist",
			configFile)
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			parser.WriteHelp(os.Stderr)
		}
		return nil, nil, err
	}

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		os.Exit(0)
	}

	// Choose the active network params based on the network name.
	cfg.net, err = netparams.ForName(cfg.Network)
	if err != nil {
		err := fmt.Errorf("loadConfig: %w -- supported networks %v",
			err, netparams.Names())
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	scheme, err := keymgr.ParseScheme(cfg.Scheme)
	if err != nil {
		err := fmt.Errorf("loadConfig: %w", err)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}
	cfg.Scheme = string(scheme)

	// Segwit schemes are rejected up front for networks without segwit.
	if _, err := keymgr.SelectFormat(scheme, cfg.net); err != nil {
		err := fmt.Errorf("loadConfig: %w", err)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	if cfg.GapLimit <= 0 {
		err := fmt.Errorf("loadConfig: the gap limit must be positive, "+
			"got %d", cfg.GapLimit)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	if cfg.CoinType >= 1<<31 {
		err := fmt.Errorf("loadConfig: coin type %d is out of range",
			cfg.CoinType)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	cfg.DataDir = cleanAndExpandPath(cfg.DataDir)

	// Append the network type to the log directory so it is "namespaced"
	// per network.
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	cfg.LogDir = filepath.Join(cfg.LogDir, cfg.net.Name)

	// Initialize log rotation.  After log rotation has been initialized,
	// the logger variables may be used.
	if cfg.MaxLogFiles > 0 {
		err := logWriter.InitLogRotator(
			filepath.Join(cfg.LogDir, defaultLogFilename),
			cfg.MaxLogFileSize, cfg.MaxLogFiles,
		)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return nil, nil, err
		}
	}

	// Parse, validate, and set debug log level(s).
	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		err := fmt.Errorf("loadConfig: %w", err)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	// Warn about missing config file after the final command line parse
	// succeeds.  This prevents the warning on help messages and invalid
	// options.
	if configFileError != nil {
		log.Warnf("%v", configFileError)
	}

	return &cfg, remainingArgs, nil
}
