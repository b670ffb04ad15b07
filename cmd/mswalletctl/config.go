// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/mswallet/identity"
	"github.com/btcsuite/mswallet/keystore"
)

const (
	defaultLogLevel    = "info"
	defaultLogDirname  = "logs"
	defaultLogFilename = "mswalletctl.log"
)

var (
	defaultAppDataDir = btcutil.AppDataDir("mswallet", false)
	defaultLogDir     = filepath.Join(defaultAppDataDir, defaultLogDirname)
)

// config defines the global options shared by every command.
type config struct {
	AppDataDir string `short:"A" long:"appdata" description:"Application data directory for device storage"`
	LogDir     string `long:"logdir" description:"Directory to log output"`
	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`
	TestNet3   bool   `long:"testnet" description:"Use the test bitcoin network (version 3)"`
	Coin       string `long:"coin" description:"Coin of new devices {btc, bch}"`
	Strategy   string `long:"strategy" description:"Derivation strategy of new devices {BIP44, BIP45, BIP48}"`

	params identity.Params
}

var cfg = config{
	AppDataDir: defaultAppDataDir,
	LogDir:     defaultLogDir,
	DebugLevel: defaultLogLevel,
	Coin:       string(keystore.CoinBTC),
	Strategy:   string(keystore.BIP44),
}

// cleanAndExpandPath expands environement variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(defaultAppDataDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows cmd.exe-style
	// %VARIABLE%, but they variables can still be expanded via POSIX-style
	// $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

// validLogLevel returns whether or not logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace", "debug", "info", "warn", "error", "critical":
		return true
	}
	return false
}

// network returns the network of the active configuration.
func (c *config) network() keystore.Network {
	if c.TestNet3 {
		return keystore.Testnet
	}
	return keystore.Livenet
}

// storeDir returns the directory of the device store of the active
// network.
func (c *config) storeDir() string {
	return filepath.Join(c.AppDataDir, string(c.network()))
}

// validate cleans the paths of the configuration, checks its values and
// starts logging.
func (c *config) validate() error {
	c.AppDataDir = cleanAndExpandPath(c.AppDataDir)
	c.LogDir = cleanAndExpandPath(c.LogDir)

	if !validLogLevel(c.DebugLevel) {
		return fmt.Errorf("the specified debug level [%v] is invalid",
			c.DebugLevel)
	}

	coin, err := keystore.ParseCoin(c.Coin)
	if err != nil {
		return err
	}
	strategy, err := keystore.ParseDerivationStrategy(c.Strategy)
	if err != nil {
		return err
	}
	c.params = identity.Params{
		Coin:     coin,
		Network:  c.network(),
		Strategy: strategy,
	}

	if logRotator == nil {
		logFile := filepath.Join(c.LogDir, string(c.network()),
			defaultLogFilename)
		if err := initLogRotator(logFile); err != nil {
			return err
		}
	}
	setLogLevels(c.DebugLevel)
	return nil
}
