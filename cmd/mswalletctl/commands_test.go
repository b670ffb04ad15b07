// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/btcsuite/mswallet/addrdef"
	"github.com/btcsuite/mswallet/identity"
	"github.com/btcsuite/mswallet/keystore"
	"github.com/btcsuite/mswallet/verifier"
	"github.com/btcsuite/mswallet/walletstore"
	"github.com/stretchr/testify/require"
	"github.com/tyler-smith/go-bip39"
)

// testXPrv returns a testnet master key from a seed filled with b.
func testXPrv(t *testing.T, b byte) string {
	t.Helper()

	master, err := keystore.NewMaster(bytes.Repeat([]byte{b}, 32),
		keystore.Testnet)
	require.NoError(t, err)
	return master.String()
}

func TestMain(m *testing.M) {
	logDir, err := os.MkdirTemp("", "mswalletctl-logs")
	if err != nil {
		panic(err)
	}
	if err := initLogRotator(filepath.Join(logDir, defaultLogFilename)); err != nil {
		panic(err)
	}

	code := m.Run()
	logRotator.Close()
	os.RemoveAll(logDir)
	os.Exit(code)
}

// setup points the configuration at a fresh data directory and feeds input
// to the prompts.  The returned buffer collects the command output.
func setup(t *testing.T, input string) *bytes.Buffer {
	t.Helper()

	cfg = config{
		AppDataDir: t.TempDir(),
		LogDir:     t.TempDir(),
		DebugLevel: "warn",
		TestNet3:   true,
		Coin:       string(keystore.CoinBTC),
		Strategy:   string(keystore.BIP48),
	}
	feed(input)

	out := new(bytes.Buffer)
	stdout = out
	return out
}

func feed(input string) {
	stdin = bufio.NewReader(strings.NewReader(input))
}

func loadDevice(t *testing.T) *identity.Device {
	t.Helper()

	s, err := walletstore.Open(cfg.storeDir(), false,
		walletstore.DefaultDBTimeout)
	require.NoError(t, err)
	defer s.Close()

	d, err := (&deviceOpt{}).load(s)
	require.NoError(t, err)
	return d
}

func TestCreate(t *testing.T) {
	out := setup(t, "OK\nno\n")

	require.NoError(t, (&createCmd{}).Execute(nil))

	var sum deviceSummary
	require.NoError(t, json.Unmarshal(out.Bytes(), &sum))
	require.Equal(t, "testnet", sum.Network)
	require.Equal(t, "BIP48", sum.DerivationStrategy)
	require.False(t, sum.Encrypted)

	d := loadDevice(t)
	require.Equal(t, sum.DeviceID, d.DeviceID)
	require.True(t, bip39.IsMnemonicValid(d.Mnemonic))
}

func TestCreateWithoutMnemonic(t *testing.T) {
	setup(t, "no\n")

	require.NoError(t, (&createCmd{NoMnemonic: true}).Execute(nil))
	d := loadDevice(t)
	require.Empty(t, d.Mnemonic)
	require.True(t, d.CanSign())
}

func TestImport(t *testing.T) {
	out := setup(t, "no\n")

	cmd := &importCmd{XPrivKey: testXPrv(t, 1)}
	require.NoError(t, cmd.Execute(nil))

	var sum deviceSummary
	require.NoError(t, json.Unmarshal(out.Bytes(), &sum))
	require.False(t, sum.WatchOnly)

	// A device is stored once.
	feed("no\n")
	require.Error(t, cmd.Execute(nil))

	// Both keys at once are refused.
	err := (&importCmd{XPrivKey: testXPrv(t, 1), XPubKey: sum.XPubKey}).Execute(nil)
	require.Error(t, err)
}

func TestImportMnemonic(t *testing.T) {
	words := "abandon abandon abandon abandon abandon abandon " +
		"abandon abandon abandon abandon abandon about"
	setup(t, words+"\n\nTREZOR\nno\n")

	require.NoError(t, (&importCmd{Passphrase: true}).Execute(nil))

	want, err := identity.FromMnemonic(cfg.params, words, "TREZOR")
	require.NoError(t, err)
	require.Equal(t, want.DeviceID, loadDevice(t).DeviceID)
}

func TestImportWatchOnly(t *testing.T) {
	setup(t, "")
	require.NoError(t, cfg.validate())

	full, err := identity.FromExtendedPrivateKey(cfg.params, testXPrv(t, 1))
	require.NoError(t, err)
	devPub, err := base64.StdEncoding.DecodeString(full.DevicePubKey)
	require.NoError(t, err)

	cmd := &importCmd{
		XPubKey:      full.XPubKey,
		DevicePubKey: hex.EncodeToString(devPub),
		Entropy:      strings.Repeat("5a", 16),
	}
	require.NoError(t, cmd.Execute(nil))

	d := loadDevice(t)
	require.True(t, d.IsWatchOnly())
	require.Equal(t, full.DeviceID, d.DeviceID)
	require.Equal(t, full.XPubKey, d.XPubKey)
}

func TestShow(t *testing.T) {
	out := setup(t, "no\n")

	require.Error(t, (&showCmd{}).Execute(nil))

	require.NoError(t, (&importCmd{XPrivKey: testXPrv(t, 1)}).Execute(nil))
	out.Reset()

	require.NoError(t, (&showCmd{}).Execute(nil))
	var sums []deviceSummary
	require.NoError(t, json.Unmarshal(out.Bytes(), &sums))
	require.Len(t, sums, 1)

	out.Reset()
	cmd := &showCmd{deviceOpt{Device: sums[0].DeviceID}}
	require.NoError(t, cmd.Execute(nil))
	var sum deviceSummary
	require.NoError(t, json.Unmarshal(out.Bytes(), &sum))
	require.Equal(t, sums[0], sum)
}

func TestAddCopayerEncrypted(t *testing.T) {
	setup(t, "yes\npw\npw\n")
	require.NoError(t, (&importCmd{XPrivKey: testXPrv(t, 1)}).Execute(nil))
	require.True(t, loadDevice(t).IsPrivKeyEncrypted())

	// The first account needs no passphrase.
	require.NoError(t, (&addCopayerCmd{Account: -1}).Execute(nil))

	// Further accounts unlock the device for the derivation.
	feed("wrong\n")
	err := (&addCopayerCmd{Account: -1}).Execute(nil)
	require.True(t, identity.IsError(err, identity.ErrDecryptionFailed),
		"%v", err)

	feed("pw\n")
	require.NoError(t, (&addCopayerCmd{Account: -1}).Execute(nil))

	d := loadDevice(t)
	require.True(t, d.IsPrivKeyEncrypted())
	require.Len(t, d.Copayers, 2)
	require.Equal(t, uint32(1), d.Copayers[1].Account)
}

func TestWalletAddress(t *testing.T) {
	out := setup(t, "no\n")
	require.NoError(t, (&importCmd{XPrivKey: testXPrv(t, 1)}).Execute(nil))
	require.NoError(t, (&addCopayerCmd{Account: -1}).Execute(nil))

	// An incomplete wallet has no addresses.
	err := (&addressCmd{Path: "m/0/0"}).Execute(nil)
	require.True(t, identity.IsError(err, identity.ErrIncompleteWallet),
		"%v", err)

	require.NoError(t, (&walletCmd{WalletID: "w1", M: 1}).Execute(nil))

	out.Reset()
	require.NoError(t, (&addressCmd{Path: "m/0/3"}).Execute(nil))
	var def addrdef.AddressDefinition
	require.NoError(t, json.Unmarshal(out.Bytes(), &def))
	require.Equal(t, "m/0/3", def.Path)
	require.Equal(t, "w1", def.WalletID)

	// The reported address is checked against the local derivation.
	cmd := &addressCmd{Path: "m/0/3", Expect: def.Address}
	require.NoError(t, cmd.Execute(nil))
	cmd = &addressCmd{Path: "m/0/4", Expect: def.Address}
	require.ErrorIs(t, cmd.Execute(nil), verifier.ErrServerCompromised)
}

func TestWalletRing(t *testing.T) {
	setup(t, "no\n")
	require.NoError(t, (&importCmd{XPrivKey: testXPrv(t, 1)}).Execute(nil))
	require.NoError(t, (&addCopayerCmd{Account: 0}).Execute(nil))

	own := loadDevice(t).Copayers[0].XPubKey
	other, err := identity.FromExtendedPrivateKey(cfg.params,
		testXPrv(t, 2))
	require.NoError(t, err)
	otherCp, err := other.AddCopayer(0)
	require.NoError(t, err)

	// The ring has to contain this copayer.
	cmd := &walletCmd{
		WalletID: "w2",
		M:        2,
		XPubKeys: []string{otherCp.XPubKey, otherCp.XPubKey},
	}
	require.Error(t, cmd.Execute(nil))

	cmd.XPubKeys = []string{otherCp.XPubKey, own}
	require.NoError(t, cmd.Execute(nil))

	cp := loadDevice(t).Copayers[0]
	require.True(t, cp.IsComplete())
	require.Equal(t, addrdef.Shared, cp.AddressType)

	def, err := cp.DeriveAddress("m/0/0")
	require.NoError(t, err)
	require.Len(t, def.SigningPaths, 2)
}
