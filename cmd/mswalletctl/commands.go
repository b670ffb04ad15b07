// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/btcsuite/mswallet/addrdef"
	"github.com/btcsuite/mswallet/identity"
	"github.com/btcsuite/mswallet/internal/prompt"
	"github.com/btcsuite/mswallet/internal/zero"
	"github.com/btcsuite/mswallet/verifier"
	"github.com/btcsuite/mswallet/walletstore"
	"github.com/btcsuite/mswallet/wsjson"
	"github.com/jessevdk/go-flags"
)

var (
	stdin            = bufio.NewReader(os.Stdin)
	stdout io.Writer = os.Stdout
)

func addCommands(p *flags.Parser) error {
	cmds := []struct {
		name, short, long string
		data              interface{}
	}{
		{"create", "Create a new device",
			"Create a device from a new mnemonic and store it.",
			&createCmd{}},
		{"import", "Import a device",
			"Import a device from a mnemonic, an extended private key " +
				"or, watch-only, an extended public key.",
			&importCmd{}},
		{"show", "Show stored devices",
			"Print the public identifiers of one or all stored devices.",
			&showCmd{}},
		{"addcopayer", "Add a copayer to a device",
			"Derive the copayer of an account so it can join a wallet.",
			&addCopayerCmd{Account: -1}},
		{"wallet", "Record the wallet of a copayer",
			"Record the wallet a copayer takes part in along with the " +
				"extended public keys of all participants.",
			&walletCmd{}},
		{"address", "Derive a wallet address",
			"Derive the address of a complete wallet at a path, " +
				"optionally checking an address reported by the " +
				"wallet service.",
			&addressCmd{Path: "m/0/0"}},
	}
	for _, c := range cmds {
		_, err := p.AddCommand(c.name, c.short, c.long, c.data)
		if err != nil {
			return err
		}
	}
	return nil
}

// openStore validates the configuration and opens the device store of the
// active network, creating it when create is set.
func openStore(create bool) (*walletstore.Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	dir := cfg.storeDir()
	exists, err := walletstore.Exists(dir)
	if err != nil {
		return nil, err
	}
	if !exists {
		if !create {
			return nil, errors.New("no devices stored, run create " +
				"or import first")
		}
		return walletstore.Create(dir, false,
			walletstore.DefaultDBTimeout)
	}
	return walletstore.Open(dir, false, walletstore.DefaultDBTimeout)
}

// deviceOpt selects a stored device.
type deviceOpt struct {
	Device string `long:"device" description:"Id of the device; may be omitted when only one device is stored"`
}

func (o *deviceOpt) load(s *walletstore.Store) (*identity.Device, error) {
	if o.Device != "" {
		return s.Get(o.Device)
	}
	ids, err := s.DeviceIDs()
	if err != nil {
		return nil, err
	}
	switch len(ids) {
	case 0:
		return nil, walletstore.ErrNotFound
	case 1:
		return s.Get(ids[0])
	}
	return nil, fmt.Errorf("%d devices stored, select one with --device",
		len(ids))
}

func printJSON(v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "%s\n", b)
	return err
}

// protect offers to encrypt the private key of a new device.
func protect(d *identity.Device) error {
	if !d.CanSign() {
		return nil
	}
	pass, err := prompt.DevicePass(stdin)
	if err != nil || pass == nil {
		return err
	}
	defer zero.Bytes(pass)
	return d.EncryptPrivateKey(pass, nil)
}

// storeNew stores a device that is not stored yet.
func storeNew(s *walletstore.Store, d *identity.Device) error {
	if _, err := s.Get(d.DeviceID); err == nil {
		return fmt.Errorf("device %s is already stored", d.DeviceID)
	}
	if err := s.Put(d); err != nil {
		return err
	}
	log.Infof("Stored device %s", d.DeviceID)
	return printJSON(summarize(d))
}

type copayerSummary struct {
	Account   uint32 `json:"account"`
	CopayerID string `json:"copayerId"`
	XPubKey   string `json:"xPubKey"`
	WalletID  string `json:"walletId,omitempty"`
	M         int    `json:"m,omitempty"`
	N         int    `json:"n,omitempty"`
	Complete  bool   `json:"complete"`
}

type deviceSummary struct {
	DeviceID           string           `json:"deviceId"`
	Coin               string           `json:"coin"`
	Network            string           `json:"network"`
	DerivationStrategy string           `json:"derivationStrategy"`
	XPubKey            string           `json:"xPubKey"`
	RequestPubKey      string           `json:"requestPubKey"`
	DevicePubKey       string           `json:"devicePubKey"`
	WatchOnly          bool             `json:"watchOnly"`
	Encrypted          bool             `json:"encrypted"`
	Copayers           []copayerSummary `json:"copayers"`
}

func summarize(d *identity.Device) *deviceSummary {
	sum := &deviceSummary{
		DeviceID:           d.DeviceID,
		Coin:               string(d.Coin),
		Network:            string(d.Network),
		DerivationStrategy: string(d.DerivationStrategy),
		XPubKey:            d.XPubKey,
		RequestPubKey:      d.RequestPubKey,
		DevicePubKey:       d.DevicePubKey,
		WatchOnly:          d.IsWatchOnly(),
		Encrypted:          d.IsPrivKeyEncrypted(),
		Copayers:           []copayerSummary{},
	}
	for _, c := range d.Copayers {
		sum.Copayers = append(sum.Copayers, copayerSummary{
			Account:   c.Account,
			CopayerID: c.CopayerID,
			XPubKey:   c.XPubKey,
			WalletID:  c.WalletID,
			M:         c.M,
			N:         c.N,
			Complete:  c.IsComplete(),
		})
	}
	return sum
}

type createCmd struct {
	NoMnemonic bool `long:"nomnemonic" description:"Create the device from a random seed without a mnemonic backup"`
}

func (c *createCmd) Execute(args []string) error {
	s, err := openStore(true)
	if err != nil {
		return err
	}
	defer s.Close()

	var d *identity.Device
	if c.NoMnemonic {
		d, err = identity.New(cfg.params)
	} else {
		d, err = identity.NewWithMnemonic(cfg.params, "")
		if err == nil {
			err = prompt.ShowMnemonic(stdin, d.Mnemonic)
		}
	}
	if err != nil {
		return err
	}
	if err := protect(d); err != nil {
		return err
	}
	return storeNew(s, d)
}

type importCmd struct {
	XPrivKey     string `long:"xprv" description:"Extended private master key"`
	XPubKey      string `long:"xpub" description:"Extended public key of account 0 for a watch-only device"`
	DevicePubKey string `long:"devicepubkey" description:"Hex device public key of a watch-only device"`
	Entropy      string `long:"entropy" description:"Hex entropy source of a watch-only device"`
	Passphrase   bool   `long:"passphrase" description:"Prompt for the BIP39 passphrase of the mnemonic"`
}

func (c *importCmd) Execute(args []string) error {
	if c.XPrivKey != "" && c.XPubKey != "" {
		return errors.New("--xprv and --xpub are mutually exclusive")
	}
	s, err := openStore(true)
	if err != nil {
		return err
	}
	defer s.Close()

	var d *identity.Device
	switch {
	case c.XPrivKey != "":
		d, err = identity.FromExtendedPrivateKey(cfg.params, c.XPrivKey)

	case c.XPubKey != "":
		d, err = identity.FromExtendedPublicKey(cfg.params, c.XPubKey,
			c.DevicePubKey, c.Entropy)

	default:
		var words string
		words, err = prompt.Mnemonic(stdin)
		if err != nil {
			return err
		}
		var passphrase []byte
		if c.Passphrase {
			passphrase, err = prompt.PassPrompt(stdin,
				"Enter the mnemonic passphrase", false)
			if err != nil {
				return err
			}
		}
		d, err = identity.FromMnemonic(cfg.params, words,
			string(passphrase))
		zero.Bytes(passphrase)
	}
	if err != nil {
		return err
	}
	if err := protect(d); err != nil {
		return err
	}
	return storeNew(s, d)
}

type showCmd struct {
	deviceOpt
}

func (c *showCmd) Execute(args []string) error {
	s, err := openStore(false)
	if err != nil {
		return err
	}
	defer s.Close()

	if c.Device != "" {
		d, err := s.Get(c.Device)
		if err != nil {
			return err
		}
		return printJSON(summarize(d))
	}

	sums := []*deviceSummary{}
	err = s.ForEach(func(d *identity.Device) error {
		sums = append(sums, summarize(d))
		return nil
	})
	if err != nil {
		return err
	}
	return printJSON(sums)
}

type addCopayerCmd struct {
	deviceOpt
	Account int64 `long:"account" default:"-1" description:"Account of the copayer; the next unused account when negative"`
}

func (c *addCopayerCmd) Execute(args []string) error {
	s, err := openStore(false)
	if err != nil {
		return err
	}
	defer s.Close()

	d, err := c.load(s)
	if err != nil {
		return err
	}
	account := d.GetNewAccount()
	if c.Account >= 0 {
		account = uint32(c.Account)
	}

	cp, err := d.AddCopayer(account)
	if identity.IsError(err, identity.ErrLocked) {
		cp, err = addUnlocked(d, account)
	}
	if err != nil {
		return err
	}
	if err := s.Put(d); err != nil {
		return err
	}

	log.Infof("Added copayer %s for account %d", cp.CopayerID, account)
	return printJSON(cp)
}

// addUnlocked adds the copayer of account to an encrypted device, which
// needs the private key for accounts other than the first.  The device is
// encrypted again with the same passphrase afterwards.
func addUnlocked(d *identity.Device, account uint32) (*identity.Copayer, error) {
	pass, err := prompt.Unlock(stdin)
	if err != nil {
		return nil, err
	}
	defer zero.Bytes(pass)

	if err := d.DecryptPrivateKey(pass); err != nil {
		return nil, err
	}
	cp, err := d.AddCopayer(account)
	if encErr := d.EncryptPrivateKey(pass, nil); encErr != nil {
		return nil, encErr
	}
	return cp, err
}

type walletCmd struct {
	deviceOpt
	Account     uint32   `long:"account" description:"Account of the copayer"`
	WalletID    string   `long:"walletid" required:"true" description:"Id of the wallet"`
	WalletName  string   `long:"walletname" description:"Name of the wallet"`
	CopayerName string   `long:"copayername" description:"Name of this copayer"`
	M           int      `short:"m" long:"required" default:"1" description:"Number of signatures needed to spend"`
	XPubKeys    []string `long:"xpub" description:"Extended public key of a participant in ring order; repeat for every participant including this one"`
}

func (c *walletCmd) Execute(args []string) error {
	s, err := openStore(false)
	if err != nil {
		return err
	}
	defer s.Close()

	d, err := c.load(s)
	if err != nil {
		return err
	}
	cp, err := d.GetCopayer(c.Account)
	if err != nil {
		return err
	}

	n := len(c.XPubKeys)
	if n == 0 {
		n = 1
	}
	err = cp.AddWalletInfo(c.WalletID, c.WalletName, c.M, n,
		c.CopayerName)
	if err != nil {
		return err
	}

	if len(c.XPubKeys) > 0 {
		ring := make([]addrdef.PubKeyRingEntry, len(c.XPubKeys))
		own := false
		for i, xpub := range c.XPubKeys {
			ring[i] = addrdef.PubKeyRingEntry{XPubKey: xpub}
			if xpub == cp.XPubKey {
				ring[i].RequestPubKey = cp.RequestPubKey
				ring[i].DeviceID = cp.DeviceID
				ring[i].Account = cp.Account
				ring[i].CopayerName = cp.CopayerName
				own = true
			}
		}
		if !own {
			return fmt.Errorf("the extended public key %s of account "+
				"%d is not among the participants", cp.XPubKey,
				cp.Account)
		}
		cp.AddPublicKeyRing(ring)
	}

	if err := s.Put(d); err != nil {
		return err
	}
	log.Infof("Recorded %d-of-%d wallet %s for account %d", cp.M, cp.N,
		cp.WalletID, cp.Account)
	return printJSON(summarize(d))
}

type addressCmd struct {
	deviceOpt
	Account uint32 `long:"account" description:"Account of the copayer"`
	Path    string `long:"path" default:"m/0/0" description:"Derivation path of the address below the wallet keys"`
	Expect  string `long:"expect" description:"Address reported by the wallet service, checked against the local derivation"`
}

func (c *addressCmd) Execute(args []string) error {
	s, err := openStore(false)
	if err != nil {
		return err
	}
	defer s.Close()

	d, err := c.load(s)
	if err != nil {
		return err
	}
	cp, err := d.GetCopayer(c.Account)
	if err != nil {
		return err
	}

	v := verifier.New()
	if err := v.SelfTest(); err != nil {
		return err
	}
	if c.Expect != "" {
		reported := &wsjson.Address{
			Address:  c.Expect,
			WalletID: cp.WalletID,
			Path:     c.Path,
		}
		if !v.CheckAddress(cp, reported) {
			return verifier.Compromised(verifier.CheckAddressName)
		}
	}

	def, err := cp.DeriveAddress(c.Path)
	if err != nil {
		return err
	}
	return printJSON(def)
}
