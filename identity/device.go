// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package identity holds the key material of a device and of the copayers it
// runs, one per wallet account.
//
// A Device owns the master key.  Everything else it exports is derived from
// that key once, at creation, by Expand.  Encrypting a device wraps the
// master key and mnemonic under a password without touching any derived
// identifier.
package identity

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/mswallet/internal/zero"
	"github.com/btcsuite/mswallet/keystore"
	"github.com/btcsuite/mswallet/snacl"
	"github.com/tyler-smith/go-bip39"
)

// ScryptOptions is used to hold the scrypt parameters needed when deriving
// the key that encrypts the private material.
type ScryptOptions struct {
	N, R, P int
}

// DefaultScryptOptions is the default options used with scrypt.
var DefaultScryptOptions = ScryptOptions{
	N: snacl.DefaultN,
	R: snacl.DefaultR,
	P: snacl.DefaultP,
}

// FastScryptOptions are cheap scrypt parameters for tests.
var FastScryptOptions = ScryptOptions{
	N: 16,
	R: 8,
	P: 1,
}

// mnemonicEntropyBits is the entropy of generated mnemonics (12 words).
const mnemonicEntropyBits = 128

// Device is the root identity of a wallet client.  The JSON form of a Device
// is its export format.
type Device struct {
	Coin               keystore.Coin               `json:"coin"`
	Network            keystore.Network            `json:"network"`
	DerivationStrategy keystore.DerivationStrategy `json:"derivationStrategy"`

	XPrivKey              string `json:"xPrivKey,omitempty"`
	XPrivKeyEncrypted     string `json:"xPrivKeyEncrypted,omitempty"`
	XPubKey               string `json:"xPubKey"`
	Mnemonic              string `json:"mnemonic,omitempty"`
	MnemonicEncrypted     string `json:"mnemonicEncrypted,omitempty"`
	MnemonicHasPassphrase bool   `json:"mnemonicHasPassphrase"`

	RequestPrivKey        string `json:"requestPrivKey"`
	RequestPubKey         string `json:"requestPubKey"`
	PersonalEncryptingKey string `json:"personalEncryptingKey"`
	EntropySource         string `json:"entropySource"`
	DeviceID              string `json:"deviceId"`
	DevicePubKey          string `json:"devicePubKey"`

	Copayers []*Copayer `json:"copayers"`
}

// PrivateKeys is the private material of a device.
type PrivateKeys struct {
	XPrivKey string
	Mnemonic string
}

// newDevice expands m and applies the result to a fresh device.
func newDevice(m *Material, mnemonic string, hasPassphrase bool) (*Device, error) {
	keys, err := Expand(m)
	if err != nil {
		return nil, err
	}
	d := &Device{
		Coin:                  m.Coin,
		Network:               m.Network,
		DerivationStrategy:    m.Strategy,
		XPrivKey:              m.XPrivKey,
		Mnemonic:              mnemonic,
		MnemonicHasPassphrase: hasPassphrase,
	}
	d.Apply(keys)

	log.Debugf("Created device %s on %s (%s)", d.DeviceID, d.Network,
		d.DerivationStrategy)
	return d, nil
}

// Apply sets the derived fields of the device.
func (d *Device) Apply(k *Keys) {
	d.XPubKey = k.XPubKey
	d.RequestPrivKey = k.RequestPrivKey
	d.RequestPubKey = k.RequestPubKey
	d.PersonalEncryptingKey = k.PersonalEncryptingKey
	d.EntropySource = k.EntropySource
	d.DeviceID = k.DeviceID
	d.DevicePubKey = k.DevicePubKey
}

// New creates a device with a random master key and no mnemonic.
func New(params Params) (*Device, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	seed, err := hdkeychain.GenerateSeed(hdkeychain.RecommendedSeedLen)
	if err != nil {
		return nil, newError(ErrCrypto, "unable to generate seed", err)
	}
	defer zero.Bytes(seed)

	master, err := keystore.NewMaster(seed, params.Network)
	if err != nil {
		return nil, err
	}
	return newDevice(&Material{Params: params, XPrivKey: master.String()},
		"", false)
}

// NewWithMnemonic creates a device from a freshly generated mnemonic.
func NewWithMnemonic(params Params, passphrase string) (*Device, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	entropy, err := bip39.NewEntropy(mnemonicEntropyBits)
	if err != nil {
		return nil, newError(ErrCrypto, "unable to generate entropy", err)
	}
	defer zero.Bytes(entropy)

	words, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, newError(ErrMnemonic, "unable to create mnemonic", err)
	}
	return FromMnemonic(params, words, passphrase)
}

// FromMnemonic creates the device of a mnemonic and optional passphrase.  A
// different passphrase yields a different, equally valid, device.
func FromMnemonic(params Params, words, passphrase string) (*Device, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	seed, err := bip39.NewSeedWithErrorChecking(words, passphrase)
	if err != nil {
		return nil, newError(ErrMnemonic, "invalid mnemonic", err)
	}
	defer zero.Bytes(seed)

	master, err := keystore.NewMaster(seed, params.Network)
	if err != nil {
		return nil, err
	}
	return newDevice(&Material{Params: params, XPrivKey: master.String()},
		words, passphrase != "")
}

// FromExtendedPrivateKey creates the device of a master extended private
// key.  The key must belong to params.Network.
func FromExtendedPrivateKey(params Params, xPrivKey string) (*Device, error) {
	return newDevice(&Material{Params: params, XPrivKey: xPrivKey}, "",
		false)
}

// FromExtendedPublicKey creates a watch-only device.  xPubKey is the
// extended public key at the base path of account 0, devicePubKey the hex
// public key of the hardware device key and entropyHex at least 112 bits of
// entropy the hardware derives deterministically from its private key.
func FromExtendedPublicKey(params Params, xPubKey, devicePubKey,
	entropyHex string) (*Device, error) {

	if err := params.validate(); err != nil {
		return nil, err
	}
	entropySource, err := keystore.EntropySourceFromExternal(entropyHex)
	if err != nil {
		return nil, newError(ErrInvalidInput, "insufficient entropy", err)
	}
	return newDevice(&Material{
		Params:        params,
		XPubKey:       xPubKey,
		DevicePubKey:  devicePubKey,
		EntropySource: entropySource,
	}, "", false)
}

// params returns the tags of the device.
func (d *Device) params() Params {
	return Params{
		Coin:     d.Coin,
		Network:  d.Network,
		Strategy: d.DerivationStrategy,
	}
}

// IsWatchOnly returns whether the device never held a private key.
func (d *Device) IsWatchOnly() bool {
	return d.XPrivKey == "" && d.XPrivKeyEncrypted == ""
}

// IsPrivKeyEncrypted returns whether the private material is encrypted.
func (d *Device) IsPrivKeyEncrypted() bool {
	return d.XPrivKeyEncrypted != ""
}

// CanSign returns whether the device holds a private key, encrypted or not.
func (d *Device) CanSign() bool {
	return !d.IsWatchOnly()
}

// seal encrypts s under sk and returns the base64 blob.
func seal(sk *snacl.SecretKey, s string) (string, error) {
	if s == "" {
		return "", nil
	}
	plain := []byte(s)
	defer zero.Bytes(plain)

	blob, err := sk.Seal(plain)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(blob), nil
}

// unseal decrypts a base64 blob produced by seal.  Every failure is
// reported the same way.
func unseal(blobB64 string, password []byte) (string, error) {
	if blobB64 == "" {
		return "", nil
	}
	fail := newError(ErrDecryptionFailed, "could not decrypt private key",
		nil)

	sealed, err := base64.StdEncoding.DecodeString(blobB64)
	if err != nil {
		return "", fail
	}
	params, blob, err := snacl.SplitSealed(sealed)
	if err != nil {
		return "", fail
	}

	var sk snacl.SecretKey
	if err := sk.Unmarshal(params); err != nil {
		return "", fail
	}
	if err := sk.DeriveKey(&password); err != nil {
		return "", fail
	}
	defer sk.Zero()

	plain, err := sk.Decrypt(blob)
	if err != nil {
		return "", fail
	}
	defer zero.Bytes(plain)
	return string(plain), nil
}

// EncryptPrivateKey encrypts the master key and the mnemonic under a key
// derived from password and clears their plaintext.
func (d *Device) EncryptPrivateKey(password []byte, opts *ScryptOptions) error {
	if d.IsWatchOnly() {
		return newError(ErrWatchingOnly, "nothing to encrypt", nil)
	}
	if d.IsPrivKeyEncrypted() {
		return newError(ErrAlreadyEncrypted, "private key already encrypted",
			nil)
	}
	if len(password) == 0 {
		return newError(ErrInvalidInput, "empty password", nil)
	}
	if opts == nil {
		opts = &DefaultScryptOptions
	}

	sk, err := snacl.NewSecretKey(&password, opts.N, opts.R, opts.P)
	if err != nil {
		return newError(ErrCrypto, "unable to derive encryption key", err)
	}
	defer sk.Zero()

	xPrivEnc, err := seal(sk, d.XPrivKey)
	if err != nil {
		return newError(ErrCrypto, "unable to encrypt private key", err)
	}
	mnemonicEnc, err := seal(sk, d.Mnemonic)
	if err != nil {
		return newError(ErrCrypto, "unable to encrypt mnemonic", err)
	}

	d.XPrivKeyEncrypted = xPrivEnc
	d.MnemonicEncrypted = mnemonicEnc
	d.XPrivKey = ""
	d.Mnemonic = ""
	return nil
}

// decryptKeys returns the plaintext private material without modifying
// the device.
func (d *Device) decryptKeys(password []byte) (*PrivateKeys, error) {
	xPriv, err := unseal(d.XPrivKeyEncrypted, password)
	if err != nil {
		return nil, err
	}
	mnemonic, err := unseal(d.MnemonicEncrypted, password)
	if err != nil {
		return nil, err
	}
	return &PrivateKeys{XPrivKey: xPriv, Mnemonic: mnemonic}, nil
}

// DecryptPrivateKey restores the plaintext master key and mnemonic.  On a
// wrong password the device is left untouched.
func (d *Device) DecryptPrivateKey(password []byte) error {
	if !d.IsPrivKeyEncrypted() {
		return newError(ErrNotEncrypted, "private key is not encrypted", nil)
	}
	keys, err := d.decryptKeys(password)
	if err != nil {
		return err
	}

	d.XPrivKey = keys.XPrivKey
	d.Mnemonic = keys.Mnemonic
	d.XPrivKeyEncrypted = ""
	d.MnemonicEncrypted = ""
	return nil
}

// GetKeys returns the private material, decrypting it with password when
// it is encrypted.  The device is never modified.
func (d *Device) GetKeys(password []byte) (*PrivateKeys, error) {
	if d.IsWatchOnly() {
		return nil, newError(ErrWatchingOnly, "device has no private key",
			nil)
	}
	if !d.IsPrivKeyEncrypted() {
		return &PrivateKeys{XPrivKey: d.XPrivKey, Mnemonic: d.Mnemonic}, nil
	}
	return d.decryptKeys(password)
}

// MasterKey returns the master extended private key.  password is only
// used when the key is encrypted.
func (d *Device) MasterKey(password []byte) (*hdkeychain.ExtendedKey, error) {
	keys, err := d.GetKeys(password)
	if err != nil {
		return nil, err
	}
	return keystore.ParseExtendedKey(keys.XPrivKey, d.Network)
}

// AccountKey returns the extended private key at the base path of account.
func (d *Device) AccountKey(account uint32,
	password []byte) (*hdkeychain.ExtendedKey, error) {

	master, err := d.MasterKey(password)
	if err != nil {
		return nil, err
	}
	return keystore.DeriveAccountKey(master, d.DerivationStrategy,
		d.Network, account)
}

// TxProposalKey returns the key proposals created by the device are signed
// with.
func (d *Device) TxProposalKey(password []byte) (*btcec.PrivateKey, error) {
	master, err := d.MasterKey(password)
	if err != nil {
		return nil, err
	}
	return keystore.DeriveTxProposalKey(master)
}

// RequestKeyAuth returns the key that authorizes new request keys for the
// copayer of account.
func (d *Device) RequestKeyAuth(account uint32,
	password []byte) (*btcec.PrivateKey, error) {

	acct, err := d.AccountKey(account, password)
	if err != nil {
		return nil, err
	}
	return keystore.DeriveRequestKeyAuth(acct)
}

// RequestKey returns the key requests to the wallet service are signed
// with.
func (d *Device) RequestKey() (*btcec.PrivateKey, error) {
	return keystore.ParsePrivKeyHex(d.RequestPrivKey)
}

// DeriveCopayer returns the copayer of account without adding it to the
// device.
func (d *Device) DeriveCopayer(account uint32) (*Copayer, error) {
	if d.DerivationStrategy == keystore.BIP45 && account != 0 {
		return nil, newError(ErrInvalidInput,
			"BIP45 devices only have account 0", nil)
	}

	var xpub string
	switch {
	case account == 0:
		xpub = d.XPubKey

	case d.IsWatchOnly():
		str := fmt.Sprintf("watch-only device cannot derive account %d",
			account)
		return nil, newError(ErrWatchingOnly, str, nil)

	case d.IsPrivKeyEncrypted():
		return nil, newError(ErrLocked,
			"decrypt the private key to add an account", nil)

	default:
		acct, err := d.AccountKey(account, nil)
		if err != nil {
			return nil, err
		}
		pub, err := acct.Neuter()
		if err != nil {
			return nil, newError(ErrCrypto, "unable to neuter account key",
				err)
		}
		xpub = pub.String()
	}

	return newCopayer(d, account, xpub), nil
}

// AddCopayer derives the copayer of account and adds it to the device.
func (d *Device) AddCopayer(account uint32) (*Copayer, error) {
	if _, err := d.GetCopayer(account); err == nil {
		str := fmt.Sprintf("account %d already has a copayer", account)
		return nil, newError(ErrAccountExists, str, nil)
	}
	c, err := d.DeriveCopayer(account)
	if err != nil {
		return nil, err
	}
	if err := d.Attach(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Attach adds a copayer obtained from DeriveCopayer to the device.
func (d *Device) Attach(c *Copayer) error {
	if c.DeviceID != d.DeviceID {
		return newError(ErrInvalidInput,
			"copayer belongs to another device", nil)
	}
	if _, err := d.GetCopayer(c.Account); err == nil {
		str := fmt.Sprintf("account %d already has a copayer", c.Account)
		return newError(ErrAccountExists, str, nil)
	}
	d.Copayers = append(d.Copayers, c)

	log.Debugf("Added copayer %s for account %d", c.CopayerID, c.Account)
	return nil
}

// GetNewAccount returns the account a new copayer would get: one past the
// highest existing account, or 0 when the device has none.
func (d *Device) GetNewAccount() uint32 {
	if len(d.Copayers) == 0 {
		return 0
	}
	var highest uint32
	for _, c := range d.Copayers {
		if c.Account > highest {
			highest = c.Account
		}
	}
	return highest + 1
}

// GetCopayer returns the copayer of account.
func (d *Device) GetCopayer(account uint32) (*Copayer, error) {
	for _, c := range d.Copayers {
		if c.Account == account {
			return c, nil
		}
	}
	str := fmt.Sprintf("no copayer for account %d", account)
	return nil, newError(ErrCopayerNotFound, str, nil)
}

// CopayerByWalletID returns the copayer taking part in walletID.
func (d *Device) CopayerByWalletID(walletID string) (*Copayer, error) {
	for _, c := range d.Copayers {
		if c.WalletID != "" && c.WalletID == walletID {
			return c, nil
		}
	}
	str := fmt.Sprintf("no copayer in wallet %s", walletID)
	return nil, newError(ErrCopayerNotFound, str, nil)
}

// Export returns the JSON form of the device.
func (d *Device) Export() ([]byte, error) {
	return json.Marshal(d)
}

// Import decodes a device exported by Export and checks its public
// identifiers are consistent with its key material.
func Import(b []byte) (*Device, error) {
	var d Device
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, newError(ErrInvalidInput, "malformed device export", err)
	}
	if err := d.params().validate(); err != nil {
		return nil, err
	}

	// A plaintext master key must expand to the stored identifiers.
	if d.XPrivKey != "" {
		keys, err := Expand(&Material{Params: d.params(),
			XPrivKey: d.XPrivKey})
		if err != nil {
			return nil, err
		}
		if keys.XPubKey != d.XPubKey || keys.DeviceID != d.DeviceID ||
			keys.RequestPubKey != d.RequestPubKey {

			return nil, newError(ErrInvalidInput,
				"exported identifiers do not match the master key", nil)
		}
	}
	if _, err := keystore.ParseExtendedKey(d.XPubKey, d.Network); err != nil {
		return nil, newError(ErrInvalidInput, "invalid extended public key",
			err)
	}
	for _, c := range d.Copayers {
		if c == nil {
			return nil, newError(ErrInvalidInput, "empty copayer", nil)
		}
	}

	log.Debugf("Imported device %s with %d copayers", d.DeviceID,
		len(d.Copayers))
	return &d, nil
}
