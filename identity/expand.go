// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package identity

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/mswallet/keystore"
	"github.com/btcsuite/mswallet/objecthash"
)

// Params are the tags every device is created with.
type Params struct {
	Coin     keystore.Coin
	Network  keystore.Network
	Strategy keystore.DerivationStrategy
}

// validate checks every tag is known.
func (p Params) validate() error {
	if _, err := keystore.ParseCoin(string(p.Coin)); err != nil {
		return newError(ErrInvalidInput, "invalid coin", err)
	}
	if _, err := keystore.ParseNetwork(string(p.Network)); err != nil {
		return newError(ErrInvalidInput, "invalid network", err)
	}
	_, err := keystore.ParseDerivationStrategy(string(p.Strategy))
	if err != nil {
		return newError(ErrInvalidInput, "invalid derivation strategy",
			err)
	}
	return nil
}

// Material is the master key material a device is expanded from.  Either
// XPrivKey is set, or XPubKey, DevicePubKey and EntropySource are set for a
// watch-only device.
type Material struct {
	Params

	// XPrivKey is the master extended private key.
	XPrivKey string

	// XPubKey is the extended public key at the base path of account 0
	// of a watch-only device.
	XPubKey string

	// DevicePubKey is the hex compressed device public key of a
	// watch-only device.
	DevicePubKey string

	// EntropySource is the hex entropy source of a watch-only device, as
	// returned by keystore.EntropySourceFromExternal.
	EntropySource string
}

// Keys are the identifiers and device keys expanded from Material.
type Keys struct {
	XPubKey               string
	RequestPrivKey        string
	RequestPubKey         string
	PersonalEncryptingKey string
	EntropySource         string
	DeviceID              string
	DevicePubKey          string
}

// Expand derives every public identifier and device key from the master
// material.  It has no side effects and returns identical Keys for
// identical Material.
func Expand(m *Material) (*Keys, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	if m.XPrivKey != "" {
		return expandPrivate(m)
	}
	return expandWatchOnly(m)
}

func expandPrivate(m *Material) (*Keys, error) {
	master, err := keystore.ParseExtendedKey(m.XPrivKey, m.Network)
	if err != nil {
		return nil, newError(ErrInvalidInput, "invalid master key", err)
	}
	if !master.IsPrivate() {
		return nil, newError(ErrInvalidInput,
			"master key is not an extended private key", nil)
	}
	if master.Depth() != 0 {
		return nil, newError(ErrInvalidInput,
			"extended private key is not a master key", nil)
	}

	acct, err := keystore.DeriveAccountKey(master, m.Strategy, m.Network, 0)
	if err != nil {
		return nil, err
	}
	xpub, err := acct.Neuter()
	if err != nil {
		return nil, newError(ErrCrypto, "unable to neuter account key", err)
	}

	reqKey, err := keystore.DeriveRequestKeyPair(master, "")
	if err != nil {
		return nil, err
	}
	entropySource := keystore.EntropySourceFromKey(reqKey)

	deviceKey, err := keystore.DeriveDeviceKey(master)
	if err != nil {
		return nil, err
	}

	return finishKeys(xpub.String(), reqKey, entropySource,
		deviceKey.PubKey())
}

func expandWatchOnly(m *Material) (*Keys, error) {
	if m.XPubKey == "" {
		return nil, newError(ErrInvalidInput,
			"an extended private or public key is required", nil)
	}
	xpub, err := keystore.ParseExtendedKey(m.XPubKey, m.Network)
	if err != nil {
		return nil, newError(ErrInvalidInput, "invalid extended public key",
			err)
	}
	if xpub.IsPrivate() {
		return nil, newError(ErrInvalidInput,
			"watch-only device got an extended private key", nil)
	}
	if err := checkAccountDepth(xpub, m.Strategy); err != nil {
		return nil, err
	}

	devicePub, err := keystore.ParsePubKeyHex(m.DevicePubKey)
	if err != nil {
		return nil, newError(ErrInvalidInput, "invalid device public key",
			err)
	}

	reqKey, err := keystore.RequestKeyFromEntropy(m.EntropySource)
	if err != nil {
		return nil, newError(ErrInvalidInput, "invalid entropy source",
			err)
	}

	return finishKeys(xpub.String(), reqKey, m.EntropySource, devicePub)
}

// checkAccountDepth ensures an account key sits at the depth of the base
// path of the strategy.
func checkAccountDepth(key *hdkeychain.ExtendedKey,
	strategy keystore.DerivationStrategy) error {

	want := uint8(3)
	if strategy == keystore.BIP45 {
		want = 1
	}
	if key.Depth() != want {
		str := fmt.Sprintf("%s account key must have depth %d, got %d",
			strategy, want, key.Depth())
		return newError(ErrInvalidInput, str, nil)
	}
	return nil
}

func finishKeys(xpub string, reqKey *btcec.PrivateKey, entropySource string,
	devicePub *btcec.PublicKey) (*Keys, error) {

	personalKey, err := keystore.DerivePersonalEncryptingKey(entropySource)
	if err != nil {
		return nil, err
	}

	devicePubB64 := keystore.PubKeyB64(devicePub)
	deviceID, err := objecthash.DeviceAddress(devicePubB64)
	if err != nil {
		return nil, newError(ErrCrypto, "unable to compute device id", err)
	}

	return &Keys{
		XPubKey:               xpub,
		RequestPrivKey:        hex.EncodeToString(reqKey.Serialize()),
		RequestPubKey:         keystore.PubKeyHex(reqKey.PubKey()),
		PersonalEncryptingKey: personalKey,
		EntropySource:         entropySource,
		DeviceID:              deviceID,
		DevicePubKey:          devicePubB64,
	}, nil
}
