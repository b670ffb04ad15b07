// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package identity

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/mswallet/addrdef"
	"github.com/btcsuite/mswallet/internal/zero"
	"github.com/btcsuite/mswallet/keystore"
)

// SharedKeySize is the size of the symmetric key shared by the
// participants of a wallet.
const SharedKeySize = 16

// Copayer is a device's membership in one wallet.
type Copayer struct {
	Account            uint32                      `json:"account"`
	CopayerID          string                      `json:"copayerId"`
	XPubKey            string                      `json:"xPubKey"`
	RequestPubKey      string                      `json:"requestPubKey"`
	DeviceID           string                      `json:"deviceId"`
	Network            keystore.Network            `json:"network"`
	DerivationStrategy keystore.DerivationStrategy `json:"derivationStrategy"`

	WalletID    string              `json:"walletId,omitempty"`
	WalletName  string              `json:"walletName,omitempty"`
	CopayerName string              `json:"copayerName,omitempty"`
	M           int                 `json:"m,omitempty"`
	N           int                 `json:"n,omitempty"`
	AddressType addrdef.AddressType `json:"addressType,omitempty"`

	WalletPrivKey       string `json:"walletPrivKey,omitempty"`
	SharedEncryptingKey string `json:"sharedEncryptingKey,omitempty"`

	PublicKeyRing []addrdef.PubKeyRingEntry `json:"publicKeyRing"`
}

// CopayerIDFromXPub returns the id of the copayer owning xPubKey: the hex
// SHA-256 of the key string.
func CopayerIDFromXPub(xPubKey string) string {
	sum := sha256.Sum256([]byte(xPubKey))
	return hex.EncodeToString(sum[:])
}

// CopayerHash is the text a copayer registration is signed over.
func CopayerHash(name, xPubKey, requestPubKey string) string {
	return strings.Join([]string{name, xPubKey, requestPubKey}, "|")
}

// SharedEncryptingKey derives the base64 symmetric key of a wallet from its
// private key.
func SharedEncryptingKey(walletPrivKey *btcec.PrivateKey) string {
	b := walletPrivKey.Serialize()
	defer zero.Bytes(b)

	sum := sha256.Sum256(b)
	defer zero.Bytea32(&sum)
	return base64.StdEncoding.EncodeToString(sum[:SharedKeySize])
}

func newCopayer(d *Device, account uint32, xpub string) *Copayer {
	c := &Copayer{
		Account:            account,
		CopayerID:          CopayerIDFromXPub(xpub),
		XPubKey:            xpub,
		RequestPubKey:      d.RequestPubKey,
		DeviceID:           d.DeviceID,
		Network:            d.Network,
		DerivationStrategy: d.DerivationStrategy,
	}
	c.PublicKeyRing = []addrdef.PubKeyRingEntry{c.ownEntry()}
	return c
}

// ownEntry is the ring entry of the copayer itself.
func (c *Copayer) ownEntry() addrdef.PubKeyRingEntry {
	return addrdef.PubKeyRingEntry{
		XPubKey:       c.XPubKey,
		RequestPubKey: c.RequestPubKey,
		DeviceID:      c.DeviceID,
		Account:       c.Account,
		CopayerName:   c.CopayerName,
	}
}

// AddWalletPrivateKey sets the hex private key of the wallet and the shared
// key derived from it.
func (c *Copayer) AddWalletPrivateKey(walletPrivKey string) error {
	priv, err := keystore.ParsePrivKeyHex(walletPrivKey)
	if err != nil {
		return newError(ErrInvalidInput, "invalid wallet private key", err)
	}
	c.WalletPrivKey = walletPrivKey
	c.SharedEncryptingKey = SharedEncryptingKey(priv)
	return nil
}

// WalletPrivateKey returns the parsed wallet private key.
func (c *Copayer) WalletPrivateKey() (*btcec.PrivateKey, error) {
	if c.WalletPrivKey == "" {
		return nil, newError(ErrIncompleteWallet,
			"wallet private key not known", nil)
	}
	return keystore.ParsePrivKeyHex(c.WalletPrivKey)
}

// WalletPubKey returns the hex public key of the wallet private key.
func (c *Copayer) WalletPubKey() (string, error) {
	priv, err := c.WalletPrivateKey()
	if err != nil {
		return "", err
	}
	return keystore.PubKeyHex(priv.PubKey()), nil
}

// AddWalletInfo records the wallet the copayer was admitted to.  A single
// participant wallet has nobody else to wait for, so its ring is complete
// right away.
func (c *Copayer) AddWalletInfo(walletID, walletName string, m, n int,
	copayerName string) error {

	if walletID == "" {
		return newError(ErrInvalidInput, "empty wallet id", nil)
	}
	if n < 1 || m < 1 || m > n {
		str := fmt.Sprintf("invalid %d-of-%d wallet", m, n)
		return newError(ErrInvalidInput, str, nil)
	}

	c.WalletID = walletID
	c.WalletName = walletName
	c.M = m
	c.N = n
	c.AddressType = addrdef.ForParticipants(n)
	if copayerName != "" {
		c.CopayerName = copayerName
	}

	if n == 1 {
		c.PublicKeyRing = []addrdef.PubKeyRingEntry{c.ownEntry()}
	}
	return nil
}

// AddPublicKeyRing replaces the ring with the one reported for the wallet.
func (c *Copayer) AddPublicKeyRing(ring []addrdef.PubKeyRingEntry) {
	c.PublicKeyRing = append([]addrdef.PubKeyRingEntry(nil), ring...)
}

// HasWalletInfo returns whether the copayer joined a wallet.
func (c *Copayer) HasWalletInfo() bool {
	return c.WalletID != "" && c.M > 0 && c.N > 0
}

// IsComplete returns whether every participant of the wallet is in the
// ring.
func (c *Copayer) IsComplete() bool {
	return c.M > 0 && c.N > 0 && len(c.PublicKeyRing) == c.N
}

// BaseAddressDerivationPath returns the path of the copayer's extended
// public key below the master key.
func (c *Copayer) BaseAddressDerivationPath() (string, error) {
	return keystore.BaseAddressDerivationPath(c.DerivationStrategy,
		c.Network, c.Account)
}

// DeriveAddress computes the wallet address at path from the copayer's
// ring.
func (c *Copayer) DeriveAddress(path string) (*addrdef.AddressDefinition, error) {
	if !c.IsComplete() {
		return nil, newError(ErrIncompleteWallet,
			"public key ring is incomplete", nil)
	}
	return addrdef.DeriveAddress(c.WalletID, c.AddressType,
		c.PublicKeyRing, path, c.M)
}
