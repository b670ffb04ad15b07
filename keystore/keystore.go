// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keystore

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/mswallet/internal/zero"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// The fixed derivation paths.  DeviceKeyPath, RequestKeyPath and
// TxProposalKeyPath are rooted at the master key; RequestKeyAuthPath is
// relative to an account's base path.
const (
	DeviceKeyPath      = "m/1'"
	RequestKeyPath     = "m/1'/0"
	TxProposalKeyPath  = "m/1'/1"
	RequestKeyAuthPath = "m/2"
)

const (
	// requestKeyLabel and personalKeyLabel separate the keys derived from
	// an entropy source.
	requestKeyLabel  = "reqPrivKey"
	personalKeyLabel = "personalKey"

	// requestKeySize is the size of a private scalar.
	requestKeySize = 32

	// PersonalKeySize is the size of the symmetric key used for private
	// data.
	PersonalKeySize = 16

	// MinExternalEntropyBytes is the minimum amount of externally
	// supplied entropy accepted for watch-only setups (112 bits).
	MinExternalEntropyBytes = 14

	// MaxAccountNum is the maximum allowed account number.  Accounts are
	// hardened children.
	MaxAccountNum = hdkeychain.HardenedKeyStart - 1
)

// NewMaster creates a master extended private key for the network from a
// seed.
func NewMaster(seed []byte, net Network) (*hdkeychain.ExtendedKey, error) {
	key, err := hdkeychain.NewMaster(seed, net.Params())
	if err != nil {
		return nil, newError(ErrKeyChain, "unable to create master key", err)
	}
	return key, nil
}

// ParseExtendedKey decodes an extended key and checks it was encoded for
// the expected network.
func ParseExtendedKey(s string, net Network) (*hdkeychain.ExtendedKey, error) {
	key, err := hdkeychain.NewKeyFromString(s)
	if err != nil {
		return nil, newError(ErrKeyChain, "invalid extended key", err)
	}
	if !key.IsForNet(net.Params()) {
		str := fmt.Sprintf("extended key is not for network %s", net)
		return nil, newError(ErrNetworkMismatch, str, nil)
	}
	return key, nil
}

// DeriveChild derives the descendant of key along path.  Hardened steps
// require a private key.
func DeriveChild(key *hdkeychain.ExtendedKey,
	path string) (*hdkeychain.ExtendedKey, error) {

	p, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	return DerivePath(key, p)
}

// DerivePath is DeriveChild for an already parsed path.
func DerivePath(key *hdkeychain.ExtendedKey,
	p Path) (*hdkeychain.ExtendedKey, error) {

	child := key
	for _, idx := range p {
		next, err := child.Derive(idx)
		if err != nil {
			str := fmt.Sprintf("unable to derive child %s", p)
			return nil, newError(ErrKeyChain, str, err)
		}
		child = next
	}
	return child, nil
}

// BaseAddressDerivationPath returns the path of the key an account shares
// with the other participants of a wallet.
//
// The hierarchy is m/45' for BIP45, which is account independent, and
// m/<purpose>'/<coin_type>'/<account>' otherwise.
func BaseAddressDerivationPath(strategy DerivationStrategy, net Network,
	account uint32) (string, error) {

	if account > MaxAccountNum {
		str := fmt.Sprintf("account %d is out of range", account)
		return "", newError(ErrInvalidAccount, str, nil)
	}

	switch strategy {
	case BIP45:
		return "m/45'", nil
	case BIP44, BIP48:
		return fmt.Sprintf("m/%d'/%d'/%d'", strategy.purpose(),
			net.CoinType(), account), nil
	}

	str := fmt.Sprintf("invalid derivation strategy %q", strategy)
	return "", newError(ErrInvalidDerivationStrategy, str, nil)
}

// DeriveAccountKey derives the extended private key at the account's base
// path.
func DeriveAccountKey(master *hdkeychain.ExtendedKey,
	strategy DerivationStrategy, net Network,
	account uint32) (*hdkeychain.ExtendedKey, error) {

	path, err := BaseAddressDerivationPath(strategy, net, account)
	if err != nil {
		return nil, err
	}
	return DeriveChild(master, path)
}

// derivePrivKey derives the EC private key at path from the master key.
func derivePrivKey(master *hdkeychain.ExtendedKey,
	path string) (*btcec.PrivateKey, error) {

	child, err := DeriveChild(master, path)
	if err != nil {
		return nil, err
	}
	priv, err := child.ECPrivKey()
	if err != nil {
		str := fmt.Sprintf("no private key at %s", path)
		return nil, newError(ErrKeyChain, str, err)
	}
	return priv, nil
}

// DeriveDeviceKey derives the key identifying the device.
func DeriveDeviceKey(master *hdkeychain.ExtendedKey) (*btcec.PrivateKey, error) {
	return derivePrivKey(master, DeviceKeyPath)
}

// DeriveTxProposalKey derives the key the device signs proposals it creates
// with.
func DeriveTxProposalKey(master *hdkeychain.ExtendedKey) (*btcec.PrivateKey, error) {
	return derivePrivKey(master, TxProposalKeyPath)
}

// DeriveRequestKeyAuth derives the key that authorizes additional request
// keys of an account.  accountKey is the private key at the account's base
// path.
func DeriveRequestKeyAuth(accountKey *hdkeychain.ExtendedKey) (*btcec.PrivateKey, error) {
	return derivePrivKey(accountKey, RequestKeyAuthPath)
}

// DeriveRequestKeyPair returns the key the device authenticates requests to
// the wallet service with.  When master is a private key it is derived along
// RequestKeyPath, otherwise it is derived from the entropy source.
func DeriveRequestKeyPair(master *hdkeychain.ExtendedKey,
	entropySource string) (*btcec.PrivateKey, error) {

	if master != nil && master.IsPrivate() {
		return derivePrivKey(master, RequestKeyPath)
	}
	return RequestKeyFromEntropy(entropySource)
}

// RequestKeyFromEntropy derives the request key of a device without private
// key material from its entropy source.
func RequestKeyFromEntropy(entropySource string) (*btcec.PrivateKey, error) {
	seed, err := HashFromEntropy(requestKeyLabel, entropySource,
		requestKeySize)
	if err != nil {
		return nil, err
	}
	defer zero.Bytes(seed)

	var scalar secp256k1.ModNScalar
	if overflow := scalar.SetByteSlice(seed); overflow || scalar.IsZero() {
		return nil, newError(ErrInvalidPrivateKey,
			"entropy source yields an invalid request key", nil)
	}
	return secp256k1.NewPrivateKey(&scalar), nil
}

// DerivePersonalEncryptingKey returns the base64 encoded symmetric key for
// data that is never shared with other participants.
func DerivePersonalEncryptingKey(entropySource string) (string, error) {
	key, err := HashFromEntropy(personalKeyLabel, entropySource,
		PersonalKeySize)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// HashFromEntropy returns HMAC-SHA256 of the decoded entropy source keyed by
// label, truncated to length bytes.
func HashFromEntropy(label, entropySource string, length int) ([]byte, error) {
	if label == "" {
		return nil, newError(ErrInsufficientEntropy, "empty label", nil)
	}
	entropy, err := hex.DecodeString(entropySource)
	if err != nil || len(entropy) == 0 {
		return nil, newError(ErrInsufficientEntropy,
			"entropy source is not hex encoded", err)
	}
	defer zero.Bytes(entropy)

	mac := hmac.New(sha256.New, []byte(label))
	mac.Write(entropy)
	sum := mac.Sum(nil)
	if length > len(sum) {
		length = len(sum)
	}
	return sum[:length], nil
}

// EntropySourceFromKey returns the entropy source of a device holding a
// master private key: the hex SHA-256 of its request private key.
func EntropySourceFromKey(requestKey *btcec.PrivateKey) string {
	b := requestKey.Serialize()
	defer zero.Bytes(b)
	return hex.EncodeToString(chainhash.HashB(b))
}

// EntropySourceFromExternal validates externally supplied hex entropy and
// returns the entropy source derived from it: its hex double SHA-256, which
// is safe to disclose while the request key derived from it stays one way.
func EntropySourceFromExternal(entropyHex string) (string, error) {
	entropy, err := hex.DecodeString(entropyHex)
	if err != nil {
		return "", newError(ErrInsufficientEntropy,
			"entropy is not hex encoded", err)
	}
	if len(entropy) < MinExternalEntropyBytes {
		str := fmt.Sprintf("at least %d bits of entropy are needed, "+
			"got %d", MinExternalEntropyBytes*8, len(entropy)*8)
		return "", newError(ErrInsufficientEntropy, str, nil)
	}
	return hex.EncodeToString(chainhash.DoubleHashB(entropy)), nil
}

// PubKeyB64 returns the base64 encoding of the compressed public key.
func PubKeyB64(pub *btcec.PublicKey) string {
	return base64.StdEncoding.EncodeToString(pub.SerializeCompressed())
}

// PubKeyHex returns the hex encoding of the compressed public key.
func PubKeyHex(pub *btcec.PublicKey) string {
	return hex.EncodeToString(pub.SerializeCompressed())
}

// ParsePubKeyHex decodes a hex encoded public key.
func ParsePubKeyHex(s string) (*btcec.PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, newError(ErrKeyChain, "public key is not hex", err)
	}
	pub, err := btcec.ParsePubKey(b)
	if err != nil {
		return nil, newError(ErrKeyChain, "invalid public key", err)
	}
	return pub, nil
}

// ParsePubKeyB64 decodes a base64 encoded public key.
func ParsePubKeyB64(s string) (*btcec.PublicKey, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, newError(ErrKeyChain, "public key is not base64", err)
	}
	pub, err := btcec.ParsePubKey(b)
	if err != nil {
		return nil, newError(ErrKeyChain, "invalid public key", err)
	}
	return pub, nil
}

// PrivKeyHex returns the hex encoding of a private scalar.
func PrivKeyHex(priv *btcec.PrivateKey) string {
	return hex.EncodeToString(priv.Serialize())
}

// ParsePrivKeyHex decodes a hex encoded 32 byte private scalar.
func ParsePrivKeyHex(s string) (*btcec.PrivateKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != requestKeySize {
		return nil, newError(ErrInvalidPrivateKey,
			"private key must be 32 hex encoded bytes", err)
	}
	defer zero.Bytes(b)

	var scalar secp256k1.ModNScalar
	if overflow := scalar.SetByteSlice(b); overflow || scalar.IsZero() {
		return nil, newError(ErrInvalidPrivateKey,
			"private key is out of range", nil)
	}
	return secp256k1.NewPrivateKey(&scalar), nil
}
