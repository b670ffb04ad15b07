// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package msgsign implements the hash-then-sign scheme used to authenticate
// messages exchanged with the wallet service.
//
// Messages are hashed with double SHA-256 and the digest is byte reversed
// before it is signed.  Signatures are deterministic (RFC6979), carry a
// canonical low S value and travel hex encoded in DER form.
package msgsign

import (
	"encoding/hex"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

var (
	// ErrInvalidSignature is returned when a signature cannot be decoded.
	ErrInvalidSignature = errors.New("invalid signature encoding")

	// ErrInvalidPubKey is returned when a public key cannot be decoded.
	ErrInvalidPubKey = errors.New("invalid public key encoding")
)

// HashMessage returns the byte reversed double SHA-256 of msg.
func HashMessage(msg []byte) []byte {
	hash := chainhash.DoubleHashB(msg)
	for i, j := 0, len(hash)-1; i < j; i, j = i+1, j-1 {
		hash[i], hash[j] = hash[j], hash[i]
	}
	return hash
}

// Sign signs msg with priv and returns the DER encoded signature.
func Sign(msg []byte, priv *btcec.PrivateKey) []byte {
	return ecdsa.Sign(priv, HashMessage(msg)).Serialize()
}

// SignMessage signs msg with priv and returns the hex DER signature.
func SignMessage(msg string, priv *btcec.PrivateKey) string {
	return hex.EncodeToString(Sign([]byte(msg), priv))
}

// Verify reports whether sig is a valid DER signature of msg by pub.
func Verify(msg, sig []byte, pub *btcec.PublicKey) bool {
	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	return parsed.Verify(HashMessage(msg), pub)
}

// VerifyMessage checks a hex DER signature of msg against a hex encoded
// public key.  Malformed input verifies as false.
func VerifyMessage(msg, sigHex, pubKeyHex string) bool {
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false
	}
	pub, err := ParsePubKey(pubKeyHex)
	if err != nil {
		return false
	}
	return Verify([]byte(msg), sig, pub)
}

// ParsePubKey decodes a hex encoded compressed or uncompressed public key.
func ParsePubKey(pubKeyHex string) (*btcec.PublicKey, error) {
	b, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return nil, ErrInvalidPubKey
	}
	pub, err := btcec.ParsePubKey(b)
	if err != nil {
		return nil, ErrInvalidPubKey
	}
	return pub, nil
}

// ParseSignature decodes a hex DER signature.
func ParseSignature(sigHex string) (*ecdsa.Signature, error) {
	b, err := hex.DecodeString(sigHex)
	if err != nil {
		return nil, ErrInvalidSignature
	}
	sig, err := ecdsa.ParseDERSignature(b)
	if err != nil {
		return nil, ErrInvalidSignature
	}
	return sig, nil
}
