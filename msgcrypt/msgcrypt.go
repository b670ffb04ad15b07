// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package msgcrypt encrypts short texts, such as proposal messages and
// copayer names, under the symmetric keys a wallet shares among its
// participants.
//
// The envelope is a JSON object {"v":1,"iv":<nonce>,"ct":<ciphertext>} with
// base64 fields.  The 16 byte wallet keys are stretched to a 32 byte
// XChaCha20-Poly1305 key with HKDF-SHA256.
package msgcrypt

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/btcsuite/mswallet/internal/zero"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	// Version is the envelope version written by Encrypt.
	Version = 1

	// NonceSize is the length of an XChaCha20-Poly1305 nonce, 24 bytes.
	NonceSize = chacha20poly1305.NonceSizeX

	// CannotDecrypt is shown in place of a text that is encrypted under a
	// key the caller does not hold.
	CannotDecrypt = "<ECANNOTDECRYPT>"

	hkdfInfo = "mswallet message key"
)

var (
	// ErrNotEncrypted is returned by Decrypt when the input is not an
	// envelope.
	ErrNotEncrypted = errors.New("text is not encrypted")

	// ErrDecryptionFailed is returned when an envelope does not open under
	// the key.
	ErrDecryptionFailed = errors.New("could not decrypt message")

	// ErrInvalidKey is returned for keys that are not base64 or empty.
	ErrInvalidKey = errors.New("invalid encryption key")
)

var prng = rand.Reader

// envelope is the serialized form of an encrypted text.
type envelope struct {
	V  int    `json:"v"`
	IV string `json:"iv"`
	CT string `json:"ct"`
}

// aeadFromKey derives the cipher for a base64 encoded wallet key.
func aeadFromKey(keyB64 string) (cipher.AEAD, error) {
	raw, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil || len(raw) == 0 {
		return nil, ErrInvalidKey
	}
	defer zero.Bytes(raw)

	var key [chacha20poly1305.KeySize]byte
	defer zero.Bytea32(&key)
	kdf := hkdf.New(sha256.New, raw, nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, key[:]); err != nil {
		return nil, err
	}
	return chacha20poly1305.NewX(key[:])
}

// Encrypt seals plaintext under the base64 key.  The empty text stays empty.
func Encrypt(plaintext, keyB64 string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	aead, err := aeadFromKey(keyB64)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(prng, nonce); err != nil {
		return "", err
	}
	ct := aead.Seal(nil, nonce, []byte(plaintext), nil)

	b, err := json.Marshal(envelope{
		V:  Version,
		IV: base64.StdEncoding.EncodeToString(nonce),
		CT: base64.StdEncoding.EncodeToString(ct),
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// parseEnvelope decodes s when it is a well formed envelope.
func parseEnvelope(s string) (nonce, ct []byte, ok bool) {
	if !strings.HasPrefix(strings.TrimSpace(s), "{") {
		return nil, nil, false
	}
	var env envelope
	if err := json.Unmarshal([]byte(s), &env); err != nil {
		return nil, nil, false
	}
	if env.V != Version {
		return nil, nil, false
	}
	nonce, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil || len(nonce) != NonceSize {
		return nil, nil, false
	}
	ct, err = base64.StdEncoding.DecodeString(env.CT)
	if err != nil || len(ct) < chacha20poly1305.Overhead {
		return nil, nil, false
	}
	return nonce, ct, true
}

// IsEncrypted reports whether s is an envelope.  It never fails.
func IsEncrypted(s string) bool {
	_, _, ok := parseEnvelope(s)
	return ok
}

// Decrypt opens an envelope produced by Encrypt.  It returns
// ErrNotEncrypted for plain text and ErrDecryptionFailed when the key does
// not match or the envelope was altered.  The empty text decrypts to itself.
func Decrypt(s, keyB64 string) (string, error) {
	if s == "" {
		return "", nil
	}
	nonce, ct, ok := parseEnvelope(s)
	if !ok {
		return "", ErrNotEncrypted
	}
	aead, err := aeadFromKey(keyB64)
	if err != nil {
		return "", err
	}
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(pt), nil
}

// DecryptOrPassthrough is the lenient form of Decrypt used for display.
// Plain text is returned unchanged and undecryptable envelopes are replaced
// with CannotDecrypt.
func DecryptOrPassthrough(s, keyB64 string) string {
	pt, err := Decrypt(s, keyB64)
	switch {
	case err == nil:
		return pt
	case errors.Is(err, ErrNotEncrypted):
		return s
	default:
		return CannotDecrypt
	}
}
