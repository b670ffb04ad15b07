// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package msgsign

import (
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T, b byte) *btcec.PrivateKey {
	t.Helper()

	var raw [32]byte
	raw[31] = b
	priv, _ := btcec.PrivKeyFromBytes(raw[:])
	return priv
}

func TestHashMessage(t *testing.T) {
	t.Parallel()

	msg := []byte("hello world")
	forward := chainhash.DoubleHashB(msg)
	got := HashMessage(msg)
	require.Len(t, got, 32)
	for i := range got {
		require.Equal(t, forward[len(forward)-1-i], got[i])
	}

	// chainhash.Hash prints byte reversed, so its string form is the hex of
	// the message hash.
	require.Equal(t, chainhash.DoubleHashH(msg).String(),
		hex.EncodeToString(got))
}

func TestSignVerify(t *testing.T) {
	t.Parallel()

	alice := testKey(t, 1)
	bob := testKey(t, 2)
	pubHex := hex.EncodeToString(alice.PubKey().SerializeCompressed())

	const msg = "copayer|xpub|02ab"
	sig := SignMessage(msg, alice)

	// RFC6979 signatures are deterministic.
	require.Equal(t, sig, SignMessage(msg, alice))

	require.True(t, VerifyMessage(msg, sig, pubHex))
	require.False(t, VerifyMessage(msg+"x", sig, pubHex))
	require.False(t, VerifyMessage(msg, sig,
		hex.EncodeToString(bob.PubKey().SerializeCompressed())))
	require.False(t, VerifyMessage(msg, "zz", pubHex))
	require.False(t, VerifyMessage(msg, sig, "02"))
	require.False(t, VerifyMessage(msg, sig[:len(sig)-2], pubHex))

	parsed, err := ParseSignature(sig)
	require.NoError(t, err)
	require.True(t, parsed.Verify(HashMessage([]byte(msg)), alice.PubKey()))

	_, err = ParseSignature("3000")
	require.ErrorIs(t, err, ErrInvalidSignature)
	_, err = ParsePubKey("nothex")
	require.ErrorIs(t, err, ErrInvalidPubKey)
}
