// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package proposal

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/btcsuite/mswallet/identity"
	"github.com/btcsuite/mswallet/keystore"
	"github.com/btcsuite/mswallet/msgcrypt"
	"github.com/btcsuite/mswallet/msgsign"
	"github.com/btcsuite/mswallet/verifier"
	"github.com/btcsuite/mswallet/wsjson"
	"github.com/stretchr/testify/require"
)

var testParams = identity.Params{
	Coin:     keystore.CoinBTC,
	Network:  keystore.Testnet,
	Strategy: keystore.BIP44,
}

func testDevice(t *testing.T, b byte) *identity.Device {
	t.Helper()

	master, err := keystore.NewMaster(bytes.Repeat([]byte{b}, 32),
		keystore.Testnet)
	require.NoError(t, err)
	d, err := identity.FromExtendedPrivateKey(testParams, master.String())
	require.NoError(t, err)
	return d
}

func testController(t *testing.T, d *identity.Device,
	s *fakeService) *Controller {

	t.Helper()

	c, err := New(&Config{Device: d, Transport: s.client()})
	require.NoError(t, err)
	return c
}

// sharedWallet creates a complete 2-of-2 wallet between two devices.
func sharedWallet(t *testing.T) (*fakeService, *Controller, *Controller) {
	t.Helper()

	ctx := context.Background()
	s := newFakeService()
	alice := testController(t, testDevice(t, 1), s)
	bob := testController(t, testDevice(t, 2), s)

	ac, err := alice.CreateWallet(ctx, 0, "family", "alice", 2, 2)
	require.NoError(t, err)
	require.False(t, ac.IsComplete())

	bc, err := bob.JoinWallet(ctx, ac.WalletID, ac.WalletPrivKey, 0, "bob")
	require.NoError(t, err)
	require.True(t, bc.IsComplete())

	_, err = alice.UpdateWallet(ctx, 0)
	require.NoError(t, err)
	require.True(t, ac.IsComplete())
	return s, alice, bob
}

func TestCreateAndJoinWallet(t *testing.T) {
	t.Parallel()

	_, alice, bob := sharedWallet(t)

	ac, err := alice.device.GetCopayer(0)
	require.NoError(t, err)
	bc, err := bob.device.GetCopayer(0)
	require.NoError(t, err)

	require.Equal(t, ac.WalletID, bc.WalletID)
	require.Equal(t, ac.SharedEncryptingKey, bc.SharedEncryptingKey)
	require.Equal(t, ac.PublicKeyRing, bc.PublicKeyRing)
	require.Equal(t, "alice", ac.PublicKeyRing[0].CopayerName)
	require.Equal(t, "bob", ac.PublicKeyRing[1].CopayerName)
	require.Equal(t, "family", bc.WalletName)

	// Both derive the same addresses.
	a, err := ac.DeriveAddress("m/0/9")
	require.NoError(t, err)
	b, err := bc.DeriveAddress("m/0/9")
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestSingleCopayerWallet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newFakeService()
	c := testController(t, testDevice(t, 3), s)

	cp, err := c.CreateWallet(ctx, 0, "solo", "me", 1, 1)
	require.NoError(t, err)
	require.True(t, cp.IsComplete())

	def, err := c.CreateAddress(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, "sig", def.Definition[0])

	_, err = c.CreateWallet(ctx, 0, "again", "me", 1, 1)
	require.True(t, IsError(err, ErrInvalidArgs), "%v", err)
	_, err = c.CreateWallet(ctx, 1, "bad", "me", 3, 2)
	require.True(t, IsError(err, ErrInvalidArgs), "%v", err)
}

func TestEmptyCopayerName(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newFakeService()
	d := testDevice(t, 3)
	c := testController(t, d, s)

	_, err := c.CreateWallet(ctx, 0, "solo", "", 1, 1)
	require.True(t, IsError(err, ErrInvalidArgs), "%v", err)
	_, err = c.JoinWallet(ctx, "wallet-1", strings.Repeat("11", 32), 0, "")
	require.True(t, IsError(err, ErrInvalidArgs), "%v", err)

	// Nothing reached the service.
	require.Empty(t, s.calls)
	require.Empty(t, s.wallets)
	require.Empty(t, d.Copayers)
}

func TestJoinWalletCompromised(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newFakeService()
	alice := testController(t, testDevice(t, 1), s)
	ac, err := alice.CreateWallet(ctx, 0, "family", "alice", 2, 2)
	require.NoError(t, err)

	// The service swaps alice's request key for its own.
	s.tamper = func(method, path string, reply interface{}) {
		if res, ok := reply.(*wsjson.JoinWalletResult); ok {
			res.Wallet.Copayers[0].RequestPubKey = res.Wallet.Copayers[1].RequestPubKey
		}
	}
	bobDevice := testDevice(t, 2)
	bob := testController(t, bobDevice, s)
	_, err = bob.JoinWallet(ctx, ac.WalletID, ac.WalletPrivKey, 0, "bob")
	require.ErrorIs(t, err, verifier.ErrServerCompromised)

	// Nothing was applied.
	require.Empty(t, bobDevice.Copayers)
}

func TestUpdateWalletCompromised(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, alice, _ := sharedWallet(t)
	ac, err := alice.device.GetCopayer(0)
	require.NoError(t, err)
	ring := append(ac.PublicKeyRing[:0:0], ac.PublicKeyRing...)

	s.tamper = func(method, path string, reply interface{}) {
		if res, ok := reply.(*wsjson.StatusResult); ok {
			res.Wallet.Copayers[1].Name = "mallory"
		}
	}
	_, err = alice.UpdateWallet(ctx, 0)
	require.ErrorIs(t, err, verifier.ErrServerCompromised)
	require.Equal(t, ring, ac.PublicKeyRing)
}

func TestCreateAddress(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, alice, bob := sharedWallet(t)

	def, err := alice.CreateAddress(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, "m/0/0", def.Path)
	require.Len(t, def.SigningPaths, 2)

	def, err = bob.CreateAddress(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, "m/0/1", def.Path)

	s.tamper = func(method, path string, reply interface{}) {
		if addr, ok := reply.(*wsjson.Address); ok {
			addr.Path = "m/0/0"
		}
	}
	_, err = alice.CreateAddress(ctx, 0)
	require.ErrorIs(t, err, verifier.ErrServerCompromised)

	var sc *verifier.ServerCompromisedError
	require.True(t, errors.As(err, &sc))
	require.Equal(t, verifier.CheckAddressName, sc.Check)
}

func TestCreateTxProposal(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, alice, _ := sharedWallet(t)
	ac, err := alice.device.GetCopayer(0)
	require.NoError(t, err)

	args := wsjson.TxProposalArgs{
		Outputs: []wsjson.Output{
			{ToAddress: "DEST", Amount: 5000},
		},
		ChangeAddress: "CHANGE",
	}
	txp, err := alice.CreateTxProposal(ctx, 0, args, "for the roof", nil)
	require.NoError(t, err)
	require.Len(t, txp.Outputs, 2)

	msg, err := msgcrypt.Decrypt(txp.Message, ac.SharedEncryptingKey)
	require.NoError(t, err)
	require.Equal(t, "for the roof", msg)

	// The published signature is made with the device's proposal key,
	// which the account's request key authentication key vouches for.
	proposalKey, err := alice.device.TxProposalKey(nil)
	require.NoError(t, err)
	authKey, err := alice.device.RequestKeyAuth(0, nil)
	require.NoError(t, err)
	hash, err := verifier.ProposalHash(txp)
	require.NoError(t, err)
	require.Equal(t, txp.ProposalSignature, s.published[txp.ID])
	require.True(t, msgsign.VerifyMessage(hash, txp.ProposalSignature,
		keystore.PubKeyHex(proposalKey.PubKey())))
	require.True(t, msgsign.VerifyMessage(txp.ProposalPubKey,
		txp.ProposalPubKeySig, keystore.PubKeyHex(authKey.PubKey())))
	require.True(t, alice.verifier.CheckTxProposalSignature(ac, txp))

	// A service that raises an amount is caught before publishing.
	s.tamper = func(method, path string, reply interface{}) {
		if p, ok := reply.(*wsjson.TxProposal); ok && method == http.MethodPost &&
			path == pathTxProposals {

			p.Outputs[0].Amount = 50000
		}
	}
	published := len(s.published)
	_, err = alice.CreateTxProposal(ctx, 0, args, "again", nil)
	require.ErrorIs(t, err, verifier.ErrServerCompromised)
	require.Len(t, s.published, published)

	// So is a proposal spending coins of another wallet.
	s.tamper = func(method, path string, reply interface{}) {
		if p, ok := reply.(*wsjson.TxProposal); ok && method == http.MethodPost &&
			path == pathTxProposals {

			p.Inputs[0].Path = "m/0/1"
		}
	}
	_, err = alice.CreateTxProposal(ctx, 0, args, "again", nil)
	require.ErrorIs(t, err, verifier.ErrServerCompromised)
	require.Len(t, s.published, published)

	_, err = alice.CreateTxProposal(ctx, 0, wsjson.TxProposalArgs{}, "", nil)
	require.True(t, IsError(err, ErrInvalidArgs))
}

// publishedProposal has alice create and publish a proposal and returns
// the copy the service hands to other copayers.
func publishedProposal(t *testing.T, s *fakeService,
	alice *Controller) *wsjson.TxProposal {

	t.Helper()

	args := wsjson.TxProposalArgs{
		Outputs: []wsjson.Output{{ToAddress: "DEST", Amount: 10}},
	}
	created, err := alice.CreateTxProposal(context.Background(), 0, args,
		"", nil)
	require.NoError(t, err)
	return s.proposal(created.ID)
}

func TestSignTxProposal(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, alice, bob := sharedWallet(t)
	ac, err := alice.device.GetCopayer(0)
	require.NoError(t, err)

	txp := publishedProposal(t, s, alice)
	require.Equal(t, ac.CopayerID, txp.CreatorID)
	require.Len(t, txp.Inputs, len(fundedPaths))

	aliceSigs, err := alice.SignTxProposal(ctx, 0, txp, nil)
	require.NoError(t, err)
	bobSigs, err := bob.SignTxProposal(ctx, 0, txp, nil)
	require.NoError(t, err)
	require.Len(t, s.signed[txp.ID], 4)

	for i := range txp.Inputs {
		def, err := ac.DeriveAddress(fundedPaths[i])
		require.NoError(t, err)

		require.Equal(t, "r.0", aliceSigs[i].SigningPath)
		require.Equal(t, "r.1", bobSigs[i].SigningPath)
		require.Equal(t, aliceSigs[i].SigningPath,
			def.SigningPaths[aliceSigs[i].PubKey])
		require.Equal(t, bobSigs[i].SigningPath,
			def.SigningPaths[bobSigs[i].PubKey])

		hash, err := verifier.InputHash(txp, i)
		require.NoError(t, err)
		for _, sig := range []wsjson.InputSignature{aliceSigs[i], bobSigs[i]} {
			pub, err := keystore.ParsePubKeyB64(sig.PubKey)
			require.NoError(t, err)
			require.True(t, msgsign.VerifyMessage(hash, sig.Signature,
				keystore.PubKeyHex(pub)))
		}
	}
}

func TestSignTxProposalCompromised(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, alice, bob := sharedWallet(t)
	bc, err := bob.device.GetCopayer(0)
	require.NoError(t, err)
	txp := publishedProposal(t, s, alice)

	// A signing key the service controls.
	mallory, err := keystore.ParsePrivKeyHex(
		"2222222222222222222222222222222222222222222222222222222222222222")
	require.NoError(t, err)

	tests := []struct {
		name   string
		check  string
		mutate func(p *wsjson.TxProposal)
	}{
		{"invented proposal", verifier.CheckTxProposalSigName,
			func(p *wsjson.TxProposal) {
				p.ProposalSignature = ""
				p.ProposalPubKey = ""
				p.ProposalPubKeySig = ""
				p.Outputs = []wsjson.Output{
					{ToAddress: "ATTACKER", Amount: 999999},
				}
			}},
		{"redirected output", verifier.CheckTxProposalSigName,
			func(p *wsjson.TxProposal) {
				p.Outputs[0].ToAddress = "ATTACKER"
			}},
		{"raised amount", verifier.CheckTxProposalSigName,
			func(p *wsjson.TxProposal) {
				p.Outputs[0].Amount++
			}},
		{"added output", verifier.CheckTxProposalSigName,
			func(p *wsjson.TxProposal) {
				p.Outputs = append(p.Outputs, wsjson.Output{
					ToAddress: "ATTACKER", Amount: 1,
				})
			}},
		{"other creator", verifier.CheckTxProposalSigName,
			func(p *wsjson.TxProposal) {
				p.CreatorID = bc.CopayerID
			}},
		{"unknown creator", verifier.CheckTxProposalSigName,
			func(p *wsjson.TxProposal) {
				p.CreatorID = "mallory"
			}},
		{"unauthorized proposal key", verifier.CheckTxProposalSigName,
			func(p *wsjson.TxProposal) {
				p.Outputs[0].ToAddress = "ATTACKER"
				hash, err := verifier.ProposalHash(p)
				require.NoError(t, err)
				p.ProposalPubKey = keystore.PubKeyHex(mallory.PubKey())
				p.ProposalSignature = msgsign.SignMessage(hash, mallory)
			}},
		{"other wallet", verifier.CheckTxProposalSigName,
			func(p *wsjson.TxProposal) {
				p.WalletID = "wallet-99"
			}},
		{"foreign input", verifier.CheckProposalInputsName,
			func(p *wsjson.TxProposal) {
				p.Inputs[1].Address = p.Inputs[0].Address
			}},
	}
	for _, test := range tests {
		forged := s.proposal(txp.ID)
		test.mutate(forged)

		_, err := bob.SignTxProposal(ctx, 0, forged, nil)
		require.ErrorIs(t, err, verifier.ErrServerCompromised, test.name)

		var sc *verifier.ServerCompromisedError
		require.True(t, errors.As(err, &sc), test.name)
		require.Equal(t, test.check, sc.Check, test.name)
		require.Empty(t, s.signed[txp.ID], test.name)
	}
}

func TestAuthExpiredRetry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newFakeService()
	c := testController(t, testDevice(t, 4), s)

	// One expiry is retried after a login.
	s.expire = 1
	_, err := c.CreateWallet(ctx, 0, "w", "me", 1, 1)
	require.NoError(t, err)
	require.Equal(t, 1, s.logins)

	// A second expiry in a row is returned.
	s.expire = 2
	_, err = c.UpdateWallet(ctx, 0)
	require.True(t, IsError(err, ErrAuthExpired), "%v", err)
	require.Equal(t, 2, s.logins)

	// Other faults are never retried.
	s.fail = "WALLET_FULL"
	calls := len(s.calls)
	_, err = c.UpdateWallet(ctx, 0)
	require.True(t, IsError(err, ErrWalletFull), "%v", err)
	require.Len(t, s.calls, calls+1)
	require.Equal(t, 2, s.logins)

	var se *wsjson.ServerError
	require.True(t, errors.As(err, &se))
	require.Equal(t, "refused", se.Message)

	s.fail = "SOMETHING_NEW"
	_, err = c.UpdateWallet(ctx, 0)
	require.True(t, IsError(err, ErrUnknown), "%v", err)
}

func TestAddAccess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, alice, _ := sharedWallet(t)
	ac, err := alice.device.GetCopayer(0)
	require.NoError(t, err)

	newKey, err := alice.AddAccess(ctx, 0, "laptop", nil)
	require.NoError(t, err)
	priv, err := keystore.ParsePrivKeyHex(newKey)
	require.NoError(t, err)

	require.Len(t, s.access, 1)
	req := s.access[0]
	require.Equal(t, ac.CopayerID, req.CopayerID)
	require.Equal(t, keystore.PubKeyHex(priv.PubKey()), req.RequestPubKey)

	authKey, err := alice.device.RequestKeyAuth(0, nil)
	require.NoError(t, err)
	require.True(t, msgsign.VerifyMessage(req.RequestPubKey, req.Signature,
		keystore.PubKeyHex(authKey.PubKey())))
}

func TestEncryptedDevice(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, alice, _ := sharedWallet(t)
	password := []byte("pw")
	require.NoError(t, alice.device.EncryptPrivateKey(password,
		&identity.FastScryptOptions))

	args := wsjson.TxProposalArgs{
		Outputs: []wsjson.Output{{ToAddress: "DEST", Amount: 1}},
	}
	_, err := alice.CreateTxProposal(ctx, 0, args, "", []byte("wrong"))
	require.True(t, identity.IsError(err, identity.ErrDecryptionFailed),
		"%v", err)
	require.Empty(t, s.txps)

	_, err = alice.CreateTxProposal(ctx, 0, args, "", password)
	require.NoError(t, err)
}

func TestNewController(t *testing.T) {
	t.Parallel()

	_, err := New(&Config{})
	require.True(t, IsError(err, ErrInvalidArgs))

	v := verifier.New()
	c, err := New(&Config{
		Device:    testDevice(t, 5),
		Transport: newFakeService().client(),
		Verifier:  v,
	})
	require.NoError(t, err)
	require.Same(t, v, c.verifier)
}

func TestErrorCodeStringer(t *testing.T) {
	t.Parallel()

	for c := ErrorCode(0); c < lastErr; c++ {
		require.NotContains(t, c.String(), "Unknown ErrorCode")
	}
	for code, kind := range protocolErrors {
		err := mapError(&wsjson.ServerError{Code: code})
		require.True(t, IsError(err, kind), code)
	}
	require.Nil(t, mapError(nil))
	plain := errors.New("dial tcp: refused")
	require.Equal(t, plain, mapError(plain))
}
