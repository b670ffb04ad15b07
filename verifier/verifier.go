// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package verifier checks the responses of the wallet service against values
// derived on the client.
//
// The service is treated as an adversary: it could substitute addresses,
// smuggle a copayer into a wallet or redirect the outputs of a proposal.
// Every check here recomputes what an honest service would have returned
// and compares.  A check returns false on the first difference; callers turn
// that into a ServerCompromisedError.
package verifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/mswallet/addrdef"
	"github.com/btcsuite/mswallet/identity"
	"github.com/btcsuite/mswallet/keystore"
	"github.com/btcsuite/mswallet/msgcrypt"
	"github.com/btcsuite/mswallet/msgsign"
	"github.com/btcsuite/mswallet/objecthash"
	"github.com/btcsuite/mswallet/wsjson"
)

// Verifier runs the checks for one session.  The zero value is not usable;
// create one with New.
type Verifier struct {
	mu         sync.Mutex
	selfTested bool
	selfErr    error
}

// New returns a verifier for a session.
func New() *Verifier {
	return &Verifier{}
}

// selfTestSeed and selfTestAddress pin the primitives the checks rely on.
var (
	selfTestSeed = bytes.Repeat([]byte{0x42}, 32)

	selfTestDefinition = []interface{}{"sig", map[string]interface{}{
		"pubkey": "Ald9tkgiUZQQ1djpZgv2ez7xf1ZvYAsTLhudhvn0931w",
	}}
	selfTestAddress = "A2WWHN7755YZVMXCBLMFWRSLKSZJN3FU"
)

// SelfTest checks the derivation, hashing and signing primitives agree with
// known answers.  It runs once per Verifier; later calls return the first
// result.
func (v *Verifier) SelfTest() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.selfTested {
		v.selfErr = selfTest()
		v.selfTested = true
		if v.selfErr != nil {
			log.Errorf("Self test failed: %v", v.selfErr)
		}
	}
	return v.selfErr
}

func selfTest() error {
	address, err := objecthash.Chash160(selfTestDefinition)
	if err != nil {
		return err
	}
	if address != selfTestAddress {
		return fmt.Errorf("definition hashed to %s, want %s", address,
			selfTestAddress)
	}

	master, err := hdkeychain.NewMaster(selfTestSeed, &chaincfg.MainNetParams)
	if err != nil {
		return err
	}
	masterPub, err := master.Neuter()
	if err != nil {
		return err
	}

	// Private and public derivation must reach the same leaf.
	privLeaf, err := keystore.DeriveChild(master, "m/0/7")
	if err != nil {
		return err
	}
	pubLeaf, err := keystore.DeriveChild(masterPub, "m/0/7")
	if err != nil {
		return err
	}
	priv, err := privLeaf.ECPrivKey()
	if err != nil {
		return err
	}
	pub, err := pubLeaf.ECPubKey()
	if err != nil {
		return err
	}
	if !priv.PubKey().IsEqual(pub) {
		return fmt.Errorf("public and private derivation disagree")
	}

	const msg = "self test"
	sig := msgsign.SignMessage(msg, priv)
	if !msgsign.VerifyMessage(msg, sig, keystore.PubKeyHex(pub)) {
		return fmt.Errorf("signature round trip failed")
	}
	if msgsign.VerifyMessage(msg+".", sig, keystore.PubKeyHex(pub)) {
		return fmt.Errorf("signature verified for another message")
	}
	return nil
}

// CheckAddress recomputes the address at the path the service reported
// from the copayer's own ring and compares it with the reported one.
func (v *Verifier) CheckAddress(c *identity.Copayer,
	server *wsjson.Address) bool {

	if c == nil || server == nil {
		return false
	}
	if server.WalletID != c.WalletID {
		log.Warnf("Address %s belongs to wallet %s, not %s",
			server.Address, server.WalletID, c.WalletID)
		return false
	}

	local, err := c.DeriveAddress(server.Path)
	if err != nil {
		log.Warnf("Unable to derive address at %q: %v", server.Path, err)
		return false
	}
	if local.Address != server.Address {
		log.Errorf("Address at %s is %s, server reported %s",
			server.Path, local.Address, server.Address)
		return false
	}
	return true
}

// CheckCopayers verifies the copayer list the service reports for the
// copayer's wallet.  Without the wallet private key there is nothing to
// verify signatures against and the list is accepted with a warning.
func (v *Verifier) CheckCopayers(c *identity.Copayer,
	copayers []wsjson.Copayer) bool {

	if c == nil {
		return false
	}
	if c.WalletPrivKey == "" {
		log.Warnf("Wallet private key unknown, copayers of wallet %s "+
			"are not verified", c.WalletID)
		return true
	}
	walletPub, err := c.WalletPubKey()
	if err != nil {
		log.Warnf("Invalid wallet private key: %v", err)
		return false
	}

	if len(copayers) != c.N {
		log.Errorf("Wallet %s reports %d copayers, want %d", c.WalletID,
			len(copayers), c.N)
		return false
	}

	seen := make(map[string]struct{}, len(copayers))
	foundSelf := false
	for i := range copayers {
		cp := &copayers[i]

		if cp.DisplayName() == "" || cp.XPubKey == "" ||
			cp.RequestPubKey == "" || cp.Signature == "" {

			log.Errorf("Copayer %d of wallet %s is missing fields", i,
				c.WalletID)
			return false
		}

		if _, ok := seen[cp.XPubKey]; ok {
			log.Errorf("Copayer %d of wallet %s repeats an extended "+
				"public key", i, c.WalletID)
			return false
		}
		seen[cp.XPubKey] = struct{}{}

		hash := identity.CopayerHash(cp.DisplayName(), cp.XPubKey,
			cp.RequestPubKey)
		if !msgsign.VerifyMessage(hash, cp.Signature, walletPub) {
			log.Errorf("Copayer %d of wallet %s is not signed by the "+
				"wallet key", i, c.WalletID)
			return false
		}

		if cp.XPubKey == c.XPubKey {
			foundSelf = true
		}
	}

	if !foundSelf {
		log.Errorf("Own extended public key missing from wallet %s",
			c.WalletID)
		return false
	}
	return true
}

// CheckProposalCreation verifies the proposal the service created from
// args.  The proposal must keep the submitted type, and its outputs are
// checked whatever the type.  Messages are compared after decrypting with
// sharedKey.
func (v *Verifier) CheckProposalCreation(args *wsjson.TxProposalArgs,
	txp *wsjson.TxProposal, sharedKey string) bool {

	if args == nil || txp == nil {
		return false
	}

	if proposalType(args.Type) != proposalType(txp.Type) {
		log.Errorf("Proposal %s has type %q, want %q", txp.ID,
			proposalType(txp.Type), proposalType(args.Type))
		return false
	}
	if !checkOutputs(args, txp) {
		return false
	}

	if !checkMessage(args.Message, txp.Message, sharedKey) {
		log.Errorf("Proposal %s message does not match", txp.ID)
		return false
	}

	if !customDataEqual(args.CustomData, txp.CustomData) {
		log.Errorf("Proposal %s custom data does not match", txp.ID)
		return false
	}
	return true
}

func proposalType(t string) string {
	if t == "" {
		return wsjson.ProposalTypePayment
	}
	return t
}

// checkOutputs matches submitted outputs against the proposal's as a
// multiset.  What remains must be exactly the expected change.
func checkOutputs(args *wsjson.TxProposalArgs, txp *wsjson.TxProposal) bool {
	if args.SendMax {
		if len(args.Outputs) == 0 || len(txp.Outputs) == 0 {
			return false
		}
		if args.Outputs[0].ToAddress != txp.Outputs[0].ToAddress {
			log.Errorf("Proposal %s sends everything to %s, want %s",
				txp.ID, txp.Outputs[0].ToAddress,
				args.Outputs[0].ToAddress)
			return false
		}
		return true
	}

	remaining := make(map[string]int, len(txp.Outputs))
	for _, o := range txp.Outputs {
		remaining[o.Key()]++
	}
	for _, o := range args.Outputs {
		if remaining[o.Key()] == 0 {
			log.Errorf("Proposal %s lacks output %s", txp.ID, o.Key())
			return false
		}
		remaining[o.Key()]--
	}

	unmatched := len(txp.Outputs) - len(args.Outputs)
	if args.ChangeAddress == "" {
		if unmatched != 0 {
			log.Errorf("Proposal %s has %d unexpected outputs", txp.ID,
				unmatched)
			return false
		}
		return true
	}

	if txp.ChangeAddress != nil &&
		txp.ChangeAddress.Address != args.ChangeAddress {

		log.Errorf("Proposal %s changes to %s, want %s", txp.ID,
			txp.ChangeAddress.Address, args.ChangeAddress)
		return false
	}
	if unmatched != 1 {
		log.Errorf("Proposal %s has %d unmatched outputs, want one "+
			"change output", txp.ID, unmatched)
		return false
	}
	for key, n := range remaining {
		if n == 0 {
			continue
		}
		for _, o := range txp.Outputs {
			if o.Key() == key && o.ToAddress != args.ChangeAddress {
				log.Errorf("Proposal %s change goes to %s, want %s",
					txp.ID, o.ToAddress, args.ChangeAddress)
				return false
			}
		}
	}
	return true
}

// checkMessage compares two encrypted messages by their plaintext.  A
// message that does not decrypt never matches.
func checkMessage(submitted, reported, sharedKey string) bool {
	if submitted == "" && reported == "" {
		return true
	}
	if submitted == "" || reported == "" {
		return false
	}
	want, err := msgcrypt.Decrypt(submitted, sharedKey)
	if err != nil {
		return false
	}
	got, err := msgcrypt.Decrypt(reported, sharedKey)
	if err != nil {
		return false
	}
	return want == got
}

// customDataEqual compares two values by their JSON form.
func customDataEqual(a, b interface{}) bool {
	if a == nil && b == nil {
		return true
	}
	na, err := normalizeJSON(a)
	if err != nil {
		return false
	}
	nb, err := normalizeJSON(b)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(na, nb)
}

func normalizeJSON(v interface{}) (interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CheckProposalInputs verifies every input of a proposal spends from an
// address of the copayer's wallet and returns the definitions of those
// addresses.
func (v *Verifier) CheckProposalInputs(c *identity.Copayer,
	txp *wsjson.TxProposal) ([]*addrdef.AddressDefinition, bool) {

	if c == nil || txp == nil || len(txp.Inputs) == 0 {
		return nil, false
	}
	if txp.WalletID != c.WalletID {
		log.Errorf("Proposal %s belongs to wallet %s, not %s", txp.ID,
			txp.WalletID, c.WalletID)
		return nil, false
	}

	defs := make([]*addrdef.AddressDefinition, len(txp.Inputs))
	for i, in := range txp.Inputs {
		def, err := c.DeriveAddress(in.Path)
		if err != nil || def.Address != in.Address {
			log.Errorf("Input %d of proposal %s spends from %s at %q "+
				"which is not a wallet address", i, txp.ID,
				in.Address, in.Path)
			return nil, false
		}
		defs[i] = def
	}
	return defs, true
}

// CheckTxProposalSignature verifies a proposal was published by one of the
// copayers of the wallet and was not altered since.  The creator's request
// key authentication key, derived from its extended public key in the ring,
// must have signed the proposal key, and the proposal key must have signed
// the proposal hash.
func (v *Verifier) CheckTxProposalSignature(c *identity.Copayer,
	txp *wsjson.TxProposal) bool {

	if c == nil || txp == nil {
		return false
	}
	if txp.WalletID != c.WalletID {
		log.Errorf("Proposal %s belongs to wallet %s, not %s", txp.ID,
			txp.WalletID, c.WalletID)
		return false
	}
	if txp.ProposalSignature == "" || txp.ProposalPubKey == "" ||
		txp.ProposalPubKeySig == "" {

		log.Errorf("Proposal %s is not signed by its creator", txp.ID)
		return false
	}

	var creator *addrdef.PubKeyRingEntry
	for i := range c.PublicKeyRing {
		entry := &c.PublicKeyRing[i]
		if identity.CopayerIDFromXPub(entry.XPubKey) == txp.CreatorID {
			creator = entry
			break
		}
	}
	if creator == nil {
		log.Errorf("Creator %s of proposal %s is not a copayer of "+
			"wallet %s", txp.CreatorID, txp.ID, c.WalletID)
		return false
	}

	authPub, err := requestKeyAuthPub(creator.XPubKey, c.Network)
	if err != nil {
		log.Warnf("Unable to derive the key of creator %s: %v",
			txp.CreatorID, err)
		return false
	}
	if !msgsign.VerifyMessage(txp.ProposalPubKey, txp.ProposalPubKeySig,
		authPub) {

		log.Errorf("Proposal %s key is not authorized by creator %s",
			txp.ID, txp.CreatorID)
		return false
	}

	hash, err := ProposalHash(txp)
	if err != nil {
		return false
	}
	if !msgsign.VerifyMessage(hash, txp.ProposalSignature,
		txp.ProposalPubKey) {

		log.Errorf("Proposal %s does not match its creator's signature",
			txp.ID)
		return false
	}
	return true
}

// requestKeyAuthPub derives the hex public request key authentication key
// of the copayer owning xPubKey.
func requestKeyAuthPub(xPubKey string, net keystore.Network) (string, error) {
	acct, err := keystore.ParseExtendedKey(xPubKey, net)
	if err != nil {
		return "", err
	}
	leaf, err := keystore.DeriveChild(acct, keystore.RequestKeyAuthPath)
	if err != nil {
		return "", err
	}
	pub, err := leaf.ECPubKey()
	if err != nil {
		return "", err
	}
	return keystore.PubKeyHex(pub), nil
}
