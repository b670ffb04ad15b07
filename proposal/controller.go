// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package proposal drives the wallet service on behalf of a device: it
// creates and joins wallets, creates addresses, and creates and signs
// transaction proposals.  Every response that decides where funds go or who
// belongs to a wallet passes the verifier before any local state changes.
package proposal

import (
	"context"
	"fmt"
	"net/http"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/mswallet/addrdef"
	"github.com/btcsuite/mswallet/identity"
	"github.com/btcsuite/mswallet/keystore"
	"github.com/btcsuite/mswallet/msgcrypt"
	"github.com/btcsuite/mswallet/msgsign"
	"github.com/btcsuite/mswallet/verifier"
	"github.com/btcsuite/mswallet/wsjson"
	"golang.org/x/sync/singleflight"
)

// Paths of the wallet service requests.
const (
	pathWallets      = "/v1/wallets/"
	pathJoin         = "/v1/wallets/%s/copayers/"
	pathAddresses    = "/v1/addresses/"
	pathTxProposals  = "/v1/txproposals/"
	pathPublish      = "/v1/txproposals/%s/publish/"
	pathSignatures   = "/v1/txproposals/%s/signatures/"
	pathCopayerLogin = "/v1/copayers/%s/"
)

// Transport sends authenticated requests to the wallet service.  Do decodes
// the JSON reply into result and returns a *wsjson.ServerError for error
// replies.  Login opens a new session.
type Transport interface {
	Do(ctx context.Context, method, path string, args, result interface{}) error
	Login(ctx context.Context) error
}

// Config holds the collaborators of a Controller.
type Config struct {
	Device    *identity.Device
	Transport Transport

	// Verifier defaults to a new verifier for the controller.
	Verifier *verifier.Verifier
}

// Controller runs the wallet protocol for one device.  It is meant to be
// owned by a single session.
type Controller struct {
	device    *identity.Device
	transport Transport
	verifier  *verifier.Verifier
	login     singleflight.Group
}

// New returns a controller.  It fails when the verifier's self test fails.
func New(cfg *Config) (*Controller, error) {
	if cfg.Device == nil || cfg.Transport == nil {
		return nil, newError(ErrInvalidArgs,
			"device and transport are required", nil)
	}
	v := cfg.Verifier
	if v == nil {
		v = verifier.New()
	}
	if err := v.SelfTest(); err != nil {
		return nil, err
	}
	return &Controller{
		device:    cfg.Device,
		transport: cfg.Transport,
		verifier:  v,
	}, nil
}

// do sends a request, logging in again and replaying it once when the
// session expired.  Every other fault is returned on first occurrence.
func (c *Controller) do(ctx context.Context, method, path string, args,
	result interface{}) error {

	err := mapError(c.transport.Do(ctx, method, path, args, result))
	if !IsError(err, ErrAuthExpired) {
		return err
	}

	log.Infof("Session expired during %s %s, logging in again", method,
		path)
	_, err, _ = c.login.Do("login", func() (interface{}, error) {
		return nil, c.transport.Login(ctx)
	})
	if err != nil {
		return mapError(err)
	}
	return mapError(c.transport.Do(ctx, method, path, args, result))
}

// copayer returns the copayer of account.
func (c *Controller) copayer(account uint32) (*identity.Copayer, error) {
	return c.device.GetCopayer(account)
}

// CreateWallet creates an m-of-n wallet and joins it with the copayer of
// account.
func (c *Controller) CreateWallet(ctx context.Context, account uint32,
	walletName, copayerName string, m, n int) (*identity.Copayer, error) {

	if n < 1 || m < 1 || m > n {
		str := fmt.Sprintf("invalid %d-of-%d wallet", m, n)
		return nil, newError(ErrInvalidArgs, str, nil)
	}
	if copayerName == "" {
		return nil, newError(ErrInvalidArgs, "copayer name is required", nil)
	}
	if _, err := c.device.GetCopayer(account); err == nil {
		str := fmt.Sprintf("account %d already joined a wallet", account)
		return nil, newError(ErrInvalidArgs, str, nil)
	}
	walletKey, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	walletPrivKey := keystore.PrivKeyHex(walletKey)

	req := &wsjson.CreateWalletRequest{
		Name:               walletName,
		M:                  m,
		N:                  n,
		PubKey:             keystore.PubKeyHex(walletKey.PubKey()),
		Coin:               string(c.device.Coin),
		Network:            string(c.device.Network),
		DerivationStrategy: string(c.device.DerivationStrategy),
	}
	var res wsjson.CreateWalletResult
	if err := c.do(ctx, http.MethodPost, pathWallets, req, &res); err != nil {
		return nil, err
	}

	log.Infof("Created %d-of-%d wallet %s", m, n, res.WalletID)
	return c.JoinWallet(ctx, res.WalletID, walletPrivKey, account,
		copayerName)
}

// JoinWallet joins walletID with the copayer of account.  The copayer is
// added to the device once the service's reply verifies.
func (c *Controller) JoinWallet(ctx context.Context, walletID,
	walletPrivKey string, account uint32,
	copayerName string) (*identity.Copayer, error) {

	if copayerName == "" {
		return nil, newError(ErrInvalidArgs, "copayer name is required", nil)
	}
	if _, err := c.device.GetCopayer(account); err == nil {
		str := fmt.Sprintf("account %d already joined a wallet", account)
		return nil, newError(ErrInvalidArgs, str, nil)
	}
	cp, err := c.device.DeriveCopayer(account)
	if err != nil {
		return nil, err
	}
	if err := cp.AddWalletPrivateKey(walletPrivKey); err != nil {
		return nil, err
	}
	walletKey, err := cp.WalletPrivateKey()
	if err != nil {
		return nil, err
	}

	encName, err := msgcrypt.Encrypt(copayerName, cp.SharedEncryptingKey)
	if err != nil {
		return nil, err
	}
	req := &wsjson.JoinWalletRequest{
		WalletID:      walletID,
		Name:          encName,
		XPubKey:       cp.XPubKey,
		RequestPubKey: cp.RequestPubKey,
		DeviceID:      cp.DeviceID,
		Account:       account,
		CopayerSignature: msgsign.SignMessage(identity.CopayerHash(encName,
			cp.XPubKey, cp.RequestPubKey), walletKey),
	}
	var res wsjson.JoinWalletResult
	path := fmt.Sprintf(pathJoin, walletID)
	if err := c.do(ctx, http.MethodPost, path, req, &res); err != nil {
		return nil, err
	}

	if res.Wallet.ID != walletID {
		return nil, verifier.Compromised(verifier.CheckCopayersName)
	}
	walletName := msgcrypt.DecryptOrPassthrough(res.Wallet.Name,
		cp.SharedEncryptingKey)
	err = cp.AddWalletInfo(walletID, walletName, res.Wallet.M,
		res.Wallet.N, copayerName)
	if err != nil {
		return nil, err
	}
	if err := c.applyRing(cp, &res.Wallet); err != nil {
		return nil, err
	}
	if err := c.device.Attach(cp); err != nil {
		return nil, err
	}

	log.Infof("Joined wallet %s as copayer %s", walletID, cp.CopayerID)
	return cp, nil
}

// applyRing verifies the copayers of a complete wallet and replaces the
// ring of cp with them.  Incomplete wallets leave the ring alone.
func (c *Controller) applyRing(cp *identity.Copayer, w *wsjson.Wallet) error {
	if w.Status != wsjson.WalletStatusComplete {
		return nil
	}
	if !c.verifier.CheckCopayers(cp, w.Copayers) {
		return verifier.Compromised(verifier.CheckCopayersName)
	}

	ring := make([]addrdef.PubKeyRingEntry, len(w.Copayers))
	for i := range w.Copayers {
		ring[i] = w.Copayers[i].RingEntry()
		ring[i].CopayerName = msgcrypt.DecryptOrPassthrough(
			w.Copayers[i].DisplayName(), cp.SharedEncryptingKey)
	}
	cp.AddPublicKeyRing(ring)
	return nil
}

// UpdateWallet refreshes the public key ring of the copayer of account
// from the wallet status.
func (c *Controller) UpdateWallet(ctx context.Context,
	account uint32) (*identity.Copayer, error) {

	cp, err := c.copayer(account)
	if err != nil {
		return nil, err
	}
	var res wsjson.StatusResult
	if err := c.do(ctx, http.MethodGet, pathWallets, nil, &res); err != nil {
		return nil, err
	}
	if res.Wallet.ID != cp.WalletID || res.Wallet.N != cp.N ||
		res.Wallet.M != cp.M {

		return nil, verifier.Compromised(verifier.CheckCopayersName)
	}
	if err := c.applyRing(cp, &res.Wallet); err != nil {
		return nil, err
	}
	return cp, nil
}

// CreateAddress asks the service for a new address and returns its
// locally derived definition.
func (c *Controller) CreateAddress(ctx context.Context,
	account uint32) (*addrdef.AddressDefinition, error) {

	cp, err := c.copayer(account)
	if err != nil {
		return nil, err
	}
	if !cp.IsComplete() {
		return nil, newError(ErrInvalidArgs, "wallet is not complete", nil)
	}

	var addr wsjson.Address
	err = c.do(ctx, http.MethodPost, pathAddresses, struct{}{}, &addr)
	if err != nil {
		return nil, err
	}
	if !c.verifier.CheckAddress(cp, &addr) {
		return nil, verifier.Compromised(verifier.CheckAddressName)
	}
	return cp.DeriveAddress(addr.Path)
}

// CreateTxProposal creates a proposal paying args.Outputs, verifies what
// the service built, and publishes it signed with the device's proposal
// key.  The proposal key is in turn signed with the account's request key
// authentication key so other copayers can tell who created the proposal.
// message is encrypted for the wallet.  password unlocks an encrypted
// device.
func (c *Controller) CreateTxProposal(ctx context.Context, account uint32,
	args wsjson.TxProposalArgs, message string,
	password []byte) (*wsjson.TxProposal, error) {

	cp, err := c.copayer(account)
	if err != nil {
		return nil, err
	}
	if !cp.IsComplete() {
		return nil, newError(ErrInvalidArgs, "wallet is not complete", nil)
	}
	if len(args.Outputs) == 0 {
		return nil, newError(ErrInvalidArgs, "no outputs", nil)
	}
	proposalKey, err := c.device.TxProposalKey(password)
	if err != nil {
		return nil, err
	}
	authKey, err := c.device.RequestKeyAuth(account, password)
	if err != nil {
		return nil, err
	}

	args.Message, err = msgcrypt.Encrypt(message, cp.SharedEncryptingKey)
	if err != nil {
		return nil, err
	}
	args.ProposalPubKey = keystore.PubKeyHex(proposalKey.PubKey())
	args.ProposalPubKeySig = msgsign.SignMessage(args.ProposalPubKey, authKey)

	var txp wsjson.TxProposal
	err = c.do(ctx, http.MethodPost, pathTxProposals, &args, &txp)
	if err != nil {
		return nil, err
	}
	if !c.verifier.CheckProposalCreation(&args, &txp,
		cp.SharedEncryptingKey) {

		return nil, verifier.Compromised(
			verifier.CheckProposalCreationName)
	}
	if _, ok := c.verifier.CheckProposalInputs(cp, &txp); !ok {
		return nil, verifier.Compromised(verifier.CheckProposalInputsName)
	}

	hash, err := verifier.ProposalHash(&txp)
	if err != nil {
		return nil, err
	}
	req := &wsjson.PublishRequest{
		ProposalSignature: msgsign.SignMessage(hash, proposalKey),
	}
	path := fmt.Sprintf(pathPublish, txp.ID)
	var published wsjson.TxProposal
	if err := c.do(ctx, http.MethodPost, path, req, &published); err != nil {
		return nil, err
	}

	txp.ProposalSignature = req.ProposalSignature
	txp.ProposalPubKey = args.ProposalPubKey
	txp.ProposalPubKeySig = args.ProposalPubKeySig
	log.Infof("Published proposal %s", txp.ID)
	return &txp, nil
}

// SignTxProposal signs every input of a proposal with the account key of
// the copayer.  The proposal must carry a valid signature of one of the
// wallet's copayers, and inputs are signed only after their addresses were
// derived locally from the wallet's ring.
func (c *Controller) SignTxProposal(ctx context.Context, account uint32,
	txp *wsjson.TxProposal, password []byte) ([]wsjson.InputSignature, error) {

	cp, err := c.copayer(account)
	if err != nil {
		return nil, err
	}
	if !c.verifier.CheckTxProposalSignature(cp, txp) {
		return nil, verifier.Compromised(verifier.CheckTxProposalSigName)
	}
	defs, ok := c.verifier.CheckProposalInputs(cp, txp)
	if !ok {
		return nil, verifier.Compromised(verifier.CheckProposalInputsName)
	}

	acct, err := c.device.AccountKey(account, password)
	if err != nil {
		return nil, err
	}

	sigs := make([]wsjson.InputSignature, len(txp.Inputs))
	for i, in := range txp.Inputs {
		leaf, err := keystore.DeriveChild(acct, in.Path)
		if err != nil {
			return nil, err
		}
		priv, err := leaf.ECPrivKey()
		if err != nil {
			return nil, err
		}
		pubB64 := keystore.PubKeyB64(priv.PubKey())
		signingPath, ok := defs[i].SigningPaths[pubB64]
		if !ok {
			str := fmt.Sprintf("key of input %d is not in its "+
				"definition", i)
			return nil, newError(ErrKeyNotInDefinition, str, nil)
		}

		hash, err := verifier.InputHash(txp, i)
		if err != nil {
			return nil, err
		}
		sigs[i] = wsjson.InputSignature{
			InputIndex:  i,
			SigningPath: signingPath,
			PubKey:      pubB64,
			Signature:   msgsign.SignMessage(hash, priv),
		}
	}

	path := fmt.Sprintf(pathSignatures, txp.ID)
	var signed wsjson.TxProposal
	err = c.do(ctx, http.MethodPost, path,
		&wsjson.SignRequest{Signatures: sigs}, &signed)
	if err != nil {
		return nil, err
	}

	log.Infof("Signed %d inputs of proposal %s", len(sigs), txp.ID)
	return sigs, nil
}

// AddAccess registers a new request key for the copayer of account,
// authorized by the account's request key authentication key.  It returns
// the new hex private key.
func (c *Controller) AddAccess(ctx context.Context, account uint32,
	name string, password []byte) (string, error) {

	cp, err := c.copayer(account)
	if err != nil {
		return "", err
	}
	authKey, err := c.device.RequestKeyAuth(account, password)
	if err != nil {
		return "", err
	}
	reqKey, err := btcec.NewPrivateKey()
	if err != nil {
		return "", err
	}
	reqPub := keystore.PubKeyHex(reqKey.PubKey())

	req := &wsjson.AddAccessRequest{
		CopayerID:     cp.CopayerID,
		RequestPubKey: reqPub,
		Signature:     msgsign.SignMessage(reqPub, authKey),
		Name:          name,
	}
	path := fmt.Sprintf(pathCopayerLogin, cp.CopayerID)
	if err := c.do(ctx, http.MethodPut, path, req, nil); err != nil {
		return "", err
	}
	return keystore.PrivKeyHex(reqKey), nil
}
