// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wsjson defines the JSON documents exchanged with the wallet
// service.  Every value decoded into these types is untrusted until the
// verifier has checked it.
package wsjson

import (
	"fmt"

	"github.com/btcsuite/mswallet/addrdef"
)

// Copayer is a wallet participant as reported by the service.
type Copayer struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	EncryptedName string `json:"encryptedName,omitempty"`
	XPubKey       string `json:"xPubKey"`
	RequestPubKey string `json:"requestPubKey"`
	Signature     string `json:"signature"`
	DeviceID      string `json:"deviceId,omitempty"`
	Account       uint32 `json:"account"`
}

// DisplayName returns the encrypted name when present and the plain name
// otherwise.
func (c *Copayer) DisplayName() string {
	if c.EncryptedName != "" {
		return c.EncryptedName
	}
	return c.Name
}

// RingEntry converts the copayer to a public key ring entry.
func (c *Copayer) RingEntry() addrdef.PubKeyRingEntry {
	return addrdef.PubKeyRingEntry{
		XPubKey:       c.XPubKey,
		RequestPubKey: c.RequestPubKey,
		DeviceID:      c.DeviceID,
		Account:       c.Account,
		CopayerName:   c.Name,
	}
}

// Wallet is the service's view of a wallet.
type Wallet struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	M                  int       `json:"m"`
	N                  int       `json:"n"`
	Status             string    `json:"status"`
	PubKey             string    `json:"pubKey"`
	Coin               string    `json:"coin"`
	Network            string    `json:"network"`
	DerivationStrategy string    `json:"derivationStrategy"`
	AddressType        string    `json:"addressType"`
	Copayers           []Copayer `json:"copayers"`
}

// WalletStatusComplete is the status of a wallet whose ring is full.
const WalletStatusComplete = "complete"

// CreateWalletRequest asks the service to create a wallet.
type CreateWalletRequest struct {
	Name               string `json:"name"`
	M                  int    `json:"m"`
	N                  int    `json:"n"`
	PubKey             string `json:"pubKey"`
	Coin               string `json:"coin"`
	Network            string `json:"network"`
	DerivationStrategy string `json:"derivationStrategy"`
}

// CreateWalletResult is the reply to CreateWalletRequest.
type CreateWalletResult struct {
	WalletID string `json:"walletId"`
}

// JoinWalletRequest registers a copayer with a wallet.  CopayerSignature
// signs the copayer hash with the wallet private key.
type JoinWalletRequest struct {
	WalletID         string `json:"walletId"`
	Name             string `json:"name"`
	XPubKey          string `json:"xPubKey"`
	RequestPubKey    string `json:"requestPubKey"`
	DeviceID         string `json:"deviceId"`
	Account          uint32 `json:"account"`
	CopayerSignature string `json:"copayerSignature"`
}

// JoinWalletResult is the reply to JoinWalletRequest.
type JoinWalletResult struct {
	CopayerID string `json:"copayerId"`
	Wallet    Wallet `json:"wallet"`
}

// StatusResult is the reply to a wallet status request.
type StatusResult struct {
	Wallet Wallet `json:"wallet"`
}

// AddAccessRequest registers an additional request key for a copayer.
// Signature signs the request public key with the request key
// authentication key of the copayer's account.
type AddAccessRequest struct {
	CopayerID     string `json:"copayerId"`
	RequestPubKey string `json:"requestPubKey"`
	Signature     string `json:"signature"`
	Name          string `json:"name,omitempty"`
}

// Address is an address as reported by the service.
type Address struct {
	Address   string `json:"address"`
	WalletID  string `json:"walletId"`
	Path      string `json:"path"`
	Type      string `json:"type,omitempty"`
	IsChange  bool   `json:"isChange,omitempty"`
	CreatedOn int64  `json:"createdOn,omitempty"`
}

// Output is a payment to an address.
type Output struct {
	ToAddress string `json:"toAddress"`
	Amount    int64  `json:"amount"`
	Message   string `json:"message,omitempty"`
}

// Key returns the part of the output compared during verification.
func (o Output) Key() string {
	return fmt.Sprintf("%s:%d", o.ToAddress, o.Amount)
}

// Input is a coin spent by a proposal.
type Input struct {
	TxID     string `json:"txid"`
	Vout     uint32 `json:"vout"`
	Address  string `json:"address"`
	Path     string `json:"path"`
	Satoshis int64  `json:"satoshis"`
}

// ProposalTypePayment is the type of an ordinary payment.  An empty type
// means a payment too.
const ProposalTypePayment = "payment"

// TxProposalArgs are the arguments a client submits to create a proposal.
// Message is encrypted with the wallet's shared key.
type TxProposalArgs struct {
	Type           string      `json:"type"`
	Outputs        []Output    `json:"outputs"`
	Message        string      `json:"message,omitempty"`
	ChangeAddress  string      `json:"changeAddress,omitempty"`
	SendMax        bool        `json:"sendMax,omitempty"`
	FeePerKb       int64       `json:"feePerKb,omitempty"`
	CustomData     interface{} `json:"customData,omitempty"`
	TxProposalID   string      `json:"txProposalId,omitempty"`
	ExcludeUnconf  bool        `json:"excludeUnconfirmedUtxos,omitempty"`
	DryRun         bool        `json:"dryRun,omitempty"`
	ProposalPubKey string      `json:"proposalPubKey,omitempty"`

	// ProposalPubKeySig is ProposalPubKey signed by the creator's request
	// key authentication key.
	ProposalPubKeySig string `json:"proposalPubKeySig,omitempty"`
}

// TxProposal is a proposal as reported by the service.
type TxProposal struct {
	ID                string      `json:"id"`
	WalletID          string      `json:"walletId"`
	CreatorID         string      `json:"creatorId"`
	Type              string      `json:"type"`
	Status            string      `json:"status"`
	Outputs           []Output    `json:"outputs"`
	ChangeAddress     *Address    `json:"changeAddress,omitempty"`
	Inputs            []Input     `json:"inputs"`
	Message           string      `json:"message,omitempty"`
	CustomData        interface{} `json:"customData,omitempty"`
	Fee               int64       `json:"fee"`
	Amount            int64       `json:"amount"`
	ProposalSignature string      `json:"proposalSignature,omitempty"`
	ProposalPubKey    string      `json:"proposalSignaturePubKey,omitempty"`
	ProposalPubKeySig string      `json:"proposalSignaturePubKeySig,omitempty"`
	Actions           []Action    `json:"actions,omitempty"`
}

// Action is a copayer's vote on a proposal.
type Action struct {
	CopayerID string `json:"copayerId"`
	Type      string `json:"type"`
	Comment   string `json:"comment,omitempty"`
}

// InputSignature places one signature of a proposal input.
type InputSignature struct {
	InputIndex  int    `json:"inputIndex"`
	SigningPath string `json:"signingPath"`
	PubKey      string `json:"pubKey"`
	Signature   string `json:"signature"`
}

// PublishRequest publishes a created proposal.
type PublishRequest struct {
	ProposalSignature string `json:"proposalSignature"`
}

// SignRequest submits the signatures of a copayer.
type SignRequest struct {
	Signatures []InputSignature `json:"signatures"`
}

// ServerError is the error document returned by the service.
type ServerError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error satisfies the error interface.
func (e *ServerError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}
