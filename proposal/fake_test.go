// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package proposal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/btcsuite/mswallet/addrdef"
	"github.com/btcsuite/mswallet/identity"
	"github.com/btcsuite/mswallet/wsjson"
)

// fakeService is an in-memory wallet service.  It behaves honestly unless a
// tamper hook alters a reply.
type fakeService struct {
	mu sync.Mutex

	wallets map[string]*wsjson.Wallet
	current string
	nextID  int
	nextIdx int

	txps      map[string]*wsjson.TxProposal
	published map[string]string
	signed    map[string][]wsjson.InputSignature
	access    []wsjson.AddAccessRequest

	// expire makes the next n requests fail with an expired session.
	expire int
	logins int
	calls  []string

	// tamper may alter the reply of a request before it is returned.
	tamper func(method, path string, reply interface{})

	// fail makes every request fail with a service error code.
	fail string
}

func newFakeService() *fakeService {
	return &fakeService{
		wallets:   make(map[string]*wsjson.Wallet),
		txps:      make(map[string]*wsjson.TxProposal),
		published: make(map[string]string),
		signed:    make(map[string][]wsjson.InputSignature),
	}
}

// client returns a transport bound to the service.
func (s *fakeService) client() Transport {
	return &fakeTransport{s: s}
}

// fakeTransport is the session of one copayer.
type fakeTransport struct {
	s         *fakeService
	copayerID string
}

func (t *fakeTransport) Login(ctx context.Context) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	t.s.logins++
	return nil
}

func (t *fakeTransport) Do(ctx context.Context, method, path string, args,
	result interface{}) error {

	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, method+" "+path)
	if s.expire > 0 {
		s.expire--
		return &wsjson.ServerError{Code: "SESSION_EXPIRED"}
	}
	if s.fail != "" {
		return &wsjson.ServerError{Code: s.fail, Message: "refused"}
	}

	if req, ok := args.(*wsjson.JoinWalletRequest); ok {
		t.copayerID = identity.CopayerIDFromXPub(req.XPubKey)
	}
	reply, err := s.handle(method, path, args, t.copayerID)
	if err != nil {
		return err
	}
	if s.tamper != nil {
		s.tamper(method, path, reply)
	}
	if result == nil || reply == nil {
		return nil
	}
	b, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, result)
}

func (s *fakeService) handle(method, path string, args interface{},
	copayerID string) (interface{}, error) {

	switch {
	case method == http.MethodPost && path == pathWallets:
		req := args.(*wsjson.CreateWalletRequest)
		s.nextID++
		w := &wsjson.Wallet{
			ID:                 fmt.Sprintf("wallet-%d", s.nextID),
			Name:               req.Name,
			M:                  req.M,
			N:                  req.N,
			Status:             "pending",
			PubKey:             req.PubKey,
			Coin:               req.Coin,
			Network:            req.Network,
			DerivationStrategy: req.DerivationStrategy,
			AddressType:        addrdef.ForParticipants(req.N).String(),
		}
		s.wallets[w.ID] = w
		s.current = w.ID
		return &wsjson.CreateWalletResult{WalletID: w.ID}, nil

	case method == http.MethodGet && path == pathWallets:
		return &wsjson.StatusResult{Wallet: s.walletCopy()}, nil

	case method == http.MethodPost && strings.HasSuffix(path, "/copayers/"):
		req := args.(*wsjson.JoinWalletRequest)
		w, ok := s.wallets[req.WalletID]
		if !ok {
			return nil, &wsjson.ServerError{Code: "WALLET_NOT_FOUND"}
		}
		if len(w.Copayers) == w.N {
			return nil, &wsjson.ServerError{Code: "WALLET_FULL"}
		}
		w.Copayers = append(w.Copayers, wsjson.Copayer{
			ID:            copayerID,
			Name:          req.Name,
			XPubKey:       req.XPubKey,
			RequestPubKey: req.RequestPubKey,
			Signature:     req.CopayerSignature,
			DeviceID:      req.DeviceID,
			Account:       req.Account,
		})
		if len(w.Copayers) == w.N {
			w.Status = wsjson.WalletStatusComplete
		}
		s.current = w.ID
		return &wsjson.JoinWalletResult{
			CopayerID: w.Copayers[len(w.Copayers)-1].ID,
			Wallet:    s.walletCopy(),
		}, nil

	case method == http.MethodPost && path == pathAddresses:
		w := s.wallets[s.current]
		path := fmt.Sprintf("m/0/%d", s.nextIdx)
		s.nextIdx++
		def, err := s.derive(w, path)
		if err != nil {
			return nil, err
		}
		return &wsjson.Address{
			Address:  def.Address,
			WalletID: w.ID,
			Path:     path,
		}, nil

	case method == http.MethodPost && path == pathTxProposals:
		req := args.(*wsjson.TxProposalArgs)
		inputs, err := s.inputs(s.wallets[s.current])
		if err != nil {
			return nil, err
		}
		txp := &wsjson.TxProposal{
			ID:        fmt.Sprintf("txp-%d", len(s.txps)+1),
			WalletID:  s.current,
			CreatorID: copayerID,
			Type:      req.Type,
			Status:    "temporary",
			Outputs:   append([]wsjson.Output(nil), req.Outputs...),
			Inputs:    inputs,
			Message:   req.Message,

			CustomData:        req.CustomData,
			ProposalPubKey:    req.ProposalPubKey,
			ProposalPubKeySig: req.ProposalPubKeySig,
		}
		if txp.Type == "" {
			txp.Type = wsjson.ProposalTypePayment
		}
		if req.ChangeAddress != "" {
			txp.ChangeAddress = &wsjson.Address{Address: req.ChangeAddress}
			txp.Outputs = append(txp.Outputs, wsjson.Output{
				ToAddress: req.ChangeAddress,
				Amount:    777,
			})
		}
		s.txps[txp.ID] = txp
		return txp, nil

	case method == http.MethodPost && strings.HasSuffix(path, "/publish/"):
		id := strings.Split(path, "/")[3]
		req := args.(*wsjson.PublishRequest)
		s.published[id] = req.ProposalSignature
		s.txps[id].ProposalSignature = req.ProposalSignature
		s.txps[id].Status = "pending"
		return s.txps[id], nil

	case method == http.MethodPost && strings.HasSuffix(path, "/signatures/"):
		id := strings.Split(path, "/")[3]
		req := args.(*wsjson.SignRequest)
		s.signed[id] = append(s.signed[id], req.Signatures...)
		return s.txps[id], nil

	case method == http.MethodPut:
		s.access = append(s.access, *args.(*wsjson.AddAccessRequest))
		return nil, nil
	}

	return nil, &wsjson.ServerError{Code: "NOT_FOUND", Message: path}
}

// walletCopy returns a deep copy of the current wallet.
func (s *fakeService) walletCopy() wsjson.Wallet {
	w := *s.wallets[s.current]
	w.Copayers = append([]wsjson.Copayer(nil), w.Copayers...)
	return w
}

// fundedPaths are the wallet addresses the service spends from.
var fundedPaths = []string{"m/0/0", "m/1/4"}

// inputs returns one coin at every funded address of w.
func (s *fakeService) inputs(w *wsjson.Wallet) ([]wsjson.Input, error) {
	inputs := make([]wsjson.Input, len(fundedPaths))
	for i, path := range fundedPaths {
		def, err := s.derive(w, path)
		if err != nil {
			return nil, err
		}
		inputs[i] = wsjson.Input{
			TxID:     strings.Repeat(fmt.Sprintf("%x", i+10), 32),
			Vout:     uint32(i),
			Address:  def.Address,
			Path:     path,
			Satoshis: 100000,
		}
	}
	return inputs, nil
}

// proposal returns a copy of the stored proposal id, as a service would
// send it to another copayer.
func (s *fakeService) proposal(id string) *wsjson.TxProposal {
	s.mu.Lock()
	defer s.mu.Unlock()

	txp := *s.txps[id]
	txp.Outputs = append([]wsjson.Output(nil), txp.Outputs...)
	txp.Inputs = append([]wsjson.Input(nil), txp.Inputs...)
	return &txp
}

func (s *fakeService) derive(w *wsjson.Wallet,
	path string) (*addrdef.AddressDefinition, error) {

	ring := make([]addrdef.PubKeyRingEntry, len(w.Copayers))
	for i := range w.Copayers {
		ring[i] = w.Copayers[i].RingEntry()
	}
	return addrdef.DeriveAddress(w.ID, addrdef.ForParticipants(w.N), ring,
		path, w.M)
}
