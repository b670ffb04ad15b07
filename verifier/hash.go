// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package verifier

import (
	"github.com/btcsuite/mswallet/objecthash"
	"github.com/btcsuite/mswallet/wsjson"
)

// ProposalHash returns the base64 hash of the payment relevant fields of a
// proposal: its type, outputs, inputs, change address and message.
func ProposalHash(txp *wsjson.TxProposal) (string, error) {
	body := map[string]interface{}{
		"walletId": txp.WalletID,
	}
	if txp.Type != "" {
		body["type"] = txp.Type
	}
	if len(txp.Outputs) > 0 {
		outputs := make([]interface{}, len(txp.Outputs))
		for i, o := range txp.Outputs {
			outputs[i] = map[string]interface{}{
				"toAddress": o.ToAddress,
				"amount":    o.Amount,
			}
		}
		body["outputs"] = outputs
	}
	if len(txp.Inputs) > 0 {
		inputs := make([]interface{}, len(txp.Inputs))
		for i, in := range txp.Inputs {
			inputs[i] = map[string]interface{}{
				"txid": in.TxID,
				"vout": in.Vout,
			}
		}
		body["inputs"] = inputs
	}
	if txp.ChangeAddress != nil && txp.ChangeAddress.Address != "" {
		body["changeAddress"] = txp.ChangeAddress.Address
	}
	if txp.Message != "" {
		body["message"] = txp.Message
	}
	return objecthash.Sha256B64(body)
}

// InputHash returns the hash a copayer signs for input index of a proposal.
func InputHash(txp *wsjson.TxProposal, index int) (string, error) {
	proposalHash, err := ProposalHash(txp)
	if err != nil {
		return "", err
	}
	return objecthash.Sha256B64([]interface{}{proposalHash, index})
}
