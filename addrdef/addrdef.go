// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package addrdef

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/mswallet/keystore"
	"github.com/btcsuite/mswallet/objecthash"
)

// AddressType is the spending policy of an address.
type AddressType uint8

const (
	// Normal addresses are spendable by a single signature.
	Normal AddressType = iota + 1

	// Shared addresses need m signatures out of the n ring members.
	Shared
)

// String returns the wire tag of the address type.
func (t AddressType) String() string {
	switch t {
	case Normal:
		return "normal"
	case Shared:
		return "shared"
	}
	return fmt.Sprintf("AddressType(%d)", uint8(t))
}

// ParseAddressType parses the wire tag of an address type.
func ParseAddressType(s string) (AddressType, error) {
	switch s {
	case "normal":
		return Normal, nil
	case "shared":
		return Shared, nil
	}
	str := fmt.Sprintf("invalid address type %q", s)
	return 0, newError(ErrInvalidAddressType, str, nil)
}

// MarshalJSON encodes the address type as its wire tag.
func (t AddressType) MarshalJSON() ([]byte, error) {
	switch t {
	case Normal, Shared:
		return json.Marshal(t.String())
	}
	str := fmt.Sprintf("invalid address type %d", uint8(t))
	return nil, newError(ErrInvalidAddressType, str, nil)
}

// UnmarshalJSON decodes an address type from its wire tag.
func (t *AddressType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseAddressType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ForParticipants returns the address type of a wallet with n participants.
func ForParticipants(n int) AddressType {
	if n == 1 {
		return Normal
	}
	return Shared
}

// PubKeyRingEntry is the public identity of one wallet participant.
type PubKeyRingEntry struct {
	XPubKey       string `json:"xPubKey"`
	RequestPubKey string `json:"requestPubKey"`
	DeviceID      string `json:"deviceId,omitempty"`
	Account       uint32 `json:"account"`
	CopayerName   string `json:"copayerName,omitempty"`
}

// AddressDefinition is a derived address together with the policy it
// commits to.
type AddressDefinition struct {
	Address  string `json:"address"`
	WalletID string `json:"walletId"`

	// Definition is ["sig", {pubkey}] or ["r of set", {required, set}].
	Definition []interface{} `json:"definition"`
	Path       string        `json:"path"`

	// SigningPaths maps a base64 leaf public key to the place its
	// signature takes in the definition.
	SigningPaths map[string]string `json:"signingPaths"`
}

// PubKeys returns the leaf public keys of the definition in ring order.
func (a *AddressDefinition) PubKeys() []string {
	keys := make([]string, len(a.SigningPaths))
	for key, tag := range a.SigningPaths {
		if tag == "r" {
			return []string{key}
		}
		i, err := strconv.Atoi(strings.TrimPrefix(tag, "r."))
		if err != nil || i < 0 || i >= len(keys) {
			continue
		}
		keys[i] = key
	}
	return keys
}

// sigDefinition returns the single signature policy of a key.
func sigDefinition(pubKey string) []interface{} {
	return []interface{}{"sig", map[string]interface{}{"pubkey": pubKey}}
}

// leafKeys derives the base64 public key at path of every ring entry, in
// ring order.
func leafKeys(ring []PubKeyRingEntry, path keystore.Path) ([]string, error) {
	keys := make([]string, len(ring))
	seen := make(map[string]int, len(ring))
	for i, entry := range ring {
		xpub, err := hdkeychain.NewKeyFromString(entry.XPubKey)
		if err != nil {
			str := fmt.Sprintf("invalid extended public key in ring "+
				"position %d", i)
			return nil, newError(ErrKeyChain, str, err)
		}
		if xpub.IsPrivate() {
			str := fmt.Sprintf("ring position %d holds a private key", i)
			return nil, newError(ErrKeyIsPrivate, str, nil)
		}

		child, err := keystore.DerivePath(xpub, path)
		if err != nil {
			str := fmt.Sprintf("child %s of ring position %d does not "+
				"exist", path, i)
			return nil, newError(ErrKeyChain, str, err)
		}
		pub, err := child.ECPubKey()
		if err != nil {
			str := fmt.Sprintf("child %s of ring position %d does not "+
				"exist", path, i)
			return nil, newError(ErrKeyChain, str, err)
		}

		key := keystore.PubKeyB64(pub)
		if j, ok := seen[key]; ok {
			str := fmt.Sprintf("ring positions %d and %d derive the "+
				"same key", j, i)
			return nil, newError(ErrDuplicatePubKey, str, nil)
		}
		seen[key] = i
		keys[i] = key
	}
	return keys, nil
}

// DeriveAddress computes the address of a wallet at a non hardened path.
//
// Every ring key is derived along path.  A normal address commits to the
// single resulting key; a shared address commits to all of them, in ring
// order, with m required signatures.  The result is a pure function of its
// arguments.
func DeriveAddress(walletID string, addrType AddressType,
	ring []PubKeyRingEntry, path string, m int) (*AddressDefinition, error) {

	p, err := keystore.ParsePath(path)
	if err != nil {
		return nil, newError(ErrInvalidPath, "invalid address path", err)
	}
	if p.IsHardened() {
		str := fmt.Sprintf("address path %s is hardened", p)
		return nil, newError(ErrInvalidPath, str, nil)
	}
	if len(ring) == 0 {
		return nil, newError(ErrEmptyRing, "public key ring is empty", nil)
	}

	var (
		definition   []interface{}
		signingPaths map[string]string
	)
	switch addrType {
	case Normal:
		if len(ring) != 1 {
			str := fmt.Sprintf("normal address needs exactly one ring "+
				"entry, got %d", len(ring))
			return nil, newError(ErrRingSizeMismatch, str, nil)
		}
		keys, err := leafKeys(ring, p)
		if err != nil {
			return nil, err
		}
		definition = sigDefinition(keys[0])
		signingPaths = map[string]string{keys[0]: "r"}

	case Shared:
		if m < 1 || m > len(ring) {
			str := fmt.Sprintf("%d required signatures out of %d ring "+
				"entries", m, len(ring))
			return nil, newError(ErrInvalidRequiredSignatures, str, nil)
		}
		keys, err := leafKeys(ring, p)
		if err != nil {
			return nil, err
		}
		set := make([]interface{}, len(keys))
		signingPaths = make(map[string]string, len(keys))
		for i, key := range keys {
			set[i] = sigDefinition(key)
			signingPaths[key] = "r." + strconv.Itoa(i)
		}
		definition = []interface{}{"r of set", map[string]interface{}{
			"required": m,
			"set":      set,
		}}

	default:
		str := fmt.Sprintf("invalid address type %v", addrType)
		return nil, newError(ErrInvalidAddressType, str, nil)
	}

	address, err := objecthash.Chash160(definition)
	if err != nil {
		return nil, newError(ErrHashing, "unable to hash definition", err)
	}

	return &AddressDefinition{
		Address:      address,
		WalletID:     walletID,
		Definition:   definition,
		Path:         path,
		SigningPaths: signingPaths,
	}, nil
}
