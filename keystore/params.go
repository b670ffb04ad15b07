// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keystore

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// Network is the tag of the network a wallet operates on.
type Network string

const (
	// Livenet is the production network.
	Livenet Network = "livenet"

	// Testnet is the test network.
	Testnet Network = "testnet"
)

// ParseNetwork validates a network tag.
func ParseNetwork(s string) (Network, error) {
	switch n := Network(s); n {
	case Livenet, Testnet:
		return n, nil
	}
	str := fmt.Sprintf("invalid network %q", s)
	return "", newError(ErrInvalidNetwork, str, nil)
}

// Params returns the chain parameters whose extended key version bytes
// belong to the network.
func (n Network) Params() *chaincfg.Params {
	if n == Livenet {
		return &chaincfg.MainNetParams
	}
	return &chaincfg.TestNet3Params
}

// CoinType returns the BIP0044 coin type of the network: 0 on the
// production network and 1 otherwise.
func (n Network) CoinType() uint32 {
	if n == Livenet {
		return 0
	}
	return 1
}

// NetworkOfKey returns the network encoded in the version bytes of the
// passed extended key.
func NetworkOfKey(key *hdkeychain.ExtendedKey) (Network, error) {
	for _, n := range []Network{Livenet, Testnet} {
		if key.IsForNet(n.Params()) {
			return n, nil
		}
	}
	return "", newError(ErrNetworkMismatch,
		"extended key belongs to an unsupported network", nil)
}

// Coin is the tag of the currency a wallet holds.
type Coin string

const (
	// CoinBTC is bitcoin.
	CoinBTC Coin = "btc"

	// CoinBCH is bitcoin cash.
	CoinBCH Coin = "bch"
)

// ParseCoin validates a coin tag.
func ParseCoin(s string) (Coin, error) {
	switch c := Coin(s); c {
	case CoinBTC, CoinBCH:
		return c, nil
	}
	str := fmt.Sprintf("invalid coin %q", s)
	return "", newError(ErrInvalidCoin, str, nil)
}

// DerivationStrategy selects how the base path of an account is built.
type DerivationStrategy string

const (
	// BIP44 derives accounts at m/44'/<coin_type>'/<account>'.
	BIP44 DerivationStrategy = "BIP44"

	// BIP45 is the legacy multisig strategy.  All accounts share m/45'.
	BIP45 DerivationStrategy = "BIP45"

	// BIP48 derives accounts at m/48'/<coin_type>'/<account>'.
	BIP48 DerivationStrategy = "BIP48"
)

// ParseDerivationStrategy validates a derivation strategy tag.
func ParseDerivationStrategy(s string) (DerivationStrategy, error) {
	switch d := DerivationStrategy(s); d {
	case BIP44, BIP45, BIP48:
		return d, nil
	}
	str := fmt.Sprintf("invalid derivation strategy %q", s)
	return "", newError(ErrInvalidDerivationStrategy, str, nil)
}

// purpose returns the BIP0043 purpose of the strategy.
func (d DerivationStrategy) purpose() uint32 {
	switch d {
	case BIP45:
		return 45
	case BIP48:
		return 48
	default:
		return 44
	}
}
