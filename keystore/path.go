// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keystore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// Path is a parsed derivation path.  Hardened children carry
// hdkeychain.HardenedKeyStart.
type Path []uint32

// ParsePath parses a textual derivation path such as "m/44'/0'/0'" or
// "m/0/5".  The leading "m" is optional; a hardened child is marked with a
// trailing ' or h.  Every index must lie below 2^31 before hardening.
func ParsePath(path string) (Path, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, newError(ErrInvalidPath, "empty derivation path", nil)
	}

	parts := strings.Split(path, "/")
	if parts[0] == "m" || parts[0] == "M" {
		parts = parts[1:]
	}

	p := make(Path, 0, len(parts))
	for _, part := range parts {
		hardened := false
		switch {
		case strings.HasSuffix(part, "'"), strings.HasSuffix(part, "h"),
			strings.HasSuffix(part, "H"):

			hardened = true
			part = part[:len(part)-1]
		}

		// ParseUint rejects signs, so "-1" and "+1" are refused along
		// with anything non numeric.
		idx, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			str := fmt.Sprintf("invalid child index %q in path %q",
				part, path)
			return nil, newError(ErrInvalidPath, str, err)
		}
		if idx >= hdkeychain.HardenedKeyStart {
			str := fmt.Sprintf("child index %d in path %q is out of "+
				"range", idx, path)
			return nil, newError(ErrInvalidPath, str, nil)
		}

		child := uint32(idx)
		if hardened {
			child += hdkeychain.HardenedKeyStart
		}
		p = append(p, child)
	}

	return p, nil
}

// IsHardened returns whether any step of the path is a hardened child.
func (p Path) IsHardened() bool {
	for _, idx := range p {
		if idx >= hdkeychain.HardenedKeyStart {
			return true
		}
	}
	return false
}

// String returns the canonical textual form of the path.
func (p Path) String() string {
	var b strings.Builder
	b.WriteString("m")
	for _, idx := range p {
		b.WriteString("/")
		if idx >= hdkeychain.HardenedKeyStart {
			b.WriteString(strconv.FormatUint(
				uint64(idx-hdkeychain.HardenedKeyStart), 10))
			b.WriteString("'")
			continue
		}
		b.WriteString(strconv.FormatUint(uint64(idx), 10))
	}
	return b.String()
}
