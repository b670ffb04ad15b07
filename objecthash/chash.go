// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package objecthash

import (
	"crypto/sha256"
	"encoding/base32"

	"golang.org/x/crypto/ripemd160"
)

const (
	// ChashLength is the length in bits of a checksummed hash.
	ChashLength = 160

	// checksumBits is the number of checksum bits mixed into the clean
	// data of a checksummed hash.
	checksumBits = 32

	// EncodedLength is the length of a base32 encoded checksummed hash.
	EncodedLength = ChashLength / 5

	// piDigits drive the positions at which checksum bits are interleaved
	// with the clean data.
	piDigits = "14159265358979323846264338327950288419716939937510"
)

// checksumOffsets are the bit positions of the checksum bits within a
// checksummed hash.
var checksumOffsets = calcOffsets()

func calcOffsets() []int {
	offsets := make([]int, 0, checksumBits)
	offset := 0
	for i := 0; i < len(piDigits); i++ {
		relative := int(piDigits[i] - '0')
		if relative == 0 {
			continue
		}
		offset += relative
		if offset >= ChashLength {
			break
		}
		offsets = append(offsets, offset)
	}
	if len(offsets) != checksumBits {
		panic("objecthash: wrong number of checksum bits")
	}
	return offsets
}

// chash160 computes the checksummed identifier over data: the last 128 bits
// of its RIPEMD-160 digest with 32 checksum bits spread over the pi offsets,
// base32 encoded.
func chash160(data []byte) string {
	h := ripemd160.New()
	h.Write(data)
	truncated := h.Sum(nil)[4:]

	clean := toBits(truncated)
	checksum := toBits(checksumOf(truncated))
	mixed := mixChecksum(clean, checksum)

	return base32.StdEncoding.EncodeToString(fromBits(mixed))
}

// checksumOf returns the four checksum bytes for the clean data.
func checksumOf(clean []byte) []byte {
	digest := sha256.Sum256(clean)
	return []byte{digest[5], digest[13], digest[21], digest[29]}
}

func mixChecksum(clean, checksum []byte) []byte {
	mixed := make([]byte, 0, len(clean)+len(checksum))
	start := 0
	for i, offset := range checksumOffsets {
		end := offset - i
		mixed = append(mixed, clean[start:end]...)
		mixed = append(mixed, checksum[i])
		start = end
	}
	return append(mixed, clean[start:]...)
}

func separateChecksum(mixed []byte) (clean, checksum []byte) {
	start := 0
	for _, offset := range checksumOffsets {
		clean = append(clean, mixed[start:offset]...)
		checksum = append(checksum, mixed[offset])
		start = offset + 1
	}
	return append(clean, mixed[start:]...), checksum
}

// IsChashValid returns whether the passed string is a well formed checksummed
// identifier whose embedded checksum matches its clean data.
func IsChashValid(encoded string) bool {
	if len(encoded) != EncodedLength {
		return false
	}
	raw, err := base32.StdEncoding.DecodeString(encoded)
	if err != nil || len(raw)*8 != ChashLength {
		return false
	}

	clean, checksum := separateChecksum(toBits(raw))
	want := toBits(checksumOf(fromBits(clean)))
	for i := range want {
		if want[i] != checksum[i] {
			return false
		}
	}
	return true
}

// toBits expands every byte into eight 0/1 bytes, most significant first.
func toBits(b []byte) []byte {
	bits := make([]byte, 0, len(b)*8)
	for _, v := range b {
		for i := 7; i >= 0; i-- {
			bits = append(bits, (v>>uint(i))&1)
		}
	}
	return bits
}

func fromBits(bits []byte) []byte {
	out := make([]byte, len(bits)/8)
	for i, bit := range bits {
		out[i/8] |= bit << uint(7-i%8)
	}
	return out
}
