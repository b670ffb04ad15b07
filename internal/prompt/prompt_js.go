// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package prompt

import (
	"bufio"
	"errors"
)

var errUnsupported = errors.New("prompt not supported in WebAssembly")

func ListBool(_ *bufio.Reader, _, _ string) (bool, error) {
	return false, errUnsupported
}

func PassPrompt(_ *bufio.Reader, _ string, _ bool) ([]byte, error) {
	return nil, errUnsupported
}

func DevicePass(_ *bufio.Reader) ([]byte, error) {
	return nil, errUnsupported
}

func Unlock(_ *bufio.Reader) ([]byte, error) {
	return nil, errUnsupported
}

func Mnemonic(_ *bufio.Reader) (string, error) {
	return "", errUnsupported
}

func ShowMnemonic(_ *bufio.Reader, _ string) error {
	return errUnsupported
}
