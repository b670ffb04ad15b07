// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

//go:build !js

package prompt

import (
	"bufio"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon " +
	"abandon abandon abandon abandon abandon about"

func reader(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func init() {
	Output = io.Discard
	isTerminal = func(int) bool { return false }
}

func TestListBool(t *testing.T) {
	t.Parallel()

	yes, err := ListBool(reader("maybe\nY\n"), "ok?", "no")
	require.NoError(t, err)
	require.True(t, yes)

	yes, err = ListBool(reader("\n"), "ok?", "no")
	require.NoError(t, err)
	require.False(t, yes)

	_, err = ListBool(reader(""), "ok?", "no")
	require.ErrorIs(t, err, io.EOF)
}

func TestPassPrompt(t *testing.T) {
	t.Parallel()

	// Empty entries and mismatched confirmations are asked again.
	pass, err := PassPrompt(reader("\n a \nb\nsecret\nsecret\n"), "pw", true)
	require.NoError(t, err)
	require.Equal(t, []byte("secret"), pass)

	pass, err = PassPrompt(reader("single"), "pw", false)
	require.NoError(t, err)
	require.Equal(t, []byte("single"), pass)
}

func TestDevicePass(t *testing.T) {
	t.Parallel()

	pass, err := DevicePass(reader("no\n"))
	require.NoError(t, err)
	require.Nil(t, pass)

	pass, err = DevicePass(reader("\npw\npw\n"))
	require.NoError(t, err)
	require.Equal(t, []byte("pw"), pass)
}

func TestMnemonic(t *testing.T) {
	t.Parallel()

	in := "abandon abandon\n\nABANDON  abandon abandon abandon abandon\n" +
		"abandon abandon abandon abandon\nabandon abandon about\n\n"
	words, err := Mnemonic(reader(in))
	require.NoError(t, err)
	require.Equal(t, testMnemonic, words)

	_, err = Mnemonic(reader(""))
	require.ErrorIs(t, err, io.EOF)
}

func TestShowMnemonic(t *testing.T) {
	t.Parallel()

	require.NoError(t, ShowMnemonic(reader("no\n\"OK\"\n"), testMnemonic))
	require.ErrorIs(t, ShowMnemonic(reader("later\n"), testMnemonic), io.EOF)
}

func TestCollapseSpace(t *testing.T) {
	t.Parallel()

	require.Equal(t, "a b c", collapseSpace("a \t b\n\nc"))
}
