// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

//go:build !js

package prompt

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/tyler-smith/go-bip39"
	"golang.org/x/term"
)

var (
	// Output receives the prompts.
	Output io.Writer = os.Stdout

	isTerminal = term.IsTerminal
)

// readSecret reads a line without echo when stdin is a terminal and from
// reader otherwise.
func readSecret(reader *bufio.Reader) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if isTerminal(fd) {
		pass, err := term.ReadPassword(fd)
		fmt.Fprint(Output, "\n")
		return pass, err
	}
	line, err := reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return nil, err
	}
	return []byte(line), nil
}

// promptList prompts the user with the given prefix, list of valid responses,
// and default list entry to use.  The function will repeat the prompt to the
// user until they enter a valid response.
func promptList(reader *bufio.Reader, prefix string, validResponses []string,
	defaultEntry string) (string, error) {

	validStrings := strings.Join(validResponses, "/")
	var prompt string
	if defaultEntry != "" {
		prompt = fmt.Sprintf("%s (%s) [%s]: ", prefix, validStrings,
			defaultEntry)
	} else {
		prompt = fmt.Sprintf("%s (%s): ", prefix, validStrings)
	}

	for {
		fmt.Fprint(Output, prompt)
		reply, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		reply = strings.TrimSpace(strings.ToLower(reply))
		if reply == "" {
			reply = defaultEntry
		}

		for _, validResponse := range validResponses {
			if reply == validResponse {
				return reply, nil
			}
		}
	}
}

// ListBool prompts the user for a boolean (yes/no) with the given prefix.
// The function will repeat the prompt to the user until they enter a valid
// response.
func ListBool(reader *bufio.Reader, prefix string,
	defaultEntry string) (bool, error) {

	valid := []string{"n", "no", "y", "yes"}
	response, err := promptList(reader, prefix, valid, defaultEntry)
	if err != nil {
		return false, err
	}
	return response == "yes" || response == "y", nil
}

// PassPrompt prompts the user for a passphrase with the given prefix.  When
// confirm is set the passphrase is asked twice and the prompts repeat until
// both entries match.
func PassPrompt(reader *bufio.Reader, prefix string,
	confirm bool) ([]byte, error) {

	prompt := fmt.Sprintf("%s: ", prefix)
	for {
		fmt.Fprint(Output, prompt)
		pass, err := readSecret(reader)
		if err != nil {
			return nil, err
		}
		pass = bytes.TrimSpace(pass)
		if len(pass) == 0 {
			continue
		}

		if !confirm {
			return pass, nil
		}

		fmt.Fprint(Output, "Confirm passphrase: ")
		again, err := readSecret(reader)
		if err != nil {
			return nil, err
		}
		again = bytes.TrimSpace(again)
		if !bytes.Equal(pass, again) {
			fmt.Fprintln(Output, "The entered passphrases do not match")
			continue
		}

		return pass, nil
	}
}

// DevicePass asks whether the private key of a new device should be
// encrypted and prompts for the passphrase if so.  A nil passphrase means
// no encryption.
func DevicePass(reader *bufio.Reader) ([]byte, error) {
	encrypt, err := ListBool(reader, "Do you want to encrypt the "+
		"private key of this device?", "yes")
	if err != nil || !encrypt {
		return nil, err
	}
	return PassPrompt(reader, "Enter the private passphrase for your "+
		"device", true)
}

// Unlock prompts once for the passphrase of an encrypted device.
func Unlock(reader *bufio.Reader) ([]byte, error) {
	return PassPrompt(reader, "Enter the private passphrase of your device",
		false)
}

// Mnemonic prompts for a BIP39 mnemonic, followed by a blank line, until a
// valid one is entered.
func Mnemonic(reader *bufio.Reader) (string, error) {
	for {
		fmt.Fprint(Output, "Enter the device mnemonic "+
			"(followed by a blank line): ")

		var words string
		for {
			line, err := reader.ReadString('\n')
			if err != nil && err != io.EOF {
				return "", err
			}
			line = strings.TrimSpace(line)
			if line == "" {
				if err == io.EOF && words == "" {
					return "", io.EOF
				}
				break
			}
			words += " " + line
			if err == io.EOF {
				break
			}
		}

		words = collapseSpace(strings.ToLower(strings.TrimSpace(words)))
		if !bip39.IsMnemonicValid(words) {
			fmt.Fprintln(Output, "Invalid mnemonic.  Enter the 12 or "+
				"24 words of the BIP39 english wordlist")
			continue
		}
		return words, nil
	}
}

// ShowMnemonic displays a newly generated mnemonic and waits until the user
// confirms it was backed up.
func ShowMnemonic(reader *bufio.Reader, words string) error {
	split := strings.Split(words, " ")

	fmt.Fprintln(Output, "Your device mnemonic is:")
	for i, w := range split {
		fmt.Fprintf(Output, "%v ", w)
		if (i+1)%6 == 0 {
			fmt.Fprint(Output, "\n")
		}
	}
	fmt.Fprintln(Output, "\nIMPORTANT: Keep the mnemonic in a safe place as "+
		"you\nwill NOT be able to restore your device without it.")

	for {
		fmt.Fprint(Output, `Once you have stored the mnemonic in a safe `+
			`and secure location, enter "OK" to continue: `)
		confirm, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		confirm = strings.TrimSpace(confirm)
		confirm = strings.Trim(confirm, `"`)
		if confirm == "OK" {
			return nil
		}
	}
}

// collapseSpace takes a string and replaces any repeated areas of whitespace
// with a single space character.
func collapseSpace(in string) string {
	whiteSpace := false
	var out strings.Builder
	for _, c := range in {
		if unicode.IsSpace(c) {
			if !whiteSpace {
				out.WriteRune(' ')
			}
			whiteSpace = true
		} else {
			out.WriteRune(c)
			whiteSpace = false
		}
	}
	return out.String()
}
