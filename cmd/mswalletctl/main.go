// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// mswalletctl manages the devices of a multisig wallet client: it creates
// and imports devices, derives the copayers of their accounts, and derives
// and checks wallet addresses.
package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
)

var newlineBytes = []byte{'\n'}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Stderr.Write(newlineBytes)
	os.Exit(1)
}

func main() {
	parser := flags.NewParser(&cfg, flags.Default)
	if err := addCommands(parser); err != nil {
		fatalf("%v", err)
	}

	_, err := parser.Parse()
	if logRotator != nil {
		logRotator.Close()
	}
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
