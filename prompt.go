// Copyright (c) 2015-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/btcsuite/hdengine/keymgr"
	"golang.org/x/term"
)

// provideSeed prompts for the wallet seed until a valid BIP0039 mnemonic or
// base64 encoded seed is entered.  Input is not echoed when stdin is a
// terminal.
func provideSeed(format *keymgr.Format) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		return promptSeed(format, func() (string, error) {
			seed, err := term.ReadPassword(fd)
			fmt.Print("\n")
			return string(seed), err
		})
	}

	reader := bufio.NewReader(os.Stdin)
	return promptSeed(format, func() (string, error) {
		line, err := reader.ReadString('\n')
		if err == io.EOF && line != "" {
			err = nil
		}
		return line, err
	})
}

// promptSeed prompts with readLine until a valid seed is entered and returns
// its normalized form.
func promptSeed(format *keymgr.Format,
	readLine func() (string, error)) (string, error) {

	for {
		fmt.Print("Enter the wallet seed (mnemonic or base64): ")
		line, err := readLine()
		if err != nil {
			return "", err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		seed, err := format.ParseSeed(line)
		if err != nil {
			fmt.Printf("Invalid seed: %v\n", err)
			continue
		}

		return seed, nil
	}
}
