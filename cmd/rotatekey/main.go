// rotatekey re-encrypts an identity keyfile under a new passphrase.
// Usage: go run ./cmd/rotatekey [-file ~/.ghostprotocol/identity.gid]
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Jpatching/ghostprotocol/internal/crypto"

	"golang.org/x/term"
)

func main() {
	defaultPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		defaultPath = filepath.Join(home, ".ghostprotocol", "identity.gid")
	}
	filePath := flag.String("file", defaultPath, "path to the .gid keyfile")
	flag.Parse()

	if *filePath == "" {
		fatal("no keyfile path given")
	}

	address, err := crypto.ReadKeyFileAddress(*filePath)
	if err != nil {
		fatal("failed to read keyfile: " + err.Error())
	}
	fmt.Fprintln(os.Stderr, "Rotating passphrase for", address)

	oldPass, err := readPassphrase("Current passphrase: ")
	if err != nil {
		fatal(err.Error())
	}
	defer clear(oldPass)

	keyFile, data, err := crypto.DecryptKeyFile(*filePath, oldPass)
	if err != nil {
		fatal("decrypt failed: " + err.Error())
	}
	defer clear(data.PrivateKey)

	newPass, err := readPassphrase("New passphrase: ")
	if err != nil {
		fatal(err.Error())
	}
	defer clear(newPass)

	confirm, err := readPassphrase("Confirm new passphrase: ")
	if err != nil {
		fatal(err.Error())
	}
	defer clear(confirm)
	if string(newPass) != string(confirm) {
		fatal("passphrases do not match")
	}

	// EncryptKeyFile refuses to overwrite, so write next to the original and
	// swap the files atomically.
	tmpPath := strings.TrimSuffix(*filePath, ".gid") + ".rotating.gid"
	if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
		fatal("failed to clear temp keyfile: " + err.Error())
	}
	if err := crypto.EncryptKeyFile(tmpPath, keyFile.Network, keyFile.Address, keyFile.QR, data, newPass); err != nil {
		fatal("encrypt failed: " + err.Error())
	}
	if err := os.Rename(tmpPath, *filePath); err != nil {
		fatal("failed to replace keyfile: " + err.Error())
	}

	fmt.Println("keyfile re-encrypted:", *filePath)
}

func readPassphrase(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)

	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return nil, fmt.Errorf("failed to read passphrase: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("passphrase cannot be empty")
	}
	return raw, nil
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
