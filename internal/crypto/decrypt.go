package crypto

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/Jpatching/ghostprotocol/internal/model"

	"golang.org/x/crypto/scrypt"
)

// ErrBadPassphrase is returned when the keyfile cannot be decrypted
var ErrBadPassphrase = errors.New("invalid passphrase")

// DecryptKeyFile reads and decrypts a .gid keyfile.
// passphrase must be []byte for security (caller should zero it after use)
func DecryptKeyFile(filePath string, passphrase []byte) (*model.KeyFile, *model.IdentityData, error) {
	keyFile, err := readKeyFile(filePath)
	if err != nil {
		return nil, nil, err
	}

	// Decode salt and nonce
	salt, err := base64.StdEncoding.DecodeString(keyFile.Salt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode salt: %w", err)
	}

	nonce, err := base64.StdEncoding.DecodeString(keyFile.Nonce)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode nonce: %w", err)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(keyFile.CipherText)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	// Derive key from passphrase
	key, err := scrypt.Key(passphrase, salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to derive key: %w", err)
	}

	aesGCM, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	// Decrypt
	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, nil, ErrBadPassphrase
	}
	defer clear(plaintext) // wipe decrypted bytes from memory

	// Deserialize identity data
	var data model.IdentityData
	if err := json.Unmarshal(plaintext, &data); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal identity data: %w", err)
	}

	return keyFile, &data, nil
}

// ReadKeyFileAddress reads only the address from a .gid keyfile (without decryption)
func ReadKeyFileAddress(filePath string) (string, error) {
	keyFile, err := readKeyFile(filePath)
	if err != nil {
		return "", err
	}
	return keyFile.Address, nil
}

func readKeyFile(filePath string) (*model.KeyFile, error) {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	if fileInfo.Size() == 0 {
		return nil, errors.New("file is empty")
	}

	fileData, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var keyFile model.KeyFile
	if err := json.Unmarshal(fileData, &keyFile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal keyfile: %w", err)
	}

	return &keyFile, nil
}
