package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Jpatching/ghostprotocol/internal/model"

	"golang.org/x/crypto/scrypt"
)

const (
	// scrypt parameters for the identity keyfile
	// Security is prioritized over performance
	//
	// N=2^18 (~256MB RAM, 0.5-2s) - optimal balance:
	//   - Maximum security while remaining compatible with low-spec desktops
	//   - Brute-force attacks remain extremely expensive
	scryptN      = 1 << 18
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltLen      = 32
	nonceLen     = 12

	// Lighter interactive parameters for api-key secrets, which are
	// encrypted/decrypted on every settings request.
	scryptInteractiveN = 1 << 15
)

// EncryptKeyFile encrypts identity data and writes it to a .gid file.
// passphrase must be []byte for security (caller should zero it after use)
func EncryptKeyFile(filePath string, network, address, qrCode string, data *model.IdentityData, passphrase []byte) error {
	// Check file extension (should be .gid)
	if !strings.HasSuffix(filePath, ".gid") {
		return errors.New("file must have .gid extension")
	}

	// Check if file exists
	if fileInfo, err := os.Stat(filePath); err == nil {
		// File exists, check that it's not empty
		if fileInfo.Size() > 0 {
			return fmt.Errorf("file is not empty: %w", os.ErrExist)
		}
	}

	// Generate salt and nonce
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Derive key from passphrase
	key, err := scrypt.Key(passphrase, salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return fmt.Errorf("failed to derive key: %w", err)
	}

	aesGCM, err := newGCM(key)
	if err != nil {
		return err
	}

	// Serialize identity data
	plaintext, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal identity data: %w", err)
	}
	defer clear(plaintext) // wipe plaintext bytes from memory

	// Encrypt
	ciphertext := aesGCM.Seal(nil, nonce, plaintext, nil)

	// Create file structure
	keyFile := model.KeyFile{
		Network:    network,
		Address:    address,
		QR:         qrCode,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		CipherText: base64.StdEncoding.EncodeToString(ciphertext),
	}

	// Serialize to JSON
	fileData, err := json.MarshalIndent(keyFile, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal keyfile: %w", err)
	}

	// Write to file
	if err := os.WriteFile(filePath, fileData, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aesGCM, nil
}
