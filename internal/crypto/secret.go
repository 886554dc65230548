package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

// EncryptSecret encrypts a small secret (api key) into a self-contained
// base64 blob: salt || nonce || ciphertext.
// passphrase must be []byte for security (caller should zero it after use)
func EncryptSecret(plaintext, passphrase []byte) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	key, err := scrypt.Key(passphrase, salt, scryptInteractiveN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", fmt.Errorf("failed to derive key: %w", err)
	}

	aesGCM, err := newGCM(key)
	if err != nil {
		return "", err
	}

	blob := aesGCM.Seal(nil, nonce, plaintext, nil)
	out := make([]byte, 0, saltLen+nonceLen+len(blob))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, blob...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// DecryptSecret reverses EncryptSecret.
// Caller must zero the returned slice after use.
func DecryptSecret(encoded string, passphrase []byte) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode secret: %w", err)
	}
	if len(raw) < saltLen+nonceLen+1 {
		return nil, errors.New("secret blob too short")
	}

	salt := raw[:saltLen]
	nonce := raw[saltLen : saltLen+nonceLen]
	ciphertext := raw[saltLen+nonceLen:]

	key, err := scrypt.Key(passphrase, salt, scryptInteractiveN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	aesGCM, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrBadPassphrase
	}
	return plaintext, nil
}
