package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSecretRoundTrip(t *testing.T) {
	passphrase := []byte("test-pass")

	encrypted, err := EncryptSecret([]byte("sk-ant-api03-secret"), passphrase)
	require.NoError(t, err)
	require.NotContains(t, encrypted, "sk-ant")

	decrypted, err := DecryptSecret(encrypted, passphrase)
	require.NoError(t, err)
	require.Equal(t, "sk-ant-api03-secret", string(decrypted))
}

func TestSecretUniqueCiphertext(t *testing.T) {
	passphrase := []byte("test-pass")

	a, err := EncryptSecret([]byte("same plaintext"), passphrase)
	require.NoError(t, err)
	b, err := EncryptSecret([]byte("same plaintext"), passphrase)
	require.NoError(t, err)

	// Fresh salt and nonce every time
	require.NotEqual(t, a, b)
}

func TestSecretWrongPassphrase(t *testing.T) {
	encrypted, err := EncryptSecret([]byte("secret"), []byte("right"))
	require.NoError(t, err)

	_, err = DecryptSecret(encrypted, []byte("wrong"))
	require.ErrorIs(t, err, ErrBadPassphrase)
}

func TestSecretGarbageInput(t *testing.T) {
	_, err := DecryptSecret("not base64!!!", []byte("test-pass"))
	require.Error(t, err)

	_, err = DecryptSecret("dG9vc2hvcnQ=", []byte("test-pass"))
	require.Error(t, err)
}
