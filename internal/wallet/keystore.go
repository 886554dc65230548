// Package wallet owns the installation's single signing identity and the
// connection state machine that exposes it to the rest of the agent.
package wallet

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Jpatching/ghostprotocol/internal/crypto"
	"github.com/Jpatching/ghostprotocol/internal/model"

	"github.com/gagliardetto/solana-go"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

const (
	networkSolanaDevnet = "solana-devnet"
	privateKeyLen       = 64 // full ed25519 key as stored by solana-go
)

// Identity lifecycle errors
var (
	// ErrCorruptIdentity means persisted secret material exists but does not
	// deserialize into a valid keypair.
	ErrCorruptIdentity = errors.New("corrupt identity")

	// ErrPersistence means a freshly generated key could not be durably
	// stored. The key is discarded: operating with an unpersisted key risks
	// a funded-but-unrecorded identity.
	ErrPersistence = errors.New("identity persistence failed")
)

// Identity is the installation's signing keypair. Sign is pure and safe to
// call from concurrent pipeline runs.
type Identity struct {
	PublicKey solana.PublicKey
	key       solana.PrivateKey
}

// Sign returns an ed25519 signature over payload
func (id *Identity) Sign(payload []byte) (solana.Signature, error) {
	return id.key.Sign(payload)
}

// TransactionSigner adapts the identity to solana-go's transaction signing callback
func (id *Identity) TransactionSigner() func(key solana.PublicKey) *solana.PrivateKey {
	return func(key solana.PublicKey) *solana.PrivateKey {
		if id.key.PublicKey().Equals(key) {
			k := id.key
			return &k
		}
		return nil
	}
}

// Keystore loads or creates the identity keyfile. At most one identity exists
// per installation; the internal mutex makes concurrent LoadOrCreate calls
// safe against double generation.
type Keystore struct {
	mu         sync.Mutex
	filePath   string
	passphrase []byte
	cached     *Identity
	log        *zap.Logger
}

// NewKeystore creates a keystore over the given .gid file path.
// The passphrase is copied; the caller may zero its own slice.
func NewKeystore(filePath string, passphrase []byte, log *zap.Logger) *Keystore {
	p := make([]byte, len(passphrase))
	copy(p, passphrase)
	return &Keystore{
		filePath:   filePath,
		passphrase: p,
		log:        log,
	}
}

// LoadOrCreate returns the installation identity, generating and persisting
// it on first use. A generated key is never handed back unless the keyfile
// write succeeded.
func (ks *Keystore) LoadOrCreate() (*Identity, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if ks.cached != nil {
		return ks.cached, nil
	}

	if _, err := os.Stat(ks.filePath); err == nil {
		id, err := ks.load()
		if err != nil {
			return nil, err
		}
		ks.cached = id
		return id, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat keyfile: %w", err)
	}

	id, err := ks.create()
	if err != nil {
		return nil, err
	}
	ks.cached = id
	return id, nil
}

func (ks *Keystore) load() (*Identity, error) {
	keyFile, data, err := crypto.DecryptKeyFile(ks.filePath, ks.passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptIdentity, err)
	}
	defer clear(data.PrivateKey)

	if len(data.PrivateKey) != privateKeyLen {
		return nil, fmt.Errorf("%w: invalid private key length %d", ErrCorruptIdentity, len(data.PrivateKey))
	}

	key := make(solana.PrivateKey, privateKeyLen)
	copy(key, data.PrivateKey)

	// The recorded address must match the key it claims to belong to
	if key.PublicKey().String() != keyFile.Address {
		clear(key)
		return nil, fmt.Errorf("%w: private key does not match recorded address", ErrCorruptIdentity)
	}

	ks.log.Debug("identity loaded", zap.String("address", keyFile.Address))
	return &Identity{PublicKey: key.PublicKey(), key: key}, nil
}

func (ks *Keystore) create() (*Identity, error) {
	w := solana.NewWallet()
	address := w.PublicKey().String()

	qrCode, err := generateQRCode(address)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}

	data := &model.IdentityData{
		PrivateKey: w.PrivateKey,
		CreatedAt:  time.Now().Format(time.RFC3339),
	}

	// Persist synchronously before handing the key back
	if err := crypto.EncryptKeyFile(ks.filePath, networkSolanaDevnet, address, qrCode, data, ks.passphrase); err != nil {
		clear(w.PrivateKey)
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	ks.log.Info("identity created", zap.String("address", address))
	return &Identity{PublicKey: w.PublicKey(), key: w.PrivateKey}, nil
}

// generateQRCode generates QR code of address in base64
func generateQRCode(address string) (string, error) {
	qr, err := qrcode.New(address, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("failed to create QR code: %w", err)
	}

	png, err := qr.PNG(256)
	if err != nil {
		return "", fmt.Errorf("failed to generate PNG: %w", err)
	}

	return base64.StdEncoding.EncodeToString(png), nil
}
