package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/term"
)

// Config contains all configuration parameters for the application.
// Note: the wallet passphrase may be prompted at runtime and stored in
// memory - use GetWalletPassphraseBytes()
type Config struct {
	Port             string `envconfig:"PORT" default:"7177"`
	DataDir          string `envconfig:"GHOST_DATA_DIR" default:""`
	SolanaRPCURL     string `envconfig:"SOLANA_RPC_URL" default:"https://api.devnet.solana.com"`
	ConfirmTimeout   int    `envconfig:"CONFIRM_TIMEOUT_SECONDS" default:"60"`
	WalletPassphrase string `envconfig:"GHOST_WALLET_PASSPHRASE" default:""`
	AnthropicModel   string `envconfig:"ANTHROPIC_MODEL" default:"claude-3-5-haiku-latest"`
}

// cfg is the global configuration instance
var cfg *Config

// Init loads configuration from environment variables.
func Init() error {
	cfg = &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return fmt.Errorf("failed to process config: %w", err)
	}
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to resolve home dir: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".ghostprotocol")
	}
	return nil
}

// Get returns the global configuration instance.
// Panics if Init() was not called.
func Get() *Config {
	if cfg == nil {
		panic("config not initialized, call Init() first")
	}
	return cfg
}

// GetPort returns port from configuration
func GetPort() string {
	return Get().Port
}

// GetDataDir returns the local data directory (database and keyfile live here)
func GetDataDir() string {
	return Get().DataDir
}

// GetSolanaRPCURL returns Solana RPC URL from configuration
func GetSolanaRPCURL() string {
	return Get().SolanaRPCURL
}

// GetConfirmTimeout returns the bound on waiting for transaction confirmation
func GetConfirmTimeout() time.Duration {
	return time.Duration(Get().ConfirmTimeout) * time.Second
}

// GetAnthropicModel returns the model used for drafting cancellation emails
func GetAnthropicModel() string {
	return Get().AnthropicModel
}

var passphraseBytes []byte

// PromptForPassphrase prompts the user for the keyfile passphrase in the terminal.
// The passphrase is read without echoing (hidden input) and stored in memory.
// If GHOST_WALLET_PASSPHRASE is set it is used instead and no prompt is shown.
// Call this at startup before the server begins handling requests.
func PromptForPassphrase() error {
	if p := Get().WalletPassphrase; p != "" {
		passphraseBytes = []byte(p)
		return nil
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return errors.New("stdin is not a terminal: set GHOST_WALLET_PASSPHRASE or run interactively")
	}
	fmt.Fprint(os.Stderr, "Enter wallet passphrase: ")
	defer fmt.Fprintln(os.Stderr)

	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("failed to read passphrase: %w", err)
	}
	if len(raw) == 0 {
		return errors.New("passphrase cannot be empty")
	}

	passphraseBytes = make([]byte, len(raw))
	copy(passphraseBytes, raw)
	clear(raw)
	return nil
}

// GetWalletPassphraseBytes returns the passphrase stored in memory.
// Returns an error if the passphrase was not set.
// Caller must zero the returned slice after use for security.
func GetWalletPassphraseBytes() ([]byte, error) {
	if len(passphraseBytes) == 0 {
		return nil, errors.New("passphrase not set: call PromptForPassphrase at startup")
	}
	out := make([]byte, len(passphraseBytes))
	copy(out, passphraseBytes)
	return out, nil
}
