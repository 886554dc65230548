// Package draft produces cancellation email drafts, via the Anthropic API
// when a claude key is configured and a local template otherwise.
package draft

import (
	"context"
	"errors"

	"github.com/Jpatching/ghostprotocol/internal/crypto"
	"github.com/Jpatching/ghostprotocol/internal/model"
	"github.com/Jpatching/ghostprotocol/internal/store"

	"go.uber.org/zap"
)

// KeySource resolves the claude api key. Empty string means not configured.
type KeySource interface {
	ClaudeKey(ctx context.Context) (string, error)
}

// Generator drafts cancellation emails, preferring the model-backed path
type Generator struct {
	keys     KeySource
	client   *AnthropicClient
	fallback TemplateGenerator
	log      *zap.Logger
}

// NewGenerator creates a generator for the given model name
func NewGenerator(keys KeySource, modelName string, log *zap.Logger) *Generator {
	return &Generator{
		keys:   keys,
		client: NewAnthropicClient(modelName),
		log:    log,
	}
}

// GenerateCancellationDraft drafts the email for one subscription. API
// failures fall back to the local template: a cancellation must never be
// blocked by the drafting service.
func (g *Generator) GenerateCancellationDraft(ctx context.Context, name, merchant string, amount float64) (model.Draft, error) {
	apiKey, err := g.keys.ClaudeKey(ctx)
	if err != nil {
		g.log.Warn("failed to resolve claude key, using template", zap.Error(err))
		return g.fallback.GenerateCancellationDraft(ctx, name, merchant, amount)
	}
	if apiKey == "" {
		return g.fallback.GenerateCancellationDraft(ctx, name, merchant, amount)
	}

	draft, err := g.client.Draft(ctx, apiKey, name, merchant, amount)
	if err != nil {
		g.log.Warn("anthropic draft failed, using template", zap.Error(err))
		return g.fallback.GenerateCancellationDraft(ctx, name, merchant, amount)
	}
	return draft, nil
}

// StoreKeySource resolves the claude key from the encrypted api_keys table
type StoreKeySource struct {
	Store      *store.Store
	Passphrase func() ([]byte, error)
}

// ClaudeKey decrypts and returns the stored claude key, or "" when absent
func (s StoreKeySource) ClaudeKey(ctx context.Context) (string, error) {
	encrypted, err := s.Store.EncryptedAPIKey(ctx, "claude")
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	passphrase, err := s.Passphrase()
	if err != nil {
		return "", err
	}
	defer clear(passphrase)

	raw, err := crypto.DecryptSecret(encrypted, passphrase)
	if err != nil {
		return "", err
	}
	defer clear(raw)
	return string(raw), nil
}
