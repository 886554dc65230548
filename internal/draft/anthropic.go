package draft

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Jpatching/ghostprotocol/internal/common"
	"github.com/Jpatching/ghostprotocol/internal/model"
)

const (
	anthropicAPI     = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
)

// AnthropicClient is a client for the Anthropic Messages API
type AnthropicClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewAnthropicClient creates a new Anthropic client for the given model
func NewAnthropicClient(model string) *AnthropicClient {
	return &AnthropicClient{
		baseURL: anthropicAPI,
		model:   model,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// messagesResponse response from the Messages API
type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

const draftSystemPrompt = "You draft firm, polite subscription cancellation emails. " +
	"Respond with a single JSON object {\"email_subject\": ..., \"email_body\": ...} and nothing else."

// Draft asks the model for a cancellation email for the given subscription
func (c *AnthropicClient) Draft(ctx context.Context, apiKey, name, merchant string, amount float64) (model.Draft, error) {
	prompt := fmt.Sprintf(
		"Draft a cancellation email for the %q subscription, billed at $%s per month by %s. "+
			"Request immediate cancellation, an end to future charges and written confirmation.",
		name, common.FormatUSD(amount), merchant)

	reqBody, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: 1024,
		System:    draftSystemPrompt,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return model.Draft{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(reqBody))
	if err != nil {
		return model.Draft{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return model.Draft{}, fmt.Errorf("failed to call anthropic api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.Draft{}, fmt.Errorf("anthropic api returned status %d", resp.StatusCode)
	}

	var msgResp messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&msgResp); err != nil {
		return model.Draft{}, fmt.Errorf("failed to decode response: %w", err)
	}

	var text string
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return parseDraft(text)
}

// parseDraft extracts the draft JSON from the model output, tolerating
// surrounding prose or code fences
func parseDraft(text string) (model.Draft, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return model.Draft{}, fmt.Errorf("no draft JSON in model output")
	}

	var draft model.Draft
	if err := json.Unmarshal([]byte(text[start:end+1]), &draft); err != nil {
		return model.Draft{}, fmt.Errorf("failed to parse draft JSON: %w", err)
	}
	if draft.Subject == "" || draft.Body == "" {
		return model.Draft{}, fmt.Errorf("draft JSON missing subject or body")
	}
	return draft, nil
}
