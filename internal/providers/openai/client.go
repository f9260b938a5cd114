// Package openai is a minimal chat completion client used for script writing
// and topic research.
package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/reelcast/autopilot/internal/providers"
)

// Name tags errors raised by this client.
const Name = "openai"

const jsonResponseType = "json_object"

// Settings configures the client.
type Settings struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// Completion is the text returned by the model plus accounting.
type Completion struct {
	Content    string
	TokensUsed int
}

// Client wraps the chat completions endpoint.
type Client struct {
	settings   Settings
	httpClient *http.Client
}

// NewClient constructs a client from settings.
func NewClient(settings Settings) *Client {
	if settings.Timeout <= 0 {
		settings.Timeout = 60 * time.Second
	}
	settings.APIKey = strings.TrimSpace(settings.APIKey)
	settings.BaseURL = strings.TrimRight(strings.TrimSpace(settings.BaseURL), "/")
	if settings.BaseURL == "" {
		settings.BaseURL = "https://api.openai.com/v1"
	}
	if settings.Model == "" {
		settings.Model = "gpt-4o-mini"
	}
	return &Client{settings: settings, httpClient: &http.Client{Timeout: settings.Timeout}}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete issues a plain-text chat completion.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (Completion, error) {
	return c.complete(ctx, systemPrompt, userPrompt, false)
}

// CompleteJSON issues a JSON-only chat completion and returns the raw JSON content.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (Completion, error) {
	return c.complete(ctx, systemPrompt, userPrompt, true)
}

func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string, jsonOnly bool) (Completion, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	if userPrompt == "" {
		return Completion{}, errors.New("openai complete: user prompt required")
	}
	if c.settings.APIKey == "" {
		return Completion{}, providers.ConfigError(Name, "OPENAI_API_KEY is not set")
	}

	req := chatRequest{
		Model:       c.settings.Model,
		Temperature: c.settings.Temperature,
	}
	if systemPrompt != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: userPrompt})
	if jsonOnly {
		req.ResponseFormat = map[string]string{"type": jsonResponseType}
	}

	var resp chatResponse
	if err := providers.DoJSON(ctx, c.httpClient, Name, providers.JSONRequest{
		Method:  http.MethodPost,
		URL:     c.settings.BaseURL + "/chat/completions",
		Headers: map[string]string{"Authorization": "Bearer " + c.settings.APIKey},
		Body:    req,
	}, &resp); err != nil {
		return Completion{}, err
	}

	if len(resp.Choices) == 0 {
		return Completion{}, &providers.Error{Kind: providers.KindData, Provider: Name, Message: "response contained no choices"}
	}
	choice := resp.Choices[0]
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		msg := "empty content (finish_reason=" + choice.FinishReason + ")"
		if choice.Message.Refusal != "" {
			msg += ": " + choice.Message.Refusal
		}
		return Completion{}, &providers.Error{Kind: providers.KindData, Provider: Name, Message: msg}
	}

	return Completion{Content: content, TokensUsed: resp.Usage.TotalTokens}, nil
}
