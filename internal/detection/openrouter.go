package detection

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/wolfman30/uootd-quotes/pkg/dataurl"
)

// OpenRouterConfig configures the OpenAI-compatible provider.
type OpenRouterConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	MaxTokens  int
	HTTPClient *http.Client
}

// OpenRouterDetector calls an OpenAI-compatible chat completion endpoint
// with the screenshot attached as an image part.
type OpenRouterDetector struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenRouterDetector returns nil when no API key is configured.
func NewOpenRouterDetector(cfg OpenRouterConfig) *OpenRouterDetector {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil
	}
	if cfg.Model == "" {
		cfg.Model = "google/gemini-2.5-flash"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 400
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	return &OpenRouterDetector{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

// Name implements Detector.
func (d *OpenRouterDetector) Name() string { return "openrouter" }

// Detect implements Detector.
func (d *OpenRouterDetector) Detect(ctx context.Context, req Request) (*Result, error) {
	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: d.model,
		Messages: []openai.ChatCompletionMessage{{
			Role:         openai.ChatMessageRoleUser,
			MultiContent: openRouterParts(req),
		}},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		MaxTokens: d.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("detection: openrouter request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.Join(ErrNoResult, errors.New("openrouter returned no choices"))
	}

	result, ok := Decode(resp.Choices[0].Message.Content)
	if !ok {
		return nil, ErrNoResult
	}
	return result, nil
}

func openRouterParts(req Request) []openai.ChatMessagePart {
	parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: Prompt}}
	if d, ok := dataurl.Parse(req.ImageURL); ok {
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: d.String()},
		})
	} else {
		parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: "Image URL: " + req.ImageURL})
	}
	if hint := strings.TrimSpace(req.Description); hint != "" {
		parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: "User hint: " + hint})
	}
	return parts
}
