package detection

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/wolfman30/uootd-quotes/pkg/dataurl"
	"google.golang.org/api/option"
)

// GeminiDetector uses Google's Gemini API directly.
type GeminiDetector struct {
	client  *genai.Client
	modelID string
}

// NewGeminiDetector returns nil,nil when no API key is configured.
func NewGeminiDetector(ctx context.Context, apiKey, modelID string) (*GeminiDetector, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, nil
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("detection: failed to create gemini client: %w", err)
	}
	return &GeminiDetector{client: client, modelID: modelID}, nil
}

// Name implements Detector.
func (d *GeminiDetector) Name() string { return "gemini" }

// Detect implements Detector.
func (d *GeminiDetector) Detect(ctx context.Context, req Request) (*Result, error) {
	model := d.client.GenerativeModel(d.modelID)
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, geminiParts(req)...)
	if err != nil {
		return nil, fmt.Errorf("detection: gemini request failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.Join(ErrNoResult, errors.New("gemini returned no candidates"))
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	result, ok := Decode(text.String())
	if !ok {
		return nil, ErrNoResult
	}
	return result, nil
}

// Close releases resources held by the Gemini client.
func (d *GeminiDetector) Close() error {
	if d != nil && d.client != nil {
		return d.client.Close()
	}
	return nil
}

func geminiParts(req Request) []genai.Part {
	parts := []genai.Part{genai.Text(Prompt)}
	if d, ok := dataurl.Parse(req.ImageURL); ok {
		if raw, err := d.Decode(); err == nil {
			parts = append(parts, genai.Blob{MIMEType: d.MIMEType, Data: raw})
		} else {
			parts = append(parts, genai.Text("Image could not be decoded."))
		}
	} else {
		parts = append(parts, genai.Text("Image URL: "+req.ImageURL))
	}
	if hint := strings.TrimSpace(req.Description); hint != "" {
		parts = append(parts, genai.Text("User hint: "+hint))
	}
	return parts
}
