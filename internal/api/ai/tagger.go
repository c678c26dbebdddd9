// Package ai suggests content tags for freshly posted videos. Tagging is
// strictly best-effort: it runs off the request path and a failure only
// means the video stays untagged.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"google.golang.org/genai"
)

const maxTags = 5

// Tagger produces tag suggestions from a video's title and description.
type Tagger interface {
	SuggestTags(ctx context.Context, title, description string) ([]string, error)
	Enabled() bool
}

// Disabled returns a tagger that never produces suggestions. Used when
// tagging is switched off in config.
func Disabled() Tagger {
	return disabledTagger{}
}

type disabledTagger struct{}

func (disabledTagger) SuggestTags(context.Context, string, string) ([]string, error) {
	return nil, nil
}

func (disabledTagger) Enabled() bool { return false }

type GeminiTagger struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewGeminiTagger returns a disabled tagger when no API key is configured.
func NewGeminiTagger(ctx context.Context, model string, logger *slog.Logger) (*GeminiTagger, error) {
	apiKey := os.Getenv("GOOGLE_GEMINI_API_KEY")
	if apiKey == "" {
		logger.Warn("GOOGLE_GEMINI_API_KEY not set, video tagging disabled")
		return &GeminiTagger{model: model, logger: logger}, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiTagger{
		client: client,
		model:  model,
		logger: logger,
	}, nil
}

func (t *GeminiTagger) Enabled() bool {
	return t.client != nil
}

func (t *GeminiTagger) SuggestTags(ctx context.Context, title, description string) ([]string, error) {
	if t.client == nil {
		return nil, nil
	}

	prompt := fmt.Sprintf(
		"Suggest up to %d short lowercase content tags for a short-form video.\n"+
			"Title: %s\nDescription: %s\n"+
			"Respond with a JSON array of strings only.",
		maxTags, title, description)

	result, err := t.client.Models.GenerateContent(ctx, t.model, genai.Text(prompt), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tags: %w", err)
	}

	tags, err := parseTags(result.Text())
	if err != nil {
		t.logger.WarnContext(ctx, "Unparseable tag response", slog.Any("error", err))
		return nil, err
	}
	return tags, nil
}

// parseTags tolerates markdown code fences around the JSON array.
func parseTags(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, fmt.Errorf("failed to parse tag array: %w", err)
	}

	cleaned := make([]string, 0, maxTags)
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		cleaned = append(cleaned, tag)
		if len(cleaned) == maxTags {
			break
		}
	}
	return cleaned, nil
}
