package jsoncfg

import (
	"encoding/json"
	"fmt"
	"strings"
)

type ExtrasConfig struct {
	Locale  string `json:"locale"`
	Quality string `json:"quality"`
}

// PromptJSON is the structured prompt persisted alongside every generation
// job. The worker flattens it into a natural-language instruction before
// dispatching it to a provider.
type PromptJSON struct {
	Version        string `json:"version"`
	Subject        string `json:"subject"`
	Style          string `json:"style"`
	Scene          string `json:"scene"`
	Instructions   string `json:"instructions"`
	NegativePrompt string `json:"negative_prompt"`
	// SourceAssetID references a previously uploaded asset used as
	// conditioning input. Required for image and video jobs.
	SourceAssetID string       `json:"source_asset_id"`
	AspectRatio   string       `json:"aspect_ratio"`
	Quantity      int          `json:"quantity"`
	References    []string     `json:"references"`
	Extras        ExtrasConfig `json:"extras"`
}

var allowedAspectRatios = map[string]struct{}{
	"1:1":  {},
	"4:3":  {},
	"3:4":  {},
	"16:9": {},
	"9:16": {},
}

const (
	// DefaultPromptVersion represents the schema version persisted for prompts.
	DefaultPromptVersion = "2025-06"
	// DefaultPromptAspectRatio is used when the request omits the aspect ratio.
	DefaultPromptAspectRatio = "1:1"
	// DefaultPromptQuantity is the minimum quantity allowed for free users.
	DefaultPromptQuantity = 1
	// MaxPromptQuantity enforces the free tier cap for generated assets.
	MaxPromptQuantity = 2
	// DefaultExtrasLocale is applied when no locale preference is provided.
	DefaultExtrasLocale = "en"
	// DefaultExtrasQuality represents the baseline generation quality.
	DefaultExtrasQuality = "standard"
)

// Normalize ensures the prompt JSON respects server defaults and limits.
func (p *PromptJSON) Normalize(preferredLocale string) {
	if p == nil {
		return
	}
	if p.Version == "" {
		p.Version = DefaultPromptVersion
	}
	if p.Quantity <= 0 {
		p.Quantity = DefaultPromptQuantity
	}
	if p.Quantity > MaxPromptQuantity {
		p.Quantity = MaxPromptQuantity
	}
	if p.AspectRatio == "" {
		p.AspectRatio = DefaultPromptAspectRatio
	}
	if p.Extras.Locale == "" {
		if preferredLocale != "" {
			p.Extras.Locale = preferredLocale
		} else {
			p.Extras.Locale = DefaultExtrasLocale
		}
	}
	if p.Extras.Quality == "" {
		p.Extras.Quality = DefaultExtrasQuality
	}
}

// Validate ensures the prompt JSON satisfies the required contract before
// persistence or enhancement.
func (p PromptJSON) Validate() error {
	if strings.TrimSpace(p.Subject) == "" {
		return fmt.Errorf("subject is required")
	}
	if p.Quantity < 1 || p.Quantity > MaxPromptQuantity {
		return fmt.Errorf("quantity must be between 1 and %d", MaxPromptQuantity)
	}
	if _, ok := allowedAspectRatios[p.AspectRatio]; !ok {
		return fmt.Errorf("aspect_ratio must be one of 1:1, 4:3, 3:4, 16:9, 9:16")
	}
	return nil
}

type UsageEventPayload struct {
	EventType string `json:"event_type"`
	Provider  string `json:"provider"`
	Success   bool   `json:"success"`
}

func MustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("json marshal: %w", err))
	}
	return b
}
