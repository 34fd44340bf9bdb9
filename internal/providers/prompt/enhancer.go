// Package prompt enriches raw user prompts before generation. A model-backed
// enhancer rewrites the prompt through a text provider and falls back to a
// deterministic static enhancer when no provider is configured.
package prompt

import (
	"context"
	"fmt"
	"strings"

	"server/internal/domain/jsoncfg"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	staticProviderName = "static"
	modelProviderName  = "model"
)

type EnhanceRequest struct {
	Prompt jsoncfg.PromptJSON
	Locale string
}

type EnhanceResponse struct {
	// Prompt is the rewritten natural-language prompt.
	Prompt   string            `json:"prompt"`
	Keywords []string          `json:"keywords"`
	Metadata map[string]string `json:"metadata"`
	Provider string            `json:"-"`
}

type Enhancer interface {
	Enhance(ctx context.Context, req EnhanceRequest) (*EnhanceResponse, error)
}

// StaticEnhancer composes an enriched prompt locally without any provider
// call. It backs the enhance endpoint when no text provider is configured and
// serves as the fallback for the model-backed enhancer.
type StaticEnhancer struct{}

func NewStaticEnhancer() *StaticEnhancer {
	return &StaticEnhancer{}
}

func (s *StaticEnhancer) Enhance(ctx context.Context, req EnhanceRequest) (*EnhanceResponse, error) {
	c := cases.Title(language.Und)
	p := req.Prompt

	subject := strings.TrimSpace(p.Subject)
	if subject == "" {
		subject = "the featured subject"
	}
	var parts []string
	parts = append(parts, fmt.Sprintf("%s, rendered in rich detail", c.String(subject)))
	if style := strings.TrimSpace(p.Style); style != "" {
		parts = append(parts, fmt.Sprintf("%s style", style))
	}
	if scene := strings.TrimSpace(p.Scene); scene != "" {
		parts = append(parts, fmt.Sprintf("set against %s", scene))
	}
	parts = append(parts, "balanced composition, professional lighting")
	if instr := strings.TrimSpace(p.Instructions); instr != "" {
		parts = append(parts, instr)
	}

	keywords := normalizeKeywords([]string{subject, p.Style, p.Scene}, subject)
	return &EnhanceResponse{
		Prompt:   strings.Join(parts, ", "),
		Keywords: keywords,
		Metadata: ensureMetadata(nil, req.Locale),
		Provider: staticProviderName,
	}, nil
}

var _ Enhancer = (*StaticEnhancer)(nil)
