package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"server/internal/domain/jsoncfg"
)

type modelEnhancePayload struct {
	Prompt   string            `json:"prompt"`
	Keywords []string          `json:"keywords"`
	Metadata map[string]string `json:"metadata"`
}

func buildEnhanceInstruction(req EnhanceRequest) string {
	p := req.Prompt
	locale := req.Locale
	if locale == "" {
		locale = p.Extras.Locale
	}
	sb := &strings.Builder{}
	sb.WriteString("You are a prompt engineer for generative image and video models. Respond strictly with JSON matching this schema: ")
	sb.WriteString(`{"prompt":string,"keywords":string[],"metadata":{"locale":string}}`)
	fmt.Fprintf(sb, ". Rewrite the input into one vivid, concrete prompt. Use locale '%s' for language choices. Input details: subject=%q, style=%q, scene=%q, instructions=%q.", locale, p.Subject, p.Style, p.Scene, p.Instructions)
	return sb.String()
}

func ensureMetadata(meta map[string]string, locale string) map[string]string {
	if meta == nil {
		meta = map[string]string{}
	}
	if locale != "" {
		meta["locale"] = locale
	} else if _, ok := meta["locale"]; !ok {
		meta["locale"] = jsoncfg.DefaultExtrasLocale
	}
	return meta
}

func normalizeKeywords(keywords []string, fallback string) []string {
	seen := make(map[string]struct{})
	var result []string
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		kwLower := strings.ToLower(kw)
		if _, ok := seen[kwLower]; ok {
			continue
		}
		seen[kwLower] = struct{}{}
		result = append(result, kw)
	}
	if len(result) == 0 && fallback != "" {
		result = []string{fallback}
	}
	return result
}

func parseModelPayload[T any](raw string) (T, error) {
	var zero T
	cleaned := extractJSONFragment(raw)
	if cleaned == "" {
		return zero, errors.New("empty payload")
	}
	var decoded T
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		return zero, err
	}
	return decoded, nil
}

func extractJSONFragment(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	text = trimCodeFence(text)
	start := strings.IndexAny(text, "{[")
	end := strings.LastIndexAny(text, "]}")
	if start >= 0 && end >= start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func trimCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```JSON")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
