package image

import (
	"fmt"
	"strings"

	"server/internal/domain/jsoncfg"
)

// DefaultNegativePrompt captures undesirable artefacts we want the model to avoid.
const DefaultNegativePrompt = "low quality, blurry, distorted, washed out, incorrect anatomy, extra limbs, text artefacts, watermark"

// BuildPrompt converts the structured prompt JSON into a natural language
// instruction tailored for text-to-image models.
func BuildPrompt(p jsoncfg.PromptJSON) string {
	var lines []string

	subject := strings.TrimSpace(p.Subject)
	if subject != "" {
		lines = append(lines, fmt.Sprintf("Create a high quality image of %s.", subject))
	} else {
		lines = append(lines, "Create a high quality image.")
	}

	var stylistic []string
	if style := strings.TrimSpace(p.Style); style != "" {
		stylistic = append(stylistic, fmt.Sprintf("visual style %q", style))
	}
	if scene := strings.TrimSpace(p.Scene); scene != "" {
		stylistic = append(stylistic, fmt.Sprintf("scene %q", scene))
	}
	if len(stylistic) > 0 {
		lines = append(lines, "Visual direction: "+strings.Join(stylistic, ", ")+".")
	}

	if instr := strings.TrimSpace(p.Instructions); instr != "" {
		lines = append(lines, fmt.Sprintf("Creative guidance: %s.", instr))
	}

	if len(p.References) > 0 {
		refs := make([]string, 0, len(p.References))
		for _, ref := range p.References {
			ref = strings.TrimSpace(ref)
			if ref != "" {
				refs = append(refs, ref)
			}
		}
		if len(refs) > 0 {
			lines = append(lines, "Inspiration references: "+strings.Join(refs, "; "))
		}
	}

	quality := strings.TrimSpace(p.Extras.Quality)
	if quality == "" {
		quality = jsoncfg.DefaultExtrasQuality
	}
	lines = append(lines, fmt.Sprintf("Render with %s quality lighting, sharp focus, and clean post-processing.", quality))

	locale := strings.TrimSpace(p.Extras.Locale)
	if locale == "" {
		locale = jsoncfg.DefaultExtrasLocale
	}
	lines = append(lines, fmt.Sprintf("Use %s language for any on-image typography or signage.", strings.ToUpper(locale)))

	return strings.Join(lines, "\n")
}

// AspectRatioSize maps an aspect ratio string to a provider size token.
func AspectRatioSize(aspect string) string {
	switch strings.TrimSpace(aspect) {
	case "16:9":
		return "1664*928"
	case "4:3":
		return "1472*1104"
	case "3:4":
		return "1140*1472"
	case "9:16":
		return "928*1664"
	default:
		return "1328*1328"
	}
}
