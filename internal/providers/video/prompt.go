package video

import (
	"fmt"
	"strings"

	"server/internal/domain/jsoncfg"
)

// BuildPrompt converts the structured prompt JSON into a natural language
// instruction tailored for image-to-video models. The subject describes the
// conditioning frame; scene and instructions drive camera motion and pacing.
func BuildPrompt(p jsoncfg.PromptJSON) string {
	var lines []string

	subject := strings.TrimSpace(p.Subject)
	if subject != "" {
		lines = append(lines, fmt.Sprintf("Animate the source frame into a short clip of %s.", subject))
	} else {
		lines = append(lines, "Animate the source frame into a short clip.")
	}

	var direction []string
	if style := strings.TrimSpace(p.Style); style != "" {
		direction = append(direction, fmt.Sprintf("visual style %q", style))
	}
	if scene := strings.TrimSpace(p.Scene); scene != "" {
		direction = append(direction, fmt.Sprintf("scene %q", scene))
	}
	if len(direction) > 0 {
		lines = append(lines, "Scene direction: "+strings.Join(direction, ", ")+".")
	}

	if instr := strings.TrimSpace(p.Instructions); instr != "" {
		lines = append(lines, fmt.Sprintf("Motion guidance: %s.", instr))
	} else {
		lines = append(lines, "Motion guidance: smooth, subtle camera movement that keeps the subject in frame.")
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
	lines = append(lines, fmt.Sprintf("Render with %s quality, stable framing, and no flicker between frames.", quality))

	return strings.Join(lines, "\n")
}
