package image

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"server/internal/genclient"
)

type jobClient interface {
	Submit(ctx context.Context, token string, req genclient.Request) (*genclient.Result, error)
}

// HTTPGenerator adapts the job-based generation client to the Generator
// contract. Each requested variation is submitted as its own job so a single
// slow variation cannot starve the rest of the batch budget.
type HTTPGenerator struct {
	name   string
	client jobClient
	token  TokenSource
}

// NewHTTPGenerator wires a generation client with its credential source.
func NewHTTPGenerator(name string, client jobClient, token TokenSource) *HTTPGenerator {
	return &HTTPGenerator{name: name, client: client, token: token}
}

// Generate fulfils the Generator interface.
func (g *HTTPGenerator) Generate(ctx context.Context, req GenerateRequest) ([]Asset, error) {
	if g == nil || g.client == nil {
		return nil, fmt.Errorf("image generator not configured")
	}
	token, err := g.credential(ctx)
	if err != nil {
		return nil, err
	}
	quantity := req.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	size := AspectRatioSize(req.AspectRatio)
	width, height := sizeDimensions(size)

	assets := make([]Asset, 0, quantity)
	for i := 0; i < quantity; i++ {
		prompt := buildVariationPrompt(strings.TrimSpace(req.Prompt), quantity, i)
		params := map[string]any{
			"size": size,
			"seed": deterministicSeed(req.JobID, req.Provider, req.Locale, prompt, i),
		}
		if neg := strings.TrimSpace(req.NegativePrompt); neg != "" {
			params["negative_prompt"] = neg
		}
		if quality := strings.TrimSpace(req.Quality); quality != "" {
			params["quality"] = quality
		}

		genReq := genclient.Request{
			Kind:           genclient.KindImage,
			Prompt:         prompt,
			ProviderParams: params,
		}
		if src := req.SourceImage; src != nil {
			genReq.SourceAsset = src.Data
			genReq.SourceName = src.Filename
		}

		res, err := g.client.Submit(ctx, token, genReq)
		if err != nil {
			return nil, err
		}
		if res.Status != genclient.StatusSucceeded {
			return nil, &genclient.Error{Kind: res.ErrorKind, Message: res.Message}
		}
		assets = append(assets, Asset{
			URL:      res.ResultURL,
			Data:     res.ResultBytes,
			Format:   assetFormat(res),
			Width:    width,
			Height:   height,
			Metadata: res.Metadata,
		})
	}
	return assets, nil
}

func (g *HTTPGenerator) String() string {
	if g == nil || g.name == "" {
		return "image"
	}
	return g.name
}

var _ Generator = (*HTTPGenerator)(nil)

func (g *HTTPGenerator) credential(ctx context.Context) (string, error) {
	if g.token == nil {
		return "", nil
	}
	return g.token(ctx)
}

func assetFormat(res *genclient.Result) string {
	if raw, ok := res.Metadata["mime"]; ok {
		mime := strings.Trim(string(raw), `"`)
		return normalizeFormat(mime)
	}
	if url := strings.ToLower(res.ResultURL); strings.HasSuffix(url, ".jpg") || strings.HasSuffix(url, ".jpeg") {
		return "image/jpeg"
	}
	return "image/png"
}

func normalizeFormat(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	switch mime {
	case "image/jpeg", "image/jpg":
		return "image/jpeg"
	case "image/png":
		return "image/png"
	default:
		if strings.HasPrefix(mime, "image/") {
			return mime
		}
		return "image/png"
	}
}

func sizeDimensions(size string) (int, int) {
	parts := strings.SplitN(size, "*", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	width, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0
	}
	height, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0
	}
	return width, height
}

func deterministicSeed(values ...any) int {
	if len(values) == 0 {
		return 0
	}
	var parts []string
	for _, v := range values {
		parts = append(parts, fmt.Sprint(v))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	n := binary.BigEndian.Uint32(sum[:4])
	value := int(n % 2147483647)
	if value <= 0 {
		fallback := binary.BigEndian.Uint32(sum[4:8]) % 2147483647
		if fallback == 0 {
			fallback = 1
		}
		value = int(fallback)
	}
	return value
}

func buildVariationPrompt(prompt string, total, index int) string {
	trimmed := strings.TrimSpace(prompt)
	if total <= 1 {
		return trimmed
	}
	if trimmed == "" {
		return fmt.Sprintf("Variation #%d of the same concept.", index+1)
	}
	return fmt.Sprintf("%s\nVariation #%d of the same concept.", trimmed, index+1)
}
