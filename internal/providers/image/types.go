package image

import (
	"context"
	"encoding/json"
)

// SourceImage describes an uploaded asset that can be used as conditioning input.
type SourceImage struct {
	AssetID    string
	StorageKey string
	URL        string
	MIME       string
	Data       []byte
	Width      int
	Height     int
	Filename   string
}

// GenerateRequest describes a normalized request passed to any image provider.
type GenerateRequest struct {
	Prompt         string
	NegativePrompt string
	Quantity       int
	AspectRatio    string
	Provider       string
	JobID          string
	Locale         string
	Quality        string
	SourceImage    *SourceImage
}

// Asset represents a generated or edited image.
type Asset struct {
	StorageKey string
	URL        string
	Format     string
	Width      int
	Height     int
	Data       []byte
	Metadata   map[string]json.RawMessage
}

// Generator is the contract implemented by all image providers.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) ([]Asset, error)
}

// TokenSource supplies the bearer credential for outbound provider calls.
type TokenSource func(ctx context.Context) (string, error)
