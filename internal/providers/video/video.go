// Package video turns conditioning images and prompts into short clips via
// job-based generation providers.
package video

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"server/internal/genclient"
)

// SourceImage is the first-frame conditioning input required by every
// supported video provider.
type SourceImage struct {
	AssetID  string
	MIME     string
	Data     []byte
	Filename string
}

// GenerateRequest describes a normalized request passed to any video provider.
type GenerateRequest struct {
	Prompt      string
	AspectRatio string
	Provider    string
	JobID       string
	Locale      string
	SourceImage *SourceImage
}

// Asset represents a generated clip.
type Asset struct {
	URL      string
	Format   string
	Data     []byte
	Metadata map[string]json.RawMessage
}

// Generator is the contract implemented by all video providers.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Asset, error)
}

// TokenSource supplies the bearer credential for outbound provider calls.
type TokenSource func(ctx context.Context) (string, error)

type jobClient interface {
	Submit(ctx context.Context, token string, req genclient.Request) (*genclient.Result, error)
}

// HTTPGenerator adapts the job-based generation client to the Generator
// contract.
type HTTPGenerator struct {
	name   string
	client jobClient
	token  TokenSource
}

func NewHTTPGenerator(name string, client jobClient, token TokenSource) *HTTPGenerator {
	return &HTTPGenerator{name: name, client: client, token: token}
}

// Generate fulfils the Generator interface.
func (g *HTTPGenerator) Generate(ctx context.Context, req GenerateRequest) (*Asset, error) {
	if g == nil || g.client == nil {
		return nil, fmt.Errorf("video generator not configured")
	}
	var token string
	if g.token != nil {
		var err error
		if token, err = g.token(ctx); err != nil {
			return nil, err
		}
	}

	params := map[string]any{}
	if aspect := strings.TrimSpace(req.AspectRatio); aspect != "" {
		params["aspect_ratio"] = aspect
	}
	genReq := genclient.Request{
		Kind:           genclient.KindVideo,
		Prompt:         strings.TrimSpace(req.Prompt),
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
	return &Asset{
		URL:      res.ResultURL,
		Format:   "video/mp4",
		Data:     res.ResultBytes,
		Metadata: res.Metadata,
	}, nil
}

func (g *HTTPGenerator) String() string {
	if g == nil || g.name == "" {
		return "video"
	}
	return g.name
}

var _ Generator = (*HTTPGenerator)(nil)
