package prompt

import (
	"context"
	"fmt"
	"strings"

	"server/internal/genclient"
)

// TokenSource supplies the bearer credential for outbound provider calls.
type TokenSource func(ctx context.Context) (string, error)

type jobClient interface {
	Submit(ctx context.Context, token string, req genclient.Request) (*genclient.Result, error)
}

// ModelOptions configure the model-backed enhancer.
type ModelOptions struct {
	Client   jobClient
	Token    TokenSource
	Fallback Enhancer
	// OnFallback is invoked whenever the model path is abandoned for the
	// fallback enhancer. Used for logging.
	OnFallback func(reason string, err error)
}

// ModelEnhancer rewrites prompts through a text generation provider and
// degrades to its fallback when the provider misbehaves.
type ModelEnhancer struct {
	client     jobClient
	token      TokenSource
	fallback   Enhancer
	onFallback func(reason string, err error)
}

func NewModelEnhancer(opts ModelOptions) (*ModelEnhancer, error) {
	if opts.Client == nil && opts.Fallback == nil {
		return nil, fmt.Errorf("model enhancer requires a client or a fallback")
	}
	return &ModelEnhancer{
		client:     opts.Client,
		token:      opts.Token,
		fallback:   opts.Fallback,
		onFallback: opts.OnFallback,
	}, nil
}

func (m *ModelEnhancer) Enhance(ctx context.Context, req EnhanceRequest) (*EnhanceResponse, error) {
	if m.client == nil {
		return m.degrade(ctx, req, "not_configured", nil)
	}
	var token string
	if m.token != nil {
		var err error
		if token, err = m.token(ctx); err != nil {
			return m.degrade(ctx, req, "credentials", err)
		}
	}

	res, err := m.client.Submit(ctx, token, genclient.Request{
		Kind:   genclient.KindText,
		Prompt: buildEnhanceInstruction(req),
	})
	if err != nil {
		// Submit only errors on cancellation; never mask that.
		return nil, err
	}
	if res.Status != genclient.StatusSucceeded {
		return m.degrade(ctx, req, "provider_error", &genclient.Error{Kind: res.ErrorKind, Message: res.Message})
	}

	payload, err := parseModelPayload[modelEnhancePayload](res.Text)
	if err != nil {
		return m.degrade(ctx, req, "malformed_payload", err)
	}
	rewritten := strings.TrimSpace(payload.Prompt)
	if rewritten == "" {
		return m.degrade(ctx, req, "empty_payload", nil)
	}

	locale := req.Locale
	if locale == "" {
		locale = req.Prompt.Extras.Locale
	}
	return &EnhanceResponse{
		Prompt:   rewritten,
		Keywords: normalizeKeywords(payload.Keywords, strings.TrimSpace(req.Prompt.Subject)),
		Metadata: ensureMetadata(payload.Metadata, locale),
		Provider: modelProviderName,
	}, nil
}

func (m *ModelEnhancer) degrade(ctx context.Context, req EnhanceRequest, reason string, cause error) (*EnhanceResponse, error) {
	if m.fallback == nil {
		if cause != nil {
			return nil, cause
		}
		return nil, fmt.Errorf("prompt enhancer unavailable: %s", reason)
	}
	if m.onFallback != nil {
		m.onFallback(reason, cause)
	}
	return m.fallback.Enhance(ctx, req)
}

var _ Enhancer = (*ModelEnhancer)(nil)
