// Package speech wraps synchronous text-to-speech providers.
package speech

import (
	"context"
	"fmt"
	"strings"

	"server/internal/genclient"
)

// SynthesizeRequest describes a normalized text-to-speech request.
type SynthesizeRequest struct {
	Text    string
	VoiceID string
	// Params carries provider tunables such as stability or speaking rate.
	Params map[string]any
}

// Audio is the synthesized clip. Providers either return inline bytes or a
// hosted URL, never both.
type Audio struct {
	Data []byte
	URL  string
	MIME string
}

// Synthesizer is the contract implemented by all speech providers.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesizeRequest) (*Audio, error)
}

// TokenSource supplies the bearer credential for outbound provider calls.
type TokenSource func(ctx context.Context) (string, error)

type jobClient interface {
	Submit(ctx context.Context, token string, req genclient.Request) (*genclient.Result, error)
}

// HTTPSynthesizer adapts the job-based generation client to the Synthesizer
// contract. Speech providers respond synchronously so no polling happens.
type HTTPSynthesizer struct {
	name   string
	client jobClient
	token  TokenSource
}

func NewHTTPSynthesizer(name string, client jobClient, token TokenSource) *HTTPSynthesizer {
	return &HTTPSynthesizer{name: name, client: client, token: token}
}

// Synthesize fulfils the Synthesizer interface.
func (s *HTTPSynthesizer) Synthesize(ctx context.Context, req SynthesizeRequest) (*Audio, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("speech synthesizer not configured")
	}
	var token string
	if s.token != nil {
		var err error
		if token, err = s.token(ctx); err != nil {
			return nil, err
		}
	}

	res, err := s.client.Submit(ctx, token, genclient.Request{
		Kind:           genclient.KindSpeech,
		Prompt:         strings.TrimSpace(req.Text),
		VoiceID:        strings.TrimSpace(req.VoiceID),
		ProviderParams: req.Params,
	})
	if err != nil {
		return nil, err
	}
	if res.Status != genclient.StatusSucceeded {
		return nil, &genclient.Error{Kind: res.ErrorKind, Message: res.Message}
	}
	return &Audio{Data: res.ResultBytes, URL: res.ResultURL, MIME: "audio/mpeg"}, nil
}

func (s *HTTPSynthesizer) String() string {
	if s == nil || s.name == "" {
		return "speech"
	}
	return s.name
}

var _ Synthesizer = (*HTTPSynthesizer)(nil)
