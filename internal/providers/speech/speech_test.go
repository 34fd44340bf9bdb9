package speech

import (
	"context"
	"errors"
	"testing"

	"server/internal/genclient"
)

type stubJobClient struct {
	result *genclient.Result
	req    genclient.Request
}

func (s *stubJobClient) Submit(ctx context.Context, token string, req genclient.Request) (*genclient.Result, error) {
	s.req = req
	return s.result, nil
}

func TestSynthesizeReturnsInlineAudio(t *testing.T) {
	client := &stubJobClient{result: &genclient.Result{
		Status:      genclient.StatusSucceeded,
		ResultBytes: []byte("mp3-bytes"),
	}}
	syn := NewHTTPSynthesizer("voxen", client, nil)

	audio, err := syn.Synthesize(context.Background(), SynthesizeRequest{
		Text:    "welcome to the product tour",
		VoiceID: "nova",
		Params:  map[string]any{"stability": 0.6},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(audio.Data) != "mp3-bytes" || audio.MIME != "audio/mpeg" {
		t.Fatalf("unexpected audio: %#v", audio)
	}
	if client.req.Kind != genclient.KindSpeech || client.req.VoiceID != "nova" {
		t.Fatalf("unexpected request: %#v", client.req)
	}
	if client.req.ProviderParams["stability"] != 0.6 {
		t.Fatalf("params not forwarded: %#v", client.req.ProviderParams)
	}
}

func TestSynthesizeSurfacesUnauthorized(t *testing.T) {
	client := &stubJobClient{result: &genclient.Result{
		Status:    genclient.StatusFailed,
		ErrorKind: genclient.KindUnauthorized,
		Message:   "invalid api key",
	}}
	syn := NewHTTPSynthesizer("voxen", client, nil)

	_, err := syn.Synthesize(context.Background(), SynthesizeRequest{Text: "one two three", VoiceID: "nova"})
	var genErr *genclient.Error
	if !errors.As(err, &genErr) {
		t.Fatalf("error type = %T, want *genclient.Error", err)
	}
	if genErr.Kind != genclient.KindUnauthorized {
		t.Fatalf("kind = %q, want unauthorized", genErr.Kind)
	}
}
