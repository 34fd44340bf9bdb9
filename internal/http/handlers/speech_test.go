package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"server/internal/genclient"
	"server/internal/infra"
	"server/internal/middleware"
	"server/internal/providers/speech"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

type stubSynthesizer struct {
	audio *speech.Audio
	err   error
	req   speech.SynthesizeRequest
}

func (s *stubSynthesizer) Synthesize(_ context.Context, req speech.SynthesizeRequest) (*speech.Audio, error) {
	s.req = req
	return s.audio, s.err
}

type noopSQL struct{}

func (noopSQL) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (noopSQL) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, pgx.ErrNoRows }
func (noopSQL) QueryRow(context.Context, string, ...any) pgx.Row        { return NewSimpleRow(nil) }

func newSpeechApp(syn speech.Synthesizer) *App {
	return &App{
		SQL:    noopSQL{},
		Logger: zerolog.New(io.Discard),
		Config: &infra.Config{SpeechVoiceDefault: "nova"},
		Speech: syn,
	}
}

func TestSpeechSynthesizeStreamsAudio(t *testing.T) {
	syn := &stubSynthesizer{audio: &speech.Audio{Data: []byte("mp3-bytes"), MIME: "audio/mpeg"}}
	app := newSpeechApp(syn)

	req := httptest.NewRequest("POST", "/v1/speech", bytes.NewReader([]byte(`{"text":"hello there world"}`)))
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), "user-1"))
	rr := httptest.NewRecorder()
	app.SpeechSynthesize(rr, req)

	if rr.Code != 200 {
		t.Fatalf("status = %d, want 200 (%s)", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Fatalf("content-type = %q, want audio/mpeg", ct)
	}
	if rr.Body.String() != "mp3-bytes" {
		t.Fatalf("body = %q, want raw audio", rr.Body.String())
	}
	if syn.req.VoiceID != "nova" {
		t.Fatalf("voice = %q, want default nova", syn.req.VoiceID)
	}
}

func TestSpeechSynthesizeRequiresText(t *testing.T) {
	app := newSpeechApp(&stubSynthesizer{})

	req := httptest.NewRequest("POST", "/v1/speech", bytes.NewReader([]byte(`{"voice_id":"nova"}`)))
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), "user-1"))
	rr := httptest.NewRecorder()
	app.SpeechSynthesize(rr, req)

	if rr.Code != 400 {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestSpeechSynthesizeProviderUnauthorized(t *testing.T) {
	syn := &stubSynthesizer{err: &genclient.Error{Kind: genclient.KindUnauthorized, Message: "invalid api key"}}
	app := newSpeechApp(syn)

	req := httptest.NewRequest("POST", "/v1/speech", bytes.NewReader([]byte(`{"text":"hello there world"}`)))
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), "user-1"))
	rr := httptest.NewRecorder()
	app.SpeechSynthesize(rr, req)

	if rr.Code != 502 {
		t.Fatalf("status = %d, want 502", rr.Code)
	}
}
