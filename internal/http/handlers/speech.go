package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"server/internal/domain/jsoncfg"
	"server/internal/genclient"
	"server/internal/providers/speech"
	"server/internal/sqlinline"
)

type speechRequest struct {
	Text    string         `json:"text"`
	VoiceID string         `json:"voice_id"`
	Params  map[string]any `json:"params"`
}

// SpeechSynthesize runs text-to-speech synchronously and streams the clip
// back. Speech never goes through the job queue.
func (a *App) SpeechSynthesize(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	if a.Speech == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "speech provider not configured")
		return
	}
	var req speechRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "text required")
		return
	}
	voice := strings.TrimSpace(req.VoiceID)
	if voice == "" {
		voice = a.Config.SpeechVoiceDefault
	}

	audio, err := a.Speech.Synthesize(r.Context(), speech.SynthesizeRequest{
		Text:    req.Text,
		VoiceID: voice,
		Params:  req.Params,
	})
	if err != nil {
		a.logSpeechUsage(r, userID, false)
		var genErr *genclient.Error
		if errors.As(err, &genErr) {
			switch genErr.Kind {
			case genclient.KindInvalidInput:
				a.error(w, http.StatusBadRequest, "bad_request", genErr.Message)
			case genclient.KindUnauthorized:
				a.error(w, http.StatusBadGateway, "provider_unauthorized", "speech provider rejected credentials")
			default:
				a.error(w, http.StatusBadGateway, "provider_error", genErr.Message)
			}
			return
		}
		a.Logger.Error().Err(err).Msg("speech synthesis failed")
		a.error(w, http.StatusInternalServerError, "internal", "speech synthesis failed")
		return
	}
	a.logSpeechUsage(r, userID, true)

	if len(audio.Data) == 0 && audio.URL != "" {
		a.json(w, http.StatusOK, map[string]string{"url": audio.URL, "mime": audio.MIME})
		return
	}
	w.Header().Set("Content-Type", audio.MIME)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio.Data)
}

func (a *App) logSpeechUsage(r *http.Request, userID string, success bool) {
	payload := jsoncfg.MustMarshal(jsoncfg.UsageEventPayload{EventType: "SPEECH_SYNTHESIZE", Provider: "speech", Success: success})
	if _, err := a.SQL.Exec(r.Context(), sqlinline.QInsertUsageEvent, userID, nil, "SPEECH_SYNTHESIZE", success, 0, payload); err != nil {
		a.Logger.Warn().Err(err).Msg("log speech usage failed")
	}
}
