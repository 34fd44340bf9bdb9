package handlers

import (
	"encoding/json"
	"net/http"

	"server/internal/domain/jsoncfg"
	"server/internal/middleware"
	"server/internal/providers/prompt"
	"server/internal/sqlinline"
)

type promptEnhanceRequest struct {
	Prompt jsoncfg.PromptJSON `json:"prompt"`
}

type promptEnhanceResponse struct {
	Prompt   string            `json:"prompt"`
	Keywords []string          `json:"keywords"`
	Extra    map[string]string `json:"extra"`
}

func (a *App) PromptEnhance(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	if a.PromptEnhancer == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "prompt enhancer not configured")
		return
	}
	var req promptEnhanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	locale := middleware.LocaleFromContext(r.Context())
	req.Prompt.Normalize(locale)

	res, err := a.PromptEnhancer.Enhance(r.Context(), prompt.EnhanceRequest{
		Prompt: req.Prompt,
		Locale: locale,
	})
	if err != nil {
		a.Logger.Error().Err(err).Msg("prompt enhance failed")
		a.error(w, http.StatusInternalServerError, "internal", "enhancer failed")
		return
	}
	_, _ = a.SQL.Exec(r.Context(), sqlinline.QInsertUsageEvent, userID, nil, "PROMPT_ENHANCE", true, 0, jsoncfg.MustMarshal(map[string]any{"locale": locale, "provider": res.Provider}))
	a.json(w, http.StatusOK, promptEnhanceResponse{Prompt: res.Prompt, Keywords: res.Keywords, Extra: res.Metadata})
}
