package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"server/internal/infra"
	"server/internal/middleware"
	"server/internal/providers/image"
	"server/internal/providers/prompt"
	"server/internal/providers/speech"
	"server/internal/providers/video"
	"server/internal/storage"
)

// GoogleVerifier validates a Google ID token and returns its claims.
type GoogleVerifier interface {
	VerifyIDToken(ctx context.Context, token string) (map[string]any, error)
}

// App bundles the dependencies shared by every HTTP handler.
type App struct {
	SQL            infra.SQLExecutor
	Logger         infra.Logger
	Config         *infra.Config
	JWTSecret      string
	GoogleVerifier GoogleVerifier
	ImageProviders map[string]image.Generator
	VideoProviders map[string]video.Generator
	Speech         speech.Synthesizer
	PromptEnhancer prompt.Enhancer
	Store          *storage.FileStore
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{
		"error": map[string]string{"code": errCode, "message": message},
	})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

// assetURL resolves a storage key to a client-facing URL. Absolute keys
// (already hosted elsewhere) pass through untouched.
func (a *App) assetURL(storageKey string) string {
	key := strings.TrimSpace(storageKey)
	if key == "" {
		return ""
	}
	lower := strings.ToLower(key)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "data:") {
		return key
	}
	base := ""
	if a.Config != nil {
		base = strings.TrimRight(a.Config.StorageBaseURL, "/")
	}
	return base + "/" + strings.TrimLeft(key, "/")
}
