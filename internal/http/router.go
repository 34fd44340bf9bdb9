package httpapi

import (
	"net/http"
	"time"

	"server/internal/http/handlers"
	appmw "server/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires every HTTP surface of the service. The country lookup is
// optional; without it locale detection falls back to request headers.
func NewRouter(app *handlers.App, lookup appmw.CountryLookup) http.Handler {
	r := chi.NewRouter()

	r.Use(appmw.RequestID, chimw.RealIP, chimw.Recoverer)
	r.Use(appmw.Logger(app.Logger))
	r.Use(appmw.CORS(app.Config.CORSOrigins))
	if app.Config.RateLimitPerMin > 0 {
		r.Use(appmw.RateLimit(app.Config.RateLimitPerMin, time.Minute))
	}
	r.Use(appmw.I18N(app.Config.DefaultLocale, lookup))

	// Public surface
	r.Get("/v1/healthz", app.Health)
	r.Post("/v1/auth/google", app.AuthGoogleVerify)
	r.Get("/v1/billing/plans", app.BillingPlans)
	r.Post("/v1/billing/webhook", app.BillingWebhook)
	r.Get("/v1/stats/summary", app.StatsSummary)

	if app.Config.StoragePath != "" {
		static := http.StripPrefix("/static/", http.FileServer(http.Dir(app.Config.StoragePath)))
		r.Get("/static/*", static.ServeHTTP)
	}

	// Authenticated surface
	r.Group(func(r chi.Router) {
		r.Use(appmw.AuthJWT(app.JWTSecret))

		r.Get("/v1/me", app.Me)

		r.Route("/v1/generations", func(r chi.Router) {
			r.Post("/", app.GenerationsCreate)
			r.Get("/{job_id}", app.GenerationStatus)
			r.Get("/{job_id}/assets", app.GenerationAssets)
			r.Get("/{job_id}/archive", app.GenerationArchive)
		})

		r.Post("/v1/speech", app.SpeechSynthesize)
		r.Post("/v1/prompts/enhance", app.PromptEnhance)
		r.Post("/v1/prompts/clear", app.PromptClear)

		r.Route("/v1/assets", func(r chi.Router) {
			r.Get("/", app.ListAssets)
			r.Post("/", app.UploadAsset)
			r.Get("/{id}/download", app.DownloadAsset)
		})

		r.Post("/v1/billing/checkout", app.CheckoutCreate)
	})

	return r
}
