package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"server/internal/genclient"
	httpapi "server/internal/http"
	"server/internal/http/handlers"
	"server/internal/infra"
	"server/internal/infra/credentials"
	"server/internal/infra/geoip"
	"server/internal/infra/google"
	appmw "server/internal/middleware"
	"server/internal/providers"
	"server/internal/providers/image"
	"server/internal/providers/prompt"
	"server/internal/providers/speech"
	videoprovider "server/internal/providers/video"
	"server/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	runner := infra.NewSQLRunner(dbpool, logger)
	credStore := credentials.NewStore(runner)

	fileStore, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}

	genClient, err := genclient.NewClient(genclient.Options{
		Endpoints: map[genclient.Kind]genclient.Endpoint{
			genclient.KindImage:  providers.ImageEndpoint(cfg.ImageAPIBaseURL),
			genclient.KindVideo:  providers.VideoEndpoint(cfg.VideoAPIBaseURL),
			genclient.KindSpeech: providers.SpeechEndpoint(cfg.SpeechAPIBaseURL),
			genclient.KindText:   providers.TextEndpoint(cfg.TextAPIBaseURL),
		},
		Logger: &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure generation client")
	}

	imageToken := providers.StoredToken(cfg.ImageAPIKey, credStore, credentials.ProviderImage)
	videoToken := providers.StoredToken(cfg.VideoAPIKey, credStore, credentials.ProviderVideo)
	speechToken := providers.StoredToken(cfg.SpeechAPIKey, credStore, credentials.ProviderSpeech)
	textToken := providers.StoredToken(cfg.TextAPIKey, credStore, credentials.ProviderText)

	enhancer, err := prompt.NewModelEnhancer(prompt.ModelOptions{
		Client:   genClient,
		Token:    textToken,
		Fallback: prompt.NewStaticEnhancer(),
		OnFallback: func(reason string, err error) {
			logger.Warn().Err(err).Str("reason", reason).Msg("prompt enhancement degraded to static")
		},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure prompt enhancer")
	}

	app := &handlers.App{
		SQL:            runner,
		Logger:         logger,
		Config:         cfg,
		JWTSecret:      cfg.JWTSecret,
		GoogleVerifier: google.NewVerifier(cfg.GoogleIssuer, cfg.GoogleClientID),
		ImageProviders: map[string]image.Generator{
			cfg.DefaultImageProvider: image.NewHTTPGenerator(cfg.DefaultImageProvider, genClient, imageToken),
		},
		VideoProviders: map[string]videoprovider.Generator{
			cfg.DefaultVideoProvider: videoprovider.NewHTTPGenerator(cfg.DefaultVideoProvider, genClient, videoToken),
		},
		Speech:         speech.NewHTTPSynthesizer("voxen", genClient, speechToken),
		PromptEnhancer: enhancer,
		Store:          fileStore,
	}

	var lookup appmw.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip database unavailable, locale falls back to headers")
	} else if resolver != nil {
		if closer, ok := resolver.(io.Closer); ok {
			defer closer.Close()
		}
		lookup = resolver.CountryCode
	}

	router := httpapi.NewRouter(app, lookup)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
