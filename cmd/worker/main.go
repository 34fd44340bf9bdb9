package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"server/internal/domain"
	"server/internal/domain/jsoncfg"
	"server/internal/genclient"
	"server/internal/infra"
	"server/internal/infra/credentials"
	"server/internal/providers"
	"server/internal/providers/image"
	videoprovider "server/internal/providers/video"
	"server/internal/sqlinline"
	"server/internal/storage"
)

const jobPollInterval = 2 * time.Second

type job struct {
	ID       string
	UserID   string
	TaskType string
	Provider string
	Quantity int
	Aspect   string
	Prompt   json.RawMessage
}

type jobWorker struct {
	ctx            context.Context
	runner         *infra.SQLRunner
	logger         infra.Logger
	imageProviders map[string]image.Generator
	videoProviders map[string]videoprovider.Generator
	store          *storage.FileStore
}

var errNoJobAvailable = errors.New("no job available")

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)

	storagePath := cfg.StoragePath
	if storagePath == "" {
		storagePath = "./storage"
	}
	if !filepath.IsAbs(storagePath) {
		if abs, err := filepath.Abs(storagePath); err == nil {
			storagePath = abs
		}
	}
	fileStore, err := storage.NewFileStore(storagePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	credStore := credentials.NewStore(runner)

	genClient, err := genclient.NewClient(genclient.Options{
		Endpoints: map[genclient.Kind]genclient.Endpoint{
			genclient.KindImage: providers.ImageEndpoint(cfg.ImageAPIBaseURL),
			genclient.KindVideo: providers.VideoEndpoint(cfg.VideoAPIBaseURL),
		},
		Logger: &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure generation client")
	}

	imageToken := providers.StoredToken(cfg.ImageAPIKey, credStore, credentials.ProviderImage)
	videoToken := providers.StoredToken(cfg.VideoAPIKey, credStore, credentials.ProviderVideo)

	worker := &jobWorker{
		ctx:    ctx,
		runner: runner,
		logger: logger,
		imageProviders: map[string]image.Generator{
			cfg.DefaultImageProvider: image.NewHTTPGenerator(cfg.DefaultImageProvider, genClient, imageToken),
		},
		videoProviders: map[string]videoprovider.Generator{
			cfg.DefaultVideoProvider: videoprovider.NewHTTPGenerator(cfg.DefaultVideoProvider, genClient, videoToken),
		},
		store: fileStore,
	}

	if err := worker.Run(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

func (w *jobWorker) Run() error {
	w.logger.Info().Msg("worker: started")
	for {
		select {
		case <-w.ctx.Done():
			return w.ctx.Err()
		default:
		}

		j, err := w.claimJob()
		if err != nil {
			if errors.Is(err, errNoJobAvailable) {
				time.Sleep(jobPollInterval)
				continue
			}
			if w.ctx.Err() != nil {
				return w.ctx.Err()
			}
			w.logger.Error().Err(err).Msg("worker: failed to claim job")
			time.Sleep(jobPollInterval)
			continue
		}

		w.handleJob(j)
	}
}

func (w *jobWorker) claimJob() (job, error) {
	row := w.runner.QueryRow(w.ctx, sqlinline.QWorkerClaimJob)
	var j job
	if err := row.Scan(&j.ID, &j.UserID, &j.TaskType, &j.Provider, &j.Quantity, &j.Aspect, &j.Prompt); err != nil {
		if infra.IsNoRows(err) {
			return job{}, errNoJobAvailable
		}
		return job{}, err
	}
	// Ensure prompt bytes are not aliased.
	j.Prompt = append(json.RawMessage(nil), j.Prompt...)
	return j, nil
}

// handleJob runs one claimed job to a terminal status. Timed-out generations
// are kept distinct from failures so callers can retry them cheaply.
func (w *jobWorker) handleJob(j job) {
	w.logger.Info().Str("job_id", j.ID).Str("task_type", j.TaskType).Msg("worker: picked job")
	started := time.Now()

	status := domain.JobStatusSucceeded
	var errKind, errMsg string
	result, err := w.dispatch(j)
	if err != nil {
		var cerr *genclient.Error
		if errors.As(err, &cerr) {
			errKind = string(cerr.Kind)
			errMsg = cerr.Message
			if cerr.Kind == genclient.KindTimedOut {
				status = domain.JobStatusTimedOut
			} else {
				status = domain.JobStatusFailed
			}
		} else {
			errKind = string(genclient.KindGenerationFailed)
			errMsg = err.Error()
			status = domain.JobStatusFailed
		}
		w.logger.Error().Err(err).Str("job_id", j.ID).Str("status", string(status)).Msg("worker: job did not succeed")
	}

	if err := w.updateStatus(j.ID, status, errKind, errMsg, result); err != nil {
		w.logger.Error().Err(err).Str("job_id", j.ID).Msg("worker: update status failed")
	}
	w.recordUsage(j, status == domain.JobStatusSucceeded, time.Since(started))
}

func (w *jobWorker) dispatch(j job) (json.RawMessage, error) {
	switch domain.JobType(j.TaskType) {
	case domain.JobTypeImageGen:
		return w.processImageJob(j)
	case domain.JobTypeVideoGen:
		return w.processVideoJob(j)
	default:
		return nil, fmt.Errorf("unsupported job type %q", j.TaskType)
	}
}

func (w *jobWorker) updateStatus(jobID string, status domain.JobStatus, errKind, errMsg string, result json.RawMessage) error {
	var resultArg any
	if len(result) > 0 {
		resultArg = []byte(result)
	}
	_, err := w.runner.Exec(w.ctx, sqlinline.QUpdateJobStatus, jobID, string(status), errKind, errMsg, resultArg)
	return err
}

func (w *jobWorker) recordUsage(j job, success bool, elapsed time.Duration) {
	payload := jsoncfg.MustMarshal(jsoncfg.UsageEventPayload{
		EventType: j.TaskType,
		Provider:  j.Provider,
		Success:   success,
	})
	if _, err := w.runner.Exec(w.ctx, sqlinline.QInsertUsageEvent,
		j.UserID, j.ID, j.TaskType, success, elapsed.Milliseconds(), payload); err != nil {
		w.logger.Warn().Err(err).Str("job_id", j.ID).Msg("worker: record usage failed")
	}
}

func (w *jobWorker) processImageJob(j job) (json.RawMessage, error) {
	var prompt jsoncfg.PromptJSON
	if err := json.Unmarshal(j.Prompt, &prompt); err != nil {
		return nil, &genclient.Error{Kind: genclient.KindInvalidInput, Message: fmt.Sprintf("decode image prompt: %v", err)}
	}
	generator, ok := w.imageProviders[j.Provider]
	if !ok {
		return nil, fmt.Errorf("image provider %q not configured", j.Provider)
	}
	source, err := w.loadSourceAsset(prompt.SourceAssetID, j.UserID)
	if err != nil {
		return nil, err
	}

	negative := strings.TrimSpace(prompt.NegativePrompt)
	if negative == "" {
		negative = image.DefaultNegativePrompt
	}
	assets, err := generator.Generate(w.ctx, image.GenerateRequest{
		Prompt:         image.BuildPrompt(prompt),
		NegativePrompt: negative,
		Quantity:       j.Quantity,
		AspectRatio:    j.Aspect,
		Provider:       j.Provider,
		JobID:          j.ID,
		Locale:         prompt.Extras.Locale,
		Quality:        prompt.Extras.Quality,
		SourceImage: &image.SourceImage{
			AssetID:    source.ID,
			StorageKey: source.StorageKey,
			MIME:       source.MIME,
			Data:       source.Data,
			Width:      source.Width,
			Height:     source.Height,
			Filename:   filepath.Base(source.StorageKey),
		},
	})
	if err != nil {
		return nil, err
	}

	stored := 0
	for idx, asset := range assets {
		storageKey, size := w.persistAsset(j.ID, j.Provider, asset.Format, asset.StorageKey, asset.URL, asset.Data, idx)
		if storageKey == "" {
			w.logger.Error().Str("job_id", j.ID).Msg("worker: image asset missing storage key")
			continue
		}
		metadata := map[string]any{"provider": j.Provider, "source_asset_id": source.ID}
		if asset.URL != "" && asset.URL != storageKey {
			metadata["source_url"] = asset.URL
		}
		if err := w.insertAsset(j, domain.AssetKindImage, storageKey, asset.Format, size, asset.Width, asset.Height, metadata); err != nil {
			w.logger.Error().Err(err).Str("job_id", j.ID).Msg("worker: insert image asset failed")
			continue
		}
		stored++
	}
	if stored == 0 {
		return nil, fmt.Errorf("no image asset could be persisted")
	}
	return jsoncfg.MustMarshal(map[string]any{"assets": stored, "provider": j.Provider}), nil
}

func (w *jobWorker) processVideoJob(j job) (json.RawMessage, error) {
	var prompt jsoncfg.PromptJSON
	if err := json.Unmarshal(j.Prompt, &prompt); err != nil {
		return nil, &genclient.Error{Kind: genclient.KindInvalidInput, Message: fmt.Sprintf("decode video prompt: %v", err)}
	}
	generator, ok := w.videoProviders[j.Provider]
	if !ok {
		return nil, fmt.Errorf("video provider %q not configured", j.Provider)
	}
	source, err := w.loadSourceAsset(prompt.SourceAssetID, j.UserID)
	if err != nil {
		return nil, err
	}

	asset, err := generator.Generate(w.ctx, videoprovider.GenerateRequest{
		Prompt:      videoprovider.BuildPrompt(prompt),
		AspectRatio: j.Aspect,
		Provider:    j.Provider,
		JobID:       j.ID,
		Locale:      prompt.Extras.Locale,
		SourceImage: &videoprovider.SourceImage{
			AssetID:  source.ID,
			MIME:     source.MIME,
			Data:     source.Data,
			Filename: filepath.Base(source.StorageKey),
		},
	})
	if err != nil {
		return nil, err
	}

	storageKey, size := w.persistAsset(j.ID, j.Provider, asset.Format, "", asset.URL, asset.Data, 0)
	if storageKey == "" {
		return nil, fmt.Errorf("video asset missing storage key")
	}
	metadata := map[string]any{"provider": j.Provider, "source_asset_id": source.ID}
	if asset.URL != "" && asset.URL != storageKey {
		metadata["source_url"] = asset.URL
	}
	if err := w.insertAsset(j, domain.AssetKindVideo, storageKey, asset.Format, size, 0, 0, metadata); err != nil {
		return nil, fmt.Errorf("insert video asset: %w", err)
	}
	return jsoncfg.MustMarshal(map[string]any{"assets": 1, "provider": j.Provider}), nil
}

func (w *jobWorker) insertAsset(j job, kind domain.AssetKind, storageKey, mime string, size int64, width, height int, metadata map[string]any) error {
	row := w.runner.QueryRow(
		w.ctx,
		sqlinline.QInsertGeneratedAsset,
		j.UserID,
		string(kind),
		j.ID,
		storageKey,
		mime,
		size,
		width,
		height,
		j.Aspect,
		jsoncfg.MustMarshal(metadata),
	)
	var assetID string
	return row.Scan(&assetID)
}

type sourceAsset struct {
	ID         string
	StorageKey string
	MIME       string
	Width      int
	Height     int
	Data       []byte
}

// loadSourceAsset resolves the conditioning asset referenced by the prompt and
// reads its bytes from the file store. Ownership is checked so one user's job
// can never read another user's upload.
func (w *jobWorker) loadSourceAsset(assetID, userID string) (*sourceAsset, error) {
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return nil, &genclient.Error{Kind: genclient.KindInvalidInput, Message: "prompt is missing source_asset_id"}
	}
	row := w.runner.QueryRow(w.ctx, sqlinline.QSelectAssetByID, assetID)
	var (
		src      sourceAsset
		ownerID  string
		byteSize int64
		aspect   *string
		props    []byte
	)
	if err := row.Scan(&src.ID, &ownerID, &src.StorageKey, &src.MIME, &byteSize, &src.Width, &src.Height, &aspect, &props); err != nil {
		if infra.IsNoRows(err) {
			return nil, &genclient.Error{Kind: genclient.KindInvalidInput, Message: "source asset not found"}
		}
		return nil, err
	}
	if ownerID != userID {
		return nil, &genclient.Error{Kind: genclient.KindInvalidInput, Message: "source asset not found"}
	}
	data, err := os.ReadFile(filepath.Join(w.store.BasePath(), filepath.FromSlash(strings.TrimLeft(src.StorageKey, "/"))))
	if err != nil {
		return nil, fmt.Errorf("read source asset %s: %w", src.ID, err)
	}
	src.Data = data
	return &src, nil
}

func (w *jobWorker) persistAsset(jobID, provider, mime, storageKey, sourceURL string, data []byte, index int) (string, int64) {
	key := strings.TrimSpace(storageKey)
	if key == "" {
		key = strings.TrimSpace(sourceURL)
	}
	var size int64
	if len(data) > 0 {
		size = int64(len(data))
	}
	if w.store != nil && len(data) > 0 {
		targetKey := key
		if targetKey == "" || strings.HasPrefix(targetKey, "http://") || strings.HasPrefix(targetKey, "https://") {
			targetKey = defaultStorageKey(jobID, mime, index)
		}
		targetKey = ensureExtension(targetKey, mime)
		savedKey, err := w.store.Write(w.ctx, targetKey, data)
		if err != nil {
			w.logger.Warn().Err(err).
				Str("job_id", jobID).
				Str("provider", provider).
				Msg("worker: persist asset to storage failed")
		} else {
			key = savedKey
		}
	}
	return key, size
}

func defaultStorageKey(jobID, mime string, index int) string {
	category := "images"
	prefix := "image"
	if strings.HasPrefix(mime, "video/") {
		category = "videos"
		prefix = "video"
	}
	if index < 0 {
		index = 0
	}
	ext := extensionForMIME(mime)
	if ext == "" {
		ext = ".bin"
	}
	if category == "videos" {
		return fmt.Sprintf("generated/%s/%s/%s%s", category, jobID, prefix, ext)
	}
	return fmt.Sprintf("generated/%s/%s/%s-%02d%s", category, jobID, prefix, index+1, ext)
}

func ensureExtension(key, mime string) string {
	if key == "" {
		return key
	}
	expected := extensionForMIME(mime)
	if expected == "" {
		return key
	}
	ext := strings.ToLower(filepath.Ext(key))
	if ext == expected {
		return key
	}
	if ext == "" {
		return key + expected
	}
	return key
}

func extensionForMIME(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "video/mp4":
		return ".mp4"
	case "audio/mpeg":
		return ".mp3"
	default:
		return ""
	}
}
