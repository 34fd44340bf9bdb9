package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"server/internal/domain"
	"server/internal/domain/jsoncfg"
	"server/internal/infra"
	"server/internal/middleware"
	"server/internal/sqlinline"
	"server/pkg/zip"

	"github.com/go-chi/chi/v5"
)

type generateRequest struct {
	Type        string             `json:"type"`
	Provider    string             `json:"provider"`
	Quantity    int                `json:"quantity"`
	AspectRatio string             `json:"aspect_ratio"`
	Prompt      jsoncfg.PromptJSON `json:"prompt"`
}

type jobResponse struct {
	JobID          string `json:"job_id"`
	Status         string `json:"status"`
	RemainingQuota int    `json:"remaining_quota"`
}

func (a *App) GenerationsCreate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	jobType := domain.JobType(strings.ToUpper(strings.TrimSpace(req.Type)))
	if jobType == "" {
		jobType = domain.JobTypeImageGen
	}
	if jobType != domain.JobTypeImageGen && jobType != domain.JobTypeVideoGen {
		a.error(w, http.StatusBadRequest, "bad_request", "type must be IMAGE_GEN or VIDEO_GEN")
		return
	}

	locale := middleware.LocaleFromContext(r.Context())
	req.Prompt.Normalize(locale)
	if req.Quantity <= 0 {
		req.Quantity = req.Prompt.Quantity
	}
	if req.Quantity > jsoncfg.MaxPromptQuantity {
		req.Quantity = jsoncfg.MaxPromptQuantity
	}
	if jobType == domain.JobTypeVideoGen {
		// Clips are billed per job; batch variations are image-only.
		req.Quantity = 1
	}
	req.Prompt.Quantity = req.Quantity
	if req.AspectRatio == "" {
		req.AspectRatio = req.Prompt.AspectRatio
	}
	req.Prompt.AspectRatio = req.AspectRatio

	if err := req.Prompt.Validate(); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Prompt.SourceAssetID) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "prompt.source_asset_id is required")
		return
	}

	provider := strings.TrimSpace(req.Provider)
	switch jobType {
	case domain.JobTypeImageGen:
		if provider == "" {
			provider = a.Config.DefaultImageProvider
		}
		if _, ok := a.ImageProviders[provider]; !ok {
			a.error(w, http.StatusBadRequest, "bad_request", "unsupported provider")
			return
		}
	case domain.JobTypeVideoGen:
		if provider == "" {
			provider = a.Config.DefaultVideoProvider
		}
		if _, ok := a.VideoProviders[provider]; !ok {
			a.error(w, http.StatusBadRequest, "bad_request", "unsupported provider")
			return
		}
	}

	promptBytes, _ := json.Marshal(req.Prompt)
	row := a.SQL.QueryRow(r.Context(), sqlinline.QEnqueueGenerationJob,
		userID, string(jobType), promptBytes, req.Quantity, req.AspectRatio, provider)
	var jobID string
	var remaining int
	if err := row.Scan(&jobID, &remaining); err != nil {
		if infra.IsNoRows(err) {
			a.error(w, http.StatusForbidden, "quota_exceeded", "daily quota exceeded")
			return
		}
		a.Logger.Error().Err(err).Msg("enqueue job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to queue job")
		return
	}
	a.json(w, http.StatusAccepted, jobResponse{JobID: jobID, Status: string(domain.JobStatusQueued), RemainingQuota: remaining})
}

func (a *App) GenerationStatus(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	job, err := a.loadJobForUser(r.Context(), jobID, userID)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	payload := map[string]any{
		"id":           job.ID,
		"user_id":      job.UserID,
		"type":         job.Type,
		"status":       job.Status,
		"terminal":     domain.JobStatus(job.Status).Terminal(),
		"provider":     job.Provider,
		"quantity":     job.Quantity,
		"aspect_ratio": job.Aspect,
		"created_at":   job.CreatedAt,
		"updated_at":   job.UpdatedAt,
	}
	if job.ErrorKind != "" {
		payload["error_kind"] = job.ErrorKind
		payload["error_message"] = job.ErrorMessage
	}
	if len(job.Result) > 0 {
		payload["result"] = json.RawMessage(job.Result)
	}
	a.json(w, http.StatusOK, payload)
}

func (a *App) GenerationAssets(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	if _, err := a.loadJobForUser(r.Context(), jobID, userID); err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	items, err := a.loadJobAssets(r.Context(), jobID, userID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load assets")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) GenerationArchive(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	if _, err := a.loadJobForUser(r.Context(), jobID, userID); err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	rows, err := a.SQL.Query(r.Context(), sqlinline.QSelectJobAssets, jobID, userID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to fetch assets")
		return
	}
	defer rows.Close()
	var assets []zip.Asset
	for rows.Next() {
		var id, storageKey, mime string
		var bytes int64
		var width, height int
		var aspect *string
		var props []byte
		var createdAt time.Time
		if err := rows.Scan(&id, &storageKey, &mime, &bytes, &width, &height, &aspect, &props, &createdAt); err != nil {
			continue
		}
		data := loadAssetData(a.Config.StoragePath, storageKey)
		assets = append(assets, zip.Asset{Filename: fmt.Sprintf("%s-%s", jobID, id), MIME: mime, Data: data})
	}
	archive := zip.ArchiveAssets(assets)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=job-%s.zip", jobID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

func loadAssetData(basePath, storageKey string) []byte {
	storageKey = strings.TrimSpace(storageKey)
	if storageKey == "" {
		return nil
	}
	lower := strings.ToLower(storageKey)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "data:") {
		return []byte(storageKey)
	}
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil
	}
	path := filepath.Join(basePath, filepath.FromSlash(strings.TrimLeft(storageKey, "/")))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return data
}

type jobRecord struct {
	ID           string
	UserID       string
	Type         string
	Status       string
	Provider     string
	Quantity     int
	Aspect       string
	ErrorKind    string
	ErrorMessage string
	Result       []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (a *App) loadJobForUser(ctx context.Context, jobID, userID string) (*jobRecord, error) {
	row := a.SQL.QueryRow(ctx, sqlinline.QSelectJobStatus, jobID, userID)
	var job jobRecord
	var errKind, errMsg *string
	if err := row.Scan(&job.ID, &job.UserID, &job.Type, &job.Status, &job.Provider, &job.Quantity, &job.Aspect, &errKind, &errMsg, &job.Result, &job.CreatedAt, &job.UpdatedAt); err != nil {
		return nil, err
	}
	if errKind != nil {
		job.ErrorKind = *errKind
	}
	if errMsg != nil {
		job.ErrorMessage = *errMsg
	}
	return &job, nil
}

func (a *App) loadJobAssets(ctx context.Context, jobID, userID string) ([]map[string]any, error) {
	rows, err := a.SQL.Query(ctx, sqlinline.QSelectJobAssets, jobID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []map[string]any
	for rows.Next() {
		var id, storageKey, mime string
		var bytes int64
		var width, height int
		var aspect *string
		var props []byte
		var createdAt time.Time
		if err := rows.Scan(&id, &storageKey, &mime, &bytes, &width, &height, &aspect, &props, &createdAt); err != nil {
			continue
		}
		items = append(items, map[string]any{
			"id":           id,
			"storage_key":  storageKey,
			"url":          a.assetURL(storageKey),
			"mime":         mime,
			"bytes":        bytes,
			"width":        width,
			"height":       height,
			"aspect_ratio": stringOrEmpty(aspect),
			"properties":   json.RawMessage(props),
			"created_at":   createdAt,
		})
	}
	return items, nil
}
