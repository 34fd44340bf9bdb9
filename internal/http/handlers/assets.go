package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	stdimage "image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"server/internal/domain"
	"server/internal/domain/jsoncfg"
	"server/internal/sqlinline"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// maxUploadBytes caps conditioning uploads at 10 MiB.
const maxUploadBytes = 10 << 20

func (a *App) ListAssets(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 20
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	rows, err := a.SQL.Query(r.Context(), sqlinline.QListAssetsByUser, userID, limit, offset)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load assets")
		return
	}
	defer rows.Close()
	var items []map[string]any
	for rows.Next() {
		var id, storageKey, mime string
		var jobID, aspect *string
		var bytes int64
		var width, height int
		var props []byte
		var createdAt time.Time
		if err := rows.Scan(&id, &jobID, &storageKey, &mime, &bytes, &width, &height, &aspect, &props, &createdAt); err != nil {
			continue
		}
		items = append(items, map[string]any{
			"id":           id,
			"job_id":       stringOrEmpty(jobID),
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
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// UploadAsset accepts a multipart image that later jobs can reference as
// conditioning input through prompt.source_asset_id.
func (a *App) UploadAsset(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	if a.Store == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "asset storage is not configured")
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart payload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "failed to read upload")
		return
	}
	if len(data) > maxUploadBytes {
		a.error(w, http.StatusRequestEntityTooLarge, "too_large", "upload exceeds 10 MiB")
		return
	}

	mime, width, height, err := sniffImage(data)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "file must be a PNG or JPEG image")
		return
	}

	key := uploadStorageKey(userID, header.Filename, mime)
	storageKey, err := a.Store.Write(r.Context(), key, data)
	if err != nil {
		a.Logger.Error().Err(err).Msg("persist upload failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to store upload")
		return
	}

	props := jsoncfg.MustMarshal(map[string]any{"origin": "upload", "filename": header.Filename})
	row := a.SQL.QueryRow(r.Context(), sqlinline.QInsertGeneratedAsset,
		userID, string(domain.AssetKindImage), nil, storageKey, mime, int64(len(data)), width, height, "", props)
	var assetID string
	if err := row.Scan(&assetID); err != nil {
		a.Logger.Error().Err(err).Msg("insert uploaded asset failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to record upload")
		return
	}

	a.json(w, http.StatusCreated, map[string]any{
		"id":          assetID,
		"storage_key": storageKey,
		"url":         a.assetURL(storageKey),
		"mime":        mime,
		"bytes":       len(data),
		"width":       width,
		"height":      height,
	})
}

func (a *App) DownloadAsset(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	assetID := chi.URLParam(r, "id")
	row := a.SQL.QueryRow(r.Context(), sqlinline.QSelectAssetByID, assetID)
	var id, ownerID, storageKey, mime string
	var bytes int64
	var width, height int
	var aspect *string
	var props []byte
	if err := row.Scan(&id, &ownerID, &storageKey, &mime, &bytes, &width, &height, &aspect, &props); err != nil {
		a.error(w, http.StatusNotFound, "not_found", "asset not found")
		return
	}
	if ownerID != userID {
		a.error(w, http.StatusForbidden, "forbidden", "not your asset")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"url":          a.assetURL(storageKey),
		"mime":         mime,
		"width":        width,
		"height":       height,
		"aspect_ratio": stringOrEmpty(aspect),
	})
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func sniffImage(data []byte) (mime string, width, height int, err error) {
	cfg, format, err := stdimage.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", 0, 0, err
	}
	switch format {
	case "jpeg":
		mime = "image/jpeg"
	case "png":
		mime = "image/png"
	default:
		return "", 0, 0, fmt.Errorf("unsupported format %q", format)
	}
	return mime, cfg.Width, cfg.Height, nil
}

func uploadStorageKey(userID, filename, mime string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".png" && ext != ".jpg" && ext != ".jpeg" {
		if mime == "image/png" {
			ext = ".png"
		} else {
			ext = ".jpg"
		}
	}
	return fmt.Sprintf("uploads/%s/%s%s", userID, uuid.NewString(), ext)
}
