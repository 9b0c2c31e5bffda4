// Package httpapi exposes the sync and image services over JSON/HTTP.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/closetapp/closet-sync/internal/logging"
	"github.com/closetapp/closet-sync/internal/server/service"
	"github.com/closetapp/closet-sync/internal/syncwire"
)

type Handler struct {
	sync          *service.SyncService
	images        *service.ImageService
	maxImageBytes int64
	log           logging.Logger
}

func NewHandler(sync *service.SyncService, images *service.ImageService, maxImageBytes int64, log logging.Logger) *Handler {
	return &Handler{sync: sync, images: images, maxImageBytes: maxImageBytes, log: log}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Pull(w http.ResponseWriter, r *http.Request) {
	id, ok := CallerIdentity(r.Context())
	if !ok {
		writeAPIError(w, Unauthorized(""))
		return
	}

	since := int64(0)
	if raw := r.URL.Query().Get("since"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			writeAPIError(w, BadRequest("since must be a non-negative integer"))
			return
		}
		since = v
	}

	resp, err := h.sync.Pull(r.Context(), id.UserID, since)
	if err != nil {
		h.log.Error(r.Context(), "pull failed", "account", id.UserID, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Push(w http.ResponseWriter, r *http.Request) {
	id, ok := CallerIdentity(r.Context())
	if !ok {
		writeAPIError(w, Unauthorized(""))
		return
	}

	req := &syncwire.PushRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeAPIError(w, BadRequest("malformed push request: "+err.Error()))
		return
	}
	if apiErr := validatePush(req); apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	resp, err := h.sync.Push(r.Context(), id.UserID, req)
	if err != nil {
		h.log.Error(r.Context(), "push failed", "account", id.UserID,
			"entries", len(req.Changes), "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func validatePush(req *syncwire.PushRequest) *APIError {
	for _, entry := range req.Changes {
		if !syncwire.ValidTable(entry.Table) {
			return BadRequest("unknown table " + strconv.Quote(entry.Table))
		}
		switch entry.Operation {
		case syncwire.OpCreate, syncwire.OpUpdate:
			if entry.Payload == nil {
				return BadRequest("entry " + entry.ID + " is missing its payload")
			}
			if entry.Payload.ID != entry.RecordID {
				return BadRequest("entry " + entry.ID + " payload id does not match recordId")
			}
		case syncwire.OpDelete:
		default:
			return BadRequest("unknown operation " + strconv.Quote(entry.Operation))
		}
	}
	return nil
}

func (h *Handler) PresignUpload(w http.ResponseWriter, r *http.Request) {
	id, ok := CallerIdentity(r.Context())
	if !ok {
		writeAPIError(w, Unauthorized(""))
		return
	}

	req := &syncwire.PresignUploadRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeAPIError(w, BadRequest("malformed presign request: "+err.Error()))
		return
	}
	if req.Hash == "" || req.Size <= 0 {
		writeAPIError(w, BadRequest("hash and size are required"))
		return
	}

	resp, err := h.images.Presign(r.Context(), id.UserID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := CallerIdentity(r.Context())
	if !ok {
		writeAPIError(w, Unauthorized(""))
		return
	}
	hash := chi.URLParam(r, "hash")

	body := r.Body
	if h.maxImageBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxImageBytes)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		writeAPIError(w, PayloadTooLarge("image body too large"))
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	resp, err := h.images.Upload(r.Context(), id.UserID, hash, data, contentType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) CheckImage(w http.ResponseWriter, r *http.Request) {
	id, ok := CallerIdentity(r.Context())
	if !ok {
		writeAPIError(w, Unauthorized(""))
		return
	}

	exists, err := h.images.Check(r.Context(), id.UserID, chi.URLParam(r, "hash"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &syncwire.CheckResponse{Exists: exists})
}

func (h *Handler) DownloadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := CallerIdentity(r.Context())
	if !ok {
		writeAPIError(w, Unauthorized(""))
		return
	}
	ref := chi.URLParam(r, "*")

	data, err := h.images.Download(r.Context(), id.UserID, ref)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id, ok := CallerIdentity(r.Context())
	if !ok {
		writeAPIError(w, Unauthorized(""))
		return
	}

	if err := h.images.Delete(r.Context(), id.UserID, chi.URLParam(r, "hash")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &syncwire.DeleteResponse{Success: true})
}
