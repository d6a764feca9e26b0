package file

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/eyueldk/edkstack-files/internal/response"
	"github.com/eyueldk/edkstack-files/internal/storage"
)

const (
	multipartMemory      = 32 << 20
	maxBatchIDs          = 1000
	defaultMaxUploadSize = 100 << 20
)

// Handler holds HTTP handlers for file endpoints.
type Handler struct {
	svc       *Service
	policies  Policies
	log       *zap.Logger
	maxUpload int64
}

// NewHandler creates a new file Handler.
func NewHandler(svc *Service, policies Policies, log *zap.Logger) *Handler {
	return &Handler{svc: svc, policies: policies, log: log, maxUpload: defaultMaxUploadSize}
}

// WithMaxUploadSize caps the request body accepted by Upload. Per-purpose
// limits still apply on top of it.
func (h *Handler) WithMaxUploadSize(n int64) *Handler {
	if n > 0 {
		h.maxUpload = n
	}
	return h
}

// Mount registers the file routes on r. protect wraps the routes that change
// state; pass nothing to leave them open.
func (h *Handler) Mount(r chi.Router, protect ...func(http.Handler) http.Handler) {
	r.Route("/files", func(r chi.Router) {
		r.Get("/{id}", h.GetFile)
		r.Get("/{id}/url", h.GetURL)
		r.Post("/urls", h.GetURLs)

		r.Group(func(r chi.Router) {
			r.Use(protect...)
			r.Post("/upload", h.Upload)
			r.Post("/acquire", h.AcquireFiles)
			r.Post("/release", h.ReleaseFiles)
			r.Post("/delete", h.DeleteFiles)
			r.Post("/{id}/acquire", h.AcquireFile)
			r.Post("/{id}/release", h.ReleaseFile)
			r.Delete("/{id}", h.DeleteFile)
		})
	})
}

type uploadData struct {
	ID        string    `json:"id"        example:"file_0b8f3c2e9d7a4f5e8c1b2a3d4e5f6a7b"`
	Name      *string   `json:"name"      example:"a.png"`
	Key       string    `json:"key"       example:"files/public/avatar/1f0e6c1e-2b53-4bb4-9a57-1d0e3f1c2b3a.png"`
	Size      int64     `json:"size"      example:"20480"`
	MimeType  string    `json:"mimeType"  example:"image/png"`
	CreatedAt time.Time `json:"createdAt" example:"2026-02-27T14:48:34Z"`
	URL       string    `json:"url,omitempty"`
}

type idsRequest struct {
	IDs     []string `json:"ids"`
	Purpose string   `json:"purpose,omitempty"`
}

type purposeRequest struct {
	Purpose string `json:"purpose,omitempty" example:"avatar"`
}

type urlData struct {
	URL string `json:"url"`
}

type urlsData struct {
	URLs map[string]string `json:"urls"`
}

// Upload godoc
//
//	@Summary		Upload a file
//	@Description	Validate the file against the purpose's policy, store it, and record its metadata. The new file has refCount 0.
//	@Tags			files
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"File payload"
//	@Param			purpose	formData	string	true	"Purpose label"
//	@Success		200		{object}	response.Envelope{data=uploadData}
//	@Failure		400		{object}	response.Envelope
//	@Failure		413		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/files/upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.PayloadTooLarge(w, "request body too large")
			return
		}
		response.BadRequest(w, "invalid multipart body")
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	src, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "file is required")
		return
	}
	defer src.Close()

	purpose := r.FormValue("purpose")
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = storage.DefaultContentType
	}

	policy, err := h.policies.Check(purpose, header.Size, contentType)
	if err != nil {
		h.writeError(w, err)
		return
	}

	f, err := h.svc.Upload(r.Context(), UploadInput{
		Body:        src,
		Size:        header.Size,
		Filename:    header.Filename,
		ContentType: contentType,
		Purpose:     purpose,
		Visibility:  policy.Visibility,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	data := uploadData{
		ID:        f.ID,
		Name:      f.Name,
		Key:       f.Key,
		Size:      f.Size,
		MimeType:  f.MimeType,
		CreatedAt: f.CreatedAt,
	}
	if u, err := h.svc.URLFor(r.Context(), f); err != nil {
		h.log.Warn("resolve url after upload", zap.String("id", f.ID), zap.Error(err))
	} else {
		data.URL = u
	}

	response.OK(w, data)
}

// GetFile godoc
//
//	@Summary	Get file metadata
//	@Tags		files
//	@Produce	json
//	@Param		id	path		string	true	"File ID"
//	@Success	200	{object}	response.Envelope{data=File}
//	@Failure	404	{object}	response.Envelope
//	@Router		/files/{id} [get]
func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	f, err := h.svc.GetFile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, f)
}

// GetURL godoc
//
//	@Summary		Resolve a file URL
//	@Description	Public files resolve to the public base URL; private files to a presigned URL.
//	@Tags			files
//	@Produce		json
//	@Param			id	path		string	true	"File ID"
//	@Success		200	{object}	response.Envelope{data=urlData}
//	@Failure		404	{object}	response.Envelope
//	@Router			/files/{id}/url [get]
func (h *Handler) GetURL(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.GetURL(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, urlData{URL: u})
}

// GetURLs godoc
//
//	@Summary	Resolve URLs for several files
//	@Tags		files
//	@Accept		json
//	@Produce	json
//	@Param		request	body		idsRequest	true	"File IDs"
//	@Success	200		{object}	response.Envelope{data=urlsData}
//	@Failure	400		{object}	response.Envelope
//	@Router		/files/urls [post]
func (h *Handler) GetURLs(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeIDs(w, r)
	if !ok {
		return
	}
	urls, err := h.svc.GetURLs(r.Context(), req.IDs)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, urlsData{URLs: urls})
}

// AcquireFile godoc
//
//	@Summary	Acquire a reference to a file
//	@Tags		files
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string			true	"File ID"
//	@Param		request	body		purposeRequest	false	"Expected purpose"
//	@Success	200		{object}	response.Envelope{data=File}
//	@Failure	404		{object}	response.Envelope
//	@Router		/files/{id}/acquire [post]
func (h *Handler) AcquireFile(w http.ResponseWriter, r *http.Request) {
	var req purposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "invalid request body")
		return
	}
	f, err := h.svc.AcquireFile(r.Context(), chi.URLParam(r, "id"), req.Purpose)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, f)
}

// AcquireFiles godoc
//
//	@Summary		Acquire references to several files
//	@Description	Ids that do not exist or do not match purpose are omitted from the result.
//	@Tags			files
//	@Accept			json
//	@Produce		json
//	@Param			request	body		idsRequest	true	"File IDs and optional purpose"
//	@Success		200		{object}	response.Envelope{data=[]File}
//	@Failure		400		{object}	response.Envelope
//	@Router			/files/acquire [post]
func (h *Handler) AcquireFiles(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeIDs(w, r)
	if !ok {
		return
	}
	files, err := h.svc.AcquireFiles(r.Context(), req.IDs, req.Purpose)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if files == nil {
		files = []*File{}
	}
	response.OK(w, files)
}

// ReleaseFile godoc
//
//	@Summary		Release a reference to a file
//	@Description	The file is deleted once its reference count drops below one.
//	@Tags			files
//	@Produce		json
//	@Param			id	path		string	true	"File ID"
//	@Success		200	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Router			/files/{id}/release [post]
func (h *Handler) ReleaseFile(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ReleaseFile(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, map[string]bool{"success": true})
}

// ReleaseFiles godoc
//
//	@Summary	Release references to several files
//	@Tags		files
//	@Accept		json
//	@Produce	json
//	@Param		request	body		idsRequest	true	"File IDs"
//	@Success	200		{object}	response.Envelope
//	@Failure	400		{object}	response.Envelope
//	@Router		/files/release [post]
func (h *Handler) ReleaseFiles(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeIDs(w, r)
	if !ok {
		return
	}
	if err := h.svc.ReleaseFiles(r.Context(), req.IDs); err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, map[string]bool{"success": true})
}

// DeleteFile godoc
//
//	@Summary		Delete a file
//	@Description	Idempotent: deleting a missing file succeeds.
//	@Tags			files
//	@Produce		json
//	@Param			id	path		string	true	"File ID"
//	@Success		200	{object}	response.Envelope
//	@Router			/files/{id} [delete]
func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteFile(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, map[string]bool{"success": true})
}

// DeleteFiles godoc
//
//	@Summary	Delete several files
//	@Tags		files
//	@Accept		json
//	@Produce	json
//	@Param		request	body		idsRequest	true	"File IDs"
//	@Success	200		{object}	response.Envelope
//	@Failure	400		{object}	response.Envelope
//	@Router		/files/delete [post]
func (h *Handler) DeleteFiles(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeIDs(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteFiles(r.Context(), req.IDs); err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, map[string]bool{"success": true})
}

func decodeIDs(w http.ResponseWriter, r *http.Request) (idsRequest, bool) {
	var req idsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return req, false
	}
	if len(req.IDs) == 0 {
		response.BadRequest(w, "ids must not be empty")
		return req, false
	}
	if len(req.IDs) > maxBatchIDs {
		response.BadRequest(w, "too many ids")
		return req, false
	}
	return req, true
}

// writeError maps service errors onto the response envelope.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var pv *PolicyViolationError
	switch {
	case errors.As(err, &pv):
		response.PolicyViolation(w, pv.Reason)
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, "file not found")
	case errors.Is(err, ErrConstraint):
		response.Conflict(w, "file already exists")
	default:
		h.log.Error("file request failed", zap.Error(err))
		response.InternalError(w)
	}
}
