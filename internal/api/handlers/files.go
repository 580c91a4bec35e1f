package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/akarpov/docsync/internal/apperrors"
	"github.com/akarpov/docsync/internal/auth"
	"github.com/akarpov/docsync/internal/file"
)

// uploadOverhead covers multipart framing and the non-file form fields on
// top of the file bytes themselves.
const uploadOverhead = 1 << 20

type FileHandler struct {
	svc       *file.Service
	signer    *auth.DownloadSigner
	maxUpload int64
}

func NewFileHandler(svc *file.Service, signer *auth.DownloadSigner, maxUpload int64) *FileHandler {
	return &FileHandler{svc: svc, signer: signer, maxUpload: maxUpload}
}

func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	// Cut oversized bodies off at the transport instead of spooling them
	// to disk first.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+uploadOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeAppError(w, apperrors.PayloadTooLarge(fmt.Sprintf("request body exceeds the %d byte upload limit", h.maxUpload)))
			return
		}
		writeAppError(w, apperrors.Validation("invalid multipart form"))
		return
	}

	src, header, err := r.FormFile("file")
	if err != nil {
		writeAppError(w, apperrors.Validation("file required"))
		return
	}
	defer src.Close()

	rec, err := h.svc.Create(r.Context(), file.UploadRequest{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        src,
		BotID:       r.FormValue("bot_id"),
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 {
		limit = 20
	}

	if indexName := r.URL.Query().Get("index"); indexName != "" {
		recs, err := h.svc.ListByIndex(r.Context(), indexName)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"files": recs, "count": len(recs)})
		return
	}

	recs, err := h.svc.List(r.Context(), limit, offset)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"files": recs, "count": len(recs)})
}

func (h *FileHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, apperrors.Validation("invalid file ID"))
		return
	}

	rec, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, apperrors.Validation("invalid file ID"))
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, apperrors.Validation("invalid file ID"))
		return
	}
	h.streamFile(w, r, id)
}

// DownloadLink issues a short-lived signed URL for one file.
func (h *FileHandler) DownloadLink(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, apperrors.Validation("invalid file ID"))
		return
	}

	if _, err := h.svc.Get(r.Context(), id); err != nil {
		writeAppError(w, err)
		return
	}

	token, expires, err := h.signer.Sign(id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"url":        fmt.Sprintf("/api/v1/download?token=%s", url.QueryEscape(token)),
		"expires_at": expires,
	})
}

// DownloadWithToken serves a file to the bearer of a valid signed link.
func (h *FileHandler) DownloadWithToken(w http.ResponseWriter, r *http.Request) {
	id, err := h.signer.Verify(r.URL.Query().Get("token"))
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		return
	}
	h.streamFile(w, r, id)
}

func (h *FileHandler) Stats(w http.ResponseWriter, r *http.Request) {
	indexName := r.URL.Query().Get("index")
	if indexName == "" {
		writeAppError(w, apperrors.Validation("index query parameter required"))
		return
	}

	stats, err := h.svc.StatsByIndex(r.Context(), indexName)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"index": indexName, "statuses": stats})
}

func (h *FileHandler) streamFile(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	body, rec, err := h.svc.Download(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", rec.ContentType)
	if rec.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(rec.Size, 10))
	}
	// Both forms so non-ASCII names survive every client.
	w.Header().Set("Content-Disposition", fmt.Sprintf(
		`attachment; filename="%s"; filename*=UTF-8''%s`,
		sanitizeASCII(rec.Name), url.PathEscape(rec.Name),
	))

	if _, err := io.Copy(w, body); err != nil {
		// Headers are gone; nothing left to do but note it.
		return
	}
}

func sanitizeASCII(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < 0x20 || c >= 0x7f || c == '"' || c == '\\' {
			out = append(out, '_')
			continue
		}
		out = append(out, c)
	}
	return string(out)
}
