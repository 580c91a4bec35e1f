package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/akarpov/docsync/internal/apperrors"
	"github.com/akarpov/docsync/internal/models"
	"github.com/akarpov/docsync/internal/route"
)

type RouteHandler struct {
	repo route.Repository
}

func NewRouteHandler(repo route.Repository) *RouteHandler {
	return &RouteHandler{repo: repo}
}

type createRouteRequest struct {
	Name      string `json:"name"`
	IndexName string `json:"index_name"`
	BotID     string `json:"bot_id"`
	Bucket    string `json:"bucket"`
	IsDefault bool   `json:"is_default"`
}

func (h *RouteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppError(w, apperrors.Validation("invalid request body"))
		return
	}
	if strings.TrimSpace(req.IndexName) == "" {
		writeAppError(w, apperrors.Validation("index_name is required"))
		return
	}
	if req.BotID == "" && req.Bucket == "" && !req.IsDefault {
		writeAppError(w, apperrors.Validation("route needs a bot_id, a bucket, or is_default"))
		return
	}

	rt := &models.IndexRoute{
		ID:        uuid.New(),
		Name:      req.Name,
		IndexName: req.IndexName,
		BotID:     req.BotID,
		Bucket:    req.Bucket,
		IsDefault: req.IsDefault,
	}
	if err := h.repo.Create(r.Context(), rt); err != nil {
		writeAppError(w, apperrors.Database("create route", err))
		return
	}
	writeJSON(w, http.StatusCreated, rt)
}

func (h *RouteHandler) List(w http.ResponseWriter, r *http.Request) {
	routes, err := h.repo.List(r.Context())
	if err != nil {
		writeAppError(w, apperrors.Database("list routes", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"routes": routes, "count": len(routes)})
}

func (h *RouteHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, apperrors.Validation("invalid route ID"))
		return
	}

	var req createRouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppError(w, apperrors.Validation("invalid request body"))
		return
	}
	if strings.TrimSpace(req.IndexName) == "" {
		writeAppError(w, apperrors.Validation("index_name is required"))
		return
	}

	rt := &models.IndexRoute{
		ID:        id,
		Name:      req.Name,
		IndexName: req.IndexName,
		BotID:     req.BotID,
		Bucket:    req.Bucket,
	}
	if err := h.repo.Update(r.Context(), rt); err != nil {
		writeAppError(w, apperrors.Database("update route", err))
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

func (h *RouteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, apperrors.Validation("invalid route ID"))
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		writeAppError(w, apperrors.Database("delete route", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *RouteHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeAppError(w, apperrors.Validation("invalid route ID"))
		return
	}

	if err := h.repo.SetDefault(r.Context(), id); err != nil {
		writeAppError(w, apperrors.Database("set default route", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
