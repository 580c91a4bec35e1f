package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/akarpov/docsync/internal/apperrors"
	"github.com/akarpov/docsync/internal/audit"
	"github.com/akarpov/docsync/internal/file"
	"github.com/akarpov/docsync/internal/index"
	"github.com/akarpov/docsync/internal/queue"
)

type AdminHandler struct {
	audit *audit.Service
	tasks *queue.Client
	index index.Service
	files *file.Service
}

func NewAdminHandler(auditSvc *audit.Service, tasks *queue.Client, idx index.Service, files *file.Service) *AdminHandler {
	return &AdminHandler{audit: auditSvc, tasks: tasks, index: idx, files: files}
}

func (h *AdminHandler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	q := audit.Query{Action: r.URL.Query().Get("action")}
	q.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	q.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))

	if v := r.URL.Query().Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeAppError(w, apperrors.Validation("invalid start timestamp"))
			return
		}
		q.StartDate = &t
	}
	if v := r.URL.Query().Get("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeAppError(w, apperrors.Validation("invalid end timestamp"))
			return
		}
		q.EndDate = &t
	}

	logs, err := h.audit.List(r.Context(), q)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"logs": logs, "count": len(logs)})
}

// TriggerSync enqueues one reconciliation pass out of schedule. The task
// dedupes against the scheduled run, so firing it repeatedly is harmless.
func (h *AdminHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	var err error
	task := chi.URLParam(r, "task")
	switch task {
	case "upload":
		err = h.tasks.EnqueueUploadSync()
	case "indexing":
		err = h.tasks.EnqueueIndexingPoll()
	case "delete":
		err = h.tasks.EnqueueDeleteSweep()
	case "storage":
		err = h.tasks.EnqueueStorageSweep()
	default:
		writeAppError(w, apperrors.Validation("unknown sync task, expected upload, indexing, delete or storage"))
		return
	}
	if err != nil {
		writeAppError(w, apperrors.ExternalService("enqueue sync task", err, false))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "task": task})
}

// IndexDrift compares the index service's file listing for one index against
// the catalog. Orphaned ids exist only in the index; missing ids belong to
// catalog rows whose indexed file is gone remotely.
func (h *AdminHandler) IndexDrift(w http.ResponseWriter, r *http.Request) {
	indexName := chi.URLParam(r, "index")

	remote, err := h.index.List(r.Context(), indexName)
	if err != nil {
		writeAppError(w, apperrors.ExternalService("list index files", err, true))
		return
	}
	recs, err := h.files.ListByIndex(r.Context(), indexName)
	if err != nil {
		writeAppError(w, err)
		return
	}

	catalog := map[string]bool{}
	for _, rec := range recs {
		if rec.IndexFileID != "" {
			catalog[rec.IndexFileID] = true
		}
	}

	remoteSet := map[string]bool{}
	orphaned := []string{}
	for _, id := range remote {
		remoteSet[id] = true
		if !catalog[id] {
			orphaned = append(orphaned, id)
		}
	}
	missing := []string{}
	for _, rec := range recs {
		if rec.IndexFileID != "" && !remoteSet[rec.IndexFileID] {
			missing = append(missing, rec.IndexFileID)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"index":         indexName,
		"index_files":   len(remote),
		"catalog_files": len(recs),
		"orphaned":      orphaned,
		"missing":       missing,
	})
}
