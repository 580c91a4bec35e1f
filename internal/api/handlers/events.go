package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/akarpov/docsync/internal/file"
)

// bucketNotification is the envelope the storage system posts to the webhook.
type bucketNotification struct {
	Messages []struct {
		EventMetadata struct {
			EventType string `json:"event_type"`
		} `json:"event_metadata"`
		Details struct {
			BucketID string `json:"bucket_id"`
			ObjectID string `json:"object_id"`
		} `json:"details"`
	} `json:"messages"`
}

type EventHandler struct {
	processor *file.EventProcessor
}

func NewEventHandler(processor *file.EventProcessor) *EventHandler {
	return &EventHandler{processor: processor}
}

// Receive handles one webhook delivery. The response is always 200 with an
// explicit status field: the sender retries whole deliveries on failure, so a
// processing error reports "error" and relies on replay plus idempotency.
func (h *EventHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var payload bucketNotification
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": "malformed notification body"})
		return
	}

	events := make([]file.BucketEvent, 0, len(payload.Messages))
	for _, m := range payload.Messages {
		events = append(events, file.BucketEvent{
			EventType: m.EventMetadata.EventType,
			Bucket:    m.Details.BucketID,
			Key:       m.Details.ObjectID,
		})
	}

	res, err := h.processor.ProcessBatch(r.Context(), events)
	if err != nil {
		slog.Error("bucket event batch failed", "events", len(events), "error", err)
		writeJSON(w, http.StatusOK, map[string]string{"status": "error", "message": "event processing failed"})
		return
	}

	slog.Info("bucket events processed",
		"events", len(events),
		"created", res.Created,
		"resurrected", res.Resurrected,
		"deleted", res.Deleted,
		"skipped", res.Skipped,
	)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
