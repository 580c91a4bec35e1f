package queue

import (
	"log/slog"

	"github.com/hibiken/asynq"
)

// HandlersRegistry collects the reconciliation task handlers before the
// worker server starts. Registering twice for one task type is a wiring bug
// and panics via asynq's mux.
type HandlersRegistry struct {
	mux *asynq.ServeMux
}

func NewHandlersRegistry() *HandlersRegistry {
	return &HandlersRegistry{mux: asynq.NewServeMux()}
}

func (r *HandlersRegistry) Register(taskType string, handler asynq.Handler) {
	r.mux.Handle(taskType, handler)
	slog.Info("registered task handler", "task", taskType)
}

func (r *HandlersRegistry) Mux() *asynq.ServeMux {
	return r.mux
}
