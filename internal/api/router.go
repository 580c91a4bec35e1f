package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/akarpov/docsync/internal/api/handlers"
	"github.com/akarpov/docsync/internal/api/middleware"
	"github.com/akarpov/docsync/internal/audit"
	"github.com/akarpov/docsync/internal/auth"
	"github.com/akarpov/docsync/internal/cache"
	"github.com/akarpov/docsync/internal/config"
	"github.com/akarpov/docsync/internal/convert"
	"github.com/akarpov/docsync/internal/file"
	"github.com/akarpov/docsync/internal/index"
	"github.com/akarpov/docsync/internal/queue"
	"github.com/akarpov/docsync/internal/route"
	"github.com/akarpov/docsync/internal/storage"
)

type Router struct {
	mux   *chi.Mux
	db    *pgxpool.Pool
	redis *redis.Client
	cfg   *config.Config
}

func NewRouter(db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config) *Router {
	return &Router{
		mux:   chi.NewRouter(),
		db:    db,
		redis: rdb,
		cfg:   cfg,
	}
}

func (rt *Router) Setup(ctx context.Context) (http.Handler, error) {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	rl := middleware.NewRateLimiter(100, 200)
	r.Use(rl.Limit)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// Initialize services
	store, err := storage.NewS3Storage(ctx, rt.cfg.Storage)
	if err != nil {
		return nil, err
	}
	idx := index.NewOpenAIIndex(rt.cfg.Index.OpenAIKey, rt.cfg.Index.Timeout)
	converter := convert.New(rt.cfg.Converter)

	var routeRepo route.Repository = route.NewPgRepository(rt.db)
	if rt.redis != nil {
		routeRepo = route.NewCachedRepository(routeRepo, cache.New(rt.redis), 5*time.Minute)
	}
	resolver := route.NewResolver(routeRepo)

	auditSvc := audit.NewService(rt.db)
	fileRepo := file.NewPgRepository(rt.db)
	fileSvc := file.NewService(
		fileRepo, store, idx, converter, resolver, auditSvc,
		rt.cfg.Storage.Bucket, rt.cfg.Upload.MaxFileSize, rt.cfg.Upload.ScratchDir,
	)
	processor := file.NewEventProcessor(fileRepo, store, resolver, auditSvc)
	signer := auth.NewDownloadSigner(rt.cfg.Auth.DownloadSecret, rt.cfg.Auth.DownloadTTL)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// File routes
		fileH := handlers.NewFileHandler(fileSvc, signer, rt.cfg.Upload.MaxFileSize)
		r.Route("/files", func(r chi.Router) {
			r.Post("/", fileH.Upload)
			r.Get("/", fileH.List)
			r.Get("/stats", fileH.Stats)
			r.Get("/{id}", fileH.Get)
			r.Delete("/{id}", fileH.Delete)
			r.Get("/{id}/download", fileH.Download)
			r.Post("/{id}/download-link", fileH.DownloadLink)
		})

		// Token-gated download for shared links
		r.Get("/download", fileH.DownloadWithToken)

		// Route routes
		routeH := handlers.NewRouteHandler(routeRepo)
		r.Route("/routes", func(r chi.Router) {
			r.Post("/", routeH.Create)
			r.Get("/", routeH.List)
			r.Put("/{id}", routeH.Update)
			r.Delete("/{id}", routeH.Delete)
			r.Post("/{id}/default", routeH.SetDefault)
		})

		// Admin routes
		adminH := handlers.NewAdminHandler(auditSvc, queue.NewClient(rt.cfg.Redis), idx, fileSvc)
		r.Route("/admin", func(r chi.Router) {
			r.Get("/audit", adminH.AuditLogs)
			r.Get("/index/{index}/drift", adminH.IndexDrift)
			r.Post("/sync/{task}", adminH.TriggerSync)
		})

		// Bucket notification webhook, shared-secret gated
		eventH := handlers.NewEventHandler(processor)
		r.Route("/events", func(r chi.Router) {
			r.Use(middleware.WebhookToken(rt.cfg.Webhook.Header, rt.cfg.Webhook.Token))
			r.Post("/bucket", eventH.Receive)
		})
	})

	return r, nil
}
