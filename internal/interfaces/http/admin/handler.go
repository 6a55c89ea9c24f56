package admin

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wellnest/survey-api/internal/survey/application"
)

// Handler wires admin HTTP endpoints to application services.
type Handler struct {
	logger     *log.Logger
	authoring  application.AuthoringService
	moderation application.ModerationService
	queries    application.QueryService
	writeLimit func(http.Handler) http.Handler
}

// Config provides dependencies for Handler.
type Config struct {
	Logger     *log.Logger
	Authoring  application.AuthoringService
	Moderation application.ModerationService
	Queries    application.QueryService

	// WriteLimit throttles mutating endpoints. Nil disables throttling.
	WriteLimit func(http.Handler) http.Handler
}

// NewHandler constructs an admin HTTP handler set.
func NewHandler(cfg Config) *Handler {
	writeLimit := cfg.WriteLimit
	if writeLimit == nil {
		writeLimit = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{
		logger:     cfg.Logger,
		authoring:  cfg.Authoring,
		moderation: cfg.Moderation,
		queries:    cfg.Queries,
		writeLimit: writeLimit,
	}
}

// Register mounts admin routes onto router. Callers attach authentication.
func (h *Handler) Register(r chi.Router) {
	r.Get("/surveys", h.surveyListHandler())
	r.Get("/surveys/{id}", h.surveyDetailHandler())
	r.Get("/approvals", h.approvalListHandler())
	r.Get("/approvals/{surveyId}", h.approvalDetailHandler())

	r.Group(func(r chi.Router) {
		r.Use(h.writeLimit)
		r.Post("/surveys", h.surveyCreateHandler())
		r.Patch("/surveys/{id}", h.surveyUpdateHandler())
		r.Delete("/surveys/{id}", h.surveyDeleteHandler())
		r.Post("/surveys/{id}/decision", h.decisionHandler())
	})
}
