package public

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wellnest/survey-api/internal/survey/application"
)

// Handler wires public HTTP endpoints to application services.
type Handler struct {
	logger  *log.Logger
	queries application.QueryService
}

// Config defines dependencies required by Handler.
type Config struct {
	Logger  *log.Logger
	Queries application.QueryService
}

// NewHandler constructs a public HTTP handler set.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		logger:  cfg.Logger,
		queries: cfg.Queries,
	}
}

// Register mounts all public routes onto the router. optionalAuth lets
// anonymous callers through; requiredAuth rejects them.
func (h *Handler) Register(r chi.Router, optionalAuth, requiredAuth func(http.Handler) http.Handler) {
	r.With(optionalAuth).Get("/surveys", h.surveyListHandler())
	r.With(optionalAuth).Get("/surveys/{id}", h.surveyDetailHandler())
	r.With(requiredAuth).Get("/auth/verify", h.authVerifyHandler())
}
