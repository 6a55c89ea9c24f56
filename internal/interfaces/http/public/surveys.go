package public

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wellnest/survey-api/internal/interfaces/http/common"
	"github.com/wellnest/survey-api/internal/survey/application"
	"github.com/wellnest/survey-api/internal/survey/domain"
)

func (h *Handler) surveyListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		filter := application.SurveyFilter{
			Scope:  strings.TrimSpace(query.Get("scope")),
			Search: strings.TrimSpace(query.Get("search")),
		}

		ctx, cancel := context.WithTimeout(r.Context(), common.RequestTimeout)
		defer cancel()

		page, err := h.queries.Published(ctx, h.actor(r), filter, common.ParsePaging(query))
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		common.WriteSuccess(h.logger, w, http.StatusOK, "surveys_listed", page)
	}
}

func (h *Handler) surveyDetailHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "id"))
		if id == "" {
			common.WriteFailure(h.logger, w, http.StatusBadRequest, "validation_failed", "アンケートIDが指定されていません")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), common.RequestTimeout)
		defer cancel()

		detail, err := h.queries.PublishedDetail(ctx, h.actor(r), id)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		common.WriteSuccess(h.logger, w, http.StatusOK, "survey_fetched", detail)
	}
}

func (h *Handler) actor(r *http.Request) domain.Actor {
	if actor, ok := common.ActorFromContext(r.Context()); ok {
		return actor
	}
	return domain.Actor{Role: domain.RoleMember}
}
