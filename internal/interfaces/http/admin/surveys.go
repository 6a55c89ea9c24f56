package admin

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
		actor, ok := h.actor(w, r)
		if !ok {
			return
		}
		query := r.URL.Query()
		filter := application.SurveyFilter{
			Status:     strings.TrimSpace(query.Get("status")),
			SurveyType: strings.TrimSpace(query.Get("surveyType")),
			Scope:      strings.TrimSpace(query.Get("scope")),
			Search:     strings.TrimSpace(query.Get("search")),
			CreatedBy:  strings.TrimSpace(query.Get("createdBy")),
		}
		if filter.CreatedBy == "me" {
			filter.CreatedBy = actor.ID
		}

		ctx, cancel := context.WithTimeout(r.Context(), common.RequestTimeout)
		defer cancel()

		page, err := h.queries.List(ctx, actor, filter, common.ParsePaging(query))
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		common.WriteSuccess(h.logger, w, http.StatusOK, "surveys_listed", page)
	}
}

func (h *Handler) surveyDetailHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := h.actor(w, r)
		if !ok {
			return
		}
		id, ok := h.pathID(w, r, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), common.RequestTimeout)
		defer cancel()

		detail, err := h.queries.Detail(ctx, actor, id)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		common.WriteSuccess(h.logger, w, http.StatusOK, "survey_fetched", detail)
	}
}

func (h *Handler) surveyCreateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := h.actor(w, r)
		if !ok {
			return
		}
		var req surveyRequest
		if err := decodeJSON(r, &req); err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		cmd, err := toSurveyCommand(req)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), common.RequestTimeout)
		defer cancel()

		result, err := h.authoring.Create(ctx, actor, cmd)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		common.WriteSuccess(h.logger, w, http.StatusCreated, "survey_created", toWriteResponse(result))
	}
}

func (h *Handler) surveyUpdateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := h.actor(w, r)
		if !ok {
			return
		}
		id, ok := h.pathID(w, r, "id")
		if !ok {
			return
		}
		var req surveyRequest
		if err := decodeJSON(r, &req); err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		cmd, err := toSurveyCommand(req)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), common.RequestTimeout)
		defer cancel()

		result, err := h.authoring.Update(ctx, actor, id, cmd)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		common.WriteSuccess(h.logger, w, http.StatusOK, "survey_updated", toWriteResponse(result))
	}
}

func (h *Handler) surveyDeleteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := h.actor(w, r)
		if !ok {
			return
		}
		id, ok := h.pathID(w, r, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), common.RequestTimeout)
		defer cancel()

		if err := h.authoring.Delete(ctx, actor, id); err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		common.WriteSuccess(h.logger, w, http.StatusOK, "survey_deleted", map[string]string{"id": id})
	}
}

func (h *Handler) decisionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := h.actor(w, r)
		if !ok {
			return
		}
		id, ok := h.pathID(w, r, "id")
		if !ok {
			return
		}
		var req decisionRequest
		if err := decodeJSON(r, &req); err != nil {
			common.WriteError(h.logger, w, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), common.RequestTimeout)
		defer cancel()

		result, err := h.moderation.Decide(ctx, actor, application.DecisionCommand{
			SurveyID: id,
			Decision: req.Decision,
			Comment:  req.Comment,
		})
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		common.WriteSuccess(h.logger, w, http.StatusOK, "decision_recorded", toDecisionResponse(result))
	}
}

// actor は認証ミドルウェアが詰めたアクターを取り出す。無ければ 401。
func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	actor, ok := common.ActorFromContext(r.Context())
	if !ok || actor.ID == "" {
		common.WriteFailure(h.logger, w, http.StatusUnauthorized, "unauthorized", "認証情報の取得に失敗しました")
		return domain.Actor{}, false
	}
	return actor, true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, name))
	if id == "" {
		common.WriteFailure(h.logger, w, http.StatusBadRequest, "validation_failed", "アンケートIDが指定されていません")
		return "", false
	}
	return id, true
}
