package admin

import (
	"context"
	"net/http"
	"strings"

	"github.com/wellnest/survey-api/internal/interfaces/http/common"
	"github.com/wellnest/survey-api/internal/survey/application"
)

func (h *Handler) approvalListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := h.actor(w, r)
		if !ok {
			return
		}
		query := r.URL.Query()
		filter := application.ApprovalFilter{ContentStatus: strings.TrimSpace(query.Get("contentStatus"))}

		ctx, cancel := context.WithTimeout(r.Context(), common.RequestTimeout)
		defer cancel()

		page, err := h.queries.Approvals(ctx, actor, filter, common.ParsePaging(query))
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		common.WriteSuccess(h.logger, w, http.StatusOK, "approvals_listed", page)
	}
}

func (h *Handler) approvalDetailHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := h.actor(w, r)
		if !ok {
			return
		}
		surveyID, ok := h.pathID(w, r, "surveyId")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), common.RequestTimeout)
		defer cancel()

		detail, err := h.queries.ApprovalDetail(ctx, actor, surveyID)
		if err != nil {
			common.WriteError(h.logger, w, err)
			return
		}
		common.WriteSuccess(h.logger, w, http.StatusOK, "approval_fetched", detail)
	}
}
