package public

import (
	"net/http"

	"github.com/wellnest/survey-api/internal/interfaces/http/common"
)

type verifyResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name,omitempty"`
	Role       string  `json:"role"`
	CompanyID  *string `json:"companyId"`
	Privileged bool    `json:"privileged"`
}

func (h *Handler) authVerifyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := common.ActorFromContext(r.Context())
		if !ok {
			common.WriteFailure(h.logger, w, http.StatusInternalServerError, "internal_error", "認証情報の取得に失敗しました")
			return
		}

		common.WriteSuccess(h.logger, w, http.StatusOK, "authenticated", verifyResponse{
			ID:         actor.ID,
			Name:       actor.Name,
			Role:       string(actor.Role),
			CompanyID:  actor.CompanyID,
			Privileged: actor.Privileged(),
		})
	}
}
