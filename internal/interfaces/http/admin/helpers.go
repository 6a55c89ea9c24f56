package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/wellnest/survey-api/internal/interfaces/http/common"
	"github.com/wellnest/survey-api/internal/survey/application"
	"github.com/wellnest/survey-api/internal/survey/domain"
)

// decodeJSON はボディサイズを制限して JSON を読み込む。不正な形式は検証エラーとして扱う。
func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, common.MaxRequestBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Invalid("body", "request body is empty")
		}
		return domain.Invalid("body", fmt.Sprintf("リクエストの形式が不正です: %v", err))
	}
	return nil
}

// toSurveyCommand はリクエストをアプリケーション層のコマンドへ変換する。
func toSurveyCommand(req surveyRequest) (application.SurveyCommand, error) {
	logo, err := toMediaInput("logo", req.Logo)
	if err != nil {
		return application.SurveyCommand{}, err
	}
	image, err := toMediaInput("image", req.Image)
	if err != nil {
		return application.SurveyCommand{}, err
	}
	cmd := application.SurveyCommand{
		Title:           req.Title,
		SurveyType:      req.SurveyType,
		Scope:           req.Scope,
		CompanyID:       req.CompanyID,
		Duration:        req.Duration,
		NotifyTime:      req.NotifyTime,
		TargetPlatforms: req.TargetPlatforms,
		Logo:            logo,
		Image:           image,
		ExpectedVersion: req.Version,
	}
	if req.CategoryID.Set {
		cmd.CategoryID = application.Field[string]{Set: true, Value: req.CategoryID.Value}
	}
	if req.Questions != nil {
		questions := make([]application.QuestionInput, 0, len(*req.Questions))
		for _, q := range *req.Questions {
			questions = append(questions, application.QuestionInput{
				QuestionID: strings.TrimSpace(q.QuestionID),
				Title:      q.Title,
				Options:    q.Options,
				Skipable:   q.Skipable,
			})
		}
		cmd.Questions = &questions
	}
	return cmd, nil
}

func toMediaInput(name string, field mediaField) (application.MediaInput, error) {
	if !field.Set {
		return application.MediaInput{Action: application.MediaKeep}, nil
	}
	if field.Null {
		return application.MediaInput{Action: application.MediaClear}, nil
	}
	v := field.Value
	input := application.MediaInput{
		Data:         v.Data,
		ContentType:  strings.TrimSpace(v.ContentType),
		SourceFolder: strings.TrimSpace(v.Folder),
		SourceKey:    strings.TrimSpace(v.FileName),
	}
	switch strings.ToLower(strings.TrimSpace(v.Action)) {
	case "upload":
		input.Action = application.MediaUpload
	case "reuse", "copy":
		input.Action = application.MediaReuse
	case "presign":
		input.Action = application.MediaPresign
	case "clear":
		input.Action = application.MediaClear
	case "keep":
		input.Action = application.MediaKeep
	case "":
		switch {
		case len(v.Data) > 0:
			input.Action = application.MediaUpload
		case input.SourceKey != "":
			input.Action = application.MediaReuse
		case input.ContentType != "":
			input.Action = application.MediaPresign
		default:
			return application.MediaInput{}, domain.Invalid(name, "data, fileName or contentType is required")
		}
	default:
		return application.MediaInput{}, domain.Invalid(name, fmt.Sprintf("unknown media action %q", v.Action))
	}
	return input, nil
}

func toSurveyResponse(s domain.Survey) surveyResponse {
	platforms := s.TargetPlatforms.Strings()
	if platforms == nil {
		platforms = []string{}
	}
	questionIDs := append([]string{}, s.QuestionIDs...)
	return surveyResponse{
		ID:              s.ID,
		CompanyID:       s.CompanyID,
		CreatedBy:       s.CreatedBy,
		ApprovedBy:      s.ApprovedBy,
		ApprovedOn:      s.ApprovedOn,
		Title:           s.Title,
		CategoryID:      s.CategoryID,
		LogoKey:         s.LogoKey,
		ImageKey:        s.ImageKey,
		QuestionIDs:     questionIDs,
		SurveyType:      string(s.SurveyType),
		Status:          string(s.Status),
		Scope:           string(s.Scope),
		TargetPlatforms: platforms,
		NotifyTime:      s.NotifyTime,
		Duration:        s.Duration,
		Version:         s.Version,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

func toQuestionResponses(questions []domain.Question) []questionResponse {
	out := make([]questionResponse, 0, len(questions))
	for _, q := range questions {
		options := q.Options
		if options == nil {
			options = []string{}
		}
		out = append(out, questionResponse{
			ID:       q.ID,
			Title:    q.Title,
			Options:  options,
			Skipable: q.Skipable,
			Position: q.Position,
		})
	}
	return out
}

func toWriteResponse(result *application.SurveyResult) surveyWriteResponse {
	resp := surveyWriteResponse{
		Questions:  toQuestionResponses(result.Questions),
		Moderation: string(result.Outcome),
		UploadURLs: result.UploadURLs,
	}
	if result.Survey != nil {
		resp.Survey = toSurveyResponse(*result.Survey)
	}
	return resp
}

func toDecisionResponse(result *application.DecisionResult) decisionResponse {
	resp := decisionResponse{}
	if result.Survey != nil {
		resp.Survey = toSurveyResponse(*result.Survey)
	}
	if a := result.Approval; a != nil {
		resp.Approval = &approvalResponse{
			ID:            a.ID,
			ContentTypeID: a.ContentTypeID,
			DisplayName:   a.DisplayName,
			ContentStatus: string(a.ContentStatus),
			UpdatedBy:     a.UpdatedBy,
			UpdatedOn:     a.UpdatedOn,
		}
	}
	return resp
}
