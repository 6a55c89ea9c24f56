package admin

import (
	"bytes"
	"encoding/json"
	"time"
)

var jsonNull = []byte("null")

// optionalString はキー省略・null・値の 3 状態を区別する。
type optionalString struct {
	Set   bool
	Value *string
}

func (o *optionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		o.Value = nil
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// mediaField はロゴ・画像の指定。省略で維持、null で解除、オブジェクトで差し替え。
type mediaField struct {
	Set   bool
	Null  bool
	Value mediaRequest
}

func (m *mediaField) UnmarshalJSON(data []byte) error {
	m.Set = true
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		m.Null = true
		return nil
	}
	return json.Unmarshal(data, &m.Value)
}

// mediaRequest は data(base64) で直接アップロード、fileName で既存ファイル再利用、
// contentType のみで署名付き URL 発行を表す。action で明示もできる。
type mediaRequest struct {
	Action      string `json:"action"`
	Data        []byte `json:"data"`
	ContentType string `json:"contentType"`
	Folder      string `json:"folder"`
	FileName    string `json:"fileName"`
}

type questionRequest struct {
	QuestionID string   `json:"questionId"`
	Title      string   `json:"title"`
	Options    []string `json:"options"`
	Skipable   bool     `json:"skipable"`
}

type surveyRequest struct {
	Title           *string            `json:"title"`
	SurveyType      *string            `json:"surveyType"`
	Scope           *string            `json:"scope"`
	CompanyID       *string            `json:"companyId"`
	CategoryID      optionalString     `json:"categoryId"`
	Duration        *int               `json:"duration"`
	NotifyTime      *string            `json:"notifyTime"`
	TargetPlatforms *[]string          `json:"targetPlatforms"`
	Logo            mediaField         `json:"logo"`
	Image           mediaField         `json:"image"`
	Questions       *[]questionRequest `json:"questions"`
	Version         int64              `json:"version"`
}

type decisionRequest struct {
	Decision string  `json:"decision"`
	Comment  *string `json:"comment"`
}

type questionResponse struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Options  []string `json:"options"`
	Skipable bool     `json:"skipable"`
	Position int      `json:"position"`
}

type surveyResponse struct {
	ID              string     `json:"id"`
	CompanyID       *string    `json:"companyId"`
	CreatedBy       string     `json:"createdBy"`
	ApprovedBy      *string    `json:"approvedBy"`
	ApprovedOn      *time.Time `json:"approvedOn"`
	Title           string     `json:"title"`
	CategoryID      *string    `json:"categoryId"`
	LogoKey         *string    `json:"logoKey"`
	ImageKey        *string    `json:"imageKey"`
	QuestionIDs     []string   `json:"questionIds"`
	SurveyType      string     `json:"surveyType"`
	Status          string     `json:"status"`
	Scope           string     `json:"scope"`
	TargetPlatforms []string   `json:"targetPlatforms"`
	NotifyTime      string     `json:"notifyTime,omitempty"`
	Duration        int        `json:"duration"`
	Version         int64      `json:"version"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

type surveyWriteResponse struct {
	Survey     surveyResponse     `json:"survey"`
	Questions  []questionResponse `json:"questions"`
	Moderation string             `json:"moderation"`
	UploadURLs map[string]string  `json:"uploadUrls,omitempty"`
}

type approvalResponse struct {
	ID            string    `json:"id"`
	ContentTypeID string    `json:"contentTypeId"`
	DisplayName   string    `json:"displayName"`
	ContentStatus string    `json:"contentStatus"`
	UpdatedBy     string    `json:"updatedBy"`
	UpdatedOn     time.Time `json:"updatedOn"`
}

type decisionResponse struct {
	Survey   surveyResponse    `json:"survey"`
	Approval *approvalResponse `json:"approval,omitempty"`
}
