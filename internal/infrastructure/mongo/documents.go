package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wellnest/survey-api/internal/survey/domain"
)

// SurveyDocument は surveys コレクションのスキーマ。questionIds は survey_questions からの派生値。
type SurveyDocument struct {
	ID              primitive.ObjectID   `bson:"_id"`
	CompanyID       *string              `bson:"companyId"`
	CreatedBy       string               `bson:"createdBy"`
	ApprovedBy      *string              `bson:"approvedBy"`
	ApprovedOn      *time.Time           `bson:"approvedOn"`
	Title           string               `bson:"title"`
	CategoryID      *string              `bson:"categoryId"`
	LogoKey         *string              `bson:"logoKey"`
	ImageKey        *string              `bson:"imageKey"`
	QuestionIDs     []primitive.ObjectID `bson:"questionIds"`
	SurveyType      string               `bson:"surveyType"`
	Status          string               `bson:"status"`
	Scope           string               `bson:"scope"`
	TargetPlatforms []string             `bson:"targetPlatforms"`
	NotifyTime      string               `bson:"notifyTime,omitempty"`
	Duration        int                  `bson:"duration"`
	DeletedAt       *time.Time           `bson:"deletedAt"`
	Version         int64                `bson:"version"`
	CreatedAt       time.Time            `bson:"createdAt"`
	UpdatedAt       time.Time            `bson:"updatedAt"`
}

// QuestionDocument は survey_questions コレクションのスキーマ。
type QuestionDocument struct {
	ID        primitive.ObjectID `bson:"_id"`
	SurveyID  primitive.ObjectID `bson:"surveyId"`
	Title     string             `bson:"title"`
	Options   []string           `bson:"options"`
	Skipable  bool               `bson:"skipable"`
	Position  int                `bson:"position"`
	DeletedAt *time.Time         `bson:"deletedAt"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

// CommentDocument は承認履歴 1 件分の埋め込みドキュメント。
type CommentDocument struct {
	Comment       *string   `bson:"comment"`
	CommentedBy   string    `bson:"commentedBy"`
	CommentedOn   time.Time `bson:"commentedOn"`
	ContentStatus string    `bson:"contentStatus"`
}

// ApprovalDocument は content_approvals コレクションのスキーマ。1 ドキュメント = 1 審査サイクル。
type ApprovalDocument struct {
	ID            primitive.ObjectID `bson:"_id"`
	ContentTypeID primitive.ObjectID `bson:"contentTypeId"`
	ContentType   string             `bson:"contentType"`
	CompanyID     *string            `bson:"companyId"`
	DisplayName   string             `bson:"displayName"`
	ContentStatus string             `bson:"contentStatus"`
	CreatedBy     string             `bson:"createdBy"`
	UpdatedBy     string             `bson:"updatedBy"`
	UpdatedOn     time.Time          `bson:"updatedOn"`
	Comments      []CommentDocument  `bson:"comments"`
	CreatedAt     time.Time          `bson:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt"`
}

// FailedNotificationDocument は配信に失敗した通知を後から再送するための退避先。
type FailedNotificationDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Target      string             `bson:"target"`
	Destination string             `bson:"destination"`
	UserID      string             `bson:"userId"`
	Text        string             `bson:"text"`
	Payload     map[string]string  `bson:"payload,omitempty"`
	Error       string             `bson:"error"`
	Attempts    int                `bson:"attempts"`
	Status      string             `bson:"status"`
	CreatedAt   time.Time          `bson:"createdAt"`
	LastTriedAt time.Time          `bson:"lastTriedAt"`
}

func mapSurveyDocument(doc SurveyDocument) domain.Survey {
	platforms := make(domain.PlatformList, 0, len(doc.TargetPlatforms))
	for _, p := range doc.TargetPlatforms {
		platforms = append(platforms, domain.Platform(p))
	}
	return domain.Survey{
		ID:              doc.ID.Hex(),
		CompanyID:       doc.CompanyID,
		CreatedBy:       doc.CreatedBy,
		ApprovedBy:      doc.ApprovedBy,
		ApprovedOn:      doc.ApprovedOn,
		Title:           doc.Title,
		CategoryID:      doc.CategoryID,
		LogoKey:         doc.LogoKey,
		ImageKey:        doc.ImageKey,
		QuestionIDs:     hexIDs(doc.QuestionIDs),
		SurveyType:      domain.SurveyType(doc.SurveyType),
		Status:          domain.SurveyStatus(doc.Status),
		Scope:           domain.Scope(doc.Scope),
		TargetPlatforms: platforms,
		NotifyTime:      doc.NotifyTime,
		Duration:        doc.Duration,
		DeletedAt:       doc.DeletedAt,
		Version:         doc.Version,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
}

func mapDomainSurveyToDocument(s *domain.Survey) (SurveyDocument, error) {
	questionIDs, err := objectIDs(s.QuestionIDs)
	if err != nil {
		return SurveyDocument{}, err
	}
	return SurveyDocument{
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
		TargetPlatforms: s.TargetPlatforms.Strings(),
		NotifyTime:      s.NotifyTime,
		Duration:        s.Duration,
		DeletedAt:       s.DeletedAt,
		Version:         s.Version,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}, nil
}

func mapQuestionDocument(doc QuestionDocument) domain.Question {
	return domain.Question{
		ID:        doc.ID.Hex(),
		SurveyID:  doc.SurveyID.Hex(),
		Title:     doc.Title,
		Options:   append([]string{}, doc.Options...),
		Skipable:  doc.Skipable,
		Position:  doc.Position,
		DeletedAt: doc.DeletedAt,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

func mapApprovalDocument(doc ApprovalDocument) domain.ContentApproval {
	comments := make([]domain.ApprovalComment, 0, len(doc.Comments))
	for _, c := range doc.Comments {
		comments = append(comments, domain.ApprovalComment{
			Comment:       c.Comment,
			CommentedBy:   c.CommentedBy,
			CommentedOn:   c.CommentedOn,
			ContentStatus: domain.ContentStatus(c.ContentStatus),
		})
	}
	return domain.ContentApproval{
		ID:            doc.ID.Hex(),
		ContentTypeID: doc.ContentTypeID.Hex(),
		ContentType:   doc.ContentType,
		CompanyID:     doc.CompanyID,
		DisplayName:   doc.DisplayName,
		ContentStatus: domain.ContentStatus(doc.ContentStatus),
		CreatedBy:     doc.CreatedBy,
		UpdatedBy:     doc.UpdatedBy,
		UpdatedOn:     doc.UpdatedOn,
		Comments:      comments,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
}

func newCommentDocument(c domain.ApprovalComment) CommentDocument {
	return CommentDocument{
		Comment:       c.Comment,
		CommentedBy:   c.CommentedBy,
		CommentedOn:   c.CommentedOn,
		ContentStatus: string(c.ContentStatus),
	}
}

func hexIDs(ids []primitive.ObjectID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.Hex())
	}
	return out
}

func objectIDs(ids []string) ([]primitive.ObjectID, error) {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return nil, err
		}
		out = append(out, oid)
	}
	return out, nil
}
