package mongo

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wellnest/survey-api/internal/survey/application"
	"github.com/wellnest/survey-api/internal/survey/domain"
)

var approvalSortFields = map[string]string{
	"updatedOn":     "updatedOn",
	"createdAt":     "createdAt",
	"displayName":   "displayName",
	"contentStatus": "contentStatus",
}

// 同一アンケートに複数サイクルがある場合の「現在」の決め方。
var latestCycleSort = bson.D{{Key: "updatedAt", Value: -1}, {Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

// ApprovalRepository は content_approvals コレクションを扱う。
// APPROVED になったドキュメントは凍結され、以降の更新条件から外れる。
type ApprovalRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewApprovalRepository(db *mongo.Database, collectionName string) *ApprovalRepository {
	return &ApprovalRepository{
		collection: db.Collection(collectionName),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (r *ApprovalRepository) Insert(ctx context.Context, approval *domain.ContentApproval) error {
	if approval == nil {
		return errors.New("approval payload is nil")
	}
	contentID, err := primitive.ObjectIDFromHex(approval.ContentTypeID)
	if err != nil {
		return domain.ErrSurveyNotFound
	}
	comments := make([]CommentDocument, 0, len(approval.Comments))
	for _, c := range approval.Comments {
		comments = append(comments, newCommentDocument(c))
	}
	now := r.now()
	doc := ApprovalDocument{
		ID:            primitive.NewObjectID(),
		ContentTypeID: contentID,
		ContentType:   approval.ContentType,
		CompanyID:     approval.CompanyID,
		DisplayName:   approval.DisplayName,
		ContentStatus: string(approval.ContentStatus),
		CreatedBy:     approval.CreatedBy,
		UpdatedBy:     approval.UpdatedBy,
		UpdatedOn:     approval.UpdatedOn,
		Comments:      comments,
		CreatedAt:     approval.CreatedAt,
		UpdatedAt:     approval.UpdatedAt,
	}
	if doc.ContentType == "" {
		doc.ContentType = domain.ContentTypeSurvey
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}
	if doc.UpdatedOn.IsZero() {
		doc.UpdatedOn = doc.UpdatedAt
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return err
	}
	approval.ID = doc.ID.Hex()
	return nil
}

// Latest は現在のサイクルを返す。存在しなければ (nil, nil)。
func (r *ApprovalRepository) Latest(ctx context.Context, surveyID string) (*domain.ContentApproval, error) {
	contentID, err := parseSurveyID(surveyID)
	if err != nil {
		return nil, err
	}
	var doc ApprovalDocument
	opts := options.FindOne().SetSort(latestCycleSort)
	err = r.collection.FindOne(ctx, byContent(contentID), opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	approval := mapApprovalDocument(doc)
	return &approval, nil
}

// LatestFor は一覧表示用に複数アンケートの現在サイクルをまとめて引く。
func (r *ApprovalRepository) LatestFor(ctx context.Context, surveyIDs []string) (map[string]domain.ContentApproval, error) {
	ids := make([]primitive.ObjectID, 0, len(surveyIDs))
	for _, id := range surveyIDs {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			ids = append(ids, oid)
		}
	}
	result := make(map[string]domain.ContentApproval, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	cursor, err := r.collection.Aggregate(ctx, latestForPipeline(ids))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	for cursor.Next(ctx) {
		var doc ApprovalDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		result[doc.ContentTypeID.Hex()] = mapApprovalDocument(doc)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func latestForPipeline(ids []primitive.ObjectID) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"contentType": domain.ContentTypeSurvey, "contentTypeId": bson.M{"$in": ids}}}},
		{{Key: "$sort", Value: latestCycleSort}},
		{{Key: "$group", Value: bson.M{"_id": "$contentTypeId", "doc": bson.M{"$first": "$$ROOT"}}}},
		{{Key: "$replaceRoot", Value: bson.M{"newRoot": "$doc"}}},
	}
}

// History は新しい順に全サイクルを返す。
func (r *ApprovalRepository) History(ctx context.Context, surveyID string) ([]domain.ContentApproval, error) {
	contentID, err := parseSurveyID(surveyID)
	if err != nil {
		return nil, err
	}
	cursor, err := r.collection.Find(ctx, byContent(contentID), options.Find().SetSort(latestCycleSort))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	return decodeApprovals(ctx, cursor)
}

// Amend は未承認サイクルを DRAFT に戻して表示名を差し替える。
func (r *ApprovalRepository) Amend(ctx context.Context, id string, amendment application.ApprovalAmendment) error {
	update := bson.M{"$set": bson.M{
		"displayName":   amendment.DisplayName,
		"contentStatus": string(domain.ContentDraft),
		"updatedBy":     amendment.UpdatedBy,
		"updatedOn":     amendment.UpdatedOn,
		"updatedAt":     amendment.UpdatedOn,
	}}
	return r.updateOpenCycle(ctx, id, update)
}

// AppendDecision は判定コメントを積み、ステータスを判定結果にする。
func (r *ApprovalRepository) AppendDecision(ctx context.Context, id string, comment domain.ApprovalComment) error {
	update := bson.M{
		"$set": bson.M{
			"contentStatus": string(comment.ContentStatus),
			"updatedBy":     comment.CommentedBy,
			"updatedOn":     comment.CommentedOn,
			"updatedAt":     comment.CommentedOn,
		},
		"$push": bson.M{"comments": newCommentDocument(comment)},
	}
	return r.updateOpenCycle(ctx, id, update)
}

// updateOpenCycle は APPROVED 以外のときだけ更新する。
// 0 件一致なら存在有無を確認し、凍結済みか未存在かを返し分ける。
func (r *ApprovalRepository) updateOpenCycle(ctx context.Context, id string, update bson.M) error {
	objectID, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return domain.ErrApprovalNotFound
	}
	filter := bson.M{"_id": objectID, "contentStatus": bson.M{"$ne": string(domain.ContentApproved)}}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount > 0 {
		return nil
	}
	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": objectID})
	if err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrApprovalNotFound
	}
	return domain.ErrApprovalFrozen
}

// Find はモデレーション待ち一覧。
func (r *ApprovalRepository) Find(ctx context.Context, filter application.ApprovalFilter, paging application.Paging) ([]domain.ContentApproval, int64, error) {
	mongoFilter := buildApprovalFilter(filter)
	total, err := r.collection.CountDocuments(ctx, mongoFilter)
	if err != nil {
		return nil, 0, err
	}
	paging = paging.Normalize()
	findOpts := options.Find().
		SetSort(sortSpec(approvalSortFields, paging, "updatedOn")).
		SetSkip(paging.Skip()).
		SetLimit(int64(paging.Limit))
	cursor, err := r.collection.Find(ctx, mongoFilter, findOpts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)
	approvals, err := decodeApprovals(ctx, cursor)
	if err != nil {
		return nil, 0, err
	}
	return approvals, total, nil
}

func buildApprovalFilter(filter application.ApprovalFilter) bson.M {
	mongoFilter := bson.M{"contentType": domain.ContentTypeSurvey}
	if v := strings.TrimSpace(filter.ContentStatus); v != "" {
		mongoFilter["contentStatus"] = strings.ToUpper(v)
	}
	if visibility := visibilityClause("companyId", filter.Visibility); visibility != nil {
		mongoFilter["$or"] = visibility
	}
	return mongoFilter
}

func byContent(contentID primitive.ObjectID) bson.M {
	return bson.M{"contentType": domain.ContentTypeSurvey, "contentTypeId": contentID}
}

func decodeApprovals(ctx context.Context, cursor *mongo.Cursor) ([]domain.ContentApproval, error) {
	approvals := make([]domain.ContentApproval, 0)
	for cursor.Next(ctx) {
		var doc ApprovalDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		approvals = append(approvals, mapApprovalDocument(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return approvals, nil
}
