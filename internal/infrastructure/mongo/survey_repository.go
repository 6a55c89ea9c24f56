package mongo

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wellnest/survey-api/internal/survey/application"
	"github.com/wellnest/survey-api/internal/survey/domain"
)

var surveySortFields = map[string]string{
	"createdAt":  "createdAt",
	"updatedAt":  "updatedAt",
	"title":      "title",
	"status":     "status",
	"surveyType": "surveyType",
	"scope":      "scope",
	"duration":   "duration",
	"notifyTime": "notifyTime",
}

// SurveyRepository は surveys コレクションを扱う。更新はすべて version の比較と加算を伴う。
type SurveyRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewSurveyRepository(db *mongo.Database, collectionName string) *SurveyRepository {
	return &SurveyRepository{
		collection: db.Collection(collectionName),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Insert は新しい ObjectID を採番して登録し、survey.ID と Version を書き戻す。
func (r *SurveyRepository) Insert(ctx context.Context, survey *domain.Survey) error {
	if survey == nil {
		return errors.New("survey payload is nil")
	}
	doc, err := mapDomainSurveyToDocument(survey)
	if err != nil {
		return err
	}
	doc.ID = primitive.NewObjectID()
	doc.Version = 1
	if doc.QuestionIDs == nil {
		doc.QuestionIDs = []primitive.ObjectID{}
	}
	if doc.TargetPlatforms == nil {
		doc.TargetPlatforms = []string{}
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return err
	}
	survey.ID = doc.ID.Hex()
	survey.Version = doc.Version
	return nil
}

// Patch は指定フィールドのみを $set し、更新後のドキュメントを返す。
// expectedVersion が 0 でなければ version 一致を条件にする。
func (r *SurveyRepository) Patch(ctx context.Context, id string, expectedVersion int64, patch application.SurveyPatch) (*domain.Survey, error) {
	objectID, err := parseSurveyID(id)
	if err != nil {
		return nil, err
	}
	filter := liveByID(objectID)
	if expectedVersion > 0 {
		filter["version"] = expectedVersion
	}
	update := bson.M{
		"$set": buildSurveySet(patch, r.now()),
		"$inc": bson.M{"version": 1},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc SurveyDocument
	err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, r.missOrConflict(ctx, objectID, expectedVersion)
	}
	if err != nil {
		return nil, err
	}
	survey := mapSurveyDocument(doc)
	return &survey, nil
}

// missOrConflict は条件付き更新が 0 件だった理由を判別する。
func (r *SurveyRepository) missOrConflict(ctx context.Context, objectID primitive.ObjectID, expectedVersion int64) error {
	if expectedVersion == 0 {
		return domain.ErrSurveyNotFound
	}
	count, err := r.collection.CountDocuments(ctx, liveByID(objectID))
	if err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrSurveyNotFound
	}
	return domain.ErrVersionMismatch
}

func (r *SurveyRepository) FindByID(ctx context.Context, id string) (*domain.Survey, error) {
	objectID, err := parseSurveyID(id)
	if err != nil {
		return nil, err
	}
	var doc SurveyDocument
	err = r.collection.FindOne(ctx, liveByID(objectID)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrSurveyNotFound
	}
	if err != nil {
		return nil, err
	}
	survey := mapSurveyDocument(doc)
	return &survey, nil
}

// FindByIDs は一覧表示用の一括取得。不正な ID や削除済みは結果から外れる。
func (r *SurveyRepository) FindByIDs(ctx context.Context, ids []string) (map[string]domain.Survey, error) {
	objectIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			objectIDs = append(objectIDs, oid)
		}
	}
	result := make(map[string]domain.Survey, len(objectIDs))
	if len(objectIDs) == 0 {
		return result, nil
	}
	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": objectIDs}, "deletedAt": nil})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	for cursor.Next(ctx) {
		var doc SurveyDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		result[doc.ID.Hex()] = mapSurveyDocument(doc)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Find は検索条件を Mongo クエリへ変換し、1 ページ分と総件数を返す。
func (r *SurveyRepository) Find(ctx context.Context, filter application.SurveyFilter, paging application.Paging) ([]domain.Survey, int64, error) {
	mongoFilter := buildSurveyFilter(filter)
	total, err := r.collection.CountDocuments(ctx, mongoFilter)
	if err != nil {
		return nil, 0, err
	}

	paging = paging.Normalize()
	findOpts := options.Find().
		SetSort(sortSpec(surveySortFields, paging, "createdAt")).
		SetSkip(paging.Skip()).
		SetLimit(int64(paging.Limit))

	cursor, err := r.collection.Find(ctx, mongoFilter, findOpts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	surveys := make([]domain.Survey, 0)
	for cursor.Next(ctx) {
		var doc SurveyDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, 0, err
		}
		surveys = append(surveys, mapSurveyDocument(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, err
	}
	return surveys, total, nil
}

// SetQuestionIDs は再読込した設問 ID で questionIds を上書きする。
func (r *SurveyRepository) SetQuestionIDs(ctx context.Context, id string, questionIDs []string) error {
	objectID, err := parseSurveyID(id)
	if err != nil {
		return err
	}
	ids, err := objectIDs(questionIDs)
	if err != nil {
		return err
	}
	update := bson.M{
		"$set": bson.M{"questionIds": ids, "updatedAt": r.now()},
		"$inc": bson.M{"version": 1},
	}
	result, err := r.collection.UpdateOne(ctx, liveByID(objectID), update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return domain.ErrSurveyNotFound
	}
	return nil
}

// SoftDelete は deletedAt を立てる。物理削除はしない。
func (r *SurveyRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	objectID, err := parseSurveyID(id)
	if err != nil {
		return err
	}
	update := bson.M{
		"$set": bson.M{"deletedAt": at, "updatedAt": at},
		"$inc": bson.M{"version": 1},
	}
	result, err := r.collection.UpdateOne(ctx, liveByID(objectID), update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return domain.ErrSurveyNotFound
	}
	return nil
}

func buildSurveySet(patch application.SurveyPatch, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.SurveyType != nil {
		set["surveyType"] = string(*patch.SurveyType)
	}
	if patch.Status != nil {
		set["status"] = string(*patch.Status)
	}
	if patch.Scope != nil {
		set["scope"] = string(*patch.Scope)
	}
	if patch.TargetPlatforms != nil {
		set["targetPlatforms"] = patch.TargetPlatforms.Strings()
	}
	if patch.NotifyTime != nil {
		set["notifyTime"] = *patch.NotifyTime
	}
	if patch.Duration != nil {
		set["duration"] = *patch.Duration
	}
	if patch.CategoryID.Set {
		set["categoryId"] = patch.CategoryID.Value
	}
	if patch.LogoKey.Set {
		set["logoKey"] = patch.LogoKey.Value
	}
	if patch.ImageKey.Set {
		set["imageKey"] = patch.ImageKey.Value
	}
	if patch.ApprovedBy != nil {
		set["approvedBy"] = *patch.ApprovedBy
	}
	if patch.ApprovedOn != nil {
		set["approvedOn"] = *patch.ApprovedOn
	}
	return set
}

func buildSurveyFilter(filter application.SurveyFilter) bson.M {
	mongoFilter := bson.M{"deletedAt": nil}
	if v := strings.TrimSpace(filter.Status); v != "" {
		mongoFilter["status"] = strings.ToUpper(v)
	}
	if v := strings.TrimSpace(filter.SurveyType); v != "" {
		mongoFilter["surveyType"] = strings.ToUpper(v)
	}
	if v := strings.TrimSpace(filter.Scope); v != "" {
		mongoFilter["scope"] = strings.ToUpper(v)
	}
	if v := strings.TrimSpace(filter.CreatedBy); v != "" {
		mongoFilter["createdBy"] = v
	}
	if keyword := strings.TrimSpace(filter.Search); keyword != "" {
		mongoFilter["title"] = primitive.Regex{Pattern: regexp.QuoteMeta(keyword), Options: "i"}
	}
	if visibility := visibilityClause("companyId", filter.Visibility); visibility != nil {
		mongoFilter["$or"] = visibility
	}
	return mongoFilter
}

// visibilityClause は所属企業とグローバル(companyId=null)の可視範囲を $or 条件にする。
func visibilityClause(field string, v application.Visibility) bson.A {
	if v.All {
		return nil
	}
	clause := bson.A{bson.M{field: bson.M{"$in": nonEmpty(v.CompanyIDs)}}}
	if v.Global {
		clause = append(clause, bson.M{field: nil})
	}
	return clause
}

func sortSpec(fields map[string]string, paging application.Paging, fallback string) bson.D {
	field, ok := fields[paging.Sort]
	if !ok {
		field = fallback
	}
	direction := 1
	if paging.Desc {
		direction = -1
	}
	return bson.D{{Key: field, Value: direction}, {Key: "_id", Value: direction}}
}

func liveByID(id primitive.ObjectID) bson.M {
	return bson.M{"_id": id, "deletedAt": nil}
}

func parseSurveyID(id string) (primitive.ObjectID, error) {
	objectID, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return primitive.NilObjectID, domain.ErrSurveyNotFound
	}
	return objectID, nil
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
