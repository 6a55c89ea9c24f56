package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wellnest/survey-api/internal/survey/application"
	"github.com/wellnest/survey-api/internal/survey/domain"
)

// QuestionRepository は survey_questions コレクションを扱う。
type QuestionRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewQuestionRepository(db *mongo.Database, collectionName string) *QuestionRepository {
	return &QuestionRepository{
		collection: db.Collection(collectionName),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// BulkWrite は ops を順序なしの 1 バッチで流す。途中の失敗で残りは止まらない。
func (r *QuestionRepository) BulkWrite(ctx context.Context, ops []application.QuestionOp) (application.BulkResult, error) {
	models, err := buildQuestionWriteModels(ops, r.now())
	if err != nil {
		return application.BulkResult{}, err
	}
	if len(models) == 0 {
		return application.BulkResult{}, nil
	}
	result, err := r.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	var out application.BulkResult
	if result != nil {
		out.Inserted = result.InsertedCount
		out.Modified = result.ModifiedCount
	}
	return out, err
}

// FindLive は削除されていない設問を position 順で返す。
func (r *QuestionRepository) FindLive(ctx context.Context, surveyID string) ([]domain.Question, error) {
	surveyObjectID, err := parseSurveyID(surveyID)
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "position", Value: 1}, {Key: "createdAt", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"surveyId": surveyObjectID, "deletedAt": nil}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	questions := make([]domain.Question, 0)
	for cursor.Next(ctx) {
		var doc QuestionDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		questions = append(questions, mapQuestionDocument(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return questions, nil
}

func (r *QuestionRepository) SoftDeleteBySurvey(ctx context.Context, surveyID string, at time.Time) error {
	surveyObjectID, err := parseSurveyID(surveyID)
	if err != nil {
		return err
	}
	_, err = r.collection.UpdateMany(ctx,
		bson.M{"surveyId": surveyObjectID, "deletedAt": nil},
		bson.M{"$set": bson.M{"deletedAt": at, "updatedAt": at}},
	)
	return err
}

// buildQuestionWriteModels は計画済みの操作を BulkWrite 用モデルへ変換する。
// 更新と削除は surveyId で絞り込み、他のアンケートの設問には触れない。
func buildQuestionWriteModels(ops []application.QuestionOp, now time.Time) ([]mongo.WriteModel, error) {
	models := make([]mongo.WriteModel, 0, len(ops))
	for _, op := range ops {
		switch op.Kind {
		case application.OpInsert:
			doc, err := newQuestionDocument(op.Question, now)
			if err != nil {
				return nil, err
			}
			models = append(models, mongo.NewInsertOneModel().SetDocument(doc))
		case application.OpUpdate:
			id, surveyID, err := questionKeys(op.Question.ID, op.Question.SurveyID)
			if err != nil {
				return nil, err
			}
			models = append(models, mongo.NewUpdateOneModel().
				SetFilter(bson.M{"_id": id, "surveyId": surveyID, "deletedAt": nil}).
				SetUpdate(bson.M{"$set": bson.M{
					"title":     op.Question.Title,
					"options":   nonNilOptions(op.Question.Options),
					"skipable":  op.Question.Skipable,
					"position":  op.Question.Position,
					"updatedAt": now,
				}}))
		case application.OpDelete:
			if len(op.DeleteIDs) == 0 {
				continue
			}
			ids, err := objectIDs(op.DeleteIDs)
			if err != nil {
				return nil, err
			}
			surveyID, err := primitive.ObjectIDFromHex(op.Question.SurveyID)
			if err != nil {
				return nil, err
			}
			models = append(models, mongo.NewUpdateManyModel().
				SetFilter(bson.M{"_id": bson.M{"$in": ids}, "surveyId": surveyID, "deletedAt": nil}).
				SetUpdate(bson.M{"$set": bson.M{"deletedAt": now, "updatedAt": now}}))
		default:
			return nil, errors.New("unknown question operation")
		}
	}
	return models, nil
}

func newQuestionDocument(q domain.Question, now time.Time) (QuestionDocument, error) {
	surveyID, err := primitive.ObjectIDFromHex(q.SurveyID)
	if err != nil {
		return QuestionDocument{}, err
	}
	createdAt := q.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	return QuestionDocument{
		ID:        primitive.NewObjectID(),
		SurveyID:  surveyID,
		Title:     q.Title,
		Options:   nonNilOptions(q.Options),
		Skipable:  q.Skipable,
		Position:  q.Position,
		CreatedAt: createdAt,
		UpdatedAt: now,
	}, nil
}

func questionKeys(id, surveyID string) (primitive.ObjectID, primitive.ObjectID, error) {
	questionObjectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, primitive.NilObjectID, err
	}
	surveyObjectID, err := primitive.ObjectIDFromHex(surveyID)
	if err != nil {
		return primitive.NilObjectID, primitive.NilObjectID, err
	}
	return questionObjectID, surveyObjectID, nil
}

func nonNilOptions(options []string) []string {
	if options == nil {
		return []string{}
	}
	return options
}
