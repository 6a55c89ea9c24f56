package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collections はコレクション名の束。config から渡される。
type Collections struct {
	Surveys             string
	Questions           string
	Approvals           string
	Users               string
	Categories          string
	FailedNotifications string
}

// EnsureIndexes は起動時に必要なインデックスを作成する。既存の同名インデックスはそのまま。
func EnsureIndexes(ctx context.Context, db *mongo.Database, names Collections) error {
	for collection, models := range indexPlan(names) {
		if len(models) == 0 {
			continue
		}
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("%s のインデックス作成に失敗: %w", collection, err)
		}
	}
	return nil
}

func indexPlan(names Collections) map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		names.Surveys: {
			{Keys: bson.D{{Key: "companyId", Value: 1}, {Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("company_status_created")},
			{Keys: bson.D{{Key: "createdBy", Value: 1}, {Key: "deletedAt", Value: 1}}, Options: options.Index().SetName("created_by")},
		},
		names.Questions: {
			{Keys: bson.D{{Key: "surveyId", Value: 1}, {Key: "deletedAt", Value: 1}, {Key: "position", Value: 1}}, Options: options.Index().SetName("survey_live_position")},
		},
		names.Approvals: {
			{Keys: bson.D{{Key: "contentType", Value: 1}, {Key: "contentTypeId", Value: 1}, {Key: "updatedAt", Value: -1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("content_latest")},
			{Keys: bson.D{{Key: "contentStatus", Value: 1}, {Key: "updatedOn", Value: -1}}, Options: options.Index().SetName("status_updated_on")},
		},
		names.FailedNotifications: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}}, Options: options.Index().SetName("status_created")},
		},
	}
}
