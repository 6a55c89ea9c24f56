package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// nameDocument は users / categories から表示名だけを読むための射影。
type nameDocument struct {
	ID          interface{} `bson:"_id"`
	Name        string      `bson:"name"`
	DisplayName string      `bson:"displayName"`
}

// DirectoryRepository は他モジュールが所有するユーザー・カテゴリの表示名を引く。読み取り専用。
type DirectoryRepository struct {
	users      *mongo.Collection
	categories *mongo.Collection
}

func NewDirectoryRepository(db *mongo.Database, usersCollection, categoriesCollection string) *DirectoryRepository {
	return &DirectoryRepository{
		users:      db.Collection(usersCollection),
		categories: db.Collection(categoriesCollection),
	}
}

func (r *DirectoryRepository) UserNames(ctx context.Context, ids []string) (map[string]string, error) {
	return lookupNames(ctx, r.users, ids)
}

func (r *DirectoryRepository) CategoryNames(ctx context.Context, ids []string) (map[string]string, error) {
	return lookupNames(ctx, r.categories, ids)
}

// lookupNames は文字列 ID と ObjectID のどちらで保存されていても引けるよう両方で照会する。
func lookupNames(ctx context.Context, collection *mongo.Collection, ids []string) (map[string]string, error) {
	result := make(map[string]string, len(ids))
	keys := idCandidates(ids)
	if len(keys) == 0 {
		return result, nil
	}
	opts := options.Find().SetProjection(bson.M{"name": 1, "displayName": 1})
	cursor, err := collection.Find(ctx, bson.M{"_id": bson.M{"$in": keys}}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	for cursor.Next(ctx) {
		var doc nameDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		name := doc.DisplayName
		if name == "" {
			name = doc.Name
		}
		switch id := doc.ID.(type) {
		case primitive.ObjectID:
			result[id.Hex()] = name
		case string:
			result[id] = name
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func idCandidates(ids []string) bson.A {
	seen := make(map[string]struct{}, len(ids))
	keys := bson.A{}
	for _, id := range nonEmpty(ids) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		keys = append(keys, id)
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			keys = append(keys, oid)
		}
	}
	return keys
}
