package metastore

import (
	"context"
	"errors"
	"fmt"

	"docqa/internal/docqa/derrors"
	"docqa/internal/docqa/interfaces"
	"docqa/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const storeName = "metadata store"

// MongoStore 在 MongoDB 中保存 FileRecord，以文件标识作为 _id。
type MongoStore struct {
	collection *mongo.Collection
}

var _ interfaces.MetadataStore = (*MongoStore)(nil)

// NewMongoStore 创建一个新的 MongoStore。
func NewMongoStore(db *mongo.Database, collName string) *MongoStore {
	return &MongoStore{collection: db.Collection(collName)}
}

// FindOne 按 _id 查找记录，不存在时返回 (nil, nil)。
func (s *MongoStore) FindOne(ctx context.Context, id string) (*models.FileRecord, error) {
	var record models.FileRecord
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, derrors.Unavailable(storeName, fmt.Errorf("find %s: %w", id, err))
	}
	return &record, nil
}

// InsertOne 插入一条记录；_id 冲突时返回 ErrDuplicateIdentity。
func (s *MongoStore) InsertOne(ctx context.Context, record *models.FileRecord) error {
	if _, err := s.collection.InsertOne(ctx, record); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("file %s: %w", record.ID, derrors.ErrDuplicateIdentity)
		}
		return derrors.Unavailable(storeName, fmt.Errorf("insert %s: %w", record.ID, err))
	}
	return nil
}

// FindAll 按创建时间升序返回全部记录。
func (s *MongoStore) FindAll(ctx context.Context) ([]*models.FileRecord, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.collection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, derrors.Unavailable(storeName, err)
	}
	defer cursor.Close(ctx)

	var records []*models.FileRecord
	if err = cursor.All(ctx, &records); err != nil {
		return nil, derrors.Unavailable(storeName, err)
	}
	return records, nil
}

// DeleteMany 删除给定 _id 的记录，返回实际删除的数量。
func (s *MongoStore) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, derrors.Unavailable(storeName, err)
	}
	return res.DeletedCount, nil
}

// DeleteAll 清空集合。
func (s *MongoStore) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.collection.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, derrors.Unavailable(storeName, err)
	}
	return res.DeletedCount, nil
}

// MongoQuestionStore 原样保存问题集条目。
type MongoQuestionStore struct {
	collection *mongo.Collection
}

var _ interfaces.QuestionStore = (*MongoQuestionStore)(nil)

// NewMongoQuestionStore 创建一个新的 MongoQuestionStore。
func NewMongoQuestionStore(db *mongo.Database, collName string) *MongoQuestionStore {
	return &MongoQuestionStore{collection: db.Collection(collName)}
}

// InsertMany 批量插入问题，空输入直接返回。
func (s *MongoQuestionStore) InsertMany(ctx context.Context, questions []models.QuestionRecord) (int, error) {
	if len(questions) == 0 {
		return 0, nil
	}
	docs := make([]interface{}, len(questions))
	for i, q := range questions {
		docs[i] = bson.M(q)
	}
	res, err := s.collection.InsertMany(ctx, docs)
	if err != nil {
		return 0, derrors.Unavailable("question store", err)
	}
	return len(res.InsertedIDs), nil
}

// FindAll 返回全部问题，去掉 Mongo 生成的 _id。
func (s *MongoQuestionStore) FindAll(ctx context.Context) ([]models.QuestionRecord, error) {
	findOptions := options.Find().SetProjection(bson.M{"_id": 0})
	cursor, err := s.collection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, derrors.Unavailable("question store", err)
	}
	defer cursor.Close(ctx)

	var raw []bson.M
	if err = cursor.All(ctx, &raw); err != nil {
		return nil, derrors.Unavailable("question store", err)
	}
	out := make([]models.QuestionRecord, len(raw))
	for i, r := range raw {
		out[i] = models.QuestionRecord(r)
	}
	return out, nil
}
