package mongostore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"jsbridge/dao/model"
)

const (
	defaultDatabase = "jsbridge"
	scripts         = "scripts"
)

// summary is the projection used by listings; it leaves out the source.
var summary = bson.M{
	model.ScriptId:     1,
	model.Name:         1,
	model.Cron:         1,
	model.Description:  1,
	model.LastExecTime: 1,
	model.ExecAt:       1,
	model.ExecType:     1,
	model.State:        1,
	model.Language:     1,
}

type MongoDao struct {
	c    *mongo.Client
	coll *mongo.Collection
}

func Connect(ctx context.Context, uri string, database string) (*MongoDao, error) {
	if database == "" {
		database = defaultDatabase
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &MongoDao{c: client, coll: client.Database(database).Collection(scripts)}, nil
}

func (m *MongoDao) Close(ctx context.Context) error {
	return m.c.Disconnect(ctx)
}

func (m *MongoDao) ListScripts(ctx context.Context) ([]model.ScriptEntity, error) {
	return m.find(ctx, bson.M{})
}

func (m *MongoDao) ListRunnable(ctx context.Context) ([]model.ScriptEntity, error) {
	return m.find(ctx, bson.M{model.State: model.Runnable})
}

func (m *MongoDao) find(ctx context.Context, filter bson.M) ([]model.ScriptEntity, error) {
	cursor, err := m.coll.Find(ctx, filter, options.Find().SetProjection(summary))
	if err != nil {
		return nil, err
	}
	res := make([]model.ScriptEntity, 0)
	if err = cursor.All(ctx, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (m *MongoDao) GetScript(ctx context.Context, id string) (model.ScriptEntity, error) {
	var res model.ScriptEntity
	err := m.coll.FindOne(ctx, bson.M{model.ScriptId: id}).Decode(&res)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return res, fmt.Errorf("%w: %s", model.ErrNotFound, id)
	}
	return res, err
}

func (m *MongoDao) AddScript(ctx context.Context, s model.ScriptEntity) (string, error) {
	if s.ScriptId == "" {
		s.ScriptId = uuid.New().String()
	}
	if _, err := m.coll.InsertOne(ctx, s); err != nil {
		return s.ScriptId, err
	}
	return s.ScriptId, nil
}

func (m *MongoDao) UpdateScript(ctx context.Context, id string, fields map[string]any) error {
	if id == "" {
		return errors.New("script id cannot be empty")
	}
	set := bson.M{}
	for k, v := range fields {
		if k != model.ScriptId {
			set[k] = v
		}
	}
	if len(set) == 0 {
		return nil
	}
	res, err := m.coll.UpdateOne(ctx, bson.M{model.ScriptId: id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", model.ErrNotFound, id)
	}
	return nil
}

func (m *MongoDao) RemoveScript(ctx context.Context, id string) error {
	res, err := m.coll.DeleteOne(ctx, bson.M{model.ScriptId: id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", model.ErrNotFound, id)
	}
	return nil
}
