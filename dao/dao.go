package dao

import (
	"context"

	"jsbridge/dao/memory"
	"jsbridge/dao/model"
	"jsbridge/dao/mongostore"
)

type Dao interface {
	// ListScripts returns every script without its source.
	ListScripts(ctx context.Context) ([]model.ScriptEntity, error)
	// ListRunnable returns the scripts whose state is Runnable, without source.
	ListRunnable(ctx context.Context) ([]model.ScriptEntity, error)
	GetScript(ctx context.Context, id string) (model.ScriptEntity, error)
	AddScript(ctx context.Context, s model.ScriptEntity) (string, error)
	UpdateScript(ctx context.Context, id string, fields map[string]any) error
	RemoveScript(ctx context.Context, id string) error
}

func CreateMongoDao(ctx context.Context, uri string, database string) (Dao, error) {
	return mongostore.Connect(ctx, uri, database)
}

func CreateMemoryDao() Dao {
	return memory.New()
}
