package mongostore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jsbridge/dao/model"
)

// Set JSBRIDGE_TEST_MONGO to a connection string to run against a live server.
func connect(t *testing.T) *MongoDao {
	uri := os.Getenv("JSBRIDGE_TEST_MONGO")
	if uri == "" {
		t.Skip("JSBRIDGE_TEST_MONGO not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	m, err := Connect(ctx, uri, "jsbridge_test")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = m.coll.Drop(context.Background())
		_ = m.Close(context.Background())
	})
	return m
}

func TestMongoRoundTrip(t *testing.T) {
	m := connect(t)
	ctx := context.Background()

	id, err := m.AddScript(ctx, model.ScriptEntity{Name: "a", Source: "1", State: model.Runnable})
	require.NoError(t, err)

	e, err := m.GetScript(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "1", e.Source)

	list, err := m.ListRunnable(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Source)

	require.NoError(t, m.UpdateScript(ctx, id, map[string]any{model.Cron: "0 * * * * * *"}))
	e, _ = m.GetScript(ctx, id)
	assert.Equal(t, "0 * * * * * *", e.Cron)

	require.NoError(t, m.RemoveScript(ctx, id))
	_, err = m.GetScript(ctx, id)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.ErrorIs(t, m.UpdateScript(ctx, id, map[string]any{model.Name: "b"}), model.ErrNotFound)
}
