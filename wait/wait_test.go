package wait

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitTimeOut(t *testing.T) {
	var w Wait
	w.Add(1)
	assert.True(t, w.WaitTimeOut(20*time.Millisecond), "counter still held")

	go func() {
		time.Sleep(10 * time.Millisecond)
		w.Done()
	}()
	assert.False(t, w.WaitTimeOut(time.Second))
}

func TestWaitContext(t *testing.T) {
	var w Wait
	require.NoError(t, w.WaitContext(context.Background()))

	w.Add(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, w.WaitContext(ctx), context.Canceled)
	w.Done()
}
