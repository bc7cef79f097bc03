package syncx

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventWaitTimeout(t *testing.T) {
	ev := NewEvent()
	assert.False(t, ev.WaitTimeout(10*time.Millisecond))
	assert.False(t, ev.IsSet())

	go func() {
		time.Sleep(10 * time.Millisecond)
		ev.Set()
	}()
	assert.True(t, ev.WaitTimeout(time.Second))
	assert.True(t, ev.IsSet())

	ev.Set()
	assert.True(t, ev.WaitTimeout(0))
}

func TestEventWaitContext(t *testing.T) {
	ev := NewEvent()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, ev.Wait(ctx), context.Canceled)

	ev.Set()
	require.NoError(t, ev.Wait(context.Background()))
}
