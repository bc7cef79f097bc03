package event

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisBridgeRelaysEvents(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("skip redis integration test: TEST_REDIS_ADDR is not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer func() { _ = client.Close() }()

	hub := NewHub()
	bridge := NewRedisBridge(client, "accelerator:test-events", hub, nil)
	_, stream, cancel := hub.Subscribe("SEARCH", 4)
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go func() { _ = bridge.Run(ctx) }()

	require.Eventually(t, func() bool {
		bridge.Publish(Event{Type: TypeConfigActivated, ConfigType: "SEARCH", Version: "v9"})
		select {
		case ev := <-stream:
			return ev.Version == "v9"
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 100*time.Millisecond)
}
