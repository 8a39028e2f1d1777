package notify_test

import (
	"context"
	"testing"
	"time"

	"jarcode/internal/notify"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestBridgeRelaysNotificationsAcrossProcesses(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)

	workerClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	apiClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = workerClient.Close()
		_ = apiClient.Close()
	})

	hub := notify.NewHub()
	messages, unsubscribe := hub.Subscribe(7)
	t.Cleanup(unsubscribe)

	forwarder, err := notify.NewRedisForwarder(apiClient, hub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = forwarder.Run(ctx) }()

	publisher, err := notify.NewRedisPublisher(workerClient)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The forwarder subscribes asynchronously; retry until it is listening.
	deadline := time.Now().Add(5 * time.Second)
	for publisher.Publish(7, []byte(`{"id":1}`)) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("forwarder never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case payload := <-messages:
		if string(payload) != `{"id":1}` {
			t.Fatalf("payload = %s", payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("notification never reached the hub subscriber")
	}
}

func TestBridgeConstructionValidation(t *testing.T) {
	t.Parallel()

	if _, err := notify.NewRedisPublisher(nil); err == nil {
		t.Fatal("expected error for nil client")
	}
	if _, err := notify.NewRedisForwarder(nil, notify.NewHub()); err == nil {
		t.Fatal("expected error for nil client")
	}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer func() { _ = client.Close() }()
	if _, err := notify.NewRedisForwarder(client, nil); err == nil {
		t.Fatal("expected error for nil hub")
	}
}
