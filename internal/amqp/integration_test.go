//go:build integration

package amqp

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestFlushRequestRoundTrip(t *testing.T) {
	url := os.Getenv("AMQP_URL")
	if url == "" {
		t.Skip("AMQP_URL not set")
	}
	client, err := NewClient(url, "salestracker_test", "flush_requests_test")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.PublishFlushRequest(ctx, "integration"); err != nil {
		t.Fatalf("publish: %v", err)
	}

	got := make(chan string, 1)
	go func() {
		_ = client.ConsumeFlushRequests(ctx, func(_ context.Context, m *FlushRequestMessage) error {
			got <- m.Reason
			cancel()
			return nil
		})
	}()

	select {
	case reason := <-got:
		if reason != "integration" {
			t.Fatalf("reason = %q", reason)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("no flush request consumed")
	}
}
