package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisDeduperFirstDelivery(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	d := NewRedisDeduperFromClient(client, time.Hour)
	ctx := context.Background()

	first, err := d.FirstDelivery(ctx, "Ev123")
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if !first {
		t.Fatal("expected first delivery to be new")
	}

	second, err := d.FirstDelivery(ctx, "Ev123")
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if second {
		t.Fatal("expected retried delivery to be a duplicate")
	}

	other, err := d.FirstDelivery(ctx, "Ev456")
	if err != nil {
		t.Fatalf("other delivery: %v", err)
	}
	if !other {
		t.Fatal("expected a different event ID to be new")
	}
}

func TestRedisDeduperTTLExpiry(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	d := NewRedisDeduperFromClient(client, time.Minute)
	ctx := context.Background()

	if _, err := d.FirstDelivery(ctx, "Ev123"); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	srv.FastForward(2 * time.Minute)

	again, err := d.FirstDelivery(ctx, "Ev123")
	if err != nil {
		t.Fatalf("delivery after expiry: %v", err)
	}
	if !again {
		t.Fatal("expected event to be new after the TTL expired")
	}
}

func TestMemoryDeduper(t *testing.T) {
	d := NewMemoryDeduper(time.Hour)
	ctx := context.Background()

	first, err := d.FirstDelivery(ctx, "Ev1")
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if !first {
		t.Fatal("expected first delivery to be new")
	}
	second, err := d.FirstDelivery(ctx, "Ev1")
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if second {
		t.Fatal("expected repeat to be a duplicate")
	}
}
