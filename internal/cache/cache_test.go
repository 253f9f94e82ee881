package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func newTestCache(t *testing.T) *RedisCache {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	return c
}

func TestSetGet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "cursor", "12345"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := c.Get(ctx, "cursor")
	if err != nil || got != "12345" {
		t.Errorf("expected 12345, got %q (err=%v)", got, err)
	}

	got, err = c.Get(ctx, "missing")
	if err != nil || got != "" {
		t.Errorf("expected empty value for missing key, got %q (err=%v)", got, err)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	type token struct {
		AccessToken string `json:"access_token"`
		Expiry      int64  `json:"expiry"`
	}

	if err := c.SetJSON(ctx, "token", token{AccessToken: "abc", Expiry: 99}); err != nil {
		t.Fatalf("SetJSON failed: %v", err)
	}

	var got token
	if err := c.GetJSON(ctx, "token", &got); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if got.AccessToken != "abc" || got.Expiry != 99 {
		t.Errorf("unexpected token: %+v", got)
	}

	if err := c.GetJSON(ctx, "absent", &got); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
