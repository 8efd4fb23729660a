package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"sitesmith/api/internal/store"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStoreWithClient(client), mr
}

func TestSaveAndLookup(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	user := store.User{ID: "usr_1", DisplayName: "Asha", Email: "asha@example.com", Role: "user"}
	if err := s.Save(ctx, "hash1", user, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Lookup(ctx, "hash1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got != user {
		t.Fatalf("Lookup = %+v, want %+v", got, user)
	}
}

func TestLookupMissing(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := s.Lookup(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Lookup missing: got %v, want ErrNotFound", err)
	}
}

func TestRevoke(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, "hash1", store.User{ID: "usr_1"}, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Revoke(ctx, "hash1"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := s.Lookup(ctx, "hash1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Lookup after revoke: got %v, want ErrNotFound", err)
	}
}

func TestSessionExpires(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, "hash1", store.User{ID: "usr_1"}, time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := s.Lookup(ctx, "hash1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Lookup after expiry: got %v, want ErrNotFound", err)
	}
}

func TestSaveRejectsPastExpiry(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.Save(context.Background(), "hash1", store.User{ID: "usr_1"}, time.Now().Add(-time.Minute)); err == nil {
		t.Fatal("Save with past expiry should fail")
	}
}
