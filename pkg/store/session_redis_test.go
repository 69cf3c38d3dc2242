package store

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestRedisSessionStoreRoundTrip(t *testing.T) {
	redis := miniredis.RunT(t)
	s := NewRedisSessionStore(redis.Addr(), "", time.Minute)

	token, err := s.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if token == "" {
		t.Fatalf("expected token")
	}

	userID, ok, err := s.GetUserIDByToken(token)
	if err != nil {
		t.Fatalf("get user by token: %v", err)
	}
	if !ok || userID != "user-1" {
		t.Fatalf("expected user-1, got %q ok=%v", userID, ok)
	}

	if err := s.DeleteSession(token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, ok, err := s.GetUserIDByToken(token); err != nil || ok {
		t.Fatalf("expected token gone after delete, ok=%v err=%v", ok, err)
	}
}

func TestRedisSessionStoreExpiry(t *testing.T) {
	redis := miniredis.RunT(t)
	s := NewRedisSessionStore(redis.Addr(), "", time.Second)

	token, err := s.NewSession("user-2")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	redis.FastForward(2 * time.Second)
	if _, ok, err := s.GetUserIDByToken(token); err != nil || ok {
		t.Fatalf("expected expired token to miss, ok=%v err=%v", ok, err)
	}
}

func TestRedisSessionStoreUnknownToken(t *testing.T) {
	redis := miniredis.RunT(t)
	s := NewRedisSessionStore(redis.Addr(), "", time.Minute)

	if _, ok, err := s.GetUserIDByToken("nope"); err != nil || ok {
		t.Fatalf("expected miss for unknown token, ok=%v err=%v", ok, err)
	}
}
