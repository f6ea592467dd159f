package middleware

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiterStore_AllowsWithinBurst(t *testing.T) {
	s := NewLimiterStore(60, 3, time.Minute)
	defer s.Stop()

	for i := 0; i < 3; i++ {
		if !s.Allow("key-1") {
			t.Fatalf("Allow() call %d = false, want true (within burst)", i+1)
		}
	}
}

func TestLimiterStore_DeniesBeyondBurst(t *testing.T) {
	// One event per minute with burst 1 — the second immediate call must
	// be denied.
	s := NewLimiterStore(1, 1, time.Minute)
	defer s.Stop()

	if !s.Allow("key-1") {
		t.Fatal("first Allow() = false, want true")
	}
	if s.Allow("key-1") {
		t.Error("second immediate Allow() = true, want false")
	}
}

func TestLimiterStore_KeysAreIndependent(t *testing.T) {
	s := NewLimiterStore(1, 1, time.Minute)
	defer s.Stop()

	s.Allow("key-1")
	if !s.Allow("key-2") {
		t.Error("key-2 should have its own limiter")
	}
}

func TestAuthKey_PrefersEmail(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/auth/login", nil)
	r.RemoteAddr = "10.0.0.1:1234"

	if got := AuthKey(r, "a@x.com"); got != "email:a@x.com" {
		t.Errorf("AuthKey() = %q, want email key", got)
	}
}

func TestAuthKey_FallsBackToIP(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/auth/login", nil)
	r.RemoteAddr = "10.0.0.1:1234"

	if got := AuthKey(r, ""); got != "ip:10.0.0.1" {
		t.Errorf("AuthKey() = %q, want ip key", got)
	}
}
