package quota

import (
	"testing"
	"time"
)

func TestAllow_UpToLimit(t *testing.T) {
	s := NewStore(3, time.Minute)
	defer s.Stop()

	for i := 0; i < 3; i++ {
		if !s.Allow("guest-1") {
			t.Fatalf("Allow() call %d = false, want true", i+1)
		}
	}
	if s.Allow("guest-1") {
		t.Error("Allow() should return false once the allowance is exhausted")
	}
}

func TestAllow_PerGuestIsolation(t *testing.T) {
	s := NewStore(1, time.Minute)
	defer s.Stop()

	if !s.Allow("guest-1") {
		t.Fatal("guest-1 first message should be allowed")
	}
	if !s.Allow("guest-2") {
		t.Error("guest-2 should have their own allowance")
	}
	if s.Allow("guest-1") {
		t.Error("guest-1 allowance should be exhausted")
	}
}

func TestAllow_DisabledStore(t *testing.T) {
	s := NewStore(0, time.Minute)
	defer s.Stop()

	for i := 0; i < 100; i++ {
		if !s.Allow("guest-1") {
			t.Fatal("a disabled quota store must always allow")
		}
	}
}

func TestRemaining(t *testing.T) {
	s := NewStore(2, time.Minute)
	defer s.Stop()

	if got := s.Remaining("guest-1"); got != 2 {
		t.Errorf("Remaining() before any message = %d, want 2", got)
	}
	s.Allow("guest-1")
	if got := s.Remaining("guest-1"); got != 1 {
		t.Errorf("Remaining() after one message = %d, want 1", got)
	}
	s.Allow("guest-1")
	s.Allow("guest-1") // denied, must not go negative
	if got := s.Remaining("guest-1"); got != 0 {
		t.Errorf("Remaining() after exhaustion = %d, want 0", got)
	}
}

func TestRemaining_DisabledStore(t *testing.T) {
	s := NewStore(0, time.Minute)
	defer s.Stop()

	if got := s.Remaining("guest-1"); got != -1 {
		t.Errorf("Remaining() on a disabled store = %d, want -1", got)
	}
}
