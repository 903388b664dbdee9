package cache

import (
	"testing"
	"time"
)

func TestMemoryStorePutGet(t *testing.T) {
	s := NewMemoryStore()
	s.Put("otp:1", "123456", time.Minute)

	got, ok := s.Get("otp:1")
	if !ok || got != "123456" {
		t.Fatalf("Get = (%q, %v), want (123456, true)", got, ok)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore()
	s.Put("otp:1", "123456", 10*time.Millisecond)

	time.Sleep(20 * time.Millisecond)

	if _, ok := s.Get("otp:1"); ok {
		t.Fatal("expired entry should be invisible at read time")
	}
}

func TestMemoryStoreInvalidate(t *testing.T) {
	s := NewMemoryStore()
	s.Put("otp:1", "123456", time.Minute)
	s.Invalidate("otp:1")

	if _, ok := s.Get("otp:1"); ok {
		t.Fatal("invalidated entry should be gone")
	}
}

func TestMemoryStoreMissingKey(t *testing.T) {
	s := NewMemoryStore()
	if _, ok := s.Get("nope"); ok {
		t.Fatal("missing key should report not found")
	}
}
