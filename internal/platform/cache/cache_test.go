package cache

import (
	"context"
	"testing"
	"time"
)

func TestTTLStore_SetGet(t *testing.T) {
	s := New(time.Minute)
	s.Set("k", []int{1, 2, 3})

	v, ok := s.Get("k")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got := v.([]int); len(got) != 3 {
		t.Errorf("expected stored slice, got %v", got)
	}
}

func TestTTLStore_Miss(t *testing.T) {
	s := New(time.Minute)
	if _, ok := s.Get("absent"); ok {
		t.Fatal("expected cache miss")
	}
}

func TestTTLStore_LazyExpiry(t *testing.T) {
	s := New(10 * time.Millisecond)
	s.Set("k", "v")

	time.Sleep(20 * time.Millisecond)

	if _, ok := s.Get("k"); ok {
		t.Fatal("expected entry to be expired")
	}
	if s.Len() != 0 {
		t.Errorf("expected expired entry to be deleted on read, len=%d", s.Len())
	}
}

func TestTTLStore_Cleanup(t *testing.T) {
	s := New(5 * time.Millisecond)
	s.Set("a", 1)
	s.Set("b", 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.StartCleanup(ctx, 10*time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for s.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.Len() != 0 {
		t.Errorf("expected background sweep to remove expired entries, len=%d", s.Len())
	}
}

func TestTTLStore_Clear(t *testing.T) {
	s := New(time.Minute)
	s.Set("a", 1)
	s.Clear()
	if s.Len() != 0 {
		t.Errorf("expected empty store after Clear, len=%d", s.Len())
	}
}
