package ristretto

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adeilh/rakh-records/cache"
)

func TestStoreSetGetDelete(t *testing.T) {
	s, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	if _, err := s.Get(ctx, "record:1"); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("Get() on empty = %v, want ErrNotFound", err)
	}
	if err := s.Set(ctx, "record:1", []byte("one"), time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Set(ctx, "all-records", []byte("all"), time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := s.Get(ctx, "record:1")
	if err != nil || string(got) != "one" {
		t.Fatalf("Get() = %q, %v", got, err)
	}
	if err := s.Delete(ctx, "record:1", "all-records", "missing"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	for _, k := range []string{"record:1", "all-records"} {
		if _, err := s.Get(ctx, k); !errors.Is(err, cache.ErrNotFound) {
			t.Fatalf("Get(%s) after delete = %v, want ErrNotFound", k, err)
		}
	}
}

func TestStoreCopiesValues(t *testing.T) {
	s, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	buf := []byte("abc")
	if err := s.Set(ctx, "k", buf, time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	buf[0] = 'x'
	got, _ := s.Get(ctx, "k")
	got[1] = 'y'
	again, _ := s.Get(ctx, "k")
	if string(again) != "abc" {
		t.Fatalf("stored value was aliased: %q", again)
	}
}
