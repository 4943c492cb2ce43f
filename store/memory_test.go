package store

import (
	"context"
	"slices"
	"sync"
	"testing"
)

func TestMemoryStore_Sets(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	members, err := s.SMembers(ctx, "blacklist")
	if err != nil || len(members) != 0 {
		t.Fatalf("SMembers(empty) = %v, %v", members, err)
	}

	_ = s.SAdd(ctx, "blacklist", "i3", "i1", "i2", "i1")
	_ = s.SAdd(ctx, "blacklist")
	_ = s.SRem(ctx, "blacklist", "i2", "missing")
	_ = s.SAdd(ctx, "other", "x")

	members, _ = s.SMembers(ctx, "blacklist")
	if !slices.Equal(members, []string{"i1", "i3"}) {
		t.Errorf("SMembers() = %v, want [i1 i3]", members)
	}

	_ = s.SRem(ctx, "blacklist", "i1", "i3")
	if members, _ = s.SMembers(ctx, "blacklist"); len(members) != 0 {
		t.Errorf("SMembers() after removing all = %v", members)
	}
	if members, _ = s.SMembers(ctx, "other"); !slices.Equal(members, []string{"x"}) {
		t.Errorf("SMembers(other) = %v", members)
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := string(rune('a' + i))
			for range 100 {
				_ = s.SAdd(ctx, "k", id)
				_, _ = s.SMembers(ctx, "k")
			}
		}()
	}
	wg.Wait()

	members, _ := s.SMembers(ctx, "k")
	if len(members) != 8 {
		t.Errorf("SMembers() = %v, want 8 members", members)
	}
}
