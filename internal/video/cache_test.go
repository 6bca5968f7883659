package video

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dkeye/Together/internal/domain"
)

func TestCache_TTL(t *testing.T) {
	now := time.Unix(1000, 0)
	c := NewCache(time.Minute)
	c.now = func() time.Time { return now }

	item := domain.QueueItem{Service: "youtube", ID: "abc", Title: "A"}
	c.Set(item)

	if got, ok := c.Get(item.Key()); !ok || got.Title != "A" {
		t.Fatalf("expected fresh hit, got %+v %v", got, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get(item.Key()); ok {
		t.Fatal("expected expired entry to miss")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be evicted, len=%d", c.Len())
	}
}

func TestCache_GetOrFetchDoesNotStoreErrors(t *testing.T) {
	c := NewCache(0)
	key := domain.VideoKey{Service: "vimeo", ID: "1"}
	calls := 0
	fail := func() (domain.QueueItem, error) {
		calls++
		return domain.QueueItem{}, errors.New("down")
	}

	for range 2 {
		if _, err := c.GetOrFetch(context.Background(), key, fail); err == nil {
			t.Fatal("expected error")
		}
	}
	if calls != 2 {
		t.Errorf("failed fetches must not be cached, calls=%d", calls)
	}
	if c.Len() != 0 {
		t.Errorf("expected empty cache, len=%d", c.Len())
	}
}

func TestCache_WaiterCanGiveUp(t *testing.T) {
	c := NewCache(0)
	key := domain.VideoKey{Service: "vimeo", ID: "2"}
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		_, _ = c.GetOrFetch(context.Background(), key, func() (domain.QueueItem, error) {
			close(started)
			<-release
			return domain.QueueItem{Service: "vimeo", ID: "2"}, nil
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	<-started
	_, err := c.GetOrFetch(ctx, key, func() (domain.QueueItem, error) {
		t.Error("second fetch must not start while one is in flight")
		return domain.QueueItem{}, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if kind := domain.ErrorKind(err); kind != domain.KindVideoResolution {
		t.Fatalf("waiter error kind = %s, want %s", kind, domain.KindVideoResolution)
	}

	close(release)
	<-done
	if _, ok := c.Get(key); !ok {
		t.Fatal("shared fetch should still populate the cache")
	}
}
