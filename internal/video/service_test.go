package video

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Together/internal/domain"
	"github.com/dkeye/Together/internal/video/mocks"
	"go.uber.org/mock/gomock"
)

func newSingleMock(ctrl *gomock.Controller, service string, cacheSafe bool) *mocks.MockAdapter {
	m := mocks.NewMockAdapter(ctrl)
	m.EXPECT().ServiceID().Return(service).AnyTimes()
	m.EXPECT().CanHandleURL(gomock.Any()).Return(true).AnyTimes()
	m.EXPECT().IsCollectionURL(gomock.Any()).Return(false).AnyTimes()
	m.EXPECT().IsCacheSafe().Return(cacheSafe).AnyTimes()
	return m
}

func TestResolve_UnsupportedProvider(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mocks.NewMockAdapter(ctrl)
	m.EXPECT().CanHandleURL("not-a-real-url").Return(false)

	svc := NewService(NewRegistry(m), NewCache(0), Options{})
	items, err := svc.Resolve(context.Background(), "not-a-real-url")

	var unsupported *domain.UnsupportedProviderError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedProviderError, got %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no items, got %d", len(items))
	}
}

func TestResolve_ConcurrentCallers(t *testing.T) {
	const callers = 10
	item := domain.QueueItem{Title: "Sintel", Length: 888}

	tests := []struct {
		name        string
		cacheSafe   bool
		wantFetches int
	}{
		{name: "cache safe provider coalesces", cacheSafe: true, wantFetches: 1},
		{name: "cache unsafe provider fetches every time", cacheSafe: false, wantFetches: callers},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			m := newSingleMock(ctrl, "vimeo", tt.cacheSafe)
			m.EXPECT().GetVideoID(gomock.Any()).Return("76979871", nil).Times(callers)
			m.EXPECT().FetchVideoInfo(gomock.Any(), "76979871").
				DoAndReturn(func(ctx context.Context, id string) (domain.QueueItem, error) {
					time.Sleep(20 * time.Millisecond)
					return item, nil
				}).
				Times(tt.wantFetches)

			cache := NewCache(0)
			svc := NewService(NewRegistry(m), cache, Options{})

			var wg sync.WaitGroup
			errs := make(chan error, callers)
			for range callers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					got, err := svc.Resolve(context.Background(), "https://vimeo.com/76979871")
					if err != nil {
						errs <- err
						return
					}
					if len(got) != 1 || got[0].ID != "76979871" || got[0].Service != "vimeo" {
						errs <- errors.New("unexpected item")
					}
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				t.Errorf("resolve: %v", err)
			}

			wantCached := 0
			if tt.cacheSafe {
				wantCached = 1
			}
			if cache.Len() != wantCached {
				t.Errorf("cache entries: want %d, got %d", wantCached, cache.Len())
			}
		})
	}
}

func TestResolve_InvalidIdentifierFailsBeforeFetch(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := newSingleMock(ctrl, "vimeo", true)
	m.EXPECT().GetVideoID("https://vimeo.com/channels/staffpicks").
		Return("", &domain.InvalidIdentifierError{Service: "vimeo", ID: "staffpicks", Reason: "not numeric"})
	// No FetchVideoInfo expectation: any call fails the test.

	svc := NewService(NewRegistry(m), NewCache(0), Options{})
	_, err := svc.Resolve(context.Background(), "https://vimeo.com/channels/staffpicks")

	var invalid *domain.InvalidIdentifierError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidIdentifierError, got %v", err)
	}
}

func TestResolve_Collection(t *testing.T) {
	boom := errors.New("upstream 500")

	tests := []struct {
		name      string
		ids       []string
		failing   map[string]bool
		wantIDs   []string
		wantError bool
	}{
		{
			name:    "partial failure keeps siblings in source order",
			ids:     []string{"a", "b", "c", "d"},
			failing: map[string]bool{"b": true},
			wantIDs: []string{"a", "c", "d"},
		},
		{
			name:      "all items failing is an error",
			ids:       []string{"a", "b"},
			failing:   map[string]bool{"a": true, "b": true},
			wantError: true,
		},
		{
			name:      "empty collection is an error",
			ids:       nil,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			m := mocks.NewMockAdapter(ctrl)
			m.EXPECT().ServiceID().Return("youtube").AnyTimes()
			m.EXPECT().CanHandleURL(gomock.Any()).Return(true).AnyTimes()
			m.EXPECT().IsCollectionURL(gomock.Any()).Return(true).AnyTimes()
			m.EXPECT().IsCacheSafe().Return(true).AnyTimes()
			m.EXPECT().ResolveCollection(gomock.Any(), gomock.Any(), 50).Return(tt.ids, nil)
			m.EXPECT().FetchVideoInfo(gomock.Any(), gomock.Any()).
				DoAndReturn(func(ctx context.Context, id string) (domain.QueueItem, error) {
					if tt.failing[id] {
						return domain.QueueItem{}, boom
					}
					return domain.QueueItem{Title: "title " + id, Length: 60}, nil
				}).
				Times(len(tt.ids))

			svc := NewService(NewRegistry(m), NewCache(0), Options{MaxCollectionSize: 50})
			items, err := svc.Resolve(context.Background(), "https://www.youtube.com/playlist?list=PL1")

			if tt.wantError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if kind := domain.ErrorKind(err); kind != domain.KindVideoResolution {
					t.Errorf("expected kind %s, got %s", domain.KindVideoResolution, kind)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(items) != len(tt.wantIDs) {
				t.Fatalf("expected %d items, got %d", len(tt.wantIDs), len(items))
			}
			for i, id := range tt.wantIDs {
				if items[i].ID != id {
					t.Errorf("item %d: want id %s, got %s", i, id, items[i].ID)
				}
			}
		})
	}
}

func TestResolve_CollectionIsCapped(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mocks.NewMockAdapter(ctrl)
	m.EXPECT().ServiceID().Return("youtube").AnyTimes()
	m.EXPECT().CanHandleURL(gomock.Any()).Return(true).AnyTimes()
	m.EXPECT().IsCollectionURL(gomock.Any()).Return(true).AnyTimes()
	m.EXPECT().IsCacheSafe().Return(true).AnyTimes()
	// An adapter that ignores the limit is still truncated.
	m.EXPECT().ResolveCollection(gomock.Any(), gomock.Any(), 2).Return([]string{"a", "b", "c"}, nil)
	m.EXPECT().FetchVideoInfo(gomock.Any(), gomock.Any()).Return(domain.QueueItem{Length: 1}, nil).Times(2)

	svc := NewService(NewRegistry(m), NewCache(0), Options{MaxCollectionSize: 2})
	items, err := svc.Resolve(context.Background(), "https://www.youtube.com/playlist?list=PL1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 || items[0].ID != "a" || items[1].ID != "b" {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestResolve_FetchTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := newSingleMock(ctrl, "youtube", true)
	m.EXPECT().GetVideoID(gomock.Any()).Return("dQw4w9WgXcQ", nil)
	m.EXPECT().FetchVideoInfo(gomock.Any(), "dQw4w9WgXcQ").
		DoAndReturn(func(ctx context.Context, id string) (domain.QueueItem, error) {
			<-ctx.Done()
			return domain.QueueItem{}, ctx.Err()
		})

	svc := NewService(NewRegistry(m), NewCache(0), Options{FetchTimeout: 20 * time.Millisecond})
	_, err := svc.Resolve(context.Background(), "https://youtu.be/dQw4w9WgXcQ")

	var vre *domain.VideoResolutionError
	if !errors.As(err, &vre) {
		t.Fatalf("expected VideoResolutionError, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded cause, got %v", vre.Err)
	}
}

func TestResolve_CollectionOutlivesCaller(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mocks.NewMockAdapter(ctrl)
	m.EXPECT().ServiceID().Return("spotify").AnyTimes()
	m.EXPECT().CanHandleURL(gomock.Any()).Return(true).AnyTimes()
	m.EXPECT().IsCollectionURL(gomock.Any()).Return(true).AnyTimes()
	m.EXPECT().IsCacheSafe().Return(false).AnyTimes()
	m.EXPECT().ResolveCollection(gomock.Any(), gomock.Any(), 50).
		DoAndReturn(func(ctx context.Context, _ string, _ int) ([]string, error) {
			if _, ok := ctx.Deadline(); !ok {
				t.Error("collection listing should be bounded by the fetch timeout")
			}
			return []string{"track:a", "track:b"}, ctx.Err()
		})
	m.EXPECT().FetchVideoInfo(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, id string) (domain.QueueItem, error) {
			return domain.QueueItem{Service: "spotify", ID: id}, ctx.Err()
		}).Times(2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := NewService(NewRegistry(m), NewCache(0), Options{})
	items, err := svc.Resolve(ctx, "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M")
	if err != nil {
		t.Fatalf("cancelled caller should not abort the resolution: %v", err)
	}
	if len(items) != 2 || items[0].ID != "track:a" {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestResolve_AdapterPanicIsContained(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := newSingleMock(ctrl, "spotify", false)
	m.EXPECT().GetVideoID(gomock.Any()).Return("track:6sGiI7V9kgLNEhPIxEJDii", nil)
	m.EXPECT().FetchVideoInfo(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, id string) (domain.QueueItem, error) {
			panic("index out of range")
		})

	svc := NewService(NewRegistry(m), NewCache(0), Options{})
	_, err := svc.Resolve(context.Background(), "https://open.spotify.com/track/6sGiI7V9kgLNEhPIxEJDii")
	if domain.ErrorKind(err) != domain.KindVideoResolution {
		t.Fatalf("expected resolution error, got %v", err)
	}
}

func TestRegistry_MatchOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	first := mocks.NewMockAdapter(ctrl)
	second := mocks.NewMockAdapter(ctrl)
	first.EXPECT().CanHandleURL("https://example.com/a.mp4").Return(false)
	second.EXPECT().CanHandleURL("https://example.com/a.mp4").Return(true)
	second.EXPECT().ServiceID().Return("direct").AnyTimes()
	first.EXPECT().ServiceID().Return("youtube").AnyTimes()

	reg := NewRegistry(first)
	reg.Register(second)

	a, ok := reg.Match("https://example.com/a.mp4")
	if !ok || a.ServiceID() != "direct" {
		t.Fatalf("expected direct adapter to match")
	}
	if _, ok := reg.Get("youtube"); !ok {
		t.Error("expected lookup by service id")
	}
	if got := reg.Services(); len(got) != 2 || got[0] != "youtube" {
		t.Errorf("unexpected services %v", got)
	}
}
