package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	router "github.com/dkeye/Together/internal/adapters/http"
	"github.com/dkeye/Together/internal/adapters/signal"
	"github.com/dkeye/Together/internal/app"
	"github.com/dkeye/Together/internal/app/orch"
	"github.com/dkeye/Together/internal/config"
	"github.com/dkeye/Together/internal/core"
	"github.com/dkeye/Together/internal/domain"
	"github.com/dkeye/Together/internal/storage/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type stubResolver struct {
	items map[string][]domain.QueueItem
}

func (s stubResolver) Resolve(_ context.Context, url string) ([]domain.QueueItem, error) {
	items, ok := s.items[url]
	if !ok {
		return nil, &domain.UnsupportedProviderError{URL: url}
	}
	return items, nil
}

type harness struct {
	url   string
	rooms *app.RoomManagerImpl
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { dir.Close() })
	if _, err := dir.Create(context.Background(), domain.Room{Name: "lobby", Title: "Lobby"}); err != nil {
		t.Fatal(err)
	}

	resolver := stubResolver{items: map[string][]domain.QueueItem{
		"https://vimeo.com/1": {{Service: "vimeo", ID: "1", Title: "one", Length: 30}},
		"https://example.com/playlist": {
			{Service: "youtube", ID: "aaaaaaaaaaa", Title: "a", Length: 60},
			{Service: "youtube", ID: "bbbbbbbbbbb", Title: "b", Length: 90},
		},
	}}
	rooms := app.NewRoomManager(dir, core.RoomOptions{Resolver: resolver})
	t.Cleanup(func() { _ = rooms.Shutdown(context.Background()) })
	o := orch.New(app.NewRegistry(), rooms, app.SimplePolicy{Action: app.MarkSlow})
	ctrl := signal.NewSignalWSController(o, nil, signal.ConnConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv := httptest.NewServer(router.SetupRouter(ctx, &config.Config{Mode: "test", Secret: "s"}, o, ctrl, resolver))
	t.Cleanup(srv.Close)
	return &harness{url: srv.URL, rooms: rooms}
}

func (h *harness) connect(t *testing.T, name string) *Client {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	c, err := Dial(ctx, h.url, Options{Token: uuid.NewString()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	if err := c.Join(ctx, "lobby", name); err != nil {
		t.Fatal(err)
	}
	waitFor(t, c, func(m Message) bool { return m.Type == core.MsgFullSync })
	return c
}

func (h *harness) serverSnapshot(t *testing.T) core.Snapshot {
	t.Helper()
	room, ok := h.rooms.Lookup("lobby")
	if !ok {
		t.Fatal("lobby is not running")
	}
	snap, err := room.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return snap
}

func waitFor(t *testing.T, c *Client, cond func(Message) bool) Message {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case m, ok := <-c.Updates():
			if !ok {
				t.Fatalf("connection closed: %v", c.Err())
			}
			if cond(m) {
				return m
			}
		case <-timeout:
			t.Fatal("timed out waiting for message")
		}
	}
}

// waitUntil blocks until cond holds for the replica of c.
func waitUntil(t *testing.T, c *Client, cond func(core.Snapshot) bool) {
	t.Helper()
	if cond(c.Replica().Snapshot()) {
		return
	}
	waitFor(t, c, func(Message) bool { return cond(c.Replica().Snapshot()) })
}

func waitVersion(t *testing.T, c *Client, v uint64) {
	t.Helper()
	waitUntil(t, c, func(s core.Snapshot) bool { return s.Version >= v })
}

func TestClient_ReplicaMatchesServer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	alice := h.connect(t, "alice")
	bob := h.connect(t, "bob")
	waitVersion(t, alice, bob.Replica().Snapshot().Version)

	if err := alice.QueueAdd(ctx, "https://example.com/playlist"); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, alice, func(s core.Snapshot) bool { return s.CurrentSource != nil })
	if err := alice.QueueAdd(ctx, "https://vimeo.com/1"); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, bob, func(s core.Snapshot) bool { return len(s.Queue) == 2 })

	v := bob.Replica().Snapshot().Version
	if err := bob.Seek(ctx, 42); err != nil {
		t.Fatal(err)
	}
	waitVersion(t, alice, v+1)
	if err := alice.Reorder(ctx, domain.VideoKey{Service: "vimeo", ID: "1"}, 0); err != nil {
		t.Fatal(err)
	}
	waitVersion(t, bob, v+2)
	waitVersion(t, alice, v+2)

	server := h.serverSnapshot(t)
	for _, c := range []*Client{alice, bob} {
		assertSameState(t, c.Replica().Snapshot(), server)
	}
	if server.CurrentSource == nil || server.CurrentSource.ID != "aaaaaaaaaaa" || server.PlaybackPosition != 42 {
		t.Fatalf("unexpected server state %+v", server)
	}
	if server.Queue[0].ID != "1" {
		t.Fatalf("reorder not applied: %+v", server.Queue)
	}

	carol := h.connect(t, "carol")
	waitVersion(t, bob, carol.Replica().Snapshot().Version)
	assertSameState(t, carol.Replica().Snapshot(), bob.Replica().Snapshot())
	if users := carol.Replica().Snapshot().Users; len(users) != 3 {
		t.Fatalf("expected 3 users, got %+v", users)
	}
	if users := bob.Replica().Snapshot().Users; len(users) != 3 {
		t.Fatalf("bob should see 3 users, got %+v", users)
	}
}

func TestClient_SkipOfStaleItemIsIgnored(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	alice := h.connect(t, "alice")
	bob := h.connect(t, "bob")
	if err := alice.QueueAdd(ctx, "https://example.com/playlist"); err != nil {
		t.Fatal(err)
	}
	for _, c := range []*Client{alice, bob} {
		waitUntil(t, c, func(s core.Snapshot) bool { return s.CurrentSource != nil })
	}
	v := alice.Replica().Snapshot().Version

	// Both press skip on the first item; only one advance happens.
	if err := alice.Skip(ctx); err != nil {
		t.Fatal(err)
	}
	if err := bob.Skip(ctx); err != nil {
		t.Fatal(err)
	}
	if err := alice.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	waitFor(t, alice, func(m Message) bool { return m.Type == core.MsgFullSync })

	server := h.serverSnapshot(t)
	if server.Version != v+1 || server.CurrentSource == nil || server.CurrentSource.ID != "bbbbbbbbbbb" {
		t.Fatalf("expected exactly one skip, got %+v", server)
	}
}

func TestClient_ErrorsReachOnlyTheSender(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	alice := h.connect(t, "alice")
	bob := h.connect(t, "bob")
	waitVersion(t, alice, bob.Replica().Snapshot().Version)

	if err := alice.QueueAdd(ctx, "https://nowhere.invalid/x"); err != nil {
		t.Fatal(err)
	}
	m := waitFor(t, alice, func(m Message) bool { return m.Type == core.MsgError })
	var se *ServerError
	if !errors.As(m.Err(), &se) || se.Kind != domain.KindUnsupportedProvider {
		t.Fatalf("unexpected error message %+v", m)
	}

	select {
	case m := <-bob.Updates():
		t.Fatalf("bystander received %+v", m)
	case <-time.After(150 * time.Millisecond):
	}
}
