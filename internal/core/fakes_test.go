package core

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Together/internal/domain"
)

// manualClock only moves when Advance is called.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	at   time.Time
	f    func()
	done bool
}

func newManualClock() *manualClock { return &manualClock{now: t0} }

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) func() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		pending := !t.done
		t.done = true
		return pending
	}
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []func()
	for _, t := range c.timers {
		if !t.done && !t.at.After(c.now) {
			t.done = true
			due = append(due, t.f)
		}
	}
	c.mu.Unlock()
	for _, f := range due {
		f()
	}
}

type fakeConn struct {
	frames chan Frame
}

func newFakeConn(capacity int) *fakeConn {
	return &fakeConn{frames: make(chan Frame, capacity)}
}

func (c *fakeConn) TrySend(f Frame) error {
	select {
	case c.frames <- f:
		return nil
	default:
		return ErrBackpressure
	}
}

func (c *fakeConn) Close() {}

type wireMsg struct {
	Type    string   `json:"type"`
	Room    Snapshot `json:"room"`
	Delta   *Delta   `json:"delta"`
	Kind    string   `json:"kind"`
	Message string   `json:"message"`
}

func (c *fakeConn) next(t *testing.T) wireMsg {
	t.Helper()
	select {
	case f := <-c.frames:
		var m wireMsg
		if err := json.Unmarshal(f, &m); err != nil {
			t.Fatalf("bad frame %s: %v", f, err)
		}
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame")
	}
	return wireMsg{}
}

func (c *fakeConn) expect(t *testing.T, typ string) wireMsg {
	t.Helper()
	m := c.next(t)
	if m.Type != typ {
		t.Fatalf("got %q message, want %q", m.Type, typ)
	}
	return m
}

func (c *fakeConn) expectNothing(t *testing.T) {
	t.Helper()
	select {
	case f := <-c.frames:
		t.Fatalf("unexpected frame %s", f)
	case <-time.After(50 * time.Millisecond):
	}
}

func (c *fakeConn) drain() {
	for {
		select {
		case <-c.frames:
		default:
			return
		}
	}
}

type fakeResolver struct {
	items map[string][]domain.QueueItem
	err   error
	gate  chan struct{}
}

func (r *fakeResolver) Resolve(ctx context.Context, url string) ([]domain.QueueItem, error) {
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if items, ok := r.items[url]; ok {
		return items, nil
	}
	if r.err != nil {
		return nil, r.err
	}
	return nil, &domain.UnsupportedProviderError{URL: url}
}

type testMember struct {
	sid  SessionID
	conn *fakeConn
	ms   MemberSession
	user domain.User
}

func join(t *testing.T, r RoomService, name string) *testMember {
	t.Helper()
	user := domain.User{ID: domain.UserID("u-" + name), Username: name}
	conn := newFakeConn(64)
	m := &testMember{
		sid:  SessionID("s-" + name),
		conn: conn,
		ms:   NewMemberSession(domain.NewMember(user.ID, t0)).UpdateSignal(conn),
		user: user,
	}
	if err := r.Join(m.sid, m.ms, user); err != nil {
		t.Fatalf("join %s: %v", name, err)
	}
	m.conn.expect(t, MsgFullSync)
	barrier(t, r)
	return m
}

// barrier returns once every command queued before it has been handled.
func barrier(t *testing.T, r RoomService) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, err := r.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return snap
}

func newTestRoom(t *testing.T, opts RoomOptions) RoomService {
	t.Helper()
	r := NewRoomService(&domain.Room{Name: "lobby", Title: "Lobby"}, opts)
	t.Cleanup(func() {
		r.Stop()
		<-r.Done()
	})
	return r
}
