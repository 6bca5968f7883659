package app

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/Together/internal/core"
	"github.com/dkeye/Together/internal/domain"
	"github.com/rs/zerolog/log"
)

// Directory is the persistent list of permanent rooms.
type Directory interface {
	Lookup(ctx context.Context, name domain.RoomName) (domain.Room, error)
	Create(ctx context.Context, room domain.Room) (domain.Room, error)
	List(ctx context.Context) ([]domain.Room, error)
}

// DropHandler is invoked by a room when a member refused a frame.
type DropHandler func(room core.RoomService, sid core.SessionID, ms core.MemberSession) bool

// RoomManagerImpl owns the set of live rooms. Permanent rooms are started on
// first use; temporary rooms exist only while running.
type RoomManagerImpl struct {
	dir  Directory
	opts core.RoomOptions

	mu      sync.RWMutex
	rooms   map[domain.RoomName]core.RoomService
	onDrop  DropHandler
	stopped bool
}

func NewRoomManager(dir Directory, opts core.RoomOptions) *RoomManagerImpl {
	return &RoomManagerImpl{
		dir:   dir,
		opts:  opts,
		rooms: make(map[domain.RoomName]core.RoomService),
	}
}

// SetDropHandler must be called before the first room starts.
func (m *RoomManagerImpl) SetDropHandler(h DropHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDrop = h
}

func (m *RoomManagerImpl) Lookup(name domain.RoomName) (core.RoomService, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[name]
	return room, ok
}

func (m *RoomManagerImpl) Get(ctx context.Context, name domain.RoomName) (core.RoomService, error) {
	if room, ok := m.Lookup(name); ok {
		return room, nil
	}
	meta, err := m.dir.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if room, ok := m.rooms[name]; ok {
		return room, nil
	}
	return m.startLocked(&meta)
}

func (m *RoomManagerImpl) Create(ctx context.Context, room domain.Room) (core.RoomService, error) {
	if err := domain.ValidateRoomName(room.Name); err != nil {
		return nil, err
	}
	if _, ok := m.Lookup(room.Name); ok {
		return nil, domain.ErrRoomExists
	}
	if room.Temporary {
		// A temporary room must not shadow a permanent one.
		if _, err := m.dir.Lookup(ctx, room.Name); err == nil {
			return nil, domain.ErrRoomExists
		}
		if room.CreatedAt.IsZero() {
			room.CreatedAt = time.Now().UTC()
		}
	} else {
		stored, err := m.dir.Create(ctx, room)
		if err != nil {
			return nil, err
		}
		room = stored
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[room.Name]; ok {
		return nil, domain.ErrRoomExists
	}
	return m.startLocked(&room)
}

func (m *RoomManagerImpl) startLocked(meta *domain.Room) (core.RoomService, error) {
	if m.stopped {
		return nil, core.ErrRoomClosed
	}
	opts := m.opts
	opts.OnEmpty = m.StopRoom
	opts.OnDropped = m.onDrop
	room := core.NewRoomService(meta, opts)
	m.rooms[meta.Name] = room
	log.Info().Str("module", "app.rooms").Str("room", string(meta.Name)).Bool("temporary", meta.Temporary).Msg("room started")
	return room, nil
}

// List returns live rooms and idle permanent rooms, sorted by name.
func (m *RoomManagerImpl) List(ctx context.Context) ([]core.RoomInfo, error) {
	stored, err := m.dir.List(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	out := make([]core.RoomInfo, 0, len(m.rooms)+len(stored))
	for name, r := range m.rooms {
		meta := r.Room()
		out = append(out, core.RoomInfo{Name: name, Title: meta.Title, IsTemporary: meta.Temporary, MemberCount: r.MemberCount()})
	}
	for _, meta := range stored {
		if _, live := m.rooms[meta.Name]; !live {
			out = append(out, core.RoomInfo{Name: meta.Name, Title: meta.Title})
		}
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b core.RoomInfo) int { return strings.Compare(string(a.Name), string(b.Name)) })
	return out, nil
}

func (m *RoomManagerImpl) StopRoom(name domain.RoomName) {
	m.mu.Lock()
	room, ok := m.rooms[name]
	delete(m.rooms, name)
	m.mu.Unlock()
	if ok {
		room.Stop()
		log.Info().Str("module", "app.rooms").Str("room", string(name)).Msg("room stopped")
	}
}

// Shutdown stops every room and waits for their loops to exit.
func (m *RoomManagerImpl) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.stopped = true
	rooms := m.rooms
	m.rooms = make(map[domain.RoomName]core.RoomService)
	m.mu.Unlock()

	for _, r := range rooms {
		r.Stop()
	}
	for _, r := range rooms {
		select {
		case <-r.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	log.Info().Str("module", "app.rooms").Int("rooms", len(rooms)).Msg("all rooms stopped")
	return nil
}
