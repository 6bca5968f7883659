package core

import (
	"context"
	"errors"

	"github.com/dkeye/Together/internal/domain"
)

var ErrRoomClosed = errors.New("room closed")

// PublishResult reports how one broadcast was delivered.
type PublishResult struct {
	SendTo  int
	Dropped []MemberSession
}

// RoomService is the core-facing API of a room.
// Every mutation is queued to the room's serial loop; it owns the membership set
// but never touches transport resources.
type RoomService interface {
	Room() *domain.Room
	MemberCount() int
	MembersSnapshot() []MemberDTO
	// Snapshot asks the room loop for the state at this instant.
	Snapshot(ctx context.Context) (Snapshot, error)

	Join(sid SessionID, ms MemberSession, user domain.User) error
	Leave(sid SessionID) error
	// Rename updates the display name of a member and broadcasts the user list.
	Rename(sid SessionID, user domain.User) error
	Submit(sid SessionID, cmd Command) error

	Stop()
	Done() <-chan struct{}
}

// Resolver turns a queue-add URL into queue items.
type Resolver interface {
	Resolve(ctx context.Context, url string) ([]domain.QueueItem, error)
}

type RoomInfo struct {
	Name        domain.RoomName `json:"name"`
	Title       string          `json:"title"`
	IsTemporary bool            `json:"isTemporary"`
	MemberCount int             `json:"users"`
}

type RoomManager interface {
	// Get returns the live room, starting it from the directory if needed.
	Get(ctx context.Context, name domain.RoomName) (RoomService, error)
	// Lookup returns the room only if it is already running.
	Lookup(name domain.RoomName) (RoomService, bool)
	Create(ctx context.Context, room domain.Room) (RoomService, error)
	List(ctx context.Context) ([]RoomInfo, error)
	StopRoom(name domain.RoomName)
}
