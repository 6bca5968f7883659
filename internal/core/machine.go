package core

import (
	"time"

	"github.com/dkeye/Together/internal/domain"
)

type CommandType string

const (
	CmdPlay        CommandType = "play"
	CmdPause       CommandType = "pause"
	CmdSeek        CommandType = "seek"
	CmdSkip        CommandType = "skip"
	CmdQueueAdd    CommandType = "queue-add"
	CmdQueueRemove CommandType = "queue-remove"
	CmdReorder     CommandType = "reorder"
	CmdSync        CommandType = "sync"
)

// Command is a client request against a room.
type Command struct {
	Type CommandType
	// Version is the room version the client saw when it issued the command.
	Version *uint64
	// Position is the target of a seek, in seconds.
	Position float64
	// URL is the source of a queue-add.
	URL string
	// Key names the item for queue-remove and reorder. For skip it is optional
	// and, when set, must match the current item.
	Key      *domain.VideoKey
	NewIndex int
}

type DeltaType string

const (
	DeltaPlay        DeltaType = "play"
	DeltaPause       DeltaType = "pause"
	DeltaSeek        DeltaType = "seek"
	DeltaSkip        DeltaType = "skip"
	DeltaQueueAdd    DeltaType = "queue-add"
	DeltaQueueRemove DeltaType = "queue-remove"
	DeltaReorder     DeltaType = "reorder"
	DeltaUsers       DeltaType = "users"
)

// Delta is the minimal change record of one accepted transition.
type Delta struct {
	Type      DeltaType          `json:"type"`
	Version   uint64             `json:"version"`
	Position  *float64           `json:"position,omitempty"`
	IsPlaying *bool              `json:"isPlaying,omitempty"`
	Current   *domain.QueueItem  `json:"currentSource,omitempty"`
	Items     []domain.QueueItem `json:"items,omitempty"`
	Promoted  bool               `json:"promoted,omitempty"`
	Key       *domain.VideoKey   `json:"key,omitempty"`
	NewIndex  *int               `json:"newIndex,omitempty"`
	Users     []MemberDTO        `json:"users,omitempty"`
}

func ptr[T any](v T) *T { return &v }

// Apply runs a client command. A nil delta with a nil error is a no-op.
// queue-add and sync are handled by the room and never reach here.
func (s *RoomState) Apply(cmd Command, now time.Time) (*Delta, error) {
	switch cmd.Type {
	case CmdPlay:
		return s.Play(now)
	case CmdPause:
		return s.Pause(now), nil
	case CmdSeek:
		return s.Seek(cmd.Position, now)
	case CmdSkip:
		if cmd.Key != nil && (s.current == nil || s.current.Key() != *cmd.Key) {
			return nil, nil
		}
		return s.Skip(now), nil
	case CmdQueueRemove:
		if cmd.Key == nil {
			return nil, &domain.ItemNotFoundError{}
		}
		return s.Remove(*cmd.Key)
	case CmdReorder:
		if cmd.Key == nil {
			return nil, &domain.ItemNotFoundError{}
		}
		return s.Reorder(*cmd.Key, cmd.NewIndex)
	}
	return nil, nil
}

func (s *RoomState) Play(now time.Time) (*Delta, error) {
	if s.current == nil {
		return nil, domain.ErrNothingPlaying
	}
	if s.playing {
		return nil, nil
	}
	s.playing = true
	s.clockOrigin = now
	return &Delta{Type: DeltaPlay, Version: s.NextVersion(), Position: ptr(s.position), IsPlaying: ptr(true)}, nil
}

func (s *RoomState) Pause(now time.Time) *Delta {
	if !s.playing {
		return nil
	}
	s.position = s.Position(now)
	s.playing = false
	return &Delta{Type: DeltaPause, Version: s.NextVersion(), Position: ptr(s.position), IsPlaying: ptr(false)}
}

func (s *RoomState) Seek(p float64, now time.Time) (*Delta, error) {
	if s.current == nil {
		return nil, domain.ErrNothingPlaying
	}
	s.position = clampPosition(p, s.current.Length)
	s.clockOrigin = now
	return &Delta{Type: DeltaSeek, Version: s.NextVersion(), Position: ptr(s.position), IsPlaying: ptr(s.playing)}, nil
}

// Skip advances to the head of the queue. It is a no-op in the empty state.
func (s *RoomState) Skip(now time.Time) *Delta {
	if s.current == nil {
		return nil
	}
	s.position = 0
	s.clockOrigin = now
	if len(s.queue) == 0 {
		s.current = nil
		s.playing = false
	} else {
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.current = &next
	}
	d := &Delta{Type: DeltaSkip, Version: s.NextVersion(), Position: ptr(0.0), IsPlaying: ptr(s.playing)}
	if s.current != nil {
		cur := *s.current
		d.Current = &cur
	}
	return d
}

// Tick fires the implicit skip once the current item has played to its end.
func (s *RoomState) Tick(now time.Time) *Delta {
	left, ok := s.Remaining(now)
	if !ok || left > time.Millisecond {
		return nil
	}
	return s.Skip(now)
}

// AddItems appends resolved items. In the empty state the first item becomes
// current and the room is paused at 0.
func (s *RoomState) AddItems(items []domain.QueueItem, now time.Time) *Delta {
	if len(items) == 0 {
		return nil
	}
	d := &Delta{Type: DeltaQueueAdd, Items: append([]domain.QueueItem(nil), items...)}
	if s.current == nil {
		first := items[0]
		s.current = &first
		s.playing = false
		s.position = 0
		s.clockOrigin = now
		items = items[1:]
		d.Promoted = true
	}
	s.queue = append(s.queue, items...)
	d.Version = s.NextVersion()
	return d
}

func (s *RoomState) indexOf(key domain.VideoKey) int {
	for i, it := range s.queue {
		if it.Key() == key {
			return i
		}
	}
	return -1
}

func (s *RoomState) Remove(key domain.VideoKey) (*Delta, error) {
	i := s.indexOf(key)
	if i < 0 {
		return nil, &domain.ItemNotFoundError{Key: key}
	}
	s.queue = append(s.queue[:i], s.queue[i+1:]...)
	return &Delta{Type: DeltaQueueRemove, Version: s.NextVersion(), Key: &key}, nil
}

// Reorder moves an item to newIndex, clamped into the queue.
func (s *RoomState) Reorder(key domain.VideoKey, newIndex int) (*Delta, error) {
	i := s.indexOf(key)
	if i < 0 {
		return nil, &domain.ItemNotFoundError{Key: key}
	}
	newIndex = max(0, min(newIndex, len(s.queue)-1))
	item := s.queue[i]
	s.queue = append(s.queue[:i], s.queue[i+1:]...)
	s.queue = append(s.queue[:newIndex], append([]domain.QueueItem{item}, s.queue[newIndex:]...)...)
	return &Delta{Type: DeltaReorder, Version: s.NextVersion(), Key: &key, NewIndex: &newIndex}, nil
}
