package core

import (
	"time"

	"github.com/dkeye/Together/internal/domain"
)

type Status string

const (
	StatusEmpty   Status = "empty"
	StatusPlaying Status = "playing"
	StatusPaused  Status = "paused"
)

// RoomState is the authoritative playback state of one room.
// It is owned by the room loop and is not safe for concurrent use.
type RoomState struct {
	queue       []domain.QueueItem
	current     *domain.QueueItem
	playing     bool
	position    float64
	clockOrigin time.Time
	version     uint64
}

func NewRoomState() *RoomState {
	return &RoomState{queue: []domain.QueueItem{}}
}

func (s *RoomState) Version() uint64 { return s.version }

func (s *RoomState) Current() (domain.QueueItem, bool) {
	if s.current == nil {
		return domain.QueueItem{}, false
	}
	return *s.current, true
}

func (s *RoomState) Queue() []domain.QueueItem {
	out := make([]domain.QueueItem, len(s.queue))
	copy(out, s.queue)
	return out
}

func (s *RoomState) IsPlaying() bool { return s.playing }

func (s *RoomState) Status() Status {
	switch {
	case s.current == nil:
		return StatusEmpty
	case s.playing:
		return StatusPlaying
	}
	return StatusPaused
}

// Position is the derived playback position at now.
// A zero length means the length is unknown and the position is not capped.
func (s *RoomState) Position(now time.Time) float64 {
	if s.current == nil {
		return 0
	}
	pos := s.position
	if s.playing {
		pos += now.Sub(s.clockOrigin).Seconds()
	}
	return clampPosition(pos, s.current.Length)
}

// Remaining is the playing time left on the current item.
// ok is false when nothing is playing or the length is unknown.
func (s *RoomState) Remaining(now time.Time) (d time.Duration, ok bool) {
	if s.current == nil || !s.playing || s.current.Length <= 0 {
		return 0, false
	}
	left := s.current.Length - s.Position(now)
	if left < 0 {
		left = 0
	}
	return time.Duration(left * float64(time.Second)), true
}

// NextVersion bumps the version for changes made outside the state machine,
// e.g. the participant list.
func (s *RoomState) NextVersion() uint64 {
	s.version++
	return s.version
}

func clampPosition(p, length float64) float64 {
	if p < 0 {
		return 0
	}
	if length > 0 && p > length {
		return length
	}
	return p
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID       domain.UserID `json:"id"`
	Username string        `json:"username"`
}

// Snapshot is the full room state sent on join and on every heartbeat.
type Snapshot struct {
	Name             domain.RoomName    `json:"name"`
	Title            string             `json:"title"`
	Description      string             `json:"description"`
	IsTemporary      bool               `json:"isTemporary"`
	CurrentSource    *domain.QueueItem  `json:"currentSource"`
	Queue            []domain.QueueItem `json:"queue"`
	IsPlaying        bool               `json:"isPlaying"`
	PlaybackPosition float64            `json:"playbackPosition"`
	Users            []MemberDTO        `json:"users"`
	Version          uint64             `json:"version"`
	State            Status             `json:"state"`
}

// Fill copies the playback part of the state into snap.
func (s *RoomState) Fill(snap *Snapshot, now time.Time) {
	if s.current != nil {
		cur := *s.current
		snap.CurrentSource = &cur
	}
	snap.Queue = s.Queue()
	snap.IsPlaying = s.playing
	snap.PlaybackPosition = s.Position(now)
	snap.Version = s.version
	snap.State = s.Status()
}
