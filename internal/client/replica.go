// Package client keeps a local replica of a room by following the server's
// full-sync and delta stream.
package client

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/Together/internal/core"
	"github.com/dkeye/Together/internal/domain"
)

// ErrVersionGap means a delta was missed and the replica needs a full-sync.
var ErrVersionGap = errors.New("replica version gap")

// Replica is the client-side copy of a room snapshot.
type Replica struct {
	mu       sync.RWMutex
	snap     core.Snapshot
	synced   bool
	syncedAt time.Time
	now      func() time.Time
}

func NewReplica() *Replica {
	return &Replica{now: time.Now}
}

// Synced reports whether a full-sync has been applied since the last gap.
func (r *Replica) Synced() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.synced
}

// Snapshot returns a copy of the replica state.
func (r *Replica) Snapshot() core.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := r.snap
	out.Queue = slices.Clone(r.snap.Queue)
	out.Users = slices.Clone(r.snap.Users)
	if r.snap.CurrentSource != nil {
		cur := *r.snap.CurrentSource
		out.CurrentSource = &cur
	}
	return out
}

// Position estimates the playback position now, extrapolating while playing.
func (r *Replica) Position() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p := r.snap.PlaybackPosition
	if r.snap.IsPlaying {
		p += r.now().Sub(r.syncedAt).Seconds()
	}
	if cur := r.snap.CurrentSource; cur != nil && cur.Length > 0 {
		p = min(p, cur.Length)
	}
	return p
}

func (r *Replica) ApplyFullSync(snap core.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if snap.Queue == nil {
		snap.Queue = []domain.QueueItem{}
	}
	r.snap = snap
	r.synced = true
	r.syncedAt = r.now()
}

// ApplyDelta folds d into the replica. Deltas at or below the current version
// are ignored; a delta that skips a version marks the replica unsynced.
func (r *Replica) ApplyDelta(d *core.Delta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.synced {
		return ErrVersionGap
	}
	if d.Version <= r.snap.Version {
		return nil
	}
	if d.Version != r.snap.Version+1 {
		r.synced = false
		return fmt.Errorf("%w: have %d, got %d", ErrVersionGap, r.snap.Version, d.Version)
	}

	s := &r.snap
	switch d.Type {
	case core.DeltaPlay, core.DeltaPause, core.DeltaSeek:
		r.setPlayback(d)
	case core.DeltaSkip:
		s.CurrentSource = d.Current
		if d.Current != nil && len(s.Queue) > 0 && s.Queue[0].Key() == d.Current.Key() {
			s.Queue = s.Queue[1:]
		}
		r.setPlayback(d)
	case core.DeltaQueueAdd:
		items := d.Items
		if d.Promoted && len(items) > 0 {
			first := items[0]
			s.CurrentSource = &first
			s.IsPlaying = false
			s.PlaybackPosition = 0
			r.syncedAt = r.now()
			items = items[1:]
		}
		s.Queue = append(s.Queue, items...)
	case core.DeltaQueueRemove:
		if d.Key != nil {
			s.Queue = slices.DeleteFunc(s.Queue, func(it domain.QueueItem) bool { return it.Key() == *d.Key })
		}
	case core.DeltaReorder:
		if d.Key != nil && d.NewIndex != nil {
			i := slices.IndexFunc(s.Queue, func(it domain.QueueItem) bool { return it.Key() == *d.Key })
			if i >= 0 {
				item := s.Queue[i]
				s.Queue = slices.Delete(s.Queue, i, i+1)
				s.Queue = slices.Insert(s.Queue, min(*d.NewIndex, len(s.Queue)), item)
			}
		}
	case core.DeltaUsers:
		s.Users = d.Users
	default:
		r.synced = false
		return fmt.Errorf("%w: unknown delta %q", ErrVersionGap, d.Type)
	}
	s.Version = d.Version
	s.State = status(s)
	return nil
}

func (r *Replica) setPlayback(d *core.Delta) {
	if d.Position != nil {
		r.snap.PlaybackPosition = *d.Position
	}
	if d.IsPlaying != nil {
		r.snap.IsPlaying = *d.IsPlaying
	}
	r.syncedAt = r.now()
}

func status(s *core.Snapshot) core.Status {
	switch {
	case s.CurrentSource == nil:
		return core.StatusEmpty
	case s.IsPlaying:
		return core.StatusPlaying
	}
	return core.StatusPaused
}
