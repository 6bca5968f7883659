package core

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/Together/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/panics"
)

const DefaultCommandQueueSize = 64

type RoomOptions struct {
	Clock    Clock
	Resolver Resolver
	// HeartbeatPeriod between full snapshots to every member. Zero disables it.
	HeartbeatPeriod time.Duration
	QueueSize       int
	// OnEmpty is called from the room loop when a temporary room loses its last member.
	OnEmpty func(name domain.RoomName)
	// OnDropped is called from the room loop when a member refused a frame.
	// Returning true schedules a full-sync for that member on its next send.
	// It must not block on the room.
	OnDropped func(room RoomService, sid SessionID, ms MemberSession) (resync bool)
}

type commandKind int

const (
	kindClient commandKind = iota
	kindJoin
	kindLeave
	kindRename
	kindResolved
	kindTick
	kindHeartbeat
	kindSnapshot
)

type command struct {
	kind    commandKind
	sid     SessionID
	session MemberSession
	user    domain.User
	cmd     Command
	items   []domain.QueueItem
	err     error
	reply   chan Snapshot
	// ack reports the outcome of a join once the loop has handled it.
	ack chan error
}

type memberEntry struct {
	session MemberSession
	user    domain.User
	seq     uint64
	// stale is touched by the room loop only.
	stale bool
}

// roomImpl is a room whose state is only ever touched by its own goroutine.
// It never closes adapter-owned resources.
type roomImpl struct {
	room  *domain.Room
	state *RoomState
	opts  RoomOptions
	log   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	cmds   chan command
	done   chan struct{}

	mu      sync.RWMutex
	members map[SessionID]*memberEntry
	joinSeq uint64

	stopEnd       func() bool
	stopHeartbeat func() bool
}

func NewRoomService(room *domain.Room, opts RoomOptions) RoomService {
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultCommandQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &roomImpl{
		room:    room,
		state:   NewRoomState(),
		opts:    opts,
		log:     log.With().Str("module", "core.room").Str("room", string(room.Name)).Logger(),
		ctx:     ctx,
		cancel:  cancel,
		cmds:    make(chan command, opts.QueueSize),
		done:    make(chan struct{}),
		members: make(map[SessionID]*memberEntry),
	}
	go r.run()
	return r
}

func (r *roomImpl) Room() *domain.Room { return r.room }

func (r *roomImpl) Done() <-chan struct{} { return r.done }

func (r *roomImpl) Stop() { r.cancel() }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *roomImpl) MembersSnapshot() []MemberDTO {
	type ordered struct {
		seq uint64
		dto MemberDTO
	}
	r.mu.RLock()
	entries := make([]ordered, 0, len(r.members))
	for _, m := range r.members {
		entries = append(entries, ordered{seq: m.seq, dto: MemberDTO{ID: m.user.ID, Username: m.user.Username}})
	}
	r.mu.RUnlock()

	slices.SortFunc(entries, func(a, b ordered) int { return cmp.Compare(a.seq, b.seq) })
	out := make([]MemberDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.dto)
	}
	return out
}

func (r *roomImpl) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	if err := r.enqueue(command{kind: kindSnapshot, reply: reply}); err != nil {
		return Snapshot{}, err
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-r.done:
		return Snapshot{}, ErrRoomClosed
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// Join returns once the room has sent the full-sync, or ErrRoomClosed if the
// room stopped before handling it.
func (r *roomImpl) Join(sid SessionID, ms MemberSession, user domain.User) error {
	ack := make(chan error, 1)
	if err := r.enqueue(command{kind: kindJoin, sid: sid, session: ms, user: user, ack: ack}); err != nil {
		return err
	}
	select {
	case err := <-ack:
		return err
	case <-r.done:
		select {
		case err := <-ack:
			return err
		default:
			return ErrRoomClosed
		}
	}
}

func (r *roomImpl) Leave(sid SessionID) error {
	return r.enqueue(command{kind: kindLeave, sid: sid})
}

func (r *roomImpl) Rename(sid SessionID, user domain.User) error {
	return r.enqueue(command{kind: kindRename, sid: sid, user: user})
}

func (r *roomImpl) Submit(sid SessionID, cmd Command) error {
	return r.enqueue(command{kind: kindClient, sid: sid, cmd: cmd})
}

func (r *roomImpl) enqueue(c command) error {
	if r.ctx.Err() != nil {
		return ErrRoomClosed
	}
	select {
	case r.cmds <- c:
		return nil
	case <-r.ctx.Done():
		return ErrRoomClosed
	}
}

func (r *roomImpl) run() {
	defer close(r.done)
	r.log.Info().Msg("room loop started")
	r.scheduleHeartbeat()
	for {
		select {
		case <-r.ctx.Done():
			r.stopTimers()
			r.rejectPending()
			r.log.Info().Msg("room loop stopped")
			return
		case c := <-r.cmds:
			if r.ctx.Err() != nil {
				// Stopped while handling the previous command.
				r.reject(c)
				continue
			}
			r.handle(c)
		}
	}
}

// rejectPending fails joins that were queued behind the stop.
func (r *roomImpl) rejectPending() {
	for {
		select {
		case c := <-r.cmds:
			r.reject(c)
		default:
			return
		}
	}
}

func (r *roomImpl) reject(c command) {
	if c.ack != nil {
		r.log.Debug().Str("sid", string(c.sid)).Msg("join rejected, room closed")
		c.ack <- ErrRoomClosed
	}
}

func (r *roomImpl) handle(c command) {
	switch c.kind {
	case kindClient:
		r.handleCommand(c.sid, c.cmd)
	case kindJoin:
		r.handleJoin(c.sid, c.session, c.user)
		if c.ack != nil {
			c.ack <- nil
		}
	case kindLeave:
		r.handleLeave(c.sid)
	case kindRename:
		r.handleRename(c.sid, c.user)
	case kindResolved:
		r.handleResolved(c.sid, c.items, c.err)
	case kindTick:
		if d := r.state.Tick(r.opts.Clock.Now()); d != nil {
			r.log.Info().Uint64("version", d.Version).Msg("item ended, implicit skip")
			r.broadcast(d)
		}
		r.rescheduleEnd()
	case kindHeartbeat:
		r.heartbeat()
		r.scheduleHeartbeat()
	case kindSnapshot:
		c.reply <- r.snapshot()
	}
}

func (r *roomImpl) handleJoin(sid SessionID, ms MemberSession, user domain.User) {
	r.mu.Lock()
	if m, ok := r.members[sid]; ok {
		m.session = ms
		m.user = user
		m.stale = false
	} else {
		r.joinSeq++
		r.members[sid] = &memberEntry{session: ms, user: user, seq: r.joinSeq}
	}
	r.mu.Unlock()
	r.log.Info().Str("sid", string(sid)).Str("user", string(user.ID)).Msg("member joined")

	d := r.usersDelta()
	r.sendFullSync(sid)
	r.broadcastExcept(d, sid)
}

func (r *roomImpl) handleLeave(sid SessionID) {
	r.mu.Lock()
	_, ok := r.members[sid]
	delete(r.members, sid)
	left := len(r.members)
	r.mu.Unlock()
	if !ok {
		return
	}
	r.log.Info().Str("sid", string(sid)).Int("members", left).Msg("member left")

	r.broadcast(r.usersDelta())
	if left == 0 && r.room.Temporary && r.opts.OnEmpty != nil {
		r.log.Info().Msg("temporary room is empty")
		r.opts.OnEmpty(r.room.Name)
	}
}

func (r *roomImpl) handleRename(sid SessionID, user domain.User) {
	r.mu.Lock()
	m, ok := r.members[sid]
	if ok {
		m.user = user
	}
	r.mu.Unlock()
	if ok {
		r.broadcast(r.usersDelta())
	}
}

func (r *roomImpl) handleCommand(sid SessionID, cmd Command) {
	r.mu.RLock()
	_, member := r.members[sid]
	r.mu.RUnlock()
	if !member {
		r.log.Warn().Str("sid", string(sid)).Str("cmd", string(cmd.Type)).Msg("command from non-member ignored")
		return
	}
	stale := cmd.Version != nil && *cmd.Version != r.state.Version()

	switch cmd.Type {
	case CmdSync:
		r.sendFullSync(sid)
		return
	case CmdQueueAdd:
		r.resolve(sid, cmd.URL)
	default:
		d, err := r.state.Apply(cmd, r.opts.Clock.Now())
		if err != nil {
			r.log.Debug().Err(err).Str("sid", string(sid)).Str("cmd", string(cmd.Type)).Msg("command rejected")
			r.sendError(sid, err)
		} else if d != nil {
			r.broadcast(d)
			r.rescheduleEnd()
		}
	}
	if stale {
		r.sendFullSync(sid)
	}
}

// resolve runs outside the loop; only its result re-enters the command stream.
func (r *roomImpl) resolve(sid SessionID, url string) {
	if r.opts.Resolver == nil {
		r.sendError(sid, &domain.UnsupportedProviderError{URL: url})
		return
	}
	go func() {
		var items []domain.QueueItem
		var err error
		if rec := panics.Try(func() { items, err = r.opts.Resolver.Resolve(r.ctx, url) }); rec != nil {
			err = rec.AsError()
		}
		if err := r.enqueue(command{kind: kindResolved, sid: sid, items: items, err: err}); err != nil {
			r.log.Debug().Str("url", url).Msg("resolution finished after room closed")
		}
	}()
}

func (r *roomImpl) handleResolved(sid SessionID, items []domain.QueueItem, err error) {
	if err != nil {
		r.log.Info().Err(err).Str("sid", string(sid)).Msg("queue-add failed")
		r.sendError(sid, err)
		return
	}
	if d := r.state.AddItems(items, r.opts.Clock.Now()); d != nil {
		r.broadcast(d)
		r.rescheduleEnd()
	}
}

func (r *roomImpl) usersDelta() *Delta {
	return &Delta{Type: DeltaUsers, Version: r.state.NextVersion(), Users: r.MembersSnapshot()}
}

func (r *roomImpl) snapshot() Snapshot {
	snap := Snapshot{
		Name:        r.room.Name,
		Title:       r.room.Title,
		Description: r.room.Description,
		IsTemporary: r.room.Temporary,
		Users:       r.MembersSnapshot(),
	}
	r.state.Fill(&snap, r.opts.Clock.Now())
	return snap
}

func (r *roomImpl) fullSyncFrame() Frame {
	return Encode(FullSyncMessage{Type: MsgFullSync, Room: r.snapshot()})
}

func (r *roomImpl) sendFullSync(sid SessionID) {
	r.mu.RLock()
	m, ok := r.members[sid]
	r.mu.RUnlock()
	if !ok {
		return
	}
	if r.send(sid, m, r.fullSyncFrame()) {
		m.stale = false
	}
}

func (r *roomImpl) sendError(sid SessionID, err error) {
	r.mu.RLock()
	m, ok := r.members[sid]
	r.mu.RUnlock()
	if !ok {
		return
	}
	r.send(sid, m, Encode(NewErrorMessage(err)))
}

func (r *roomImpl) broadcast(d *Delta) PublishResult {
	return r.broadcastExcept(d, "")
}

// broadcastExcept sends d to every member but skip. Stale members get a
// full-sync instead, since a delta cannot repair their replica.
func (r *roomImpl) broadcastExcept(d *Delta, skip SessionID) PublishResult {
	r.mu.RLock()
	targets := make(map[SessionID]*memberEntry, len(r.members))
	for sid, m := range r.members {
		if sid != skip {
			targets[sid] = m
		}
	}
	r.mu.RUnlock()

	deltaFrame := Encode(DeltaMessage{Type: MsgDelta, Delta: d})
	var syncFrame Frame
	res := PublishResult{}
	for sid, m := range targets {
		frame := deltaFrame
		if m.stale {
			if syncFrame == nil {
				syncFrame = r.fullSyncFrame()
			}
			frame = syncFrame
		}
		if !r.send(sid, m, frame) {
			res.Dropped = append(res.Dropped, m.session)
			continue
		}
		m.stale = false
		res.SendTo++
	}
	r.log.Debug().Str("delta", string(d.Type)).Uint64("version", d.Version).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *roomImpl) heartbeat() {
	r.mu.RLock()
	targets := make(map[SessionID]*memberEntry, len(r.members))
	for sid, m := range r.members {
		targets[sid] = m
	}
	r.mu.RUnlock()
	if len(targets) == 0 {
		return
	}
	frame := r.fullSyncFrame()
	for sid, m := range targets {
		if r.send(sid, m, frame) {
			m.stale = false
		}
	}
}

func (r *roomImpl) send(sid SessionID, m *memberEntry, frame Frame) bool {
	sig := m.session.Signal()
	if sig == nil || frame == nil {
		return false
	}
	if err := sig.TrySend(frame); err != nil {
		resync := true
		if r.opts.OnDropped != nil {
			resync = r.opts.OnDropped(r, sid, m.session)
		}
		m.stale = resync
		r.log.Warn().Err(err).Str("sid", string(sid)).Bool("resync", resync).Msg("frame dropped")
		return false
	}
	return true
}

func (r *roomImpl) rescheduleEnd() {
	if r.stopEnd != nil {
		r.stopEnd()
		r.stopEnd = nil
	}
	if left, ok := r.state.Remaining(r.opts.Clock.Now()); ok {
		r.stopEnd = r.opts.Clock.AfterFunc(left, func() {
			_ = r.enqueue(command{kind: kindTick})
		})
	}
}

func (r *roomImpl) scheduleHeartbeat() {
	if r.opts.HeartbeatPeriod <= 0 {
		return
	}
	r.stopHeartbeat = r.opts.Clock.AfterFunc(r.opts.HeartbeatPeriod, func() {
		_ = r.enqueue(command{kind: kindHeartbeat})
	})
}

func (r *roomImpl) stopTimers() {
	if r.stopEnd != nil {
		r.stopEnd()
	}
	if r.stopHeartbeat != nil {
		r.stopHeartbeat()
	}
}
