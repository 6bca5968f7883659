package orch

import (
	"errors"
	"time"

	"github.com/dkeye/Together/internal/app"
	"github.com/dkeye/Together/internal/core"
	"github.com/dkeye/Together/internal/domain"
	"github.com/rs/zerolog/log"
)

type Orchestrator struct {
	Registry *app.Registry
	Rooms    core.RoomManager
	Policy   app.Policy
}

func New(reg *app.Registry, rooms *app.RoomManagerImpl, policy app.Policy) *Orchestrator {
	o := &Orchestrator{Registry: reg, Rooms: rooms, Policy: policy}
	rooms.SetDropHandler(o.OnDropped)
	return o
}

// OnCommand forwards a client command to the room of sid.
func (o *Orchestrator) OnCommand(sid core.SessionID, cmd core.Command) error {
	roomName, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		return domain.ErrNotInRoom
	}
	room, ok := o.Rooms.Lookup(roomName)
	if !ok {
		o.Registry.RemoveRoom(sid)
		return &domain.RoomNotFoundError{Name: roomName}
	}
	if err := room.Submit(sid, cmd); err != nil {
		if errors.Is(err, core.ErrRoomClosed) {
			o.Registry.RemoveRoom(sid)
			return &domain.RoomNotFoundError{Name: roomName}
		}
		return err
	}
	return nil
}

// OnDropped runs on the room loop and must not block it.
func (o *Orchestrator) OnDropped(room core.RoomService, sid core.SessionID, ms core.MemberSession) bool {
	if o.Policy == nil {
		return true
	}
	switch o.Policy.OnBackPressure(room, ms) {
	case app.MarkSlow:
		return true
	case app.KickMember:
		ev := log.Warn().Str("module", "orch").Str("sid", string(sid)).Str("room", string(room.Room().Name))
		if meta := ms.Meta(); meta != nil {
			ev = ev.Dur("connected_for", meta.ConnectedFor(time.Now()))
		}
		ev.Msg("kicking slow member")
		go o.KickBySID(sid)
	case app.DropFrame, app.NoAction:
	}
	return false
}

func (o *Orchestrator) OnDisconnect(sid core.SessionID, sess core.MemberSession) {
	if cur, ok := o.Registry.GetSession(sid); ok && cur != sess {
		// A newer connection took over this session.
		return
	}
	o.cleanupMembership(sid)
	o.Registry.Unbind(sid, sess)
}
