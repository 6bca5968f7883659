package orch

import (
	"context"
	"errors"

	"github.com/dkeye/Together/internal/core"
	"github.com/dkeye/Together/internal/domain"
	"github.com/rs/zerolog/log"
)

// Join moves sid into roomName. Joining the current room again only resyncs.
func (o *Orchestrator) Join(ctx context.Context, sid core.SessionID, roomName domain.RoomName) (core.RoomService, error) {
	session, ok := o.Registry.GetSession(sid)
	if !ok {
		return nil, errors.New("no live connection for session")
	}
	if from, _, ok := o.Registry.RoomOf(sid); ok && from != roomName {
		o.cleanupMembership(sid)
		log.Info().Str("module", "orch").Str("sid", string(sid)).Str("from_room", string(from)).Msg("left previous room")
	}
	user := o.Registry.GetOrCreateUser(sid)

	for attempt := 0; ; attempt++ {
		room, err := o.Rooms.Get(ctx, roomName)
		if err != nil {
			return nil, err
		}
		err = room.Join(sid, session, user)
		if errors.Is(err, core.ErrRoomClosed) && attempt == 0 {
			// The room was torn down between lookup and join.
			continue
		}
		if err != nil {
			return nil, err
		}
		o.Registry.UpdateRoom(sid, roomName)
		log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(roomName)).Msg("added to room")
		return room, nil
	}
}

func (o *Orchestrator) Leave(sid core.SessionID) {
	o.cleanupMembership(sid)
}

// Rename changes the display name and refreshes the user list of the current room.
func (o *Orchestrator) Rename(sid core.SessionID, name string) (domain.User, error) {
	user, err := o.Registry.UpdateUsername(sid, name)
	if err != nil {
		return user, err
	}
	if roomName, _, ok := o.Registry.RoomOf(sid); ok {
		if room, ok := o.Rooms.Lookup(roomName); ok {
			_ = room.Rename(sid, user)
		}
	}
	return user, nil
}

func (o *Orchestrator) KickBySID(sid core.SessionID) {
	o.cleanupMembership(sid)
	o.Registry.Cancel(sid)
}

func (o *Orchestrator) cleanupMembership(sid core.SessionID) {
	roomName, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		return
	}
	if room, ok := o.Rooms.Lookup(roomName); ok {
		_ = room.Leave(sid)
	}
	o.Registry.RemoveRoom(sid)
}

func (o *Orchestrator) EvictRoom(name domain.RoomName) {
	for _, snap := range o.Registry.MembersOfRoom(name) {
		o.KickBySID(snap.SID)
	}
	o.Rooms.StopRoom(name)
}
