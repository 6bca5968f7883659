package signal

import (
	"context"
	"time"

	"github.com/dkeye/Together/internal/core"
	"github.com/dkeye/Together/internal/domain"
	"github.com/rs/zerolog/log"
)

const joinTimeout = 5 * time.Second

type joinPayload struct {
	Room string `json:"room" validate:"required,min=3,max=32"`
	Name string `json:"name,omitempty" validate:"omitempty,max=36"`
}

// handleJoin enters a room. The room itself answers with a full-sync.
func (ctl *SignalWSController) handleJoin(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	var p joinPayload
	if !ctl.decode(conn, data, &p) {
		return
	}
	if p.Name != "" {
		if _, err := ctl.Orch.Rename(sid, p.Name); err != nil {
			ctl.sendError(conn, err)
			return
		}
		log.Info().Str("module", "signal").Str("sid", string(sid)).Str("name", p.Name).Msg("rename on join")
	}

	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", p.Room).Msg("join")
	ctx, cancel := context.WithTimeout(context.Background(), joinTimeout)
	defer cancel()
	if _, err := ctl.Orch.Join(ctx, sid, domain.RoomName(p.Room)); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("room", p.Room).Msg("join failed")
		ctl.sendError(conn, err)
	}
}

// handleLeave leaves the current room; the connection stays open.
func (ctl *SignalWSController) handleLeave(
	sid core.SessionID,
	conn *WsSignalConn,
) {
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("leave")
	ctl.Orch.Leave(sid)
	ctl.sendJSON(conn, map[string]any{
		"type": "left",
	})
}
