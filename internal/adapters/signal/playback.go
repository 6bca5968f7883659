package signal

import (
	"github.com/dkeye/Together/internal/core"
	"github.com/dkeye/Together/internal/domain"
	"github.com/rs/zerolog/log"
)

type commandPayload struct {
	Version *uint64 `json:"version"`
}

type seekPayload struct {
	commandPayload
	Position *float64 `json:"position" validate:"required"`
}

type queueAddPayload struct {
	URL string `json:"url" validate:"required,max=2048"`
}

type itemPayload struct {
	commandPayload
	Service string `json:"service" validate:"required,max=32"`
	ID      string `json:"id" validate:"required,max=2048"`
}

type reorderPayload struct {
	itemPayload
	NewIndex *int `json:"newIndex" validate:"required"`
}

// skipPayload may name the item being skipped so that two racing skips
// advance the queue only once.
type skipPayload struct {
	commandPayload
	Service string `json:"service" validate:"required_with=ID,max=32"`
	ID      string `json:"id" validate:"required_with=Service,max=2048"`
}

func (ctl *SignalWSController) handleCommand(
	sid core.SessionID,
	conn *WsSignalConn,
	typ core.CommandType,
	data []byte,
) {
	cmd := core.Command{Type: typ}
	switch typ {
	case core.CmdSeek:
		var p seekPayload
		if !ctl.decode(conn, data, &p) {
			return
		}
		cmd.Version, cmd.Position = p.Version, *p.Position
	case core.CmdQueueAdd:
		var p queueAddPayload
		if !ctl.decode(conn, data, &p) {
			return
		}
		if ctl.Limiter != nil && !ctl.Limiter.Allow(domain.UserID(sid)) {
			log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("queue-add rate limited")
			ctl.sendError(conn, domain.ErrRateLimited)
			return
		}
		cmd.URL = p.URL
	case core.CmdQueueRemove:
		var p itemPayload
		if !ctl.decode(conn, data, &p) {
			return
		}
		cmd.Version, cmd.Key = p.Version, &domain.VideoKey{Service: p.Service, ID: p.ID}
	case core.CmdReorder:
		var p reorderPayload
		if !ctl.decode(conn, data, &p) {
			return
		}
		cmd.Version, cmd.Key, cmd.NewIndex = p.Version, &domain.VideoKey{Service: p.Service, ID: p.ID}, *p.NewIndex
	case core.CmdSkip:
		var p skipPayload
		if !ctl.decode(conn, data, &p) {
			return
		}
		cmd.Version = p.Version
		if p.ID != "" {
			cmd.Key = &domain.VideoKey{Service: p.Service, ID: p.ID}
		}
	default:
		var p commandPayload
		if !ctl.decode(conn, data, &p) {
			return
		}
		cmd.Version = p.Version
	}

	if err := ctl.Orch.OnCommand(sid, cmd); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("cmd", string(typ)).Msg("command rejected")
		ctl.sendError(conn, err)
	}
}
