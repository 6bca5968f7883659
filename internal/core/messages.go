package core

import (
	"encoding/json"

	"github.com/dkeye/Together/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	MsgFullSync = "full-sync"
	MsgDelta    = "delta"
	MsgError    = "error"
)

type FullSyncMessage struct {
	Type string   `json:"type"`
	Room Snapshot `json:"room"`
}

type DeltaMessage struct {
	Type  string `json:"type"`
	Delta *Delta `json:"delta"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func NewErrorMessage(err error) ErrorMessage {
	return ErrorMessage{Type: MsgError, Kind: domain.ErrorKind(err), Message: err.Error()}
}

// Encode marshals v into a frame. It returns nil if v cannot be encoded.
func Encode(v any) Frame {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "core.room").Msg("encode frame")
		return nil
	}
	return b
}
