package signal

import "time"

// pongMessage carries the server clock so clients can estimate their offset
// when extrapolating the playback position.
type pongMessage struct {
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
}

func (ctl *SignalWSController) handlePing(conn *WsSignalConn) {
	ctl.sendJSON(conn, pongMessage{Type: "pong", ServerTime: time.Now().UnixMilli()})
}
