package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/dkeye/Together/internal/core"
	"github.com/dkeye/Together/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	dialTimeout  = 5 * time.Second
	updateBuffer = 64
	signalPath   = "/api/ws/signal"
)

// Message is any frame the server sends. Only the fields of its Type are set.
type Message struct {
	Type     string         `json:"type"`
	Room     *core.Snapshot `json:"room,omitempty"`
	Delta    *core.Delta    `json:"delta,omitempty"`
	Kind     string         `json:"kind,omitempty"`
	Message  string         `json:"message,omitempty"`
	ID       string         `json:"id,omitempty"`
	Username string         `json:"username,omitempty"`
}

// ServerError is an error message addressed to this client.
type ServerError struct {
	Kind    string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

type Options struct {
	// Token is sent as the session cookie so reconnects keep the same identity.
	Token string
}

// Client is a websocket connection to the server plus the replica it maintains.
type Client struct {
	conn    *websocket.Conn
	replica *Replica
	updates chan Message
	done    chan struct{}
	err     error
}

// Dial connects to the signal endpoint of the server at baseURL.
func Dial(ctx context.Context, baseURL string, opts Options) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + signalPath

	var dopts websocket.DialOptions
	if opts.Token != "" {
		dopts.HTTPHeader = http.Header{"Cookie": []string{"ct=" + opts.Token}}
	}

	ctxDial, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(ctxDial, u.String(), &dopts)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}
	conn.SetReadLimit(1 << 20)

	c := &Client{
		conn:    conn,
		replica: NewReplica(),
		updates: make(chan Message, updateBuffer),
		done:    make(chan struct{}),
	}
	go c.readLoop(ctx)
	return c, nil
}

func (c *Client) Replica() *Replica { return c.replica }

// Updates delivers every message after it has been applied to the replica.
// It is closed when the connection ends.
func (c *Client) Updates() <-chan Message { return c.updates }

// Done is closed when the read loop exits; Err then reports why.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

func (c *Client) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "bye")
}

func (c *Client) readLoop(ctx context.Context) {
	defer close(c.done)
	defer close(c.updates)
	for {
		var msg Message
		if err := wsjson.Read(ctx, c.conn, &msg); err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && !errors.Is(err, context.Canceled) {
				c.err = err
			}
			return
		}
		c.handle(ctx, msg)
		select {
		case c.updates <- msg:
		default:
			log.Warn().Str("module", "client").Str("type", msg.Type).Msg("update dropped, reader too slow")
		}
	}
}

func (c *Client) handle(ctx context.Context, msg Message) {
	switch msg.Type {
	case core.MsgFullSync:
		if msg.Room != nil {
			c.replica.ApplyFullSync(*msg.Room)
		}
	case core.MsgDelta:
		if msg.Delta == nil {
			return
		}
		if err := c.replica.ApplyDelta(msg.Delta); err != nil {
			log.Debug().Err(err).Str("module", "client").Msg("requesting full-sync")
			if err := c.Sync(ctx); err != nil {
				log.Error().Err(err).Str("module", "client").Msg("sync request")
			}
		}
	}
}

func (c *Client) send(ctx context.Context, v any) error {
	return wsjson.Write(ctx, c.conn, v)
}

// command attaches the replica version to a command payload.
func (c *Client) command(ctx context.Context, typ core.CommandType, fields map[string]any) error {
	msg := map[string]any{"type": string(typ)}
	for k, v := range fields {
		msg[k] = v
	}
	if c.replica.Synced() {
		msg["version"] = c.replica.Snapshot().Version
	}
	return c.send(ctx, msg)
}

func (c *Client) Join(ctx context.Context, room domain.RoomName, name string) error {
	msg := map[string]any{"type": "join", "room": string(room)}
	if name != "" {
		msg["name"] = name
	}
	return c.send(ctx, msg)
}

func (c *Client) Leave(ctx context.Context) error {
	return c.send(ctx, map[string]any{"type": "leave"})
}

func (c *Client) Rename(ctx context.Context, name string) error {
	return c.send(ctx, map[string]any{"type": "rename", "name": name})
}

func (c *Client) Sync(ctx context.Context) error {
	return c.send(ctx, map[string]any{"type": string(core.CmdSync)})
}

func (c *Client) Play(ctx context.Context) error {
	return c.command(ctx, core.CmdPlay, nil)
}

func (c *Client) Pause(ctx context.Context) error {
	return c.command(ctx, core.CmdPause, nil)
}

func (c *Client) Seek(ctx context.Context, position float64) error {
	return c.command(ctx, core.CmdSeek, map[string]any{"position": position})
}

// Skip advances past the item the replica currently shows.
func (c *Client) Skip(ctx context.Context) error {
	fields := map[string]any{}
	if cur := c.replica.Snapshot().CurrentSource; cur != nil {
		fields["service"], fields["id"] = cur.Service, cur.ID
	}
	return c.command(ctx, core.CmdSkip, fields)
}

func (c *Client) QueueAdd(ctx context.Context, rawURL string) error {
	return c.send(ctx, map[string]any{"type": string(core.CmdQueueAdd), "url": rawURL})
}

func (c *Client) QueueRemove(ctx context.Context, key domain.VideoKey) error {
	return c.command(ctx, core.CmdQueueRemove, map[string]any{"service": key.Service, "id": key.ID})
}

func (c *Client) Reorder(ctx context.Context, key domain.VideoKey, newIndex int) error {
	return c.command(ctx, core.CmdReorder, map[string]any{"service": key.Service, "id": key.ID, "newIndex": newIndex})
}

// Err returns the server error carried by an error message, or nil.
func (m Message) Err() error {
	if m.Type != core.MsgError {
		return nil
	}
	return &ServerError{Kind: m.Kind, Message: m.Message}
}
