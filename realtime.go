package pawmate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

// ============================================================================
// Wire format
// ============================================================================

// realtimeEnvelope is the wire format for all realtime events.
type realtimeEnvelope struct {
	Type   string          `json:"type"` // "status" | "insert"
	Table  string          `json:"table,omitempty"`
	Status string          `json:"status,omitempty"` // subscribed | error | timeout | closed
	Record json.RawMessage `json:"record,omitempty"`
}

// subscribeCommand registers interest in a table's insert events. The
// backend only filters at table granularity; row filtering happens
// client-side.
type subscribeCommand struct {
	Type  string `json:"type"`
	Table string `json:"table"`
	Event string `json:"event"`
}

// ============================================================================
// Channel state
// ============================================================================

// ChannelState is the delivery channel's connection state.
type ChannelState string

const (
	StateConnecting ChannelState = "connecting"
	StateSubscribed ChannelState = "subscribed"
	// StateDegraded covers explicit errors, timeouts, server-initiated
	// closes and guard-window expiry. A degraded channel never recovers on
	// its own; a fresh Open is the only path back to realtime delivery.
	StateDegraded ChannelState = "degraded"
)

// ChannelOptions configures a DeliveryChannel.
type ChannelOptions struct {
	// GraceWindow bounds how long the channel may stay in StateConnecting
	// before it is declared degraded. Not-yet-connected is treated as
	// degraded after the window to avoid silent message loss.
	GraceWindow time.Duration
}

const defaultGraceWindow = 6 * time.Second

// ============================================================================
// DeliveryChannel
// ============================================================================

// DeliveryChannel is one realtime subscription scoped to a single
// conversation: insert events on the messages table, filtered client-side
// to the {sender,recipient} pair, with self-sent events discarded (the
// optimistic send path already rendered them locally).
//
// The channel does not reconnect. On any failure it reports StateDegraded
// once and stays there; the caller falls back to polling.
type DeliveryChannel struct {
	client      *Client
	userID      string
	peerID      string
	graceWindow time.Duration
	log         zerolog.Logger

	mu               sync.Mutex
	state            ChannelState
	conn             *websocket.Conn
	cancelFn         context.CancelFunc
	guard            *time.Timer
	intentionalClose bool
	opened           bool

	handlerMu sync.RWMutex
	onInsert  []func(Message)
	onState   []func(ChannelState)
}

// NewDeliveryChannel creates a channel for the conversation between userID
// and peerID. Call Open to establish the subscription.
func (c *Client) NewDeliveryChannel(userID, peerID string, opts *ChannelOptions) *DeliveryChannel {
	grace := defaultGraceWindow
	if opts != nil && opts.GraceWindow > 0 {
		grace = opts.GraceWindow
	}
	return &DeliveryChannel{
		client:      c,
		userID:      userID,
		peerID:      peerID,
		graceWindow: grace,
		log:         c.log.With().Str("component", "delivery_channel").Logger(),
		state:       StateConnecting,
	}
}

// OnInsert registers a handler for incoming conversation messages.
// Handlers run on the channel's read goroutine.
func (ch *DeliveryChannel) OnInsert(h func(Message)) {
	ch.handlerMu.Lock()
	ch.onInsert = append(ch.onInsert, h)
	ch.handlerMu.Unlock()
}

// OnStateChange registers a handler for state transitions.
func (ch *DeliveryChannel) OnStateChange(h func(ChannelState)) {
	ch.handlerMu.Lock()
	ch.onState = append(ch.onState, h)
	ch.handlerMu.Unlock()
}

// State returns the current channel state.
func (ch *DeliveryChannel) State() ChannelState {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.state
}

// Open establishes the websocket subscription. Both participant
// identifiers must be non-empty and distinct. Open on an already-open
// channel is a no-op; a degraded or closed channel cannot be reopened,
// create a fresh one.
func (ch *DeliveryChannel) Open(ctx context.Context) error {
	if ch.userID == "" || ch.peerID == "" {
		return fmt.Errorf("pawmate: both participant ids are required")
	}
	if ch.userID == ch.peerID {
		return fmt.Errorf("pawmate: cannot open a channel to self")
	}

	ch.mu.Lock()
	if ch.intentionalClose {
		ch.mu.Unlock()
		return ErrChannelClosed
	}
	if ch.opened {
		ch.mu.Unlock()
		return nil
	}
	ch.opened = true
	ch.mu.Unlock()

	wsURL := strings.Replace(ch.client.baseURL, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL += "/realtime/v1/ws?apikey=" + ch.client.apiKey
	if tok := ch.client.token(); tok != "" {
		wsURL += "&token=" + tok
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		ch.setState(StateDegraded)
		return fmt.Errorf("websocket dial: %w", err)
	}

	connCtx, cancel := context.WithCancel(context.Background())

	ch.mu.Lock()
	if ch.intentionalClose {
		ch.mu.Unlock()
		cancel()
		conn.Close(websocket.StatusNormalClosure, "")
		return ErrChannelClosed
	}
	ch.conn = conn
	ch.cancelFn = cancel
	// Guard timer: the status stream alone cannot be trusted to report a
	// subscription that never establishes.
	ch.guard = time.AfterFunc(ch.graceWindow, func() {
		ch.log.Warn().Dur("grace_window", ch.graceWindow).Msg("subscription not confirmed within grace window")
		ch.setState(StateDegraded)
	})
	ch.mu.Unlock()

	sub, _ := json.Marshal(subscribeCommand{Type: "subscribe", Table: "messages", Event: "insert"})
	if err := conn.Write(ctx, websocket.MessageText, sub); err != nil {
		ch.setState(StateDegraded)
		return fmt.Errorf("subscribe command: %w", err)
	}

	go ch.readLoop(connCtx, conn)
	return nil
}

// Close tears the subscription down. Idempotent; always safe to call.
func (ch *DeliveryChannel) Close() error {
	ch.mu.Lock()
	if ch.intentionalClose {
		ch.mu.Unlock()
		return nil
	}
	ch.intentionalClose = true
	if ch.guard != nil {
		ch.guard.Stop()
		ch.guard = nil
	}
	if ch.cancelFn != nil {
		ch.cancelFn()
		ch.cancelFn = nil
	}
	conn := ch.conn
	ch.conn = nil
	ch.mu.Unlock()

	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "client close")
	}
	return nil
}

func (ch *DeliveryChannel) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			ch.mu.Lock()
			intentional := ch.intentionalClose
			ch.mu.Unlock()
			if intentional {
				return
			}
			ch.log.Debug().Err(err).Msg("realtime read failed")
			ch.setState(StateDegraded)
			return
		}

		var env realtimeEnvelope
		if json.Unmarshal(data, &env) != nil {
			continue
		}

		switch env.Type {
		case "status":
			ch.applyStatus(env.Status)
		case "insert":
			ch.applyInsert(env)
		}
	}
}

func (ch *DeliveryChannel) applyStatus(status string) {
	switch status {
	case "subscribed":
		ch.mu.Lock()
		if ch.guard != nil {
			ch.guard.Stop()
			ch.guard = nil
		}
		ch.mu.Unlock()
		ch.setState(StateSubscribed)
	case "error", "timeout", "closed":
		ch.log.Debug().Str("status", status).Msg("subscription degraded")
		ch.setState(StateDegraded)
	}
}

func (ch *DeliveryChannel) applyInsert(env realtimeEnvelope) {
	if env.Table != "messages" {
		return
	}
	var msg Message
	if json.Unmarshal(env.Record, &msg) != nil {
		return
	}
	// Self-sent rows come back through the optimistic path.
	if msg.SenderID == ch.userID {
		return
	}
	// Table-level subscription: drop rows outside this conversation.
	if !(msg.SenderID == ch.peerID && msg.RecipientID == ch.userID) {
		return
	}

	ch.handlerMu.RLock()
	handlers := append([]func(Message){}, ch.onInsert...)
	ch.handlerMu.RUnlock()
	for _, h := range handlers {
		h(msg)
	}
}

// setState transitions the channel state and notifies handlers. Degraded is
// terminal: later transitions are ignored so the fallback is started at
// most once per channel.
func (ch *DeliveryChannel) setState(state ChannelState) {
	ch.mu.Lock()
	if ch.intentionalClose || ch.state == state || ch.state == StateDegraded {
		ch.mu.Unlock()
		return
	}
	ch.state = state
	ch.mu.Unlock()

	ch.handlerMu.RLock()
	handlers := append([]func(ChannelState){}, ch.onState...)
	ch.handlerMu.RUnlock()
	for _, h := range handlers {
		h(state)
	}
}
