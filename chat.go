package pawmate

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ============================================================================
// ChatSession
// ============================================================================

// ChatSessionOptions configures a ChatSession.
type ChatSessionOptions struct {
	// PollInterval is the fallback reconciliation period. Default 2s.
	PollInterval time.Duration
	// GraceWindow bounds how long the realtime channel may stay
	// unconfirmed before polling takes over. Default 6s.
	GraceWindow time.Duration
	// Lifecycle, when set, triggers one reconciliation fetch whenever the
	// app returns to the foreground while delivery is degraded.
	Lifecycle *LifecycleBus
	// Store, when set, receives every confirmed message the session sees.
	Store *MemoryStore
}

// ChatSession drives one conversation screen: it owns the ordered,
// deduplicated message list and everything that feeds it: the initial
// fetch, realtime push, the polling fallback and optimistic local sends.
//
// All list mutations funnel through one mutex, so updates from any source
// apply one at a time; after each one the list has unique identifiers, is
// ascending by creation time, and ownership has been recomputed from it.
//
// Close releases the channel, the poll timer, the guard timer and the
// lifecycle subscription in one call.
type ChatSession struct {
	client       *Client
	userID       string
	peerID       string
	pollInterval time.Duration
	graceWindow  time.Duration
	lifecycle    *LifecycleBus
	store        *MemoryStore
	log          zerolog.Logger

	mu        sync.Mutex
	messages  []Message
	ownership Ownership
	// lastKnown is the freshness marker: the newest confirmed creation
	// timestamp applied so far. Poll batches not newer than this are
	// discarded without a render.
	lastKnown   time.Time
	channel     *DeliveryChannel
	fallback    *poller
	unsubscribe func()
	opened      bool
	closed      bool

	handlerMu    sync.RWMutex
	onUpdate     []func([]Message, Ownership)
	onSendFailed []func(tempID, text string, err error)
}

// NewChatSession creates a session for the conversation with peerID.
// The current user must be resolvable; an unauthenticated client is a
// fatal error for the screen.
func (c *Client) NewChatSession(ctx context.Context, peerID string, opts *ChatSessionOptions) (*ChatSession, error) {
	user, err := c.Auth.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	s := &ChatSession{
		client:       c,
		userID:       user.ID,
		peerID:       peerID,
		pollInterval: defaultPollInterval,
		graceWindow:  defaultGraceWindow,
		log: c.log.With().
			Str("component", "chat_session").
			Str("peer_id", peerID).
			Logger(),
	}
	if opts != nil {
		if opts.PollInterval > 0 {
			s.pollInterval = opts.PollInterval
		}
		if opts.GraceWindow > 0 {
			s.graceWindow = opts.GraceWindow
		}
		s.lifecycle = opts.Lifecycle
		s.store = opts.Store
	}
	return s, nil
}

// OnUpdate registers a handler invoked with the new list and ownership
// after every applied mutation. The slice is the caller's copy.
func (s *ChatSession) OnUpdate(h func([]Message, Ownership)) {
	s.handlerMu.Lock()
	s.onUpdate = append(s.onUpdate, h)
	s.handlerMu.Unlock()
}

// OnSendFailed registers a handler for rolled-back sends. The original
// text is handed back so the composer can restore it for resubmission.
func (s *ChatSession) OnSendFailed(h func(tempID, text string, err error)) {
	s.handlerMu.Lock()
	s.onSendFailed = append(s.onSendFailed, h)
	s.handlerMu.Unlock()
}

// Open starts delivery: it opens the realtime channel, performs the
// initial fetch, and arms the polling fallback. A channel that fails to
// establish is absorbed (polling covers it); a failed initial fetch is
// returned to the caller for a manual retry.
func (s *ChatSession) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrChannelClosed
	}
	if s.opened {
		s.mu.Unlock()
		return nil
	}
	s.opened = true

	s.fallback = &poller{
		interval: s.pollInterval,
		fetch:    s.fetchConversation,
		newest:   s.freshness,
		onBatch:  s.applyPollBatch,
		log:      s.log,
	}

	// Exclusive ownership: any previous channel was torn down by Close or
	// by a failed Open before this point.
	channel := s.client.NewDeliveryChannel(s.userID, s.peerID, &ChannelOptions{
		GraceWindow: s.graceWindow,
	})
	channel.OnInsert(s.applyPushInsert)
	channel.OnStateChange(s.onChannelState)
	s.channel = channel

	if s.lifecycle != nil {
		s.unsubscribe = s.lifecycle.Subscribe(s.onAppState)
	}
	s.mu.Unlock()

	if err := channel.Open(ctx); err != nil {
		// Degraded channel already armed the fallback; realtime loss is
		// never surfaced to the user.
		s.log.Warn().Err(err).Msg("realtime channel unavailable, relying on polling")
	}

	messages, err := s.fetchConversation(ctx)
	if err != nil {
		s.teardown()
		s.mu.Lock()
		s.opened = false
		s.closed = false
		s.mu.Unlock()
		return err
	}
	s.applyInitialFetch(messages)

	// Best effort; unread flags do not affect delivery.
	if err := s.client.Messages.MarkRead(ctx, s.userID, s.peerID); err != nil {
		s.log.Debug().Err(err).Msg("mark read failed")
	}
	return nil
}

// Close tears down the channel, the poll timer and the lifecycle
// subscription. Idempotent; always safe to call.
func (s *ChatSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.teardown()
	return nil
}

func (s *ChatSession) teardown() {
	s.mu.Lock()
	channel := s.channel
	fallback := s.fallback
	unsubscribe := s.unsubscribe
	s.channel = nil
	s.unsubscribe = nil
	s.mu.Unlock()

	if channel != nil {
		channel.Close()
	}
	if fallback != nil {
		fallback.stop()
	}
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Messages returns a copy of the current ordered message list.
func (s *ChatSession) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message{}, s.messages...)
}

// Ownership returns the current conversation ownership.
func (s *ChatSession) Ownership() Ownership {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ownership
}

// CanReview reports whether the current user may review the counterpart.
func (s *ChatSession) CanReview() bool {
	return s.Ownership().CanReview
}

// ChannelState returns the delivery channel state, or StateDegraded when
// no channel exists.
func (s *ChatSession) ChannelState() ChannelState {
	s.mu.Lock()
	channel := s.channel
	s.mu.Unlock()
	if channel == nil {
		return StateDegraded
	}
	return channel.State()
}

// PollingActive reports whether the fallback loop is running.
func (s *ChatSession) PollingActive() bool {
	s.mu.Lock()
	fallback := s.fallback
	s.mu.Unlock()
	return fallback != nil && fallback.active()
}

// ============================================================================
// Optimistic send pipeline
// ============================================================================

// Send runs the optimistic pipeline for one outgoing message: the text is
// rendered immediately under a temporary identifier, then the remote
// insert either confirms it (temp entry swapped for the server row) or
// rolls it back (temp entry removed, original text handed to OnSendFailed
// for manual resubmission; there is no automatic retry).
//
// Concurrent sends are safe; each carries its own temporary identifier.
func (s *ChatSession) Send(ctx context.Context, text string) (tempID string, err error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ErrBlankMessage
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrChannelClosed
	}
	s.mu.Unlock()

	tempID = s.applyOptimisticSend(trimmed)

	serverMsg, err := s.client.Messages.Insert(ctx, s.userID, s.peerID, trimmed)
	if err != nil {
		s.reconcileSend(tempID, nil)
		s.emitSendFailed(tempID, trimmed, err)
		return tempID, err
	}

	s.reconcileSend(tempID, serverMsg)
	return tempID, nil
}

func (s *ChatSession) emitSendFailed(tempID, text string, err error) {
	s.handlerMu.RLock()
	handlers := append([]func(string, string, error){}, s.onSendFailed...)
	s.handlerMu.RUnlock()
	for _, h := range handlers {
		h(tempID, text, err)
	}
}

// ============================================================================
// Conversation state reducer
//
// The three input streams (initial fetch, realtime push, poll batches) and
// the optimistic pipeline all land here. Every operation holds the mutex,
// re-establishes the dedup and sort invariants, recomputes ownership from
// the resulting list, and publishes.
// ============================================================================

// applyInitialFetch replaces the list wholesale. Used once per Open.
func (s *ChatSession) applyInitialFetch(messages []Message) {
	s.replaceAll(messages)
}

// applyPollBatch replaces the list wholesale with a reconciliation fetch;
// identical contract to applyInitialFetch.
func (s *ChatSession) applyPollBatch(messages []Message) {
	s.replaceAll(messages)
}

func (s *ChatSession) replaceAll(messages []Message) {
	s.mu.Lock()
	// In-flight optimistic entries are not on the server yet; carry them
	// across the replace so a pending send cannot vanish mid-flight.
	pending := make([]Message, 0)
	for _, m := range s.messages {
		if isTempID(m.ID) && !containsID(messages, m.ID) {
			pending = append(pending, m)
		}
	}
	next := append(append([]Message{}, messages...), pending...)
	s.commitLocked(next)
	s.mu.Unlock()
	s.publish()
}

// applyPushInsert appends a realtime-delivered message unless its
// identifier is already present (push may duplicate a poll or fetch row).
func (s *ChatSession) applyPushInsert(msg Message) {
	s.mu.Lock()
	if containsID(s.messages, msg.ID) {
		s.mu.Unlock()
		return
	}
	s.commitLocked(append(s.messages, msg))
	s.mu.Unlock()
	s.publish()
}

// applyOptimisticSend appends a locally composed message under a fresh
// temporary identifier and returns that identifier for reconciliation.
func (s *ChatSession) applyOptimisticSend(text string) string {
	tempID := "local-" + uuid.NewString()
	msg := Message{
		ID:          tempID,
		SenderID:    s.userID,
		RecipientID: s.peerID,
		Content:     text,
		CreatedAt:   time.Now().UTC(),
	}
	s.mu.Lock()
	s.commitLocked(append(s.messages, msg))
	s.mu.Unlock()
	s.publish()
	return tempID
}

// reconcileSend resolves an optimistic entry: swap in the server row on
// success, remove the entry on failure. A send is never left in both
// states.
func (s *ChatSession) reconcileSend(tempID string, serverMsg *Message) {
	s.mu.Lock()
	next := make([]Message, 0, len(s.messages))
	replaced := false
	for _, m := range s.messages {
		if m.ID != tempID {
			next = append(next, m)
			continue
		}
		if serverMsg != nil && !containsID(s.messages, serverMsg.ID) {
			next = append(next, *serverMsg)
			replaced = true
		}
	}
	// The temp entry can be gone if a wholesale replace raced the
	// confirmation; the server row still has to land exactly once.
	if serverMsg != nil && !replaced && !containsID(next, serverMsg.ID) {
		next = append(next, *serverMsg)
	}
	if serverMsg != nil && serverMsg.CreatedAt.After(s.lastKnown) {
		s.lastKnown = serverMsg.CreatedAt
	}
	s.commitLocked(next)
	s.mu.Unlock()
	s.publish()
}

// commitLocked installs the next list: dedup by identifier, sort ascending
// by creation time (identifier as tie-break), advance the freshness
// marker, recompute ownership, persist confirmed rows. Caller holds s.mu.
func (s *ChatSession) commitLocked(next []Message) {
	seen := make(map[string]struct{}, len(next))
	deduped := make([]Message, 0, len(next))
	for _, m := range next {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		deduped = append(deduped, m)
	}

	sort.SliceStable(deduped, func(i, j int) bool {
		if !deduped[i].CreatedAt.Equal(deduped[j].CreatedAt) {
			return deduped[i].CreatedAt.Before(deduped[j].CreatedAt)
		}
		return deduped[i].ID < deduped[j].ID
	})

	s.messages = deduped
	for _, m := range deduped {
		if !isTempID(m.ID) && m.CreatedAt.After(s.lastKnown) {
			s.lastKnown = m.CreatedAt
		}
	}
	// Ownership is derived from the full list on every mutation, never
	// stored independently.
	s.ownership = ResolveOwnership(deduped, s.userID)

	if s.store != nil {
		confirmed := make([]Message, 0, len(deduped))
		for _, m := range deduped {
			if !isTempID(m.ID) {
				confirmed = append(confirmed, m)
			}
		}
		s.store.PutMessages(confirmed)
	}
}

func (s *ChatSession) publish() {
	s.mu.Lock()
	messages := append([]Message{}, s.messages...)
	ownership := s.ownership
	s.mu.Unlock()

	s.handlerMu.RLock()
	handlers := append([]func([]Message, Ownership){}, s.onUpdate...)
	s.handlerMu.RUnlock()
	for _, h := range handlers {
		h(messages, ownership)
	}
}

// ============================================================================
// Delivery supervision
// ============================================================================

// onChannelState supervises freshness: polling runs exactly when the push
// channel is not subscribed. Both may overlap for one transition instant;
// the reducer's idempotence makes that harmless.
func (s *ChatSession) onChannelState(state ChannelState) {
	s.mu.Lock()
	fallback := s.fallback
	closed := s.closed
	s.mu.Unlock()
	if closed || fallback == nil {
		return
	}

	switch state {
	case StateSubscribed:
		fallback.stop()
	case StateDegraded:
		s.log.Debug().Msg("push delivery degraded, starting poll fallback")
		fallback.start()
	}
}

// onAppState refreshes once when the app returns to the foreground while
// delivery is degraded; the poll loop handles the steady state.
func (s *ChatSession) onAppState(state AppState) {
	if state != AppActive {
		return
	}
	s.mu.Lock()
	fallback := s.fallback
	closed := s.closed
	s.mu.Unlock()
	if closed || fallback == nil || !fallback.active() {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.pollInterval*2)
		defer cancel()
		messages, err := s.fetchConversation(ctx)
		if err != nil {
			s.log.Warn().Err(err).Msg("foreground refresh failed")
			return
		}
		if fallback.fresher(messages) {
			s.applyPollBatch(messages)
		}
	}()
}

func (s *ChatSession) fetchConversation(ctx context.Context) ([]Message, error) {
	return s.client.Messages.ListWith(ctx, s.userID, s.peerID)
}

// freshness reports the marker consulted by the poll no-op guard.
func (s *ChatSession) freshness() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastKnown
}

// ============================================================================
// Helpers
// ============================================================================

func isTempID(id string) bool {
	return strings.HasPrefix(id, "local-")
}

func containsID(messages []Message, id string) bool {
	for _, m := range messages {
		if m.ID == id {
			return true
		}
	}
	return false
}
