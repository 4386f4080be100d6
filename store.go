package pawmate

import (
	"sort"
	"sync"
)

// MemoryStore is a goroutine-safe in-memory cache of message rows, keyed by
// identifier. Chat sessions persist confirmed messages into it so other
// surfaces (conversation list, warm restarts) can read without refetching.
type MemoryStore struct {
	mu       sync.RWMutex
	messages map[string]Message
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{messages: make(map[string]Message)}
}

// PutMessages upserts rows by identifier.
func (s *MemoryStore) PutMessages(msgs []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		s.messages[m.ID] = m
	}
}

// DeleteMessage removes a row.
func (s *MemoryStore) DeleteMessage(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, id)
}

// Conversation returns all cached messages between the two participants,
// either orientation, ascending by creation time.
func (s *MemoryStore) Conversation(userID, peerID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Message
	for _, m := range s.messages {
		if (m.SenderID == userID && m.RecipientID == peerID) ||
			(m.SenderID == peerID && m.RecipientID == userID) {
			result = append(result, m)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// Peers returns the distinct counterpart ids userID has messages with,
// most recent conversation first.
func (s *MemoryStore) Peers(userID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[string]Message)
	for _, m := range s.messages {
		var peer string
		switch userID {
		case m.SenderID:
			peer = m.RecipientID
		case m.RecipientID:
			peer = m.SenderID
		default:
			continue
		}
		if prev, ok := latest[peer]; !ok || m.CreatedAt.After(prev.CreatedAt) {
			latest[peer] = m
		}
	}

	peers := make([]string, 0, len(latest))
	for p := range latest {
		peers = append(peers, p)
	}
	sort.Slice(peers, func(i, j int) bool {
		return latest[peers[i]].CreatedAt.After(latest[peers[j]].CreatedAt)
	})
	return peers
}
