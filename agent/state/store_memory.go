package state

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// MemoryStore keeps conversations in process. Contexts are stored encoded
// so callers never share mutable state with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	contexts map[string][]byte
	history  map[string][]Turn
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contexts: map[string][]byte{},
		history:  map[string][]Turn{},
	}
}

func (s *MemoryStore) LoadContext(ctx context.Context, conversationID string) (*Context, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, ErrInvalidConversation
	}
	s.mu.RLock()
	raw, ok := s.contexts[conversationID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrStateNotFound
	}
	var c Context
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("unmarshal context: %w", err)
	}
	return &c, nil
}

func (s *MemoryStore) SaveContext(ctx context.Context, c *Context) error {
	if c == nil {
		return ErrNilContext
	}
	if err := c.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}
	s.mu.Lock()
	s.contexts[c.ConversationID] = raw
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) AppendHistory(ctx context.Context, conversationID string, turn Turn) error {
	if strings.TrimSpace(conversationID) == "" {
		return ErrInvalidConversation
	}
	s.mu.Lock()
	s.history[conversationID] = append(s.history[conversationID], turn)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) History(ctx context.Context, conversationID string) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Turn(nil), s.history[conversationID]...), nil
}
