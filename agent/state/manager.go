package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Manager owns conversation contexts. Callers serialise work per
// conversation through Lanes; Manager itself only guards its scratch table.
type Manager struct {
	store      Store
	windowSize int
	now        func() time.Time

	mu      sync.Mutex
	scratch map[string]*Scratch
}

type ManagerOption func(*Manager)

func WithWindowSize(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.windowSize = n
		}
	}
}

func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func NewManager(store Store, opts ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	m := &Manager{
		store:      store,
		windowSize: DefaultWindowSize,
		now:        time.Now,
		scratch:    map[string]*Scratch{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

// Load returns the context for conversationID, creating it on first contact.
func (m *Manager) Load(ctx context.Context, conversationID string) (*Context, error) {
	id := strings.TrimSpace(conversationID)
	if id == "" {
		return nil, ErrInvalidConversation
	}

	c, err := m.store.LoadContext(ctx, id)
	switch {
	case errors.Is(err, ErrStateNotFound):
		c = NewContext(id, m.windowSize, m.now())
		if err := m.store.SaveContext(ctx, c); err != nil {
			return nil, fmt.Errorf("create context: %w", err)
		}
		log.Ctx(ctx).Debug().Str("conversation_id", id).Int("window_size", c.WindowSize).Msg("conversation created")
	case err != nil:
		return nil, fmt.Errorf("load context: %w", err)
	}

	c.scratch = m.scratchFor(id)
	return c, nil
}

// Snapshot records the caller-supplied cart, customer and page context.
func (m *Manager) Snapshot(ctx context.Context, conversationID string, snap Snapshot) (*Context, error) {
	c, err := m.Load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if customerID := strings.TrimSpace(snap.CustomerID); customerID != "" {
		c.CustomerID = customerID
		c.ProfileRef = customerID
	}
	c.Cart = append(c.Cart[:0:0], snap.Cart...)
	c.PageContext = strings.TrimSpace(snap.PageContext)
	c.UpdatedAt = m.now().UTC()
	if err := m.store.SaveContext(ctx, c); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	return c, nil
}

// AppendTurn persists turn to the full history and slides it into the window.
func (m *Manager) AppendTurn(ctx context.Context, conversationID string, turn Turn) (*Context, Turn, error) {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = m.now().UTC()
	}
	if err := turn.Validate(); err != nil {
		return nil, Turn{}, err
	}

	c, err := m.Load(ctx, conversationID)
	if err != nil {
		return nil, Turn{}, err
	}
	if err := m.store.AppendHistory(ctx, c.ConversationID, turn); err != nil {
		return nil, Turn{}, fmt.Errorf("append history: %w", err)
	}

	c.push(turn)
	c.UpdatedAt = turn.CreatedAt
	if err := m.store.SaveContext(ctx, c); err != nil {
		return nil, Turn{}, fmt.Errorf("save context: %w", err)
	}
	return c, turn, nil
}

func (m *Manager) UpdateScratch(conversationID, key string, value any) error {
	id := strings.TrimSpace(conversationID)
	if id == "" {
		return ErrInvalidConversation
	}
	m.scratchFor(id).Put(key, value)
	return nil
}

// ClearScratch drops every scratch slot of the conversation.
func (m *Manager) ClearScratch(conversationID string) {
	m.mu.Lock()
	s, ok := m.scratch[conversationID]
	delete(m.scratch, conversationID)
	m.mu.Unlock()
	if ok {
		s.clear()
	}
}

func (m *Manager) History(ctx context.Context, conversationID string) ([]Turn, error) {
	id := strings.TrimSpace(conversationID)
	if id == "" {
		return nil, ErrInvalidConversation
	}
	return m.store.History(ctx, id)
}

func (m *Manager) scratchFor(id string) *Scratch {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scratch[id]
	if !ok {
		s = NewScratch()
		m.scratch[id] = s
	}
	return s
}
