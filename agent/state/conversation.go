package state

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	contractx "github.com/tanpawarit/Chative-Retail-Assistant/agent/contract"
)

var (
	ErrStateNotFound       = errors.New("conversation state not found")
	ErrNilContext          = errors.New("conversation context is nil")
	ErrInvalidConversation = errors.New("conversation id is empty")
	ErrInvalidTurn         = errors.New("turn is invalid")
)

const DefaultWindowSize = 10

type TurnRole string

const (
	TurnCustomer TurnRole = "customer"
	TurnAgent    TurnRole = "agent"
)

// Turn is immutable once appended.
type Turn struct {
	ID        string         `json:"id"`
	Role      TurnRole       `json:"role"`
	Text      string         `json:"text"`
	Agent     string         `json:"agent,omitempty"`
	Intent    string         `json:"intent,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func (t Turn) Validate() error {
	switch t.Role {
	case TurnCustomer:
		if t.Agent != "" {
			return fmt.Errorf("%w: customer turn must not name an agent", ErrInvalidTurn)
		}
	case TurnAgent:
		if strings.TrimSpace(t.Agent) == "" {
			return fmt.Errorf("%w: agent turn requires agent name", ErrInvalidTurn)
		}
	default:
		return fmt.Errorf("%w: unknown role %q", ErrInvalidTurn, t.Role)
	}
	if strings.TrimSpace(t.Text) == "" {
		return fmt.Errorf("%w: text is empty", ErrInvalidTurn)
	}
	return nil
}

// Snapshot is the caller-supplied, untrusted per-request view of the shopper.
type Snapshot struct {
	CustomerID  string
	Cart        []contractx.CartItem
	PageContext string
}

// Context is the working state of one conversation. Window holds at most
// WindowSize turns; WindowSize is fixed when the conversation is created.
type Context struct {
	ConversationID string               `json:"conversation_id"`
	CustomerID     string               `json:"customer_id,omitempty"`
	ProfileRef     string               `json:"profile_ref,omitempty"`
	WindowSize     int                  `json:"window_size"`
	Window         []Turn               `json:"window"`
	Cart           []contractx.CartItem `json:"cart,omitempty"`
	PageContext    string               `json:"page_context,omitempty"`
	LastAgent      string               `json:"last_agent,omitempty"`
	TurnCount      int                  `json:"turn_count"`
	Version        int                  `json:"version"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`

	scratch *Scratch
}

func NewContext(conversationID string, windowSize int, now time.Time) *Context {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Context{
		ConversationID: conversationID,
		WindowSize:     windowSize,
		Window:         []Turn{},
		Version:        1,
		CreatedAt:      now.UTC(),
		UpdatedAt:      now.UTC(),
	}
}

func (c *Context) Validate() error {
	if c == nil {
		return ErrNilContext
	}
	if strings.TrimSpace(c.ConversationID) == "" {
		return ErrInvalidConversation
	}
	if c.WindowSize <= 0 {
		return fmt.Errorf("window size must be > 0, got %d", c.WindowSize)
	}
	if len(c.Window) > c.WindowSize {
		return fmt.Errorf("window holds %d turns, bound is %d", len(c.Window), c.WindowSize)
	}
	return nil
}

// push appends t and drops the oldest turns beyond WindowSize.
func (c *Context) push(t Turn) {
	c.Window = append(c.Window, t)
	if over := len(c.Window) - c.WindowSize; over > 0 {
		trimmed := make([]Turn, c.WindowSize)
		copy(trimmed, c.Window[over:])
		c.Window = trimmed
	}
	c.TurnCount++
	if t.Role == TurnAgent {
		c.LastAgent = t.Agent
	}
}

func (c *Context) Scratch() *Scratch {
	if c.scratch == nil {
		c.scratch = NewScratch()
	}
	return c.scratch
}

// Scratch holds values written by tool calls during the current turn only.
type Scratch struct {
	mu     sync.Mutex
	values map[string]any
}

var _ contractx.ScratchWriter = (*Scratch)(nil)

func NewScratch() *Scratch {
	return &Scratch{values: map[string]any{}}
}

func (s *Scratch) Put(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *Scratch) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *Scratch) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}

func (s *Scratch) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.values)
}
