package orchestratornode

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tanpawarit/Chative-Retail-Assistant/agent/agents/specialist"
	contractx "github.com/tanpawarit/Chative-Retail-Assistant/agent/contract"
	statex "github.com/tanpawarit/Chative-Retail-Assistant/agent/state"
)

var (
	ErrInvalidMessage      = errors.New("message is invalid")
	ErrInvalidConversation = statex.ErrInvalidConversation
)

const MaxMessageLength = 4000

type GraphInput = contractx.ChatRequest

type GraphOutput = contractx.AgentResponse

type GraphState struct {
	Req   contractx.ChatRequest
	Now   time.Time
	Phase Phase

	Context        *statex.Context
	CustomerTurn   statex.Turn
	ProfileSummary string

	Classification contractx.Classification
	Agent          specialist.Entry
	SystemPrompt   string
	Tools          []contractx.ToolSpec
	Exchange       []contractx.Message

	Reply      string
	Iterations int
	NeedsInput bool
	Actions    []contractx.Action
	Directives []contractx.Directive
	Data       map[string]any

	Err error
}

// Failed reports whether the turn must degrade.
func (s *GraphState) Failed() bool {
	return s != nil && s.Err != nil
}

func (s *GraphState) fail(err error) *GraphState {
	if s.Err == nil {
		s.Err = err
	}
	return s
}

// CheckRequest rejects requests that never enter the state machine.
func CheckRequest(in GraphInput) error {
	if strings.TrimSpace(in.ConversationID) == "" {
		return ErrInvalidConversation
	}
	text := strings.TrimSpace(in.Message)
	if text == "" {
		return fmt.Errorf("%w: message is empty", ErrInvalidMessage)
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return fmt.Errorf("%w: message exceeds %d characters", ErrInvalidMessage, MaxMessageLength)
	}
	for i, item := range in.CartItems {
		if strings.TrimSpace(item.ProductID) == "" {
			return fmt.Errorf("%w: cart item %d has no product id", ErrInvalidMessage, i)
		}
		if item.Quantity < 0 || item.UnitPrice < 0 {
			return fmt.Errorf("%w: cart item %d has a negative quantity or price", ErrInvalidMessage, i)
		}
	}
	return nil
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	if err := CheckRequest(in); err != nil {
		return nil, err
	}
	in.ConversationID = strings.TrimSpace(in.ConversationID)
	in.CustomerID = strings.TrimSpace(in.CustomerID)
	in.Message = strings.TrimSpace(in.Message)

	return &GraphState{
		Req:   in,
		Now:   nowFn().UTC(),
		Phase: PhaseReceived,
	}, nil
}
