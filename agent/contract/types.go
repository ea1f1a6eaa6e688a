package contract

import (
	"time"

	"github.com/invopop/jsonschema"
)

type AgentName string

const (
	AgentOrchestrator AgentName = "orchestrator"
	AgentFallback     AgentName = "concierge"
)

type Intent string

const (
	IntentStyle     Intent = "style"
	IntentSearch    Intent = "search"
	IntentLookbook  Intent = "lookbook"
	IntentCheckout  Intent = "checkout"
	IntentReturns   Intent = "returns"
	IntentRecommend Intent = "recommend"
	IntentFallback  Intent = "fallback"
)

// Intents is the closed label set the router may produce.
var Intents = []Intent{
	IntentStyle,
	IntentSearch,
	IntentLookbook,
	IntentCheckout,
	IntentReturns,
	IntentRecommend,
	IntentFallback,
}

func ParseIntent(label string) (Intent, bool) {
	for _, in := range Intents {
		if string(in) == label {
			return in, true
		}
	}
	return "", false
}

type Classification struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Ambiguous  bool    `json:"ambiguous,omitempty"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one provider-visible entry of the exchange.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
}

type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type ToolSpec struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
}

type CompletionRequest struct {
	SystemPrompt string
	Window       []Message
	Tools        []ToolSpec
}

type Completion struct {
	Text      string
	ToolCalls []ToolCall
}

type Directive string

const (
	DirectiveClearCart       Directive = "clear_cart"
	DirectiveOpenReturnsFlow Directive = "open_returns_flow"
	DirectiveConfirmOrder    Directive = "confirm_order"
	DirectiveConfirmReturn   Directive = "confirm_return"
)

type ToolResult struct {
	CallID     string         `json:"call_id"`
	Tool       string         `json:"tool"`
	Result     any            `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
	NeedsInput bool           `json:"needs_input,omitempty"`
	Data       map[string]any `json:"-"`
	Directives []Directive    `json:"-"`
}

type Action struct {
	Tool   string `json:"tool"`
	Status string `json:"status"`
}

type ResponseStatus string

const (
	StatusAnswered      ResponseStatus = "answered"
	StatusNeedsFollowup ResponseStatus = "needs_followup"
	StatusFailed        ResponseStatus = "failed"
)

type CartItem struct {
	ProductID string  `json:"product_id"`
	SKUID     string  `json:"sku_id,omitempty"`
	Name      string  `json:"name,omitempty"`
	Color     string  `json:"color,omitempty"`
	Size      string  `json:"size,omitempty"`
	UnitPrice float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

type ChatRequest struct {
	ConversationID string     `json:"conversation_id,omitempty"`
	CustomerID     string     `json:"customer_id,omitempty"`
	Message        string     `json:"message"`
	CartItems      []CartItem `json:"cart_items,omitempty"`
	PageContext    string     `json:"page_context,omitempty"`
}

type AgentResponse struct {
	ConversationID string         `json:"conversation_id"`
	TurnID         string         `json:"turn_id"`
	AgentName      AgentName      `json:"agent_name"`
	Intent         Intent         `json:"intent,omitempty"`
	Text           string         `json:"response"`
	Data           map[string]any `json:"data,omitempty"`
	Directives     []Directive    `json:"directives,omitempty"`
	Status         ResponseStatus `json:"status"`
	ActionsTaken   []Action       `json:"actions_taken,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
