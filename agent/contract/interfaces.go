package contract

import "context"

// Provider is the backend-neutral completion contract.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

type Classifier interface {
	Classify(ctx context.Context, message string, summary string) (Classification, error)
}

type ToolGateway interface {
	Specs(names []string) ([]ToolSpec, error)
	Execute(ctx context.Context, inv Invocation, call ToolCall) ToolResult
}

// Invocation carries the per-turn, read-only view tools execute against.
type Invocation struct {
	ConversationID string
	CustomerID     string
	Agent          AgentName
	Message        string
	Cart           []CartItem
	PageContext    string
	Scratch        ScratchWriter
}

type ScratchWriter interface {
	Put(key string, value any)
	Get(key string) (any, bool)
}
