package provider

import (
	"context"
	"errors"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/Chative-Retail-Assistant/agent/contract"
)

// Eino adapts an eino ToolCallingChatModel (OpenRouter by default).
// Tool arguments arrive as JSON strings.
type Eino struct {
	model     einomodel.ToolCallingChatModel
	validator *ArgumentValidator
}

var _ contractx.Provider = (*Eino)(nil)

func NewEino(m einomodel.ToolCallingChatModel) (*Eino, error) {
	if m == nil {
		return nil, errors.New("chat model is required")
	}
	return &Eino{model: m, validator: NewArgumentValidator()}, nil
}

func (p *Eino) Complete(ctx context.Context, req contractx.CompletionRequest) (contractx.Completion, error) {
	chatModel := p.model
	if len(req.Tools) > 0 {
		infos := make([]*schema.ToolInfo, 0, len(req.Tools))
		for _, t := range req.Tools {
			infos = append(infos, einoToolInfo(t.Name, t.Description, t.Parameters))
		}
		bound, err := p.model.WithTools(infos)
		if err != nil {
			return contractx.Completion{}, fmt.Errorf("%w: bind tools: %v", contractx.ErrProviderContractViolation, err)
		}
		chatModel = bound
	}

	msg, err := chatModel.Generate(ctx, einoMessages(req))
	if err != nil {
		return contractx.Completion{}, unavailable("eino", err)
	}
	if msg == nil {
		return contractx.Completion{}, fmt.Errorf("%w: empty model response", contractx.ErrProviderContractViolation)
	}

	calls := make([]rawCall, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		calls = append(calls, rawCall{
			ID:       tc.ID,
			Name:     tc.Function.Name,
			ArgsJSON: tc.Function.Arguments,
		})
	}
	return normalize(msg.Content, calls, req.Tools, p.validator)
}

func einoMessages(req contractx.CompletionRequest) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(req.Window)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, schema.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Window {
		switch m.Role {
		case contractx.RoleUser:
			msgs = append(msgs, schema.UserMessage(m.Content))
		case contractx.RoleAssistant:
			var calls []schema.ToolCall
			for _, tc := range m.ToolCalls {
				calls = append(calls, schema.ToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: schema.FunctionCall{
						Name:      tc.Name,
						Arguments: encodeArgs(tc.Args),
					},
				})
			}
			msgs = append(msgs, schema.AssistantMessage(m.Content, calls))
		case contractx.RoleTool:
			msgs = append(msgs, schema.ToolMessage(m.Content, m.ToolCallID))
		}
	}
	return msgs
}
