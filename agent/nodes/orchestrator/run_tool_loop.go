package orchestratornode

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Retail-Assistant/agent/contract"
)

const (
	DefaultMaxIterations = 4
	DefaultCallTimeout   = 30 * time.Second
)

const (
	ActionCompleted  = "completed"
	ActionNeedsInput = "needs_input"
	ActionFailed     = "failed"
)

// Providers resolves the backend an agent completes against.
type Providers interface {
	For(agent contractx.AgentName) contractx.Provider
}

type LoopConfig struct {
	MaxIterations int
	CallTimeout   time.Duration
}

func (c LoopConfig) withDefaults() LoopConfig {
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	return c
}

// RunToolLoop exchanges with the provider until it answers without tool
// calls or the iteration cap is reached.
func RunToolLoop(
	ctx context.Context,
	in *GraphState,
	providers Providers,
	tools contractx.ToolGateway,
	cfg LoopConfig,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if err := in.advance(PhaseToolLoop); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	provider := providers.For(in.Agent.Name)
	if provider == nil {
		return in.fail(fmt.Errorf("%w: no provider for agent %s", contractx.ErrValidation, in.Agent.Name)), nil
	}

	inv := contractx.Invocation{
		ConversationID: in.Context.ConversationID,
		CustomerID:     in.Context.CustomerID,
		Agent:          in.Agent.Name,
		Message:        in.Req.Message,
		Cart:           in.Context.Cart,
		PageContext:    in.Context.PageContext,
		Scratch:        in.Context.Scratch(),
	}
	logger := log.Ctx(ctx).With().Str("agent", string(in.Agent.Name)).Logger()

	for in.Iterations < cfg.MaxIterations {
		in.Iterations++

		callCtx, cancel := context.WithTimeout(ctx, cfg.CallTimeout)
		out, err := provider.Complete(callCtx, contractx.CompletionRequest{
			SystemPrompt: in.SystemPrompt,
			Window:       in.Exchange,
			Tools:        in.Tools,
		})
		cancel()
		if err != nil {
			return in.fail(fmt.Errorf("iteration %d: %w", in.Iterations, providerErr(err))), nil
		}

		if len(out.ToolCalls) == 0 {
			text := strings.TrimSpace(out.Text)
			if text == "" {
				return in.fail(fmt.Errorf("%w: empty final answer", contractx.ErrProviderContractViolation)), nil
			}
			in.Reply = text
			return in, nil
		}

		in.Exchange = append(in.Exchange, contractx.Message{
			Role:      contractx.RoleAssistant,
			Content:   out.Text,
			ToolCalls: out.ToolCalls,
		})
		for _, call := range out.ToolCalls {
			callCtx, cancel := context.WithTimeout(ctx, cfg.CallTimeout)
			res := executeCall(callCtx, in, inv, tools, call)
			cancel()
			if res.Error != "" {
				logger.Warn().
					Err(contractx.ErrToolExecutionFailed).
					Str("tool", call.Name).
					Str("call_id", call.ID).
					Str("detail", res.Error).
					Msg("tool call returned an error result")
			}
			in.record(res)
			in.Exchange = append(in.Exchange, contractx.Message{
				Role:       contractx.RoleTool,
				Content:    encodeResult(res),
				ToolCallID: call.ID,
				ToolName:   call.Name,
			})
		}
	}
	return in.fail(fmt.Errorf("%w: %d provider exchanges", contractx.ErrToolLoopExceeded, cfg.MaxIterations)), nil
}

func executeCall(
	ctx context.Context,
	in *GraphState,
	inv contractx.Invocation,
	tools contractx.ToolGateway,
	call contractx.ToolCall,
) contractx.ToolResult {
	if !in.Agent.Allows(call.Name) {
		return contractx.ToolResult{
			CallID: call.ID,
			Tool:   call.Name,
			Error:  fmt.Sprintf("tool %s is not available to the %s agent", call.Name, in.Agent.Name),
		}
	}
	return tools.Execute(ctx, inv, call)
}

// record folds a tool result into the turn: its action, directives and data.
func (s *GraphState) record(res contractx.ToolResult) {
	status := ActionCompleted
	switch {
	case res.Error != "":
		status = ActionFailed
	case res.NeedsInput:
		status = ActionNeedsInput
		s.NeedsInput = true
	}
	s.Actions = append(s.Actions, contractx.Action{Tool: res.Tool, Status: status})

	for _, d := range res.Directives {
		if !hasDirective(s.Directives, d) {
			s.Directives = append(s.Directives, d)
		}
	}
	if len(res.Data) > 0 {
		if s.Data == nil {
			s.Data = make(map[string]any, len(res.Data))
		}
		for k, v := range res.Data {
			s.Data[k] = v
		}
	}
}

func hasDirective(list []contractx.Directive, d contractx.Directive) bool {
	for _, x := range list {
		if x == d {
			return true
		}
	}
	return false
}

func encodeResult(res contractx.ToolResult) string {
	b, err := json.Marshal(res)
	if err != nil {
		return fmt.Sprintf(`{"call_id":%q,"tool":%q,"error":"result could not be encoded"}`, res.CallID, res.Tool)
	}
	return string(b)
}
