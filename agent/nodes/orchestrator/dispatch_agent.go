package orchestratornode

import (
	"context"
	"fmt"

	"github.com/tanpawarit/Chative-Retail-Assistant/agent/agents/specialist"
	contractx "github.com/tanpawarit/Chative-Retail-Assistant/agent/contract"
	promptx "github.com/tanpawarit/Chative-Retail-Assistant/agent/prompt"
)

type Agents interface {
	ForIntent(in contractx.Intent) (specialist.Entry, error)
}

// DispatchAgent selects the agent for the classified intent and prepares its
// persona prompt, tool specs and the initial exchange.
func DispatchAgent(ctx context.Context, in *GraphState, agents Agents, tools contractx.ToolGateway) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if err := in.advance(PhaseDispatched); err != nil {
		return nil, err
	}

	entry, err := agents.ForIntent(in.Classification.Intent)
	if err != nil {
		return in.fail(fmt.Errorf("dispatch: %w", err)), nil
	}
	in.Agent = entry

	system, err := promptx.Render(ctx, entry.Prompt, promptx.Vars{
		CustomerID:     in.Context.CustomerID,
		CartSummary:    CartSummary(in.Context.Cart),
		PageContext:    in.Context.PageContext,
		ProfileSummary: in.ProfileSummary,
	})
	if err != nil {
		return in.fail(fmt.Errorf("dispatch %s: %w", entry.Name, err)), nil
	}
	specs, err := tools.Specs(entry.Tools)
	if err != nil {
		return in.fail(fmt.Errorf("dispatch %s: %w", entry.Name, err)), nil
	}

	in.SystemPrompt = system
	in.Tools = specs
	in.Exchange = windowMessages(in.Context.Window)
	return in, nil
}
