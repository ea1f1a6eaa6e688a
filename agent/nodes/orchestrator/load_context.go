package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Retail-Assistant/agent/contract"
	statex "github.com/tanpawarit/Chative-Retail-Assistant/agent/state"
)

// Profiles renders a customer's saved style profile for persona prompts.
type Profiles interface {
	ProfileSummary(ctx context.Context, customerID string) (string, error)
}

// LoadContext records the request snapshot and the customer turn. A
// storage failure here aborts the turn before anything is answered.
func LoadContext(ctx context.Context, in *GraphState, mgr *statex.Manager, profiles Profiles) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	id := in.Req.ConversationID
	if _, err := mgr.Snapshot(ctx, id, statex.Snapshot{
		CustomerID:  in.Req.CustomerID,
		Cart:        in.Req.CartItems,
		PageContext: in.Req.PageContext,
	}); err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}

	c, turn, err := mgr.AppendTurn(ctx, id, statex.Turn{
		Role:      statex.TurnCustomer,
		Text:      in.Req.Message,
		CreatedAt: in.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("append customer turn: %w", err)
	}
	in.Context = c
	in.CustomerTurn = turn

	if profiles != nil && c.CustomerID != "" {
		summary, err := profiles.ProfileSummary(ctx, c.CustomerID)
		if err != nil {
			log.Ctx(ctx).Debug().Err(err).Str("customer_id", c.CustomerID).Msg("style profile unavailable")
		}
		in.ProfileSummary = summary
	}
	return in, nil
}
