package orchestratornode

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Retail-Assistant/agent/contract"
	statex "github.com/tanpawarit/Chative-Retail-Assistant/agent/state"
)

const DegradedText = "Sorry, I encountered an error while handling your request. Please try again."

// Degrade ends a failed turn. The customer turn stays in history, a canned
// agent turn is appended and the internal error is only logged. Effects of
// tools that already ran (a placed order, a created return) are still
// reported through directives, data and events.
func Degrade(ctx context.Context, in *GraphState, mgr *statex.Manager, events Events) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	from := in.Phase
	if err := in.advance(PhaseDegraded); err != nil {
		return GraphOutput{}, err
	}

	agent := in.Agent.Name
	if agent == "" {
		agent = contractx.AgentOrchestrator
	}
	id := in.Context.ConversationID

	log.Ctx(ctx).Error().
		Err(in.Err).
		Str("agent", string(agent)).
		Str("intent", string(in.Classification.Intent)).
		Str("phase", string(from)).
		Int("iterations", in.Iterations).
		Msg("turn degraded")

	payload := turnPayload(in)
	if payload == nil {
		payload = map[string]any{}
	}
	payload["status"] = string(contractx.StatusFailed)
	turn := statex.Turn{
		ID:        uuid.NewString(),
		Role:      statex.TurnAgent,
		Text:      DegradedText,
		Agent:     string(agent),
		Intent:    string(in.Classification.Intent),
		Payload:   payload,
		CreatedAt: in.Now,
	}
	if _, appended, err := mgr.AppendTurn(ctx, id, turn); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("append degraded turn")
	} else {
		turn = appended
	}
	mgr.ClearScratch(id)

	publish(ctx, in, events)

	return GraphOutput{
		ConversationID: id,
		TurnID:         turn.ID,
		AgentName:      agent,
		Intent:         in.Classification.Intent,
		Text:           DegradedText,
		Data:           in.Data,
		Directives:     in.Directives,
		Status:         contractx.StatusFailed,
		ActionsTaken:   in.Actions,
		CreatedAt:      turn.CreatedAt,
	}, nil
}
