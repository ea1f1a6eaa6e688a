package orchestratornode

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Retail-Assistant/agent/contract"
	statex "github.com/tanpawarit/Chative-Retail-Assistant/agent/state"
)

// Events publishes commerce events produced by a turn.
type Events interface {
	Publish(ctx context.Context, event string, payload map[string]any) error
}

const (
	EventOrderPlaced   = "order.placed"
	EventReturnCreated = "return.created"
)

func Respond(ctx context.Context, in *GraphState, mgr *statex.Manager, events Events) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if err := in.advance(PhaseResponding); err != nil {
		return GraphOutput{}, err
	}

	status := contractx.StatusAnswered
	if in.NeedsInput || strings.HasSuffix(in.Reply, "?") {
		status = contractx.StatusNeedsFollowup
	}

	id := in.Context.ConversationID
	turn := statex.Turn{
		ID:        uuid.NewString(),
		Role:      statex.TurnAgent,
		Text:      in.Reply,
		Agent:     string(in.Agent.Name),
		Intent:    string(in.Classification.Intent),
		Payload:   turnPayload(in),
		CreatedAt: in.Now,
	}
	// The answer is returned even when the history write fails.
	if _, appended, err := mgr.AppendTurn(ctx, id, turn); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("turn_id", turn.ID).Msg("append agent turn")
	} else {
		turn = appended
	}
	mgr.ClearScratch(id)
	if err := in.advance(PhaseDone); err != nil {
		return GraphOutput{}, err
	}

	publish(ctx, in, events)

	log.Ctx(ctx).Info().
		Str("turn_id", turn.ID).
		Str("agent", string(in.Agent.Name)).
		Str("intent", string(in.Classification.Intent)).
		Str("status", string(status)).
		Int("iterations", in.Iterations).
		Int("tool_calls", len(in.Actions)).
		Msg("turn answered")

	return GraphOutput{
		ConversationID: id,
		TurnID:         turn.ID,
		AgentName:      in.Agent.Name,
		Intent:         in.Classification.Intent,
		Text:           in.Reply,
		Data:           in.Data,
		Directives:     in.Directives,
		Status:         status,
		ActionsTaken:   in.Actions,
		CreatedAt:      turn.CreatedAt,
	}, nil
}

func turnPayload(in *GraphState) map[string]any {
	if len(in.Actions) == 0 && len(in.Directives) == 0 && len(in.Data) == 0 {
		return nil
	}
	p := map[string]any{}
	if len(in.Actions) > 0 {
		p["actions"] = in.Actions
	}
	if len(in.Directives) > 0 {
		p["directives"] = in.Directives
	}
	if len(in.Data) > 0 {
		p["data"] = in.Data
	}
	return p
}

// publish never fails the turn; the order or return already exists.
func publish(ctx context.Context, in *GraphState, events Events) {
	if events == nil || len(in.Data) == 0 {
		return
	}
	base := map[string]any{
		"conversation_id": in.Context.ConversationID,
		"customer_id":     in.Context.CustomerID,
	}
	emit := func(event string, keys ...string) {
		payload := make(map[string]any, len(base)+len(keys))
		for k, v := range base {
			payload[k] = v
		}
		for _, k := range keys {
			if v, ok := in.Data[k]; ok {
				payload[k] = v
			}
		}
		if err := events.Publish(ctx, event, payload); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("event", event).Msg("publish event failed")
		}
	}
	if placed, _ := in.Data["order_placed"].(bool); placed {
		emit(EventOrderPlaced, "order_number", "total")
	}
	if created, _ := in.Data["return_created"].(bool); created {
		emit(EventReturnCreated, "return_id", "order_number")
	}
}
