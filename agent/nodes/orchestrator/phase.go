package orchestratornode

import (
	"fmt"

	contractx "github.com/tanpawarit/Chative-Retail-Assistant/agent/contract"
)

// Phase is the position of a turn in its state machine.
type Phase string

const (
	PhaseReceived    Phase = "received"
	PhaseClassifying Phase = "classifying"
	PhaseDispatched  Phase = "dispatched"
	PhaseToolLoop    Phase = "tool_loop"
	PhaseResponding  Phase = "responding"
	PhaseDone        Phase = "done"
	PhaseDegraded    Phase = "degraded"
)

var transitions = map[Phase][]Phase{
	PhaseReceived:    {PhaseClassifying, PhaseDegraded},
	PhaseClassifying: {PhaseDispatched, PhaseDegraded},
	PhaseDispatched:  {PhaseToolLoop, PhaseDegraded},
	PhaseToolLoop:    {PhaseResponding, PhaseDegraded},
	PhaseResponding:  {PhaseDone, PhaseDegraded},
}

func CanTransition(from, to Phase) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves p.
func (p Phase) Terminal() bool {
	return len(transitions[p]) == 0
}

func (s *GraphState) advance(to Phase) error {
	if !CanTransition(s.Phase, to) {
		return fmt.Errorf("%w: invalid turn transition %s -> %s", contractx.ErrValidation, s.Phase, to)
	}
	s.Phase = to
	return nil
}
