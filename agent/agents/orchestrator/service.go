package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/Chative-Retail-Assistant/agent/agents/specialist"
	contractx "github.com/tanpawarit/Chative-Retail-Assistant/agent/contract"
	nodex "github.com/tanpawarit/Chative-Retail-Assistant/agent/nodes/orchestrator"
	statex "github.com/tanpawarit/Chative-Retail-Assistant/agent/state"
	logx "github.com/tanpawarit/Chative-Retail-Assistant/pkg/logger"
)

var (
	ErrInvalidMessage      = nodex.ErrInvalidMessage
	ErrInvalidConversation = nodex.ErrInvalidConversation
)

type Config struct {
	RouterConfidenceThreshold float64       `envconfig:"ROUTER_CONFIDENCE_THRESHOLD" default:"0.55"`
	RouterTieEpsilon          float64       `envconfig:"ROUTER_TIE_EPSILON" default:"0.05"`
	ToolLoopMaxIterations     int           `envconfig:"TOOL_LOOP_MAX_ITERATIONS" default:"4"`
	ProviderTimeout           time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"30s"`
	WindowSize                int           `envconfig:"WINDOW_SIZE" default:"10"`
}

func (c Config) Validate() error {
	if c.RouterConfidenceThreshold <= 0 || c.RouterConfidenceThreshold > 1 {
		return fmt.Errorf("%w: router confidence threshold must be in (0,1]", contractx.ErrValidation)
	}
	if c.RouterTieEpsilon < 0 || c.RouterTieEpsilon >= 1 {
		return fmt.Errorf("%w: router tie epsilon must be in [0,1)", contractx.ErrValidation)
	}
	if c.ToolLoopMaxIterations <= 0 {
		return fmt.Errorf("%w: tool loop max iterations must be > 0", contractx.ErrValidation)
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("%w: provider timeout must be > 0", contractx.ErrValidation)
	}
	return nil
}

type Deps struct {
	State      *statex.Manager
	Lanes      *statex.Lanes
	Classifier contractx.Classifier
	Agents     *specialist.Registry
	Tools      contractx.ToolGateway

	// Provider serves every agent without an entry in AgentProviders.
	Provider       contractx.Provider
	AgentProviders map[contractx.AgentName]contractx.Provider

	Profiles nodex.Profiles
	Events   nodex.Events
}

type Orchestrator struct {
	state      *statex.Manager
	lanes      *statex.Lanes
	classifier contractx.Classifier
	agents     *specialist.Registry
	tools      contractx.ToolGateway
	providers  providerSet
	profiles   nodex.Profiles
	events     nodex.Events
	loop       nodex.LoopConfig

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	now func() time.Time
}

func New(deps Deps, cfg Config) (*Orchestrator, error) {
	if deps.State == nil {
		return nil, errors.New("state manager is required")
	}
	if deps.Classifier == nil {
		return nil, errors.New("intent classifier is required")
	}
	if deps.Agents == nil {
		return nil, errors.New("agent registry is required")
	}
	if deps.Tools == nil {
		return nil, errors.New("tool gateway is required")
	}
	if deps.Provider == nil {
		return nil, errors.New("specialist provider is required")
	}
	if deps.Lanes == nil {
		deps.Lanes = statex.NewLanes()
	}

	o := &Orchestrator{
		state:      deps.State,
		lanes:      deps.Lanes,
		classifier: deps.Classifier,
		agents:     deps.Agents,
		tools:      deps.Tools,
		providers:  providerSet{fallback: deps.Provider, byAgent: deps.AgentProviders},
		profiles:   deps.Profiles,
		events:     deps.Events,
		loop: nodex.LoopConfig{
			MaxIterations: cfg.ToolLoopMaxIterations,
			CallTimeout:   cfg.ProviderTimeout,
		},
		now: time.Now,
	}

	graphRunner, err := o.compileChatGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// ConversationID picks the conversation a request belongs to: the given id,
// else one per known customer, else a fresh one.
func ConversationID(req contractx.ChatRequest) string {
	if id := strings.TrimSpace(req.ConversationID); id != "" {
		return id
	}
	if customerID := strings.TrimSpace(req.CustomerID); customerID != "" {
		return "customer:" + customerID
	}
	return uuid.NewString()
}

// Chat runs one turn. Turns of the same conversation run one at a time in
// arrival order.
func (o *Orchestrator) Chat(ctx context.Context, req contractx.ChatRequest) (contractx.AgentResponse, error) {
	req.ConversationID = ConversationID(req)
	if err := nodex.CheckRequest(req); err != nil {
		return contractx.AgentResponse{}, err
	}

	ctx = logx.With(ctx, "conversation_id", req.ConversationID, "customer_id", strings.TrimSpace(req.CustomerID))
	release, err := o.lanes.Acquire(ctx, req.ConversationID)
	if err != nil {
		return contractx.AgentResponse{}, fmt.Errorf("wait for conversation lane: %w", err)
	}
	defer release()

	out, err := o.graphRunner.Invoke(ctx, req)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("chat turn aborted")
		return contractx.AgentResponse{}, err
	}
	return out, nil
}

// Status reports every registered agent as active.
func (o *Orchestrator) Status() map[string]string {
	out := make(map[string]string)
	for _, e := range o.agents.Entries() {
		out[string(e.Name)] = "active"
	}
	return out
}

// Agents returns the registry the orchestrator dispatches to.
func (o *Orchestrator) Agents() *specialist.Registry {
	return o.agents
}

type providerSet struct {
	fallback contractx.Provider
	byAgent  map[contractx.AgentName]contractx.Provider
}

func (p providerSet) For(agent contractx.AgentName) contractx.Provider {
	if prov, ok := p.byAgent[agent]; ok && prov != nil {
		return prov
	}
	return p.fallback
}
