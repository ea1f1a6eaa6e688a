package provider

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/Chative-Retail-Assistant/agent/contract"
	llmx "github.com/tanpawarit/Chative-Retail-Assistant/agent/llm"
	openrouterx "github.com/tanpawarit/Chative-Retail-Assistant/pkg/openrouter"
)

// New builds the configured backend adapter for a role.
func New(ctx context.Context, cfg llmx.Config, role llmx.Role) (contractx.Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend() {
	case llmx.BackendOpenAI:
		orCfg := cfg.OpenRouterFor(role)
		client := openrouterx.NewClient(orCfg)
		if client == nil {
			return nil, fmt.Errorf("%w: openai api key is required", contractx.ErrValidation)
		}
		return NewOpenAI(client, orCfg.Model, orCfg.Temperature, cfg.MaxCompletionToken)
	case llmx.BackendGemini:
		modelName, temp := cfg.ModelFor(role)
		return NewGemini(ctx, GeminiConfig{
			APIKey:      cfg.APIKey,
			Backend:     cfg.GeminiBackend,
			Project:     cfg.GeminiProject,
			Location:    cfg.GeminiLocation,
			Model:       modelName,
			Temperature: temp,
			Timeout:     cfg.Timeout,
		})
	default:
		orCfg := cfg.OpenRouterFor(role)
		chatModel, err := orCfg.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: create %s model: %v", contractx.ErrProviderUnavailable, role, err)
		}
		return NewEino(chatModel)
	}
}
