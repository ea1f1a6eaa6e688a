package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Retail-Assistant/agent/contract"
	openrouterx "github.com/tanpawarit/Chative-Retail-Assistant/pkg/openrouter"
)

type Backend string

const (
	BackendOpenRouter Backend = "openrouter"
	BackendOpenAI     Backend = "openai"
	BackendGemini     Backend = "gemini"
)

// Role selects which model overrides apply.
type Role string

const (
	RoleRouter     Role = "router"
	RoleSpecialist Role = "specialist"
)

type Config struct {
	Provider           string        `envconfig:"PROVIDER" split_words:"true" default:"openrouter"`
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	RouterModel           string  `envconfig:"ROUTER_MODEL" split_words:"true"`
	SpecialistModel       string  `envconfig:"SPECIALIST_MODEL" split_words:"true"`
	RouterTemperature     float32 `envconfig:"ROUTER_TEMPERATURE" split_words:"true" default:"0"`
	SpecialistTemperature float32 `envconfig:"SPECIALIST_TEMPERATURE" split_words:"true" default:"-1"`
	GeminiBackend         string  `envconfig:"GEMINI_BACKEND" split_words:"true"`
	GeminiProject         string  `envconfig:"GEMINI_PROJECT" split_words:"true"`
	GeminiLocation        string  `envconfig:"GEMINI_LOCATION" split_words:"true"`
}

func (c Config) Backend() Backend {
	switch Backend(strings.ToLower(strings.TrimSpace(c.Provider))) {
	case BackendOpenAI:
		return BackendOpenAI
	case BackendGemini:
		return BackendGemini
	default:
		return BackendOpenRouter
	}
}

func (c Config) Validate() error {
	switch Backend(strings.ToLower(strings.TrimSpace(c.Provider))) {
	case "", BackendOpenRouter, BackendOpenAI, BackendGemini:
	default:
		return fmt.Errorf("%w: unsupported llm provider %q", contractx.ErrValidation, c.Provider)
	}
	if strings.TrimSpace(c.APIKey) == "" && c.Backend() != BackendGemini {
		return fmt.Errorf("%w: llm api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// ModelFor resolves the model name and temperature for a role.
func (c Config) ModelFor(role Role) (string, float32) {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	switch role {
	case RoleRouter:
		if v := strings.TrimSpace(c.RouterModel); v != "" {
			modelName = v
		}
		if c.RouterTemperature >= 0 {
			temp = c.RouterTemperature
		}
	case RoleSpecialist:
		if v := strings.TrimSpace(c.SpecialistModel); v != "" {
			modelName = v
		}
		if c.SpecialistTemperature >= 0 {
			temp = c.SpecialistTemperature
		}
	}
	return modelName, temp
}

func (c Config) OpenRouterFor(role Role) openrouterx.Config {
	modelName, temp := c.ModelFor(role)

	baseURL := strings.TrimSpace(c.BaseURL)
	if baseURL == "" {
		switch c.Backend() {
		case BackendOpenAI:
			baseURL = "https://api.openai.com/v1"
		default:
			baseURL = "https://openrouter.ai/api/v1"
		}
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            baseURL,
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
