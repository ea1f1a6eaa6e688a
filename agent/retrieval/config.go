package retrieval

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Retail-Assistant/agent/contract"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

type Config struct {
	Store          string `envconfig:"STORE" split_words:"true" default:"memory"`
	EmbedProvider  string `envconfig:"EMBED_PROVIDER" split_words:"true" default:"openai"`
	EmbedModel     string `envconfig:"EMBED_MODEL" split_words:"true" default:"text-embedding-3-small"`
	EmbedDimension int    `envconfig:"EMBED_DIMENSION" split_words:"true" default:"1536"`
	OpenAIAPIKey   string `envconfig:"OPENAI_API_KEY" split_words:"true"`
	OpenAIBaseURL  string `envconfig:"OPENAI_BASE_URL" split_words:"true"`
	OllamaHost     string `envconfig:"OLLAMA_HOST" split_words:"true" default:"http://localhost:11434"`
	MaxK           int    `envconfig:"MAX_K" split_words:"true" default:"20"`
	DefaultK       int    `envconfig:"DEFAULT_K" split_words:"true" default:"8"`
	IndexWorkers   int    `envconfig:"INDEX_WORKERS" split_words:"true" default:"4"`
}

func (c Config) Validate() error {
	switch strings.ToLower(c.EmbedProvider) {
	case ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("%w: unsupported embedding provider %q", contractx.ErrValidation, c.EmbedProvider)
	}
	switch strings.ToLower(c.Store) {
	case "memory", "pgvector":
	default:
		return fmt.Errorf("%w: unsupported vector store %q", contractx.ErrValidation, c.Store)
	}
	if c.EmbedDimension <= 0 {
		return fmt.Errorf("%w: embed dimension must be > 0", contractx.ErrValidation)
	}
	if c.MaxK <= 0 {
		return fmt.Errorf("%w: max k must be > 0", contractx.ErrValidation)
	}
	return nil
}
