package services

import (
	"fmt"
	"os"
	"sync"

	"github.com/sashabaranov/go-openai"
)

const (
	ProviderOpenAI     = "openai"
	ProviderDeepseek   = "deepseek"
	ProviderOllama     = "ollama"
	ProviderOpenRouter = "openrouter"
)

// LLMConfig is the OpenAI compatible endpoint used for graph extraction
type LLMConfig struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
}

// LLMConfigFromEnv reads LLM_PROVIDER and the provider's key and base URL variables
func LLMConfigFromEnv() (LLMConfig, error) {
	provider := os.Getenv("LLM_PROVIDER")
	if provider == "" {
		provider = ProviderOpenAI
	}

	cfg := LLMConfig{Provider: provider, Model: os.Getenv("OPENAI_MODEL")}

	switch provider {
	case ProviderOpenAI:
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		cfg.BaseURL = os.Getenv("OPENAI_BASE_URL")
		if cfg.APIKey == "" {
			return cfg, fmt.Errorf("OPENAI_API_KEY is not set, please set it in MCP Config")
		}
	case ProviderDeepseek:
		cfg.APIKey = os.Getenv("DEEPSEEK_API_KEY")
		cfg.BaseURL = os.Getenv("DEEPSEEK_API_BASE")
		if cfg.BaseURL == "" {
			cfg.BaseURL = "https://api.deepseek.com/v1"
		}
		if cfg.Model == "" {
			cfg.Model = "deepseek-chat"
		}
		if cfg.APIKey == "" {
			return cfg, fmt.Errorf("DEEPSEEK_API_KEY environment variable is not set")
		}
	case ProviderOllama:
		cfg.APIKey = "not-needed"
		cfg.BaseURL = os.Getenv("OLLAMA_BASE_URL")
		if cfg.BaseURL == "" {
			cfg.BaseURL = "http://localhost:11434/v1"
		}
	case ProviderOpenRouter:
		cfg.APIKey = os.Getenv("OPENROUTER_API_KEY")
		cfg.BaseURL = "https://openrouter.ai/api/v1"
		if cfg.APIKey == "" {
			return cfg, fmt.Errorf("OPENROUTER_API_KEY environment variable is not set")
		}
	default:
		return cfg, fmt.Errorf("unknown LLM_PROVIDER %q", provider)
	}

	return cfg, nil
}

// NewLLMClient builds a client for cfg
func NewLLMClient(cfg LLMConfig) *openai.Client {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	if cfg.Provider == ProviderOpenRouter {
		config.OrgID = "openrouter"
	}
	return openai.NewClientWithConfig(config)
}

type llmClient struct {
	client *openai.Client
	model  string
}

var defaultLLM = sync.OnceValues(func() (llmClient, error) {
	cfg, err := LLMConfigFromEnv()
	if err != nil {
		return llmClient{}, err
	}
	return llmClient{client: NewLLMClient(cfg), model: cfg.Model}, nil
})

// DefaultLLMClient returns the process wide client and its configured model,
// built from the environment on first use.
func DefaultLLMClient() (*openai.Client, string, error) {
	c, err := defaultLLM()
	return c.client, c.model, err
}
