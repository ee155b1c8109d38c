// Package llm is the model fallback adapter. It speaks the OpenAI-compatible
// chat completion wire format and is invoked only for KPIs the deterministic
// strategies missed. A model answer can never outrank a deterministic one:
// its confidence is capped below every strategy's weighted baseline.
package llm

import (
	"fmt"
	"os"
	"strings"
)

// Config holds provider configuration for the chat completion client.
type Config struct {
	Provider string // "openai", "openrouter", "deepseek", "ollama", "custom"
	Model    string // e.g. "gpt-4o-mini", "deepseek-chat"
	APIKey   string // empty = read from env
	BaseURL  string // empty = provider default
}

// ParseFlag parses a --llm flag value into a Config.
// Format: "provider/model", e.g. "openai/gpt-4o-mini",
// "openrouter/meta-llama/llama-3.1-70b-instruct", "ollama/llama3.1".
func ParseFlag(flag string) (Config, error) {
	if strings.TrimSpace(flag) == "" {
		return Config{}, fmt.Errorf("empty --llm value: expected provider/model")
	}

	parts := strings.SplitN(flag, "/", 2)
	if len(parts) < 2 || parts[1] == "" {
		return Config{}, fmt.Errorf("invalid --llm format %q: expected provider/model (e.g. openai/gpt-4o-mini)", flag)
	}

	provider := strings.ToLower(strings.TrimSpace(parts[0]))
	switch provider {
	case "openai", "openrouter", "deepseek", "ollama", "custom":
		return Config{Provider: provider, Model: parts[1]}, nil
	default:
		return Config{}, fmt.Errorf("unknown provider %q in --llm flag (supported: openai, openrouter, deepseek, ollama, custom)", provider)
	}
}

// withEnv fills APIKey and BaseURL from the environment and provider
// defaults. VERDEX_LLM_ENDPOINT and VERDEX_LLM_API_KEY override everything;
// per-provider key envs are the usual names.
func (c Config) withEnv() Config {
	if v := os.Getenv("VERDEX_LLM_ENDPOINT"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("VERDEX_LLM_API_KEY"); c.APIKey == "" && v != "" {
		c.APIKey = v
	}
	if c.APIKey == "" {
		switch c.Provider {
		case "openai":
			c.APIKey = os.Getenv("OPENAI_API_KEY")
		case "openrouter":
			c.APIKey = os.Getenv("OPENROUTER_API_KEY")
		case "deepseek":
			c.APIKey = os.Getenv("DEEPSEEK_API_KEY")
		}
	}
	if c.BaseURL == "" {
		switch c.Provider {
		case "openai":
			c.BaseURL = "https://api.openai.com/v1"
		case "openrouter":
			c.BaseURL = "https://openrouter.ai/api/v1"
		case "deepseek":
			c.BaseURL = "https://api.deepseek.com/v1"
		case "ollama":
			c.BaseURL = "http://localhost:11434/v1"
		}
	}
	return c
}

// Validate reports whether the config can make a request. Local and custom
// endpoints work without a key; hosted providers do not.
func (c Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("llm model is required")
	}
	switch c.Provider {
	case "ollama":
		return nil
	case "custom":
		if c.BaseURL == "" {
			return fmt.Errorf("custom provider requires VERDEX_LLM_ENDPOINT or an explicit base URL")
		}
		return nil
	case "openai", "openrouter", "deepseek":
		if c.APIKey == "" {
			return fmt.Errorf("%s provider requires an API key (env %s_API_KEY or VERDEX_LLM_API_KEY)",
				c.Provider, strings.ToUpper(c.Provider))
		}
		return nil
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
}
