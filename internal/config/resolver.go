package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// OrDefault returns v when set, otherwise the built-in default.
func (v ResolvedValue) OrDefault(fallback string) ResolvedValue {
	if strings.TrimSpace(v.Value) != "" {
		return v
	}
	return ResolvedValue{Value: fallback, Source: SourceDefault, From: "built-in default"}
}

type ResolveOptions struct {
	ConfigPath string
	CLICatalog string
	CLILLM     string
	CLIDBPath  string
	CLIFormat  string
}

type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath      ResolvedValue `json:"db_path"`
	CatalogPath ResolvedValue `json:"catalog"`
	Format      ResolvedValue `json:"format"`

	LLMModel        ResolvedValue `json:"llm_model"`
	LLMEndpoint     ResolvedValue `json:"llm_endpoint"`
	FallbackEnabled ResolvedValue `json:"fallback_enabled"`
	FallbackTimeout ResolvedValue `json:"fallback_timeout"`

	LLMKeys map[string]ResolvedValue `json:"llm_keys,omitempty"`
}

type fileConfig struct {
	DBPath  string `yaml:"db_path"`
	Catalog string `yaml:"catalog"`
	Format  string `yaml:"format"`
	LLM     struct {
		Model    string `yaml:"model"`
		APIKey   string `yaml:"api_key"`
		Endpoint string `yaml:"endpoint"`
	} `yaml:"llm"`
	Fallback struct {
		Enabled        *bool `yaml:"enabled"`
		TimeoutSeconds int   `yaml:"timeout_seconds"`
	} `yaml:"fallback"`
}

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".verdex", "config.yaml")
}

// DiscoverConfigPath returns the nearest .verdex.yml walking up from the
// working directory, or the home config when none exists.
func DiscoverConfigPath() string {
	dir, err := os.Getwd()
	if err != nil {
		return DefaultConfigPath()
	}
	for {
		candidate := filepath.Join(dir, ".verdex.yml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return DefaultConfigPath()
}

func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DiscoverConfigPath()
	}

	out := ResolvedConfig{
		ConfigPath: path,
		LLMKeys:    map[string]ResolvedValue{},
	}

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.CatalogPath, cfg.Catalog, SourceConfig, path)
		apply(&out.Format, cfg.Format, SourceConfig, path)
		apply(&out.LLMModel, cfg.LLM.Model, SourceConfig, path)
		apply(&out.LLMEndpoint, cfg.LLM.Endpoint, SourceConfig, path)
		if cfg.Fallback.Enabled != nil {
			apply(&out.FallbackEnabled, strconv.FormatBool(*cfg.Fallback.Enabled), SourceConfig, path)
		}
		if cfg.Fallback.TimeoutSeconds > 0 {
			apply(&out.FallbackTimeout, strconv.Itoa(cfg.Fallback.TimeoutSeconds), SourceConfig, path)
		}

		if key := strings.TrimSpace(cfg.LLM.APIKey); key != "" {
			provider := providerOf(cfg.LLM.Model)
			if provider == "" {
				provider = "default"
			}
			out.LLMKeys[provider] = ResolvedValue{Value: key, Source: SourceConfig, From: path}
		}
	}

	applyEnv(&out.DBPath, "VERDEX_DB")
	applyEnv(&out.DBPath, "VERDEX_DB_PATH")
	applyEnv(&out.CatalogPath, "VERDEX_CATALOG")
	applyEnv(&out.Format, "VERDEX_FORMAT")
	applyEnv(&out.LLMModel, "VERDEX_LLM")
	applyEnv(&out.LLMEndpoint, "VERDEX_LLM_ENDPOINT")
	applyEnv(&out.FallbackEnabled, "VERDEX_FALLBACK")
	applyEnv(&out.FallbackTimeout, "VERDEX_FALLBACK_TIMEOUT")

	if v := strings.TrimSpace(os.Getenv("VERDEX_LLM_API_KEY")); v != "" {
		out.LLMKeys["default"] = ResolvedValue{Value: v, Source: SourceEnv, From: "VERDEX_LLM_API_KEY"}
	}

	for env, provider := range map[string]string{
		"OPENROUTER_API_KEY": "openrouter",
		"OPENAI_API_KEY":     "openai",
		"DEEPSEEK_API_KEY":   "deepseek",
	} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			out.LLMKeys[provider] = ResolvedValue{Value: v, Source: SourceEnv, From: env}
		}
	}

	apply(&out.CatalogPath, opts.CLICatalog, SourceCLI, "--catalog")
	apply(&out.LLMModel, opts.CLILLM, SourceCLI, "--llm")
	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--store")
	apply(&out.Format, opts.CLIFormat, SourceCLI, "--format")

	if out.DBPath.Value != "" {
		out.DBPath.Value = expandUserPath(out.DBPath.Value)
	}
	if out.CatalogPath.Value != "" {
		out.CatalogPath.Value = expandUserPath(out.CatalogPath.Value)
	}

	return out, nil
}

func (r ResolvedConfig) APIKeyForProvider(providerOrModel string) ResolvedValue {
	provider := providerOf(providerOrModel)
	if provider == "" {
		return ResolvedValue{}
	}
	if v, ok := r.LLMKeys[provider]; ok && strings.TrimSpace(v.Value) != "" {
		return v
	}
	if v, ok := r.LLMKeys["default"]; ok && strings.TrimSpace(v.Value) != "" {
		return v
	}
	return ResolvedValue{}
}

func providerOf(providerOrModel string) string {
	v := strings.ToLower(strings.TrimSpace(providerOrModel))
	if v == "" {
		return ""
	}
	if idx := strings.Index(v, "/"); idx > 0 {
		return v[:idx]
	}
	return v
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
