package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/verdexhq/verdex/internal/catalog"
	"github.com/verdexhq/verdex/internal/config"
	"github.com/verdexhq/verdex/internal/llm"
	"github.com/verdexhq/verdex/internal/pipeline"
	"github.com/verdexhq/verdex/internal/store"
)

const version = "0.1.0"

var (
	globalDBPath     string
	globalConfigPath string
	globalVerbose    bool
)

func main() {
	args := parseGlobalFlags(os.Args[1:])
	if len(args) < 1 {
		printUsage()
		os.Exit(0)
	}

	var err error
	switch args[0] {
	case "extract":
		err = runExtract(args[1:])
	case "catalog":
		err = runCatalog(args[1:])
	case "runs":
		err = runRuns(args[1:])
	case "stats":
		err = runStats(args[1:])
	case "optimize":
		err = runOptimize(args[1:])
	case "config":
		err = runConfig(args[1:])
	case "demo":
		err = runDemo(args[1:])
	case "mcp":
		err = runMCP(args[1:])
	case "version", "--version", "-v":
		fmt.Printf("verdex %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseGlobalFlags strips the flags every command shares and returns the rest.
func parseGlobalFlags(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--db" && i+1 < len(args):
			i++
			globalDBPath = args[i]
		case strings.HasPrefix(args[i], "--db="):
			globalDBPath = strings.TrimPrefix(args[i], "--db=")
		case args[i] == "--config" && i+1 < len(args):
			i++
			globalConfigPath = args[i]
		case strings.HasPrefix(args[i], "--config="):
			globalConfigPath = strings.TrimPrefix(args[i], "--config=")
		case args[i] == "--verbose":
			globalVerbose = true
		default:
			out = append(out, args[i])
		}
	}
	return out
}

// resolveSettings layers config file, environment, and CLI flags.
func resolveSettings(catalogFlag, llmFlag, formatFlag string) (config.ResolvedConfig, error) {
	return config.ResolveConfig(config.ResolveOptions{
		ConfigPath: globalConfigPath,
		CLICatalog: catalogFlag,
		CLILLM:     llmFlag,
		CLIDBPath:  globalDBPath,
		CLIFormat:  formatFlag,
	})
}

func openStore(resolved config.ResolvedConfig) (store.Store, error) {
	dbPath := resolved.DBPath.OrDefault(store.DefaultDBPath).Value
	return store.NewStore(store.StoreConfig{DBPath: dbPath})
}

func loadCatalog(resolved config.ResolvedConfig) (*catalog.Catalog, error) {
	if path := resolved.CatalogPath.Value; path != "" {
		return catalog.Load(path)
	}
	return catalog.Default(), nil
}

// buildFallback wires the model fallback, or returns nil when disabled.
func buildFallback(resolved config.ResolvedConfig, cat *catalog.Catalog, enabled bool) (pipeline.Fallback, error) {
	if !enabled {
		return nil, nil
	}

	model := resolved.LLMModel.Value
	if model == "" {
		return nil, fmt.Errorf("fallback requires a model: set --llm <provider/model>, VERDEX_LLM, or llm.model in %s", resolved.ConfigPath)
	}

	cfg, err := llm.ParseFlag(model)
	if err != nil {
		return nil, err
	}
	if key := resolved.APIKeyForProvider(model); key.Value != "" {
		cfg.APIKey = key.Value
	}
	if resolved.LLMEndpoint.Value != "" {
		cfg.BaseURL = resolved.LLMEndpoint.Value
	}

	client, err := llm.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	timeout := llm.DefaultAskTimeout
	if v := resolved.FallbackTimeout.Value; v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("invalid fallback timeout %q: expected seconds", v)
		}
		timeout = time.Duration(secs) * time.Second
	}

	return llm.NewFallback(client, cat, timeout), nil
}

func boolValue(v config.ResolvedValue) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v.Value))
	return err == nil && b
}

func isTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return home + path[1:]
		}
	}
	return path
}

func runConfig(args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("usage: verdex config [--config <path>]")
	}

	resolved, err := resolveSettings("", "", "")
	if err != nil {
		return err
	}

	// Show effective values: unset settings display their built-in default.
	resolved.DBPath = resolved.DBPath.OrDefault(store.DefaultDBPath)
	resolved.CatalogPath = resolved.CatalogPath.OrDefault("built-in")
	resolved.Format = resolved.Format.OrDefault("json")
	for provider, key := range resolved.LLMKeys {
		key.Value = maskKey(key.Value)
		resolved.LLMKeys[provider] = key
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resolved)
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****"
}

func printUsage() {
	fmt.Printf(`verdex %s - Deterministic ESG KPI extraction

Usage:
  verdex [--db <path>] [--config <path>] <command> [arguments]

Commands:
  extract <file>...   Extract KPIs from report files (txt, csv, json, pdf, xlsx)
  catalog [show]      Print the active KPI catalog
  catalog validate    Validate a catalog file
  runs [list]         List stored extraction runs
  runs show <id>      Show one stored run with its candidate audit trail
  stats               Show run store statistics
  optimize            Compact the run store
  config              Print the resolved configuration with provenance
  demo                Run the embedded sample corpus end to end
  mcp                 Serve the engine over the Model Context Protocol (stdio)
  version             Print version

Extract Flags:
  --catalog <path>            Catalog file (JSON or YAML; default: built-in)
  --fallback                  Ask the configured model for KPIs the strategies missed
  --llm <provider/model>      Fallback model (e.g. openai/gpt-4o-mini)
  --format json|csv|table     Output format (default: table on a TTY, else json)
  --output <path>             Write the report to a file instead of stdout
  --store                     Persist the run to the database

Flags:
  --db <path>         Database path (default: %s)
  --config <path>     Config file (default: nearest .verdex.yml, else ~/.verdex/config.yaml)
  -h, --help          Show this help message
  -v, --version       Print version
`, version, store.DefaultDBPath)
}
