package main

import (
	"fmt"
	"os"
	"strings"

	mcpserver "github.com/mark3labs/mcp-go/server"

	verdexmcp "github.com/verdexhq/verdex/internal/mcp"
)

func runMCP(args []string) error {
	var catalogFlag, llmFlag string
	noStore := false
	useFallback := false
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--catalog" && i+1 < len(args):
			catalogFlag = args[i+1]
			i++
		case strings.HasPrefix(arg, "--catalog="):
			catalogFlag = strings.TrimPrefix(arg, "--catalog=")
		case arg == "--llm" && i+1 < len(args):
			llmFlag = args[i+1]
			i++
		case strings.HasPrefix(arg, "--llm="):
			llmFlag = strings.TrimPrefix(arg, "--llm=")
		case arg == "--no-store":
			noStore = true
		case arg == "--fallback":
			useFallback = true
		case strings.HasPrefix(arg, "--"):
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	resolved, err := resolveSettings(catalogFlag, llmFlag, "")
	if err != nil {
		return err
	}

	cat, err := loadCatalog(resolved)
	if err != nil {
		return err
	}

	cfg := verdexmcp.ServerConfig{
		Catalog: cat,
		Version: version,
	}

	if !noStore {
		st, err := openStore(resolved)
		if err != nil {
			return err
		}
		defer st.Close()
		cfg.Store = st
	}

	fb, err := buildFallback(resolved, cat, useFallback || boolValue(resolved.FallbackEnabled))
	if err != nil {
		return err
	}
	cfg.Fallback = fb

	srv := verdexmcp.NewServer(cfg)

	// stdout carries the protocol; any human-facing output goes to stderr.
	fmt.Fprintln(os.Stderr, "verdex: MCP server listening on stdio")
	return mcpserver.ServeStdio(srv)
}
