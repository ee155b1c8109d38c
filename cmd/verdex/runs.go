package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

func runRuns(args []string) error {
	sub := "list"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		sub = args[0]
		args = args[1:]
	}

	switch sub {
	case "list":
		return runsList(args)
	case "show":
		return runsShow(args)
	default:
		return fmt.Errorf("usage: verdex runs [list|show <id>] [--limit N] [--format json|table]")
	}
}

func runsList(args []string) error {
	limit := 20
	formatFlag := ""

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--limit" && i+1 < len(args):
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid --limit %q: expected a positive number", args[i])
			}
			limit = n
		case strings.HasPrefix(args[i], "--limit="):
			raw := strings.TrimPrefix(args[i], "--limit=")
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid --limit %q: expected a positive number", raw)
			}
			limit = n
		case args[i] == "--format" && i+1 < len(args):
			i++
			formatFlag = strings.ToLower(strings.TrimSpace(args[i]))
		case strings.HasPrefix(args[i], "--format="):
			formatFlag = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(args[i], "--format=")))
		case strings.HasPrefix(args[i], "-"):
			return fmt.Errorf("unknown flag: %s", args[i])
		default:
			return fmt.Errorf("unexpected argument: %s", args[i])
		}
	}

	resolved, err := resolveSettings("", "", formatFlag)
	if err != nil {
		return err
	}
	st, err := openStore(resolved)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	runs, err := st.ListRuns(context.Background(), limit)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}

	format := formatFlag
	if format == "" {
		if isTTY() {
			format = "table"
		} else {
			format = "json"
		}
	}

	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	case "table":
		fmt.Printf("%-6s %-20s %-32s %-10s %s\n", "ID", "CREATED", "DOCUMENT", "EXTRACTED", "MISSING")
		for _, r := range runs {
			doc := r.DocumentID
			if len(doc) > 32 {
				doc = doc[:31] + "…"
			}
			fmt.Printf("%-6d %-20s %-32s %-10d %d\n",
				r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04:05"), doc, r.Extracted, r.Missing)
		}
		fmt.Printf("\n%d runs\n", len(runs))
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (supported: json, table)", format)
	}
}

func runsShow(args []string) error {
	var idArg string
	formatFlag := ""

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--format" && i+1 < len(args):
			i++
			formatFlag = strings.ToLower(strings.TrimSpace(args[i]))
		case strings.HasPrefix(args[i], "--format="):
			formatFlag = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(args[i], "--format=")))
		case strings.HasPrefix(args[i], "-"):
			return fmt.Errorf("unknown flag: %s", args[i])
		case idArg == "":
			idArg = args[i]
		default:
			return fmt.Errorf("unexpected argument: %s", args[i])
		}
	}

	if idArg == "" {
		return fmt.Errorf("usage: verdex runs show <id> [--format json|table]")
	}
	id, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid run id %q", idArg)
	}

	resolved, err := resolveSettings("", "", formatFlag)
	if err != nil {
		return err
	}
	st, err := openStore(resolved)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	run, err := st.GetRun(ctx, id)
	if err != nil {
		return fmt.Errorf("loading run: %w", err)
	}
	if run == nil {
		return fmt.Errorf("run %d not found", id)
	}
	run.Candidates, err = st.RunCandidates(ctx, id)
	if err != nil {
		return fmt.Errorf("loading candidates: %w", err)
	}

	format := formatFlag
	if format == "" {
		if isTTY() {
			format = "table"
		} else {
			format = "json"
		}
	}

	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	case "table":
		fmt.Printf("Run %d: %s (%s, %s)\n\n", run.ID, run.DocumentID, run.Format, run.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("%-26s %-16s %-8s %-6s %s\n", "KPI", "VALUE", "UNIT", "CONF", "SOURCE")
		for _, r := range run.Results {
			value := "-"
			if r.Value != nil {
				value = strconv.FormatFloat(*r.Value, 'f', -1, 64)
			}
			fmt.Printf("%-26s %-16s %-8s %-6.2f %s\n", r.KPIID, value, r.Unit, r.Confidence, r.Source)
		}
		fmt.Printf("\nCandidates (%d):\n", len(run.Candidates))
		fmt.Printf("%-26s %-16s %-8s %-6s %-12s %s\n", "KPI", "VALUE", "UNIT", "CONF", "STRATEGY", "SNIPPET")
		for _, c := range run.Candidates {
			snippet := c.Snippet
			if len(snippet) > 40 {
				snippet = snippet[:39] + "…"
			}
			fmt.Printf("%-26s %-16s %-8s %-6.2f %-12s %s\n",
				c.KPIID, strconv.FormatFloat(c.Value, 'f', -1, 64), c.Unit, c.Confidence, c.Strategy, snippet)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (supported: json, table)", format)
	}
}

func runStats(args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("usage: verdex stats")
	}

	resolved, err := resolveSettings("", "", "")
	if err != nil {
		return err
	}
	st, err := openStore(resolved)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	stats, err := st.Stats(context.Background())
	if err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}

	fmt.Printf("Runs:       %d\n", stats.RunCount)
	fmt.Printf("Results:    %d\n", stats.ResultCount)
	fmt.Printf("Candidates: %d\n", stats.CandidateCount)
	fmt.Printf("DB size:    %s\n", formatBytes(stats.DBSizeBytes))
	return nil
}

func runOptimize(args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("usage: verdex optimize")
	}

	resolved, err := resolveSettings("", "", "")
	if err != nil {
		return err
	}
	st, err := openStore(resolved)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.Vacuum(ctx); err != nil {
		return fmt.Errorf("vacuuming: %w", err)
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}
	fmt.Printf("Optimized %s (%s)\n", resolved.DBPath.OrDefault("run store").Value, formatBytes(stats.DBSizeBytes))
	return nil
}
