package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/verdexhq/verdex/internal/document"
	"github.com/verdexhq/verdex/internal/pipeline"
)

func runExtract(args []string) error {
	var paths []string
	var catalogFlag, llmFlag, formatFlag, outputFlag string
	var useFallback, persist bool

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--catalog" && i+1 < len(args):
			i++
			catalogFlag = args[i]
		case strings.HasPrefix(args[i], "--catalog="):
			catalogFlag = strings.TrimPrefix(args[i], "--catalog=")
		case args[i] == "--llm" && i+1 < len(args):
			i++
			llmFlag = args[i]
		case strings.HasPrefix(args[i], "--llm="):
			llmFlag = strings.TrimPrefix(args[i], "--llm=")
		case args[i] == "--format" && i+1 < len(args):
			i++
			formatFlag = strings.ToLower(strings.TrimSpace(args[i]))
		case strings.HasPrefix(args[i], "--format="):
			formatFlag = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(args[i], "--format=")))
		case args[i] == "--output" && i+1 < len(args):
			i++
			outputFlag = args[i]
		case strings.HasPrefix(args[i], "--output="):
			outputFlag = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "--fallback":
			useFallback = true
		case args[i] == "--store":
			persist = true
		case strings.HasPrefix(args[i], "-"):
			return fmt.Errorf("unknown flag: %s", args[i])
		default:
			paths = append(paths, args[i])
		}
	}

	if len(paths) == 0 {
		return fmt.Errorf("usage: verdex extract <file> [<file> ...] [--catalog <path>] [--fallback] [--llm <provider/model>] [--format json|csv|table] [--output <path>] [--store]")
	}

	resolved, err := resolveSettings(catalogFlag, llmFlag, formatFlag)
	if err != nil {
		return err
	}

	cat, err := loadCatalog(resolved)
	if err != nil {
		return err
	}

	fb, err := buildFallback(resolved, cat, useFallback || boolValue(resolved.FallbackEnabled))
	if err != nil {
		return err
	}

	var opts []pipeline.Option
	if fb != nil {
		opts = append(opts, pipeline.WithFallback(fb))
	}
	if persist {
		st, err := openStore(resolved)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer st.Close()
		opts = append(opts, pipeline.WithStore(st))
	}

	pipe := pipeline.New(cat, opts...)
	ctx := context.Background()

	docs := make([]*document.Document, 0, len(paths))
	for _, p := range paths {
		doc, err := document.Load(ctx, expandUserPath(p))
		if err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
		docs = append(docs, doc)
	}

	start := time.Now()
	var reports []*pipeline.Report
	if len(docs) == 1 {
		rep, err := pipe.Run(ctx, docs[0])
		if err != nil {
			return err
		}
		reports = append(reports, rep)
	} else {
		reports = pipe.RunBatch(ctx, docs)
	}

	if globalVerbose {
		total, extracted := 0, 0
		for _, rep := range reports {
			total += len(rep.Results)
			extracted += rep.Extracted()
		}
		fmt.Fprintf(os.Stderr, "verdex: %d document(s), %d/%d KPIs extracted in %s\n",
			len(reports), extracted, total, time.Since(start).Round(time.Millisecond))
	}

	out := os.Stdout
	if outputFlag != "" {
		f, err := os.Create(expandUserPath(outputFlag))
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	format := resolved.Format.Value
	if format == "" {
		if outputFlag == "" && isTTY() {
			format = "table"
		} else {
			format = "json"
		}
	}

	return writeReports(out, reports, format)
}
