package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/verdexhq/verdex/internal/catalog"
)

func runCatalog(args []string) error {
	sub := "show"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		sub = args[0]
		args = args[1:]
	}

	var pathArg, catalogFlag, formatFlag string
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--catalog" && i+1 < len(args):
			i++
			catalogFlag = args[i]
		case strings.HasPrefix(args[i], "--catalog="):
			catalogFlag = strings.TrimPrefix(args[i], "--catalog=")
		case args[i] == "--format" && i+1 < len(args):
			i++
			formatFlag = strings.ToLower(strings.TrimSpace(args[i]))
		case strings.HasPrefix(args[i], "--format="):
			formatFlag = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(args[i], "--format=")))
		case strings.HasPrefix(args[i], "-"):
			return fmt.Errorf("unknown flag: %s", args[i])
		case pathArg == "":
			pathArg = args[i]
		default:
			return fmt.Errorf("unexpected argument: %s", args[i])
		}
	}
	if pathArg != "" && catalogFlag == "" {
		catalogFlag = pathArg
	}

	switch sub {
	case "show":
		return catalogShow(catalogFlag, formatFlag)
	case "validate":
		return catalogValidate(catalogFlag)
	default:
		return fmt.Errorf("usage: verdex catalog <show|validate> [<path>] [--format json|table]")
	}
}

func catalogShow(catalogFlag, format string) error {
	resolved, err := resolveSettings(catalogFlag, "", format)
	if err != nil {
		return err
	}
	cat, err := loadCatalog(resolved)
	if err != nil {
		return err
	}

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
		return enc.Encode(cat)
	case "table":
		fmt.Printf("%-26s %-28s %-8s %-8s %s\n", "ID", "NAME", "UNIT", "ALIASES", "UNITS")
		for _, k := range cat.KPIs() {
			fmt.Printf("%-26s %-28s %-8s %-8d %d accepted\n", k.ID, k.CanonicalName, k.CanonicalUnit, len(k.Aliases), len(k.Units))
		}
		fmt.Printf("\n%d KPIs\n", cat.Len())
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (supported: json, table)", format)
	}
}

func catalogValidate(path string) error {
	if path == "" {
		resolved, err := resolveSettings("", "", "")
		if err != nil {
			return err
		}
		path = resolved.CatalogPath.Value
	}
	if path == "" {
		fmt.Printf("built-in catalog OK: %d KPIs\n", catalog.Default().Len())
		return nil
	}

	cat, err := catalog.Load(expandUserPath(path))
	if err != nil {
		return err
	}
	fmt.Printf("%s OK: %d KPIs\n", path, cat.Len())
	return nil
}
