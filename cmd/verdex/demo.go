package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

func runDemo(args []string) error {
	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	dbPathFlag := fs.String("db", "", "Path to demo SQLite DB (default: temp file)")
	demoDirFlag := fs.String("dir", "", "Directory for demo report files (default: temp dir)")
	cleanup := fs.Bool("cleanup", false, "Delete demo files/DB after completion")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if len(fs.Args()) > 0 {
		return fmt.Errorf("usage: verdex demo [--db <path>] [--dir <path>] [--cleanup]")
	}

	var err error
	demoDir := strings.TrimSpace(*demoDirFlag)
	if demoDir == "" {
		demoDir, err = os.MkdirTemp("", "verdex-demo-")
		if err != nil {
			return fmt.Errorf("creating temp demo directory: %w", err)
		}
	} else {
		demoDir = expandUserPath(demoDir)
		if err := os.MkdirAll(demoDir, 0o755); err != nil {
			return fmt.Errorf("creating demo directory: %w", err)
		}
	}

	dbPath := strings.TrimSpace(*dbPathFlag)
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), fmt.Sprintf("verdex-demo-%d.db", time.Now().UnixNano()))
	} else {
		dbPath = expandUserPath(dbPath)
	}

	files, err := createDemoReports(demoDir)
	if err != nil {
		return err
	}

	fmt.Println("🧪 Verdex demo")
	fmt.Printf("Sample reports: %d files in %s\n", len(files), demoDir)
	fmt.Printf("Demo DB:        %s\n\n", dbPath)

	oldDBPath := globalDBPath
	globalDBPath = dbPath
	defer func() { globalDBPath = oldDBPath }()

	fmt.Println("Step 1/3: Extract KPIs from the sample corpus")
	extractArgs := append([]string{}, files...)
	extractArgs = append(extractArgs, "--store", "--format", "table")
	if err := runExtract(extractArgs); err != nil {
		if *cleanup {
			_ = cleanupDemoArtifacts(demoDir, dbPath)
		}
		return fmt.Errorf("demo extraction failed: %w", err)
	}

	fmt.Println("\nStep 2/3: List the stored runs")
	if err := runRuns([]string{"list", "--format", "table"}); err != nil {
		return fmt.Errorf("demo runs listing failed: %w", err)
	}

	fmt.Println("\nStep 3/3: Store statistics")
	if err := runStats([]string{}); err != nil {
		return fmt.Errorf("demo stats failed: %w", err)
	}

	fmt.Println("\n✅ Demo complete.")
	fmt.Println("Your turn:")
	fmt.Printf("  verdex --db %s runs show 1\n", dbPath)
	fmt.Printf("  verdex --db %s extract %s --format csv\n", dbPath, files[0])
	fmt.Printf("  verdex --db %s stats\n", dbPath)
	if !*cleanup {
		fmt.Println("\nInspection paths (kept):")
		fmt.Printf("  files: %s\n", demoDir)
		fmt.Printf("  db:    %s\n", dbPath)
		fmt.Println("Use --cleanup to auto-delete these next run.")
	} else {
		if err := cleanupDemoArtifacts(demoDir, dbPath); err != nil {
			return fmt.Errorf("demo cleanup failed: %w", err)
		}
		fmt.Println("\nTemporary demo files cleaned up.")
	}

	return nil
}

// createDemoReports writes the sample corpus: one file per document shape the
// engine handles, from clean prose to OCR noise.
func createDemoReports(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating demo dir: %w", err)
	}

	type fileDef struct {
		name    string
		content string
	}

	defs := []fileDef{
		{
			name: "clean.txt",
			content: `2024 Sustainability Report

Total GHG emissions: 125,000 tCO2e
Energy consumption: 380,000 MWh
Water withdrawal: 1,200,000 m3
Renewable energy share: 42%
Total waste generated: 8,400 t
`,
		},
		{
			name: "table.csv",
			content: `KPI,Value,Unit
Total GHG Emissions,125000,tCO2e
Energy Consumption,380000,MWh
Water Withdrawal,1200000,m3
Renewable Energy Share,42,%
Total Waste Generated,8400,t
`,
		},
		{
			name: "locale_de.txt",
			content: `Nachhaltigkeitsbericht 2024

Treibhausgasemissionen: 125.000,5 t CO2e
Energieverbrauch: 1.380.000 MWh
Wasserentnahme: 1.200.000 m3
Anteil erneuerbarer Energien: 42 %
Abfallaufkommen: 8.400,0 t
`,
		},
		{
			name: "messy_units.txt",
			content: `Emissions performance: total GHG emissions of 12.5 ktCO2e across scopes 1 and 2.
Energy use, reported as energy consumption, came to 3 200 MWh.
Water withdrawal reached 2.4 ML this period.
`,
		},
		{
			name: "ocr_noise.txt",
			content: `SUSTAINABILITY REP0RT (scanned copy)

T0tal GHG em1ssions :  25,OOO  tC02e
Water withdrawal : 310 000 m3
Renewable share 18 pct
`,
		},
		{
			name: "corrupted_table.csv",
			content: `KPI,Value,Unit
Total GHG Emissions,,tCO2e
Water Withdrawal,500000,m3
,840,t
Total Waste Generated,8 400,
`,
		},
		{
			name: "narrative.txt",
			content: `Throughout the reporting year our operations scaled considerably, with energy
consumption of 52,000 MWh driven by the new facility. The renewable energy
share climbed to 38 percent after the solar build-out, while total waste
generated fell slightly to 1,950 t. We withdrew less water than planned;
water withdrawal closed at 640,000 m3.
`,
		},
	}

	files := make([]string, 0, len(defs))
	for _, d := range defs {
		path := filepath.Join(dir, d.name)
		if err := os.WriteFile(path, []byte(d.content), 0o644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", d.name, err)
		}
		files = append(files, path)
	}

	return files, nil
}

func cleanupDemoArtifacts(demoDir, dbPath string) error {
	_ = os.RemoveAll(demoDir)

	paths := []string{dbPath, dbPath + "-wal", dbPath + "-shm"}
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
