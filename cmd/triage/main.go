package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/greyhatlabs/triage/internal/config"
	"github.com/greyhatlabs/triage/internal/version"
	"github.com/greyhatlabs/triage/pkg/triage"
)

func analyzeCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("triage analyze: missing <path>", 1)
	}
	path := c.Args().Get(0)

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("triage: %v", err), 1)
	}

	engine := triage.NewEngine(cfg)
	limits := triage.Limits{
		MaxReadBytes: c.Int64("max-read-bytes"),
		MaxFileSize:  cfg.IO.MaxFileSize,
	}

	artifact, err := engine.AnalyzePath(context.Background(), path, limits)
	if err != nil {
		return cli.Exit(fmt.Sprintf("triage: %v", err), 1)
	}

	enc := json.NewEncoder(os.Stdout)
	if c.Bool("pretty") {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(artifact); err != nil {
		return cli.Exit(fmt.Sprintf("triage: encode artifact: %v", err), 1)
	}
	return nil
}

func schemaCommand(c *cli.Context) error {
	schema, err := triage.Schema()
	if err != nil {
		return cli.Exit(fmt.Sprintf("triage: %v", err), 1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(schema)
}

func main() {
	app := &cli.App{
		Name:    "triage",
		Usage:   "Deterministic, budget-bounded binary triage",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "TOML config file path",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "analyze",
				Usage:     "Triage a single file and print the JSON artifact",
				ArgsUsage: "<path>",
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:  "max-read-bytes",
						Usage: "Cap on bytes read before truncating (0 = use io.max_file_size)",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print the JSON output",
					},
				},
				Action: analyzeCommand,
			},
			{
				Name:   "schema",
				Usage:  "Print the JSON Schema for a triaged artifact",
				Action: schemaCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "triage: %v\n", err)
		os.Exit(1)
	}
}
