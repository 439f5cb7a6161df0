package main

import (
	"context"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
)

const defaultConfigPath = "config/config.yaml"

func main() {
	cmd := &cli.Command{
		Name:   "jotter",
		Usage:  "Color-coded note keeping with live filtered views, an HTTP API and MCP tools",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: defaultConfigPath,
				Value:       defaultConfigPath,
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API (default command)",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve note tools over MCP on stdin/stdout",
				Action: serveMCP,
			},
			{
				Name:      "import",
				Usage:     "Import markdown notes from a directory",
				ArgsUsage: "<dir>",
				Action:    importNotes,
			},
			{
				Name:      "export",
				Usage:     "Export all notes as markdown into a directory",
				ArgsUsage: "<dir>",
				Action:    exportNotes,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
