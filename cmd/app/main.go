package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/akida/ankitex/internal"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg, err := internal.LoadConfig(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if p := cmd.String("path"); p != "" {
		cfg.Document.Path = p
	}
	return cfg, nil
}

func main() {
	cmd := &cli.Command{
		Name:  "ankitex",
		Usage: "Keep a remote flashcard store in sync with marked-up text documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("ANKITEX_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "path",
				Aliases: []string{"p"},
				Usage:   "Document or directory to sync (overrides config)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "watch",
				Usage: "Watch for changes and create new notes",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					return internal.Run(ctx, internal.WithConfig(cfg))
				},
			},
			{
				Name:    "create",
				Aliases: []string{"c"},
				Usage:   "Create new notes from the document",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					return internal.CreateOnce(ctx, internal.WithConfig(cfg))
				},
			},
			{
				Name:  "template",
				Usage: "Create the document from the template scaffold",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Overwrite the file if it exists",
					},
				},
				Action: func(_ context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					return internal.CreateTemplate(cfg, cmd.Bool("force"))
				},
			},
			{
				Name:  "save-template",
				Usage: "Save the header and footer templates to their override files",
				Action: func(_ context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					return internal.SaveTemplate(cfg)
				},
			},
			{
				Name:  "get-decks",
				Usage: "Print all deck names",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					return internal.GetDecks(ctx, cfg, os.Stdout)
				},
			},
			{
				Name:  "get-models",
				Usage: "Print all model names",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					return internal.GetModels(ctx, cfg, os.Stdout)
				},
			},
			{
				Name:      "get-notes",
				Usage:     "Print every note matching a search query",
				ArgsUsage: "[query]",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					query := cmd.Args().First()
					if query == "" {
						query = "*"
					}
					return internal.GetNotes(ctx, cfg, os.Stdout, query)
				},
			},
			{
				Name:    "render",
				Aliases: []string{"r"},
				Usage:   "Render all LaTeX",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					return internal.RenderAll(ctx, cfg, os.Stdout)
				},
			},
			{
				Name:    "sync",
				Aliases: []string{"s"},
				Usage:   "Sync the collection to the remote sync server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					return internal.SyncCollection(ctx, cfg, os.Stdout)
				},
			},
			{
				Name:  "crs",
				Usage: "Create, render, and sync in one go",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					return internal.CreateRenderSync(ctx, cfg, os.Stdout)
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
