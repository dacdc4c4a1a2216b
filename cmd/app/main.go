package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/ansuz/internal"
	"github.com/starford/ansuz/internal/discovery"
	"github.com/starford/ansuz/internal/graph"
	"github.com/starford/ansuz/internal/search"
	pkgconfig "github.com/starford/ansuz/pkg/config"
)

func loadConfig(cmd *cli.Command, optional bool) (*internal.Config, error) {
	configPath := cmd.String("config")
	cfg := internal.NewDefaultConfig()
	if optional {
		if _, err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		return cfg, nil
	}
	if err := pkgconfig.Load(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

// cliLogger keeps stdout clean for JSON output.
func cliLogger(cfg *internal.Config) *slog.Logger {
	app := cfg.App
	if app.LogLevel < slog.LevelWarn {
		app.LogLevel = slog.LevelWarn
	}
	return internal.NewLogger(app, os.Stderr)
}

func importVault(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	stats, err := internal.Import(internal.WithConfig(cfg), internal.WithLogger(cliLogger(cfg)))
	if err != nil {
		return err
	}
	return printJSON(stats)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// query opens the vault, runs fn and prints its result as JSON.
func query(fn func(context.Context, *cli.Command, *discovery.Service) (any, error)) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd, true)
		if err != nil {
			return err
		}
		s, err := internal.Open(internal.WithConfig(cfg), internal.WithLogger(cliLogger(cfg)))
		if err != nil {
			return err
		}
		defer s.Close()

		res, err := fn(ctx, cmd, s.Service)
		if err != nil {
			return err
		}
		return printJSON(res)
	}
}

func requireArg(cmd *cli.Command, name string) (string, error) {
	if cmd.Args().Len() < 1 {
		return "", fmt.Errorf("missing %s argument", name)
	}
	return cmd.Args().First(), nil
}

func pageRequest(cmd *cli.Command) discovery.PageRequest {
	return discovery.PageRequest{
		Page:     int(cmd.Int("page")),
		PageSize: int(cmd.Int("page-size")),
	}
}

// Flags hold parse state, so every command gets its own instances.
func scopeFlag() cli.Flag {
	return &cli.StringFlag{Name: "scope", Aliases: []string{"s"}, Usage: "Folder path to search under"}
}

func withPaging(flags ...cli.Flag) []cli.Flag {
	return append(flags,
		&cli.IntFlag{Name: "page", Usage: "Page number", Value: 1},
		&cli.IntFlag{Name: "page-size", Usage: "Fixed page size (0 for token-budgeted pages)"},
	)
}

func commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:   "serve",
			Usage:  "Run the HTTP API server",
			Action: serve,
		},
		{
			Name:   "mcp",
			Usage:  "Serve MCP tools on stdin/stdout",
			Action: serveMCP,
		},
		{
			Name:   "import",
			Usage:  "Sync the vault into the SQLite store",
			Action: importVault,
		},
		{
			Name:      "search",
			Usage:     "Ranked text search",
			ArgsUsage: "<query>",
			Flags: withPaging(
				scopeFlag(),
				&cli.StringSliceFlag{Name: "tag", Aliases: []string{"t"}, Usage: "Only notes carrying one of these tags"},
				&cli.BoolFlag{Name: "no-title", Usage: "Do not match titles"},
				&cli.BoolFlag{Name: "no-body", Usage: "Do not match bodies"},
				&cli.BoolFlag{Name: "case-sensitive", Usage: "Case-sensitive matching"},
				&cli.BoolFlag{Name: "pattern", Aliases: []string{"e"}, Usage: "Treat query as a regular expression"},
				&cli.IntFlag{Name: "max", Usage: "Maximum hits before paging"},
			),
			Action: query(func(ctx context.Context, cmd *cli.Command, svc *discovery.Service) (any, error) {
				q, err := requireArg(cmd, "query")
				if err != nil {
					return nil, err
				}
				return svc.Search(ctx, discovery.SearchRequest{
					Scope: cmd.String("scope"),
					Query: q,
					Options: search.Options{
						SearchTitle:   !cmd.Bool("no-title"),
						SearchBody:    !cmd.Bool("no-body"),
						Tags:          cmd.StringSlice("tag"),
						CaseSensitive: cmd.Bool("case-sensitive"),
						Pattern:       cmd.Bool("pattern"),
						MaxResults:    int(cmd.Int("max")),
					},
					PageRequest: pageRequest(cmd),
				})
			}),
		},
		{
			Name:      "related",
			Usage:     "Nodes related to a node",
			ArgsUsage: "<node-id>",
			Flags: withPaging(
				scopeFlag(),
				&cli.IntFlag{Name: "max", Usage: "Maximum related nodes"},
				&cli.BoolFlag{Name: "no-linked", Usage: "Skip linked and back-linked nodes"},
				&cli.BoolFlag{Name: "no-similar", Usage: "Skip tag-similar nodes"},
			),
			Action: query(func(ctx context.Context, cmd *cli.Command, svc *discovery.Service) (any, error) {
				id, err := requireArg(cmd, "node-id")
				if err != nil {
					return nil, err
				}
				return svc.RelatedNodes(ctx, cmd.String("scope"), id, graph.RelatedOptions{
					MaxResults:     int(cmd.Int("max")),
					IncludeLinked:  !cmd.Bool("no-linked"),
					IncludeSimilar: !cmd.Bool("no-similar"),
				}, pageRequest(cmd))
			}),
		},
		{
			Name:      "graph",
			Usage:     "Link graph around a node",
			ArgsUsage: "<node-id>",
			Flags: withPaging(
				scopeFlag(),
				&cli.IntFlag{Name: "depth", Aliases: []string{"d"}, Usage: "Link hops to follow", Value: 2},
				&cli.BoolFlag{Name: "backlinks", Aliases: []string{"b"}, Usage: "Add nodes linking to the centre"},
			),
			Action: query(func(ctx context.Context, cmd *cli.Command, svc *discovery.Service) (any, error) {
				id, err := requireArg(cmd, "node-id")
				if err != nil {
					return nil, err
				}
				return svc.LinkGraph(ctx, discovery.GraphRequest{
					Scope:            cmd.String("scope"),
					ID:               id,
					Depth:            int(cmd.Int("depth")),
					IncludeBacklinks: cmd.Bool("backlinks"),
					PageRequest:      pageRequest(cmd),
				})
			}),
		},
		{
			Name:  "orphans",
			Usage: "Nodes with links to missing nodes",
			Flags: withPaging(scopeFlag()),
			Action: query(func(ctx context.Context, cmd *cli.Command, svc *discovery.Service) (any, error) {
				return svc.OrphanedNodes(ctx, cmd.String("scope"), pageRequest(cmd))
			}),
		},
		{
			Name:  "stats",
			Usage: "Knowledge base statistics",
			Flags: []cli.Flag{scopeFlag()},
			Action: query(func(ctx context.Context, cmd *cli.Command, svc *discovery.Service) (any, error) {
				return svc.Stats(ctx, cmd.String("scope"))
			}),
		},
		{
			Name:  "tags",
			Usage: "Tag usage counts",
			Flags: withPaging(
				scopeFlag(),
				&cli.IntFlag{Name: "min-count", Usage: "Only tags used at least this often", Value: 1},
			),
			Action: query(func(ctx context.Context, cmd *cli.Command, svc *discovery.Service) (any, error) {
				return svc.TagCloud(ctx, cmd.String("scope"), int(cmd.Int("min-count")), pageRequest(cmd))
			}),
		},
	}
}

func main() {
	cmd := &cli.Command{
		Name:     "ansuz",
		Usage:    "Search and link-graph discovery over a Markdown knowledge base",
		Action:   serve,
		Commands: commands(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
