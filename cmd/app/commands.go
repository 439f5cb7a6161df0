package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/starford/jotter/internal"
	"github.com/starford/jotter/internal/mcpserver"
	"github.com/starford/jotter/internal/models"
	"github.com/starford/jotter/internal/notefile"
	"github.com/starford/jotter/internal/noteservice"
	"github.com/starford/jotter/internal/notestore"
	"github.com/starford/jotter/internal/storage"
	pkgconfig "github.com/starford/jotter/pkg/config"
)

// loadConfig reads the config file over the defaults. The default path may
// be absent; a path the user named must exist.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadOptional(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found && cmd.IsSet("config") {
		return nil, fmt.Errorf("config file %s not found", configPath)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

// session is the store-backed state shared by the one-shot commands.
type session struct {
	cfg     *internal.Config
	logger  *slog.Logger
	palette models.Palette
	db      *notestore.DB
	svc     *noteservice.Service
}

// openSession loads config and opens the note store. Logs go to stderr so
// that stdout stays free for MCP traffic and command output.
func openSession(cmd *cli.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := internal.NewLogger(os.Stderr, cfg.App.LogLevel)
	slog.SetDefault(logger)

	palette, err := cfg.Notes.ParsedPalette()
	if err != nil {
		return nil, fmt.Errorf("parse palette: %w", err)
	}
	db, err := notestore.Open(cfg.SQLite.Path, notestore.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("init note store: %w", err)
	}
	return &session{
		cfg:     cfg,
		logger:  logger,
		palette: palette,
		db:      db,
		svc:     noteservice.NewService(db),
	}, nil
}

func (s *session) Close() {
	if err := s.db.Close(); err != nil {
		s.logger.Warn("close note store", slog.String("error", err.Error()))
	}
}

func serveMCP(_ context.Context, cmd *cli.Command) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	s.logger.Info("MCP server starting on stdio", slog.String("sqlite_path", s.cfg.SQLite.Path))
	return mcpserver.New(s.svc, s.palette, s.cfg.Images.Limits()).ServeStdio()
}

func dirArg(cmd *cli.Command) (string, error) {
	if cmd.Args().Len() != 1 {
		return "", errors.New("expected exactly one directory argument")
	}
	return cmd.Args().First(), nil
}

func importNotes(ctx context.Context, cmd *cli.Command) error {
	dir, err := dirArg(cmd)
	if err != nil {
		return err
	}
	src, err := storage.NewFS(dir)
	if err != nil {
		return err
	}
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	importer := notefile.NewImporter(s.svc, s.palette, s.cfg.Images.Limits(), s.logger)
	rep, err := importer.ImportDir(ctx, src)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	fmt.Fprintf(cmd.Root().Writer, "imported %d notes, %d failed\n", rep.Imported, len(rep.Failed))
	for _, f := range rep.Failed {
		fmt.Fprintf(cmd.Root().Writer, "  %s: %v\n", f.Path, f.Err)
	}
	if len(rep.Failed) > 0 {
		return fmt.Errorf("import: %d files failed", len(rep.Failed))
	}
	return nil
}

func exportNotes(ctx context.Context, cmd *cli.Command) error {
	dir, err := dirArg(cmd)
	if err != nil {
		return err
	}
	dst, err := storage.EnsureFS(dir)
	if err != nil {
		return err
	}
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	n, err := notefile.Export(ctx, s.svc, dst)
	if err != nil {
		return fmt.Errorf("export after %d notes: %w", n, err)
	}
	fmt.Fprintf(cmd.Root().Writer, "exported %d notes to %s\n", n, dst.Root())
	return nil
}
