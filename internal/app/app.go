package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"

	"contacts/internal/bootstrap"
	"contacts/internal/config"
	"contacts/internal/console"
	"contacts/internal/lib/logger/sl"
	"contacts/internal/repository/filestore"
	"contacts/internal/repository/sqlite"
	"contacts/internal/services/records"
)

type App struct {
	log     *slog.Logger
	Console *console.Console
	index   *sqlite.Repository
}

// New loads the records from disk and wires the console to them. Broken
// record files are reported on errOut and skipped.
func New(
	ctx context.Context,
	log *slog.Logger,
	cfg *config.Config,
	in io.Reader,
	out io.Writer,
	errOut io.Writer,
) *App {
	if cfg.Console.NoColor {
		color.NoColor = true
	}

	files := filestore.New(cfg.Storage.Path, cfg.Storage.Extension)

	var (
		index    *sqlite.Repository
		searcher records.Index
	)
	if cfg.Index.Path != "" {
		idx, err := sqlite.New(cfg.Index.Path)
		if err != nil {
			log.Error("search index unavailable", sl.Err(err))
		} else {
			index = idx
			searcher = idx
		}
	}

	recordsService := records.New(log, files, searcher)

	for _, err := range recordsService.Load(ctx) {
		color.New(color.FgRed).Fprintf(errOut, "Error reading file: %v\n", err)
	}

	if index != nil {
		if err := bootstrap.InitIndex(ctx, log, index, recordsService.All()); err != nil {
			recordsService.DisableIndex()
			_ = index.Stop()
			index = nil
		}
	}

	return &App{
		log:     log,
		Console: console.New(log, recordsService, in, out, errOut),
		index:   index,
	}
}

func (a *App) Run(ctx context.Context) error {
	return a.Console.Run(ctx)
}

// Stop releases the search index, if any.
func (a *App) Stop() error {
	const op = "app.Stop"

	if a.index == nil {
		return nil
	}

	if err := a.index.Stop(); err != nil {
		a.log.Error("failed to close index", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
