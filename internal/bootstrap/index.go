package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"contacts/internal/domain/models"
	"contacts/internal/lib/logger/sl"
)

type IndexBootstrapRepository interface {
	Reset(ctx context.Context, records []models.Record) error
}

// InitIndex rebuilds the search index from the records loaded from disk.
// Files are the source of truth, so whatever the index held before is dropped.
func InitIndex(
	ctx context.Context,
	log *slog.Logger,
	repo IndexBootstrapRepository,
	records []models.Record,
) error {
	const op = "bootstrap.InitIndex"

	if err := repo.Reset(ctx, records); err != nil {
		log.Error("failed to rebuild index", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("index rebuilt", slog.Int("records", len(records)))

	return nil
}
