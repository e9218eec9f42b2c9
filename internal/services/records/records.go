package records

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"contacts/internal/domain/models"
	"contacts/internal/lib/logger/sl"
	"contacts/internal/repository"
)

// Records owns the in-memory record sequence and keeps it in step with the
// surname files and, when configured, the search index.
type Records struct {
	log     *slog.Logger
	files   FileStore
	index   Index
	records []models.Record
}

type FileStore interface {
	LoadAll(ctx context.Context) ([]models.Record, []error)
	Append(ctx context.Context, record models.Record) (path string, err error)
	Remove(ctx context.Context, record models.Record) (fileRemoved bool, path string, err error)
}

type Index interface {
	Add(ctx context.Context, record models.Record) error
	Remove(ctx context.Context, record models.Record) error
	FindBySurname(ctx context.Context, query string) (models.Record, error)
	FindByName(ctx context.Context, query string) (models.Record, error)
	FindByPhone(ctx context.Context, phone int64) (models.Record, error)
}

// DeleteResult describes what Delete did on disk.
type DeleteResult struct {
	Path        string
	FileRemoved bool
}

var ErrRecordNotFound = errors.New("record not found")

// New returns a new instance of the Records service. index may be nil, in
// which case searches scan the in-memory sequence.
func New(log *slog.Logger, files FileStore, index Index) *Records {
	return &Records{
		log:   log,
		files: files,
		index: index,
	}
}

// Load replaces the in-memory sequence with everything found on disk. Files
// that could not be read are skipped; their errors are logged and returned.
func (r *Records) Load(ctx context.Context) []error {
	const op = "records.Load"

	log := r.log.With(slog.String("op", op))

	records, errs := r.files.LoadAll(ctx)
	// callers report these to the user
	for _, err := range errs {
		log.Debug("failed to load file", sl.Err(err))
	}

	r.records = records
	log.Info("records loaded", slog.Int("count", len(records)), slog.Int("failed_files", len(errs)))

	return errs
}

// All returns a copy of the sequence in insertion order.
func (r *Records) All() []models.Record {
	out := make([]models.Record, len(r.records))
	copy(out, r.records)
	return out
}

// Create persists record to its surname file and appends it to the sequence.
// Nothing is added to memory if the write fails.
func (r *Records) Create(ctx context.Context, record models.Record) (string, error) {
	const op = "records.Create"

	log := r.log.With(
		slog.String("op", op),
		slog.String("surname", record.Surname),
	)

	path, err := r.files.Append(ctx, record)
	if err != nil {
		log.Error("failed to save record", sl.Err(err))

		return path, fmt.Errorf("%s: %w", op, err)
	}

	r.records = append(r.records, record)

	if r.index != nil {
		if err := r.index.Add(ctx, record); err != nil {
			r.dropIndex(log, err)
		}
	}

	log.Info("record saved", slog.String("path", path))

	return path, nil
}

// FindBySurname returns the first record whose surname contains query,
// ignoring case.
func (r *Records) FindBySurname(ctx context.Context, query string) (models.Record, error) {
	const op = "records.FindBySurname"

	return r.find(ctx, op, query, Index.FindBySurname, func(rec models.Record) bool {
		return containsFold(rec.Surname, query)
	})
}

// FindByName returns the first record whose given name contains query,
// ignoring case.
func (r *Records) FindByName(ctx context.Context, query string) (models.Record, error) {
	const op = "records.FindByName"

	return r.find(ctx, op, query, Index.FindByName, func(rec models.Record) bool {
		return containsFold(rec.Name, query)
	})
}

// FindByPhone returns the first record with exactly this phone number.
func (r *Records) FindByPhone(ctx context.Context, phone int64) (models.Record, error) {
	const op = "records.FindByPhone"

	byPhone := func(idx Index, ctx context.Context, _ string) (models.Record, error) {
		return idx.FindByPhone(ctx, phone)
	}

	return r.find(ctx, op, fmt.Sprint(phone), byPhone, func(rec models.Record) bool {
		return rec.PhoneNumber == phone
	})
}

func (r *Records) find(
	ctx context.Context,
	op string,
	query string,
	indexed func(Index, context.Context, string) (models.Record, error),
	match func(models.Record) bool,
) (models.Record, error) {
	log := r.log.With(
		slog.String("op", op),
		slog.String("query", query),
	)

	if r.index != nil {
		rec, err := indexed(r.index, ctx, query)
		switch {
		case err == nil:
			log.Debug("record found in index")
			return rec, nil
		case errors.Is(err, repository.ErrRecordNotFound):
			log.Debug("record not found in index")
			return models.Record{}, fmt.Errorf("%s: %w", op, ErrRecordNotFound)
		default:
			r.dropIndex(log, err)
		}
	}

	for _, rec := range r.records {
		if match(rec) {
			log.Debug("record found")
			return rec, nil
		}
	}

	log.Debug("record not found")

	return models.Record{}, fmt.Errorf("%s: %w", op, ErrRecordNotFound)
}

// Delete removes record from its surname file and from the sequence. The
// file is removed when no records are left in it.
//
// A record whose file or line is already gone from disk is still dropped from
// memory; the disk error is returned alongside the result.
func (r *Records) Delete(ctx context.Context, record models.Record) (DeleteResult, error) {
	const op = "records.Delete"

	log := r.log.With(
		slog.String("op", op),
		slog.String("surname", record.Surname),
	)

	pos := r.position(record)
	if pos < 0 {
		log.Warn("record not found")

		return DeleteResult{}, fmt.Errorf("%s: %w", op, ErrRecordNotFound)
	}

	fileRemoved, path, err := r.files.Remove(ctx, record)
	res := DeleteResult{Path: path, FileRemoved: fileRemoved}
	if err != nil && !errors.Is(err, repository.ErrFileNotFound) && !errors.Is(err, repository.ErrRecordNotFound) {
		log.Error("failed to remove record from file", sl.Err(err))

		return res, fmt.Errorf("%s: %w", op, err)
	}
	if err != nil {
		log.Warn("record is missing on disk", sl.Err(err))
	}

	r.records = append(r.records[:pos], r.records[pos+1:]...)

	if r.index != nil {
		if err := r.index.Remove(ctx, record); err != nil {
			r.dropIndex(log, err)
		}
	}

	log.Info("record deleted", slog.String("path", path), slog.Bool("file_removed", fileRemoved))

	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}

	return res, nil
}

func (r *Records) position(record models.Record) int {
	for i, rec := range r.records {
		if rec == record {
			return i
		}
	}
	return -1
}

// DisableIndex makes every search scan the in-memory sequence.
func (r *Records) DisableIndex() {
	r.index = nil
}

// dropIndex stops using an index that failed; the in-memory scan gives the
// same answers.
func (r *Records) dropIndex(log *slog.Logger, err error) {
	log.Error("search index failed, falling back to memory scan", sl.Err(err))
	r.index = nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
