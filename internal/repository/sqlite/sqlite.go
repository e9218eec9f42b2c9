package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"contacts/internal/domain/models"
	"contacts/internal/repository"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	surname      TEXT NOT NULL,
	name         TEXT NOT NULL,
	patronymic   TEXT NOT NULL,
	birth_date   TEXT NOT NULL,
	phone        INTEGER NOT NULL,
	gender       TEXT NOT NULL,
	surname_fold TEXT NOT NULL,
	name_fold    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_surname_fold ON records(surname_fold);
CREATE INDEX IF NOT EXISTS idx_records_phone ON records(phone);`

const selectColumns = "SELECT surname, name, patronymic, birth_date, phone, gender FROM records"

// Repository mirrors the record sequence in SQLite so that searches do not
// have to scan memory. Row order (seq) follows insertion order.
type Repository struct {
	db *sql.DB
}

func New(storagePath string) (*Repository, error) {
	const op = "repository.sqlite.New"

	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// every connection to ":memory:" is a separate database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Repository{db: db}, nil
}

func (s *Repository) Stop() error {
	return s.db.Close()
}

// Reset replaces the whole index content with records, keeping their order.
func (s *Repository) Reset(ctx context.Context, records []models.Record) error {
	const op = "repository.sqlite.Reset"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM records"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertQuery)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, insertArgs(r)...); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

const insertQuery = `INSERT INTO records(surname, name, patronymic, birth_date, phone, gender, surname_fold, name_fold)
VALUES(?, ?, ?, ?, ?, ?, ?, ?)`

func insertArgs(r models.Record) []any {
	return []any{
		r.Surname, r.Name, r.Patronymic, r.BirthDate, r.PhoneNumber, string(r.Gender),
		strings.ToLower(r.Surname), strings.ToLower(r.Name),
	}
}

// Add appends record to the end of the index.
func (s *Repository) Add(ctx context.Context, record models.Record) error {
	const op = "repository.sqlite.Add"

	if _, err := s.db.ExecContext(ctx, insertQuery, insertArgs(record)...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Remove deletes the earliest row equal to record.
func (s *Repository) Remove(ctx context.Context, record models.Record) error {
	const op = "repository.sqlite.Remove"

	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE seq = (
		SELECT seq FROM records
		WHERE surname = ? AND name = ? AND patronymic = ? AND birth_date = ? AND phone = ? AND gender = ?
		ORDER BY seq LIMIT 1)`,
		record.Surname, record.Name, record.Patronymic, record.BirthDate, record.PhoneNumber, string(record.Gender),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrRecordNotFound)
	}

	return nil
}

// FindBySurname returns the earliest record whose surname contains query,
// ignoring case.
func (s *Repository) FindBySurname(ctx context.Context, query string) (models.Record, error) {
	const op = "repository.sqlite.FindBySurname"

	return s.findOne(ctx, op, selectColumns+" WHERE instr(surname_fold, ?) > 0 ORDER BY seq LIMIT 1", strings.ToLower(query))
}

// FindByName returns the earliest record whose given name contains query,
// ignoring case.
func (s *Repository) FindByName(ctx context.Context, query string) (models.Record, error) {
	const op = "repository.sqlite.FindByName"

	return s.findOne(ctx, op, selectColumns+" WHERE instr(name_fold, ?) > 0 ORDER BY seq LIMIT 1", strings.ToLower(query))
}

func (s *Repository) FindByPhone(ctx context.Context, phone int64) (models.Record, error) {
	const op = "repository.sqlite.FindByPhone"

	return s.findOne(ctx, op, selectColumns+" WHERE phone = ? ORDER BY seq LIMIT 1", phone)
}

func (s *Repository) findOne(ctx context.Context, op string, query string, args ...any) (models.Record, error) {
	row := s.db.QueryRowContext(ctx, query, args...)

	var (
		r      models.Record
		gender string
	)
	err := row.Scan(&r.Surname, &r.Name, &r.Patronymic, &r.BirthDate, &r.PhoneNumber, &gender)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Record{}, fmt.Errorf("%s: %w", op, repository.ErrRecordNotFound)
		}

		return models.Record{}, fmt.Errorf("%s: %w", op, err)
	}

	if gender != "" {
		r.Gender = rune(gender[0])
	}

	return r, nil
}
