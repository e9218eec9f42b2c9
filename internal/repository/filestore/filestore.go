package filestore

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"contacts/internal/domain/models"
	"contacts/internal/repository"
)

const defaultExtension = ".txt"

// Repository keeps records in flat text files, one file per surname and one
// record per line.
type Repository struct {
	dir string
	ext string
}

// LoadError reports a file that was skipped during LoadAll.
type LoadError struct {
	File string
	Line int
	Err  error
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func New(dir string, ext string) *Repository {
	if ext == "" {
		ext = defaultExtension
	}

	return &Repository{dir: dir, ext: ext}
}

// Path returns the file that holds records with the given surname.
func (s *Repository) Path(surname string) (string, error) {
	if surname == "" || surname == "." || surname == ".." || strings.ContainsAny(surname, `/\`) {
		return "", repository.ErrInvalidSurname
	}

	return filepath.Join(s.dir, surname+s.ext), nil
}

// LoadAll reads every record file in the directory in name order.
//
// A file with a malformed line contributes no records; its error is collected
// and loading goes on with the next file. A missing directory is not an error.
func (s *Repository) LoadAll(ctx context.Context) ([]models.Record, []error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, []error{&LoadError{File: s.dir, Err: pkgerrors.Wrap(err, "failed to list directory")}}
	}

	var (
		records []models.Record
		errs    []error
	)
	for _, entry := range entries {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if !entry.Type().IsRegular() || !strings.HasSuffix(entry.Name(), s.ext) {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		fileRecords, err := readFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		records = append(records, fileRecords...)
	}

	return records, errs
}

func readFile(path string) ([]models.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{File: path, Err: pkgerrors.Wrap(err, "failed to open file")}
	}
	defer f.Close()

	var records []models.Record
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}

		record, err := models.Parse(text)
		if err != nil {
			return nil, &LoadError{File: path, Line: line, Err: err}
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, &LoadError{File: path, Err: pkgerrors.Wrap(err, "failed to read file")}
	}

	return records, nil
}

// Append adds the record as a new line of its surname file, creating the
// directory and the file when needed.
func (s *Repository) Append(ctx context.Context, record models.Record) (string, error) {
	const op = "repository.filestore.Append"

	path, err := s.Path(record.Surname)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return path, pkgerrors.Wrapf(err, "%s: failed to create directory", op)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return path, pkgerrors.Wrapf(err, "%s: failed to open file", op)
	}

	line := record.Format() + "\n"

	// a hand-edited file may lack the final newline
	terminated, err := endsWithNewline(f)
	if err != nil {
		_ = f.Close()
		return path, pkgerrors.Wrapf(err, "%s: failed to read file", op)
	}
	if !terminated {
		line = "\n" + line
	}

	if _, err := f.WriteString(line); err != nil {
		_ = f.Close()
		return path, pkgerrors.Wrapf(err, "%s: failed to write record", op)
	}

	if err := f.Close(); err != nil {
		return path, pkgerrors.Wrapf(err, "%s: failed to close file", op)
	}

	return path, nil
}

// Remove drops the first line equal to record from its surname file. Other
// lines are kept as they are. When no record lines remain the file itself is
// removed and fileRemoved is true.
func (s *Repository) Remove(ctx context.Context, record models.Record) (fileRemoved bool, path string, err error) {
	const op = "repository.filestore.Remove"

	path, err = s.Path(record.Surname)
	if err != nil {
		return false, "", fmt.Errorf("%s: %w", op, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, path, fmt.Errorf("%s: %w", op, repository.ErrFileNotFound)
		}
		return false, path, pkgerrors.Wrapf(err, "%s: failed to read file", op)
	}

	lines := strings.SplitAfter(string(data), "\n")
	var (
		kept    strings.Builder
		removed bool
		left    int
	)
	for _, line := range lines {
		if line == "" {
			continue
		}
		if !removed {
			if r, err := models.Parse(line); err == nil && r == record {
				removed = true
				continue
			}
		}
		if strings.TrimSpace(line) != "" {
			left++
		}
		kept.WriteString(line)
	}

	if !removed {
		return false, path, fmt.Errorf("%s: %w", op, repository.ErrRecordNotFound)
	}

	if left == 0 {
		if err := os.Remove(path); err != nil {
			return false, path, pkgerrors.Wrapf(err, "%s: failed to remove file", op)
		}
		return true, path, nil
	}

	if err := writeFileAtomic(path, []byte(kept.String())); err != nil {
		return false, path, pkgerrors.Wrapf(err, "%s: failed to rewrite file", op)
	}

	return false, path, nil
}

// DeleteFile removes the whole file of the given surname.
func (s *Repository) DeleteFile(ctx context.Context, surname string) (string, error) {
	const op = "repository.filestore.DeleteFile"

	path, err := s.Path(surname)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return path, fmt.Errorf("%s: %w", op, repository.ErrFileNotFound)
		}
		return path, pkgerrors.Wrapf(err, "%s: unable to remove file", op)
	}

	return path, nil
}

func endsWithNewline(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return true, nil
	}

	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return false, err
	}

	return last[0] == '\n', nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, path)
}
