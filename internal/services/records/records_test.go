package records

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contacts/internal/domain/models"
	"contacts/internal/repository"
	"contacts/internal/repository/filestore"
	"contacts/internal/repository/sqlite"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustParse(t *testing.T, line string) models.Record {
	t.Helper()

	r, err := models.Parse(line)
	require.NoError(t, err)
	return r
}

type setup struct {
	name     string
	useIndex bool
}

var setups = []setup{
	{name: "memory"},
	{name: "index", useIndex: true},
}

func newService(t *testing.T, dir string, useIndex bool) *Records {
	t.Helper()

	files := filestore.New(dir, ".txt")
	if !useIndex {
		svc := New(discardLogger(), files, nil)
		svc.Load(context.Background())
		return svc
	}

	idx, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Stop() })

	svc := New(discardLogger(), files, idx)
	svc.Load(context.Background())
	require.NoError(t, idx.Reset(context.Background(), svc.All()))

	return svc
}

func TestFindBySurname_ReturnsFirstMatch(t *testing.T) {
	for _, s := range setups {
		t.Run(s.name, func(t *testing.T) {
			svc := newService(t, t.TempDir(), s.useIndex)
			ctx := context.Background()

			smith := mustParse(t, "Smith John Paul 01.01.1970 1 m")
			smithson := mustParse(t, "Smithson Ann Lee 01.01.1971 2 f")
			_, err := svc.Create(ctx, smith)
			require.NoError(t, err)
			_, err = svc.Create(ctx, smithson)
			require.NoError(t, err)

			got, err := svc.FindBySurname(ctx, "smit")
			require.NoError(t, err)
			assert.Equal(t, smith, got)

			_, err = svc.FindBySurname(ctx, "jones")
			assert.ErrorIs(t, err, ErrRecordNotFound)
		})
	}
}

func TestFindByNameAndPhone(t *testing.T) {
	for _, s := range setups {
		t.Run(s.name, func(t *testing.T) {
			svc := newService(t, t.TempDir(), s.useIndex)
			ctx := context.Background()

			anna := mustParse(t, "Petrova Anna Ivanovna 02.02.1992 79990000001 f")
			hanna := mustParse(t, "Ivanova Hanna Petrovna 03.03.1993 79990000002 f")
			for _, r := range []models.Record{anna, hanna} {
				_, err := svc.Create(ctx, r)
				require.NoError(t, err)
			}

			got, err := svc.FindByName(ctx, "ANNA")
			require.NoError(t, err)
			assert.Equal(t, anna, got)

			got, err = svc.FindByPhone(ctx, 79990000002)
			require.NoError(t, err)
			assert.Equal(t, hanna, got)

			_, err = svc.FindByPhone(ctx, 7999)
			assert.ErrorIs(t, err, ErrRecordNotFound)
		})
	}
}

func TestCreate_PersistsAcrossRestart(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "users")
	ctx := context.Background()

	svc := newService(t, dir, false)
	record := mustParse(t, "Petrov Ivan Sergeevich 01.01.1990 79991234567 m")
	path, err := svc.Create(ctx, record)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Petrov.txt"), path)
	assert.Equal(t, []models.Record{record}, svc.All())

	restarted := newService(t, dir, false)
	all := restarted.All()
	require.Len(t, all, 1)
	assert.Equal(t, "Petrov Ivan Sergeevich 01.01.1990 79991234567 m", all[0].Format())
}

func TestCreate_WriteFailureLeavesMemoryUntouched(t *testing.T) {
	svc := newService(t, t.TempDir(), false)

	_, err := svc.Create(context.Background(), models.Record{Surname: "../escape", Name: "a", Patronymic: "b", BirthDate: "c", Gender: 'm'})
	assert.ErrorIs(t, err, repository.ErrInvalidSurname)
	assert.Empty(t, svc.All())
}

func TestDelete_RemovesRecordAndEmptyFile(t *testing.T) {
	for _, s := range setups {
		t.Run(s.name, func(t *testing.T) {
			dir := t.TempDir()
			svc := newService(t, dir, s.useIndex)
			ctx := context.Background()

			ivanov := mustParse(t, "Ivanov Petr Ivanovich 01.01.1980 1 m")
			_, err := svc.Create(ctx, ivanov)
			require.NoError(t, err)

			found, err := svc.FindBySurname(ctx, "Ivanov")
			require.NoError(t, err)

			res, err := svc.Delete(ctx, found)
			require.NoError(t, err)
			assert.True(t, res.FileRemoved)
			assert.NoFileExists(t, filepath.Join(dir, "Ivanov.txt"))

			_, err = svc.FindBySurname(ctx, "Ivanov")
			assert.ErrorIs(t, err, ErrRecordNotFound)

			assert.Empty(t, newService(t, dir, false).All())
		})
	}
}

func TestDelete_KeepsOtherRecordsOfSurname(t *testing.T) {
	dir := t.TempDir()
	svc := newService(t, dir, true)
	ctx := context.Background()

	first := mustParse(t, "Ivanov Petr Ivanovich 01.01.1980 1 m")
	second := mustParse(t, "Ivanov Olga Petrovna 01.01.1985 2 f")
	for _, r := range []models.Record{first, second} {
		_, err := svc.Create(ctx, r)
		require.NoError(t, err)
	}

	found, err := svc.FindByPhone(ctx, 2)
	require.NoError(t, err)

	res, err := svc.Delete(ctx, found)
	require.NoError(t, err)
	assert.False(t, res.FileRemoved)
	assert.Equal(t, []models.Record{first}, svc.All())

	reloaded := newService(t, dir, false).All()
	assert.Equal(t, []models.Record{first}, reloaded)
}

func TestDelete_FileAlreadyGone(t *testing.T) {
	dir := t.TempDir()
	svc := newService(t, dir, false)
	ctx := context.Background()

	r := mustParse(t, "Ivanov Petr Ivanovich 01.01.1980 1 m")
	path, err := svc.Create(ctx, r)
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	_, err = svc.Delete(ctx, r)
	assert.ErrorIs(t, err, repository.ErrFileNotFound)
	assert.Empty(t, svc.All())

	_, err = svc.Delete(ctx, r)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestLoad_ReportsBrokenFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Bad.txt"), []byte("Bad line\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Good.txt"), []byte("Good A B 01.01.2000 5 m\n"), 0o644))

	svc := New(discardLogger(), filestore.New(dir, ".txt"), nil)
	errs := svc.Load(context.Background())

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], models.ErrInvalidFormat)
	require.Len(t, svc.All(), 1)
	assert.Equal(t, "Good", svc.All()[0].Surname)
}

type brokenIndex struct{}

var errIndexBroken = errors.New("index broken")

func (brokenIndex) Add(context.Context, models.Record) error    { return errIndexBroken }
func (brokenIndex) Remove(context.Context, models.Record) error { return errIndexBroken }
func (brokenIndex) FindBySurname(context.Context, string) (models.Record, error) {
	return models.Record{}, errIndexBroken
}
func (brokenIndex) FindByName(context.Context, string) (models.Record, error) {
	return models.Record{}, errIndexBroken
}
func (brokenIndex) FindByPhone(context.Context, int64) (models.Record, error) {
	return models.Record{}, errIndexBroken
}

func TestFind_FallsBackWhenIndexFails(t *testing.T) {
	svc := New(discardLogger(), filestore.New(t.TempDir(), ".txt"), brokenIndex{})
	ctx := context.Background()

	r := mustParse(t, "Smith John Paul 01.01.1970 1 m")
	_, err := svc.Create(ctx, r)
	require.NoError(t, err)

	got, err := svc.FindBySurname(ctx, "smith")
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestLoad_BrokenFilesStayOutOfWarnLog(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Bad.txt"), []byte("Bad line\n"), 0o644))

	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn}))

	errs := New(log, filestore.New(dir, ".txt"), nil).Load(context.Background())
	require.Len(t, errs, 1)
	assert.Empty(t, logs.String())
}

type staleIndex struct {
	brokenIndex
	stale models.Record
}

func (s staleIndex) FindBySurname(context.Context, string) (models.Record, error) {
	return s.stale, nil
}

func TestDisableIndex_SearchesMemory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Smith.txt"), []byte("Smith John Paul 01.01.1970 1 m\n"), 0o644))

	stale := mustParse(t, "Smithers Old Entry 01.01.1900 9 m")
	svc := New(discardLogger(), filestore.New(dir, ".txt"), staleIndex{stale: stale})
	svc.Load(context.Background())

	got, err := svc.FindBySurname(context.Background(), "smith")
	require.NoError(t, err)
	assert.Equal(t, stale, got)

	svc.DisableIndex()

	got, err = svc.FindBySurname(context.Background(), "smith")
	require.NoError(t, err)
	assert.Equal(t, "Smith John Paul 01.01.1970 1 m", got.Format())
}
