package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/fatih/color"

	"contacts/internal/domain/models"
	"contacts/internal/lib/logger/sl"
	"contacts/internal/repository"
	"contacts/internal/services/records"
)

type Records interface {
	All() []models.Record
	Create(ctx context.Context, record models.Record) (path string, err error)
	FindBySurname(ctx context.Context, query string) (models.Record, error)
	FindByName(ctx context.Context, query string) (models.Record, error)
	FindByPhone(ctx context.Context, phone int64) (models.Record, error)
	Delete(ctx context.Context, record models.Record) (records.DeleteResult, error)
}

// Console is the interactive command loop. Menu and results go to out,
// errors go to errOut.
type Console struct {
	log     *slog.Logger
	records Records
	in      *bufio.Reader
	out     io.Writer
	errOut  io.Writer

	heading *color.Color
	success *color.Color
	failure *color.Color
}

const (
	choiceCreate = "1"
	choiceSearch = "2"
	choiceDelete = "3"
	choiceQuit   = "4"

	searchSurname = "1"
	searchName    = "2"
	searchPhone   = "3"
	searchBack    = "4"
)

func New(log *slog.Logger, svc Records, in io.Reader, out io.Writer, errOut io.Writer) *Console {
	return &Console{
		log:     log,
		records: svc,
		in:      bufio.NewReader(in),
		out:     out,
		errOut:  errOut,
		heading: color.New(color.Bold),
		success: color.New(color.FgGreen),
		failure: color.New(color.FgRed),
	}
}

// Run prints the loaded records and serves the main menu until the user
// quits, input ends or ctx is cancelled.
func (c *Console) Run(ctx context.Context) error {
	const op = "console.Run"

	log := c.log.With(slog.String("op", op))

	c.heading.Fprintln(c.out, "Existing records:")
	for _, r := range c.records.All() {
		fmt.Fprintln(c.out, r.Format())
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		c.heading.Fprintln(c.out, "Choose action:")
		fmt.Fprintln(c.out, "1. Create new record")
		fmt.Fprintln(c.out, "2. Search")
		fmt.Fprintln(c.out, "3. Search and delete")
		fmt.Fprintln(c.out, "4. Quit")

		choice, err := c.readLine()
		if err != nil {
			return c.endOfInput(log, err)
		}

		switch choice {
		case choiceCreate:
			err = c.create(ctx)
		case choiceSearch:
			_, _, err = c.search(ctx)
		case choiceDelete:
			err = c.searchAndDelete(ctx)
		case choiceQuit:
			fmt.Fprintln(c.out, "Shutdown.")
			log.Info("user quit")
			return nil
		default:
			fmt.Fprintln(c.out, "Invalid input. Please select an action from the list.")
		}

		if err != nil {
			return c.endOfInput(log, err)
		}
	}
}

func (c *Console) endOfInput(log *slog.Logger, err error) error {
	if errors.Is(err, io.EOF) {
		log.Info("input closed")
		return nil
	}

	log.Error("failed to read input", sl.Err(err))

	return fmt.Errorf("console.Run: %w", err)
}

// readLine returns the next input line of any length. A last line without a
// trailing newline is still returned; io.EOF comes after it.
func (c *Console) readLine() (string, error) {
	line, err := c.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}

	return strings.TrimSpace(line), nil
}

func (c *Console) prompt(text string) (string, error) {
	fmt.Fprintln(c.out, text)
	return c.readLine()
}

func (c *Console) create(ctx context.Context) error {
	line, err := c.prompt("Enter data in the format: Surname Name Patronymic DD.MM.YYYY PhoneNumber Gender (m/f)")
	if err != nil {
		return err
	}

	record, err := models.Parse(line)
	if err != nil {
		c.failure.Fprintf(c.errOut, "Error: %v\n", err)
		return nil
	}

	path, err := c.records.Create(ctx, record)
	if err != nil {
		c.failure.Fprintf(c.errOut, "Error writing to file: %v\n", err)
		return nil
	}

	c.success.Fprintf(c.out, "Data is saved to file %s\n", path)

	return nil
}

// search runs the search sub-menu. found is false when the user went back,
// picked an unknown criterion, gave a bad phone number or nothing matched;
// the reason has already been printed.
func (c *Console) search(ctx context.Context) (record models.Record, found bool, err error) {
	c.heading.Fprintln(c.out, "Select search criteria:")
	fmt.Fprintln(c.out, "1. Search by surname")
	fmt.Fprintln(c.out, "2. Search by name")
	fmt.Fprintln(c.out, "3. Search by phone number")
	fmt.Fprintln(c.out, "4. Back")

	choice, err := c.readLine()
	if err != nil {
		return models.Record{}, false, err
	}

	var (
		notFound string
		findErr  error
	)
	switch choice {
	case searchSurname:
		query, err := c.prompt("Enter surname to search:")
		if err != nil {
			return models.Record{}, false, err
		}
		record, findErr = c.records.FindBySurname(ctx, query)
		notFound = "No record found with this surname."
	case searchName:
		query, err := c.prompt("Enter name to search:")
		if err != nil {
			return models.Record{}, false, err
		}
		record, findErr = c.records.FindByName(ctx, query)
		notFound = "No record found with this name."
	case searchPhone:
		query, err := c.prompt("Enter phone number to search:")
		if err != nil {
			return models.Record{}, false, err
		}
		phone, err := models.ParsePhone(query)
		if err != nil {
			c.failure.Fprintf(c.errOut, "Error: %v\n", err)
			return models.Record{}, false, nil
		}
		record, findErr = c.records.FindByPhone(ctx, phone)
		notFound = "No record found with this phone number."
	case searchBack:
		return models.Record{}, false, nil
	default:
		fmt.Fprintln(c.out, "Invalid input. Please select a search criterion from the list.")
		return models.Record{}, false, nil
	}

	if findErr != nil {
		if errors.Is(findErr, records.ErrRecordNotFound) {
			fmt.Fprintln(c.out, notFound)
		} else {
			c.failure.Fprintf(c.errOut, "Error: %v\n", findErr)
		}
		return models.Record{}, false, nil
	}

	c.success.Fprintln(c.out, "Record found:")
	c.printRecord(record)

	return record, true, nil
}

func (c *Console) searchAndDelete(ctx context.Context) error {
	record, found, err := c.search(ctx)
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintln(c.out, "Record wasn't found.")
		return nil
	}

	res, err := c.records.Delete(ctx, record)
	switch {
	case err == nil && res.FileRemoved:
		c.success.Fprintf(c.out, "Record removed, file deleted: %s\n", res.Path)
	case err == nil:
		c.success.Fprintf(c.out, "Record removed from file %s\n", res.Path)
	case errors.Is(err, repository.ErrFileNotFound):
		c.failure.Fprintf(c.errOut, "File wasn't found: %s\n", res.Path)
	case errors.Is(err, repository.ErrRecordNotFound):
		c.failure.Fprintf(c.errOut, "Record wasn't found in file %s\n", res.Path)
	case errors.Is(err, records.ErrRecordNotFound):
		fmt.Fprintln(c.out, "Record wasn't found.")
	default:
		c.failure.Fprintf(c.errOut, "Unable to remove record: %v\n", err)
	}

	return nil
}

func (c *Console) printRecord(r models.Record) {
	fmt.Fprintln(c.out, "Surname: "+r.Surname)
	fmt.Fprintln(c.out, "Name: "+r.Name)
	fmt.Fprintln(c.out, "Patronymic: "+r.Patronymic)
	fmt.Fprintln(c.out, "Birth date: "+r.BirthDate)
	fmt.Fprintf(c.out, "Phone number: %d\n", r.PhoneNumber)
	fmt.Fprintf(c.out, "Gender: %c\n", r.Gender)
}
