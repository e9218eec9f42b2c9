package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const fieldsCount = 6

const (
	GenderMale   = 'm'
	GenderFemale = 'f'
)

// ErrInvalidFormat is matched by every FormatError.
var ErrInvalidFormat = errors.New("invalid data format")

// FormatError reports record text that cannot be turned into a Record.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return e.Reason
}

func (e *FormatError) Is(target error) bool {
	return target == ErrInvalidFormat
}

type Record struct {
	Surname     string
	Name        string
	Patronymic  string
	BirthDate   string
	PhoneNumber int64
	Gender      rune
}

// Parse builds a Record from a line of six whitespace-separated fields:
// surname, name, patronymic, birth date, phone number and gender (m/f).
func Parse(line string) (Record, error) {
	fields := strings.Fields(line)
	if len(fields) != fieldsCount {
		return Record{}, &FormatError{Reason: "invalid amount of data"}
	}

	phone, err := ParsePhone(fields[4])
	if err != nil {
		return Record{}, err
	}

	gender := strings.ToLower(fields[5])
	if gender != string(GenderMale) && gender != string(GenderFemale) {
		return Record{}, &FormatError{Reason: "invalid gender, use 'm' or 'f'"}
	}

	return Record{
		Surname:     fields[0],
		Name:        fields[1],
		Patronymic:  fields[2],
		BirthDate:   fields[3],
		PhoneNumber: phone,
		Gender:      rune(gender[0]),
	}, nil
}

// ParsePhone parses a decimal phone number.
func ParsePhone(s string) (int64, error) {
	phone, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, &FormatError{Reason: "invalid phone number format"}
	}

	return phone, nil
}

// Format renders the record as a single line understood by Parse.
func (r Record) Format() string {
	return fmt.Sprintf("%s %s %s %s %d %c", r.Surname, r.Name, r.Patronymic, r.BirthDate, r.PhoneNumber, r.Gender)
}

func (r Record) FullName() string {
	return r.Surname + " " + r.Name + " " + r.Patronymic
}
