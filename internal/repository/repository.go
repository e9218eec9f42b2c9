package repository

import (
	"errors"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrFileNotFound   = errors.New("file not found")
	ErrInvalidSurname = errors.New("surname can't be used as a file name")
)
