package errors

import "errors"

var (
	ErrInvalid       = errors.New("invalid")
	ErrNotFound      = errors.New("not found")
	ErrTooMany       = errors.New("too many requests")
	ErrInternal      = errors.New("internal")
	ErrInvalidFile   = errors.New("invalid file")
	ErrFileTooLarge  = errors.New("file too large")
	ErrEmptyDocument = errors.New("no extractable text")
	ErrAIUnavailable = errors.New("ai provider unavailable")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
