package library

import "errors"

var (
	// ErrEmptyID is returned when a library is requested or constructed with an empty identifier.
	ErrEmptyID = errors.New("library id can't be empty")

	// ErrInvalidID is returned when a file library id would address a file outside its directory.
	ErrInvalidID = errors.New("library id can't contain a path separator or be a relative path element")

	// ErrMalformed is returned when library data exists but cannot be decoded.
	ErrMalformed = errors.New("malformed library data")

	// ErrUnsupportedVersion is returned when library data was written with an unknown format version.
	ErrUnsupportedVersion = errors.New("unsupported library data version")
)
