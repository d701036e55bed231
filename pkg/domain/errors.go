package domain

import "errors"

// requested record does not exist.
var ErrMissing = errors.New("missing")

// write conflicts with an existing record or an immutable field.
var ErrConflict = errors.New("conflict")
