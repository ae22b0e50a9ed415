package repository

import "errors"

// ErrNotFound is returned when the requested trip or audit record does not
// exist. Handlers map it to a 404.
var ErrNotFound = errors.New("entity not found")
