package repositories

import "errors"

// Sentinel errors returned by every repository in this package. Handlers map
// them onto 404 and 409 responses respectively.
var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record conflict")
)
