// Package domain declares the error taxonomy shared across the service.
// Packages alias these sentinels for their own entities and wrap them with
// context; the HTTP layer maps them onto status codes with errors.Is.
package domain

import "errors"

var (
	// ErrNotFound: an entity id does not resolve. 404.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition: a borrow/return precondition does not hold. 400.
	ErrInvalidTransition = errors.New("invalid lending transition")

	// ErrInvalidArgument: a malformed input, e.g. a webhook URL that is not
	// an absolute http(s) URL. 400.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrStorageUnavailable: the catalog or event log storage is
	// unreachable. The in-flight operation aborts with no partial state. 503.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
