package ocd

import "github.com/cockroachdb/errors"

// Sentinel errors returned by builders and readers. Returned errors wrap
// one of these with context; test with errors.Is.
var (
	// ErrInvalidArgs reports malformed caller input.
	ErrInvalidArgs = errors.New("ocd: invalid arguments")

	// ErrInvalidOperation reports builder misuse, such as ending an object
	// that was never begun or interleaving the components of two objects.
	ErrInvalidOperation = errors.New("ocd: invalid operation")

	// ErrCorrupt reports OCD data that fails structural validation.
	ErrCorrupt = errors.New("ocd: corrupt data")

	// ErrUnsupportedType reports a resource type this package cannot decode.
	ErrUnsupportedType = errors.New("ocd: unsupported resource type")
)
