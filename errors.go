package ocgfx

import (
	"github.com/cockroachdb/errors"
	"github.com/gogpu/ocgfx/driver"
	"github.com/gogpu/ocgfx/ocd"
)

// Error taxonomy. Every error returned by ocgfx is marked with exactly one
// of these, so callers test with errors.Is while the driver cause stays
// attached for printing.
var (
	// ErrInvalidArgs reports malformed or missing caller input.
	ErrInvalidArgs = errors.New("ocgfx: invalid arguments")
	// ErrOutOfMemory reports a host or device allocation failure.
	ErrOutOfMemory = errors.New("ocgfx: out of memory")
	// ErrGraphicsInitFailed reports an unrecoverable setup failure.
	ErrGraphicsInitFailed = errors.New("ocgfx: failed to initialize graphics")
	// ErrTooManyRenderTargets reports a full render target list.
	ErrTooManyRenderTargets = errors.New("ocgfx: too many render targets")
	// ErrInvalidOperation reports API misuse.
	ErrInvalidOperation = errors.New("ocgfx: invalid operation")
	// ErrNotSupported reports a missing capability.
	ErrNotSupported = errors.New("ocgfx: not supported")
	// ErrGraphics is a driver failure with no finer classification.
	ErrGraphics = errors.New("ocgfx: graphics error")
	// ErrSwapchainOutOfDate reports a swapchain that no longer matches its
	// surface. It is recovered by Swapchain.Recreate, which World.Draw
	// does on its own.
	ErrSwapchainOutOfDate = errors.New("ocgfx: swapchain out of date")
)

// kind maps a driver or ocd error onto the taxonomy.
func kind(err error) error {
	switch {
	case errors.IsAny(err, driver.ErrOutOfHostMemory, driver.ErrOutOfDeviceMemory):
		return ErrOutOfMemory
	case errors.Is(err, driver.ErrInitializationFailed):
		return ErrGraphicsInitFailed
	case errors.Is(err, driver.ErrOutOfDate):
		return ErrSwapchainOutOfDate
	case errors.Is(err, driver.ErrNotSupported):
		return ErrNotSupported
	case errors.IsAny(err, ocd.ErrInvalidArgs, ocd.ErrCorrupt, ocd.ErrUnsupportedType):
		return ErrInvalidArgs
	case errors.Is(err, ocd.ErrInvalidOperation):
		return ErrInvalidOperation
	default:
		return ErrGraphics
	}
}

// classify wraps err with the failing step and marks it with its taxonomy
// kind. Errors already carrying an ocgfx kind keep it.
func classify(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	wrapped := errors.Wrapf(err, format, args...)
	if errors.IsAny(err, ErrInvalidArgs, ErrOutOfMemory, ErrGraphicsInitFailed, ErrTooManyRenderTargets,
		ErrInvalidOperation, ErrNotSupported, ErrGraphics, ErrSwapchainOutOfDate) {
		return wrapped
	}
	return errors.Mark(wrapped, kind(err))
}

// initFailed classifies a setup failure. Out-of-memory keeps its kind;
// everything else becomes ErrGraphicsInitFailed.
func initFailed(err error, format string, args ...any) error {
	if errors.IsAny(err, driver.ErrOutOfHostMemory, driver.ErrOutOfDeviceMemory) {
		return classify(err, format, args...)
	}
	return errors.Mark(errors.Wrapf(err, format, args...), ErrGraphicsInitFailed)
}

// IsRecoverable reports whether a frame error goes away once the
// swapchain is recreated.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrSwapchainOutOfDate)
}
