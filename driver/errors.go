package driver

import "github.com/cockroachdb/errors"

// Backend failures. Backends wrap one of these so callers can classify a
// failure with errors.Is while the native cause stays attached.
var (
	ErrOutOfHostMemory      = errors.New("driver: out of host memory")
	ErrOutOfDeviceMemory    = errors.New("driver: out of device memory")
	ErrInitializationFailed = errors.New("driver: initialization failed")
	ErrDeviceLost           = errors.New("driver: device lost")
	ErrSurfaceLost          = errors.New("driver: surface lost")
	ErrOutOfDate            = errors.New("driver: swapchain out of date")
	ErrNotSupported         = errors.New("driver: not supported")
	ErrTimeout              = errors.New("driver: timeout")

	// ErrBackendNotAvailable is returned by the registry when no backend
	// with the requested name is registered.
	ErrBackendNotAvailable = errors.New("driver: backend not available")
)
