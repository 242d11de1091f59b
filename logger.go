package ocgfx

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/ocgfx/driver"
)

// nopHandler drops every record. Enabled is false at all levels, so
// disabled call sites never format their arguments.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

func init() { loggerPtr.Store(newNopLogger()) }

// instances holds the driver instances of live contexts so SetLogger can
// reach them.
var (
	instancesMu sync.Mutex
	instances   = make(map[driver.Instance]int)
)

// SetLogger configures the logger for ocgfx and the driver backends of
// every live Context. By default, ocgfx produces no log output.
//
// SetLogger is safe for concurrent use. Pass nil to restore the default
// silent behavior.
//
// Log levels used by ocgfx:
//   - [slog.LevelDebug]: per-resource diagnostics (sizes, formats, memory types)
//   - [slog.LevelInfo]: lifecycle events (adapter selected, swapchain created)
//   - [slog.LevelWarn]: non-fatal issues (format fallback, present failures)
//
// Example:
//
//	ocgfx.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	instancesMu.Lock()
	defer instancesMu.Unlock()
	for inst := range instances {
		propagateLogger(inst, l)
	}
}

// Logger returns the logger ocgfx writes to. It is never nil.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// loggerSetter is implemented by driver instances that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

func propagateLogger(inst driver.Instance, l *slog.Logger) {
	if ls, ok := inst.(loggerSetter); ok {
		ls.SetLogger(l)
	}
}

// trackInstance registers inst for logger propagation and hands it the
// current logger.
func trackInstance(inst driver.Instance) {
	instancesMu.Lock()
	defer instancesMu.Unlock()
	instances[inst]++
	propagateLogger(inst, Logger())
}

func untrackInstance(inst driver.Instance) {
	instancesMu.Lock()
	defer instancesMu.Unlock()
	if instances[inst]--; instances[inst] <= 0 {
		delete(instances, inst)
	}
}
