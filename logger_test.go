package ocgfx

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/gogpu/ocgfx/driver/noop"
)

func TestNopHandler(t *testing.T) {
	var h slog.Handler = nopHandler{}
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if h.Enabled(context.Background(), level) {
			t.Errorf("Enabled(%v) = true", level)
		}
	}
	if err := h.Handle(context.Background(), slog.Record{}); err != nil {
		t.Errorf("Handle() = %v", err)
	}
	if _, ok := h.WithAttrs([]slog.Attr{slog.Int("frame", 1)}).(nopHandler); !ok {
		t.Error("WithAttrs() left the nop handler")
	}
	if _, ok := h.WithGroup("swapchain").(nopHandler); !ok {
		t.Error("WithGroup() left the nop handler")
	}
}

func TestLoggerDefaultSilent(t *testing.T) {
	l := Logger()
	if l == nil {
		t.Fatal("Logger() returned nil")
	}
	// Default logger must be disabled at all levels.
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn} {
		if l.Enabled(context.Background(), level) {
			t.Errorf("default logger should not be enabled for %v", level)
		}
	}
}

func TestSetLogger(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var buf bytes.Buffer
	custom := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	SetLogger(custom)

	if Logger() != custom {
		t.Fatal("Logger() is not the logger passed to SetLogger")
	}
	Logger().Info("swapchain recreated", "generation", 2)
	if !strings.Contains(buf.String(), "generation=2") {
		t.Errorf("log output = %q", buf.String())
	}
}

func TestSetLoggerNilRestoresSilent(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	SetLogger(slog.Default())
	SetLogger(nil)
	if l := Logger(); l == nil || l.Enabled(context.Background(), slog.LevelError) {
		t.Error("SetLogger(nil) did not restore a silent logger")
	}
}

// recordingInstance captures the logger handed to a driver instance.
type recordingInstance struct {
	*noop.Instance
	logger *slog.Logger
}

func (r *recordingInstance) SetLogger(l *slog.Logger) { r.logger = l }

func TestSetLoggerPropagatesToInstance(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	inst := &recordingInstance{Instance: noop.New(noop.DefaultConfig())}
	ctx, err := NewContext(inst, WithShaderSPIRV(spirvStub, spirvStub))
	if err != nil {
		t.Fatalf("NewContext() error = %v", err)
	}
	defer ctx.Destroy()

	if inst.logger != orig {
		t.Error("NewContext did not hand the current logger to the instance")
	}

	custom := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	SetLogger(custom)
	if inst.logger != custom {
		t.Error("SetLogger did not propagate to the instance of a live context")
	}
}

func TestSetLoggerSkipsDestroyedContexts(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	inst := &recordingInstance{Instance: noop.New(noop.DefaultConfig())}
	ctx, err := NewContext(inst, WithShaderSPIRV(spirvStub, spirvStub))
	if err != nil {
		t.Fatalf("NewContext() error = %v", err)
	}
	ctx.Destroy()

	before := inst.logger
	SetLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	if inst.logger != before {
		t.Error("SetLogger reached an instance whose context was destroyed")
	}
}

func TestContextLogsLifecycle(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	ctx, _ := newTestContext(t, WithApplicationName("logtest"))
	_ = ctx

	out := buf.String()
	if !strings.Contains(out, "context created") || !strings.Contains(out, "app=logtest") {
		t.Errorf("missing context creation record, got: %s", out)
	}
}

func TestLoggerConcurrentAccess(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var wg sync.WaitGroup
	const goroutines = 32

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l := Logger(); l == nil {
				t.Error("Logger() returned nil")
			} else {
				l.Debug("concurrent read")
			}
		}()
	}
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			SetLogger(slog.Default())
			SetLogger(nil)
		}()
	}

	wg.Wait()
}
