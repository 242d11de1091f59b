package ocgfx

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/ocgfx/driver"
	"github.com/gogpu/ocgfx/ocd"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		cause error
		want  error
	}{
		{"host memory", driver.ErrOutOfHostMemory, ErrOutOfMemory},
		{"device memory", errors.Wrap(driver.ErrOutOfDeviceMemory, "vkAllocateMemory"), ErrOutOfMemory},
		{"init", driver.ErrInitializationFailed, ErrGraphicsInitFailed},
		{"out of date", driver.ErrOutOfDate, ErrSwapchainOutOfDate},
		{"not supported", driver.ErrNotSupported, ErrNotSupported},
		{"device lost", driver.ErrDeviceLost, ErrGraphics},
		{"corrupt file", ocd.ErrCorrupt, ErrInvalidArgs},
		{"builder misuse", ocd.ErrInvalidOperation, ErrInvalidOperation},
		{"already classified", errors.Wrap(ErrTooManyRenderTargets, "inner"), ErrTooManyRenderTargets},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(tt.cause, "step %d", 3)
			if !errors.Is(err, tt.want) {
				t.Errorf("classify(%v) = %v, want kind %v", tt.cause, err, tt.want)
			}
			if !errors.Is(err, tt.cause) {
				t.Error("classify dropped the cause")
			}
			if !strings.HasPrefix(err.Error(), "step 3") {
				t.Errorf("message %q lacks the step", err.Error())
			}
		})
	}
	if classify(nil, "nothing") != nil {
		t.Error("classify(nil) should be nil")
	}
}

func TestClassifyKeepsExistingKind(t *testing.T) {
	err := classify(errors.Mark(driver.ErrOutOfDate, ErrInvalidArgs), "wrapped")
	if !errors.Is(err, ErrInvalidArgs) {
		t.Fatalf("error lost its kind: %v", err)
	}
	if errors.Is(err, ErrSwapchainOutOfDate) {
		t.Error("an already classified error was marked a second time")
	}
}

func TestInitFailed(t *testing.T) {
	if err := initFailed(driver.ErrOutOfDeviceMemory, "create"); !errors.Is(err, ErrOutOfMemory) || errors.Is(err, ErrGraphicsInitFailed) {
		t.Errorf("initFailed(OOM) = %v, want ErrOutOfMemory only", err)
	}
	if err := initFailed(driver.ErrNotSupported, "create"); !errors.Is(err, ErrGraphicsInitFailed) {
		t.Errorf("initFailed(not supported) = %v, want ErrGraphicsInitFailed", err)
	}
}

func TestIsRecoverable(t *testing.T) {
	if !IsRecoverable(classify(driver.ErrOutOfDate, "present")) {
		t.Error("out of date should be recoverable")
	}
	if IsRecoverable(classify(driver.ErrDeviceLost, "submit")) {
		t.Error("device lost should not be recoverable")
	}
	if IsRecoverable(nil) {
		t.Error("nil should not be recoverable")
	}
}
