package ocgfx

import (
	"math/bits"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/ocgfx/driver"
)

// maxSamples returns the largest sample count in mask, or 1 for an empty
// mask.
func maxSamples(mask driver.SampleCountFlags) int {
	if mask == 0 {
		return 1
	}
	return 1 << (bits.Len32(uint32(mask)) - 1)
}

// ClampMSAA clamps requested into [1, max], where max is the smallest of
// the highest color, depth and stencil sample counts the adapter supports.
func ClampMSAA(requested int, limits driver.Limits) (samples, max int) {
	max = min(
		maxSamples(limits.FramebufferColorSampleCounts),
		maxSamples(limits.FramebufferDepthSampleCounts),
		maxSamples(limits.FramebufferStencilSampleCounts),
	)
	samples = requested
	if samples < 1 {
		samples = 1
	}
	if samples > max {
		samples = max
	}
	// Sample counts are powers of two.
	samples = 1 << (bits.Len(uint(samples)) - 1)
	return samples, max
}

// graphicsQueueFamily returns the first queue family with graphics support.
func graphicsQueueFamily(info driver.AdapterInfo) (int, bool) {
	for i, f := range info.QueueFamilies {
		if f.Flags&driver.QueueGraphics != 0 && f.Count > 0 {
			return i, true
		}
	}
	return -1, false
}

// selectAdapter picks the adapter at index, or the first adapter with a
// graphics queue when index is negative.
func selectAdapter(adapters []driver.Adapter, index int) (driver.Adapter, int, error) {
	if index >= 0 {
		if index >= len(adapters) {
			return nil, -1, errors.Wrapf(ErrInvalidArgs, "adapter %d of %d", index, len(adapters))
		}
		a := adapters[index]
		family, ok := graphicsQueueFamily(a.Info())
		if !ok {
			return nil, -1, errors.Wrapf(ErrGraphicsInitFailed, "adapter %q has no graphics queue", a.Info().Name)
		}
		return a, family, nil
	}
	for _, a := range adapters {
		if family, ok := graphicsQueueFamily(a.Info()); ok {
			return a, family, nil
		}
	}
	return nil, -1, errors.Wrapf(ErrGraphicsInitFailed, "no graphics queue on %d adapters", len(adapters))
}
