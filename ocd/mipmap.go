package ocd

import (
	"github.com/cockroachdb/errors"
	"github.com/x448/float16"
)

// downsample halves a w x h image of the given format with a 2x2 box
// filter. Odd edges reuse the last row or column. It returns the filtered
// pixels and their dimensions, which are max(1, w/2) x max(1, h/2).
func downsample(format ImageFormat, src []byte, w, h uint32) ([]byte, uint32, uint32, error) {
	bpp := uint32(format.BytesPerPixel())
	if bpp == 0 {
		return nil, 0, 0, errors.Wrapf(ErrInvalidArgs, "downsample: unsupported format %v", format)
	}
	if uint64(len(src)) < uint64(w)*uint64(h)*uint64(bpp) {
		return nil, 0, 0, errors.Wrapf(ErrInvalidArgs, "downsample: %d bytes for %dx%d", len(src), w, h)
	}

	dw := max(1, w/2)
	dh := max(1, h/2)
	dst := make([]byte, dw*dh*bpp)

	at := func(x, y uint32) uint32 { return (y*w + x) * bpp }

	for dy := range dh {
		for dx := range dw {
			sx, sy := dx*2, dy*2
			sx1 := min(sx+1, w-1)
			sy1 := min(sy+1, h-1)
			p0, p1, p2, p3 := at(sx, sy), at(sx1, sy), at(sx, sy1), at(sx1, sy1)
			o := (dy*dw + dx) * bpp

			switch format {
			case FormatRGBA16F:
				for c := uint32(0); c < 8; c += 2 {
					sum := half(src[p0+c:]) + half(src[p1+c:]) + half(src[p2+c:]) + half(src[p3+c:])
					le.PutUint16(dst[o+c:], float16.Fromfloat32(sum/4).Bits())
				}
			default:
				for c := range bpp {
					sum := uint16(src[p0+c]) + uint16(src[p1+c]) + uint16(src[p2+c]) + uint16(src[p3+c])
					dst[o+c] = byte(sum / 4)
				}
			}
		}
	}
	return dst, dw, dh, nil
}

// half decodes the little-endian binary16 value at the start of b.
func half(b []byte) float32 {
	return float16.Frombits(le.Uint16(b)).Float32()
}
