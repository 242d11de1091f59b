package ocd

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/x448/float16"
)

func solid(w, h uint32, px ...byte) []byte {
	out := make([]byte, 0, int(w*h)*len(px))
	for range w * h {
		out = append(out, px...)
	}
	return out
}

func TestNewImageBuilder_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		format ImageFormat
		w, h   uint32
		data   []byte
	}{
		{"unknown format", FormatUnknown, 1, 1, []byte{0, 0, 0, 0}},
		{"zero width", FormatRGBA8, 0, 1, nil},
		{"short data", FormatRGBA8, 2, 2, make([]byte, 15)},
		{"long data", FormatRGBA8, 2, 2, make([]byte, 17)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewImageBuilder(tt.format, tt.w, tt.h, tt.data)
			if !errors.Is(err, ErrInvalidArgs) {
				t.Errorf("err = %v, want ErrInvalidArgs", err)
			}
		})
	}
}

func TestImageBuilder_AddNextMipmapEnforcesHalving(t *testing.T) {
	b, err := NewImageBuilder(FormatRGBA8, 8, 4, solid(8, 4, 1, 2, 3, 4))
	if err != nil {
		t.Fatal(err)
	}

	err = b.AddNextMipmap(3, 2, solid(3, 2, 0, 0, 0, 0))
	if !errors.Is(err, ErrInvalidArgs) {
		t.Fatalf("3x2 after 8x4: err = %v, want ErrInvalidArgs", err)
	}
	if n := len(b.Mips()); n != 1 {
		t.Fatalf("mip count after rejected add = %d, want 1", n)
	}

	for _, sz := range [][2]uint32{{4, 2}, {2, 1}, {1, 1}} {
		if err := b.AddNextMipmap(sz[0], sz[1], solid(sz[0], sz[1], 0, 0, 0, 0)); err != nil {
			t.Fatalf("AddNextMipmap(%dx%d): %v", sz[0], sz[1], err)
		}
	}
	mips := b.Mips()
	if len(mips) != 4 {
		t.Fatalf("mip count = %d, want 4", len(mips))
	}
	for i, m := range mips {
		if m.Offset%8 != 0 {
			t.Errorf("mip %d offset %d is not 8-byte aligned", i, m.Offset)
		}
	}
}

func TestImageBuilder_GenerateMipmaps(t *testing.T) {
	b, err := NewImageBuilder(FormatRGBA8, 8, 8, solid(8, 8, 10, 20, 30, 255))
	if err != nil {
		t.Fatal(err)
	}
	if err := b.GenerateMipmaps(); err != nil {
		t.Fatal(err)
	}

	want := []uint32{8, 4, 2, 1}
	mips := b.Mips()
	if len(mips) != len(want) {
		t.Fatalf("mip count = %d, want %d", len(mips), len(want))
	}
	for i, m := range mips {
		if m.Width != want[i] || m.Height != want[i] {
			t.Errorf("mip %d = %dx%d, want %dx%d", i, m.Width, m.Height, want[i], want[i])
		}
	}
	if got := b.MipData(3); !bytes.Equal(got, []byte{10, 20, 30, 255}) {
		t.Errorf("1x1 mip = %v, want solid color", got)
	}
}

func TestImageBuilder_GenerateMipmapsNonSquare(t *testing.T) {
	b, err := NewImageBuilder(FormatRGBA8, 4, 1, solid(4, 1, 0, 0, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if err := b.GenerateMipmaps(); err != nil {
		t.Fatal(err)
	}
	mips := b.Mips()
	if len(mips) != 3 || mips[1].Width != 2 || mips[1].Height != 1 || mips[2].Width != 1 {
		t.Errorf("mips = %+v, want 4x1, 2x1, 1x1", mips)
	}
}

func TestImageBuilder_GenerateMipmapsAt1x1(t *testing.T) {
	b, err := NewImageBuilder(FormatRGBA8, 1, 1, []byte{1, 2, 3, 4})
	if err != nil {
		t.Fatal(err)
	}
	if err := b.GenerateMipmaps(); err != nil {
		t.Fatalf("GenerateMipmaps on 1x1: %v", err)
	}
	if n := len(b.Mips()); n != 1 {
		t.Errorf("mip count = %d, want 1", n)
	}
}

func TestDownsample_BoxFilter(t *testing.T) {
	src := []byte{
		0, 0, 0, 0, 4, 4, 4, 4,
		8, 8, 8, 8, 12, 12, 12, 12,
	}
	dst, w, h, err := downsample(FormatRGBA8, src, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if w != 1 || h != 1 {
		t.Fatalf("size = %dx%d, want 1x1", w, h)
	}
	if !bytes.Equal(dst, []byte{6, 6, 6, 6}) {
		t.Errorf("dst = %v, want [6 6 6 6]", dst)
	}
}

func TestDownsample_Half(t *testing.T) {
	one, zero := float16.Fromfloat32(1).Bits(), float16.Fromfloat32(0).Bits()
	px := func(v uint16) []byte {
		b := make([]byte, 8)
		for c := 0; c < 8; c += 2 {
			le.PutUint16(b[c:], v)
		}
		return b
	}
	src := append(append(append(px(one), px(zero)...), px(zero)...), px(one)...)
	dst, _, _, err := downsample(FormatRGBA16F, src, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got := half(dst); got != 0.5 {
		t.Errorf("filtered = %v, want 0.5", got)
	}
}

func TestHalfConversion(t *testing.T) {
	tests := []struct {
		f float32
		h uint16
	}{
		{0, 0x0000},
		{1, 0x3c00},
		{0.5, 0x3800},
		{-2, 0xc000},
		{65504, 0x7bff},
		{0x1p-14, 0x0400},
		{0x1p-24, 0x0001},
	}
	for _, tt := range tests {
		if got := float16.Fromfloat32(tt.f).Bits(); got != tt.h {
			t.Errorf("Fromfloat32(%v) = %#04x, want %#04x", tt.f, got, tt.h)
		}
		var b [2]byte
		le.PutUint16(b[:], tt.h)
		if got := half(b[:]); got != tt.f {
			t.Errorf("half(%#04x) = %v, want %v", tt.h, got, tt.f)
		}
	}
}

func TestImageBuilder_RenderRoundTrip(t *testing.T) {
	b, err := NewImageBuilder(FormatSRGBA8, 4, 4, solid(4, 4, 200, 100, 50, 255))
	if err != nil {
		t.Fatal(err)
	}
	if err := b.GenerateMipmaps(); err != nil {
		t.Fatal(err)
	}
	data, err := b.Render()
	if err != nil {
		t.Fatal(err)
	}

	if typ, err := DetectType(data); err != nil || typ != TypeImage {
		t.Fatalf("DetectType = %v, %v", typ, err)
	}
	im, err := ReadImage(data)
	if err != nil {
		t.Fatal(err)
	}
	if im.Format != FormatSRGBA8 {
		t.Errorf("format = %v", im.Format)
	}
	want := b.Mips()
	if len(im.Mips) != len(want) {
		t.Fatalf("mip count = %d, want %d", len(im.Mips), len(want))
	}
	for i := range want {
		if im.Mips[i] != want[i] {
			t.Errorf("mip %d = %+v, want %+v", i, im.Mips[i], want[i])
		}
		if !bytes.Equal(im.MipData(i), b.MipData(i)) {
			t.Errorf("mip %d data differs", i)
		}
	}
}
