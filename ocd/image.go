package ocd

import (
	"github.com/cockroachdb/errors"
)

// ImageBuilder accumulates the mip chain of an image and renders it as an
// OCD image file.
//
// Mip levels are added from level 0 upward and every level must be exactly
// max(1, previous/2) in each dimension.
type ImageBuilder struct {
	format ImageFormat
	mips   []Mip
	data   DataBlock
}

// NewImageBuilder starts an image whose level 0 is width x height pixels of
// the given format. data must hold exactly width*height*bpp bytes.
func NewImageBuilder(format ImageFormat, width, height uint32, data []byte) (*ImageBuilder, error) {
	if format.BytesPerPixel() == 0 {
		return nil, errors.Wrapf(ErrInvalidArgs, "image format %v", format)
	}
	if width == 0 || height == 0 {
		return nil, errors.Wrapf(ErrInvalidArgs, "image size %dx%d", width, height)
	}
	b := &ImageBuilder{format: format}
	if err := b.appendMip(width, height, data); err != nil {
		return nil, err
	}
	return b, nil
}

// Format returns the pixel format of the image.
func (b *ImageBuilder) Format() ImageFormat { return b.format }

// Mips returns a copy of the mip records added so far.
func (b *ImageBuilder) Mips() []Mip {
	return append([]Mip(nil), b.mips...)
}

// MipData returns the pixels of mip level i.
func (b *ImageBuilder) MipData(i int) []byte {
	m := b.mips[i]
	return b.data.Bytes()[m.Offset : m.Offset+m.Size]
}

// AddNextMipmap appends the next level of the chain. On error the chain is
// left unchanged.
func (b *ImageBuilder) AddNextMipmap(width, height uint32, data []byte) error {
	prev := b.mips[len(b.mips)-1]
	wantW, wantH := max(1, prev.Width>>1), max(1, prev.Height>>1)
	if width != wantW || height != wantH {
		return errors.Wrapf(ErrInvalidArgs, "mip %d is %dx%d, want %dx%d",
			len(b.mips), width, height, wantW, wantH)
	}
	return b.appendMip(width, height, data)
}

func (b *ImageBuilder) appendMip(width, height uint32, data []byte) error {
	size := uint64(width) * uint64(height) * uint64(b.format.BytesPerPixel())
	if uint64(len(data)) != size {
		return errors.Wrapf(ErrInvalidArgs, "mip %dx%d has %d bytes, want %d",
			width, height, len(data), size)
	}
	off := b.data.Write(data)
	b.data.WritePadding64()
	b.mips = append(b.mips, Mip{Offset: off, Size: size, Width: width, Height: height})
	return nil
}

// GenerateMipmaps box-filters the last mip level down to 1x1, appending
// every intermediate level. It does nothing when the chain already ends at
// 1x1.
func (b *ImageBuilder) GenerateMipmaps() error {
	for {
		last := b.mips[len(b.mips)-1]
		if last.Width == 1 && last.Height == 1 {
			return nil
		}
		next, w, h, err := downsample(b.format, b.MipData(len(b.mips)-1), last.Width, last.Height)
		if err != nil {
			return err
		}
		if w != max(1, last.Width>>1) || h != max(1, last.Height>>1) {
			return errors.AssertionFailedf("downsample %dx%d returned %dx%d", last.Width, last.Height, w, h)
		}
		if err := b.AddNextMipmap(w, h, next); err != nil {
			return err
		}
	}
}

// Render encodes the image as an OCD file.
func (b *ImageBuilder) Render() ([]byte, error) {
	out := make([]byte, imageHeaderSize+len(b.mips)*mipRecordSize+8, imageHeaderSize+len(b.mips)*mipRecordSize+8+len(b.data.Bytes()))
	le.PutUint32(out[0:], FourCC)
	le.PutUint32(out[4:], uint32(TypeImage))
	le.PutUint32(out[8:], uint32(b.format))
	le.PutUint32(out[12:], uint32(len(b.mips)))

	p := out[imageHeaderSize:]
	for i := range b.mips {
		b.mips[i].encode(p[i*mipRecordSize:])
	}
	le.PutUint64(p[len(b.mips)*mipRecordSize:], b.data.Len())
	return append(out, b.data.Bytes()...), nil
}
