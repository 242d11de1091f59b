package ocgfx

import (
	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/ocgfx/driver"
	"github.com/gogpu/ocgfx/ocd"
)

// ImageUsage is a bitmask of the ways an Image is used.
type ImageUsage uint32

// Image usages.
const (
	// ImageUsageShaderInput images are sampled by the mesh shader.
	ImageUsageShaderInput ImageUsage = 1 << iota
	// ImageUsageRenderTarget images receive the output of a render target.
	ImageUsageRenderTarget
)

// Filter selects the shared sampler an image is bound with.
type Filter int

// Filters.
const (
	FilterNearest Filter = iota
	FilterLinear
)

// MipLevel locates one mip level inside ImageDescriptor.Data.
type MipLevel struct {
	Offset uint64
	Size   uint64
	Width  uint32
	Height uint32
}

// ImageDescriptor describes an image. Mips lists every level, largest
// first. Data is optional; when present it holds the pixels of every
// level at the offsets given by Mips.
type ImageDescriptor struct {
	Format gputypes.TextureFormat
	Usage  ImageUsage
	Mips   []MipLevel
	Data   []byte
}

// Image is a device-local 2D image with a view over all of its levels.
// Images are not reference counted: the owner keeps an image alive while
// any object or render target uses it.
type Image struct {
	ctx    *Context
	handle driver.Image
	alloc  *allocation
	view   driver.ImageView

	format gputypes.TextureFormat
	usage  ImageUsage
	width  uint32
	height uint32
	mips   uint32
	filter Filter

	// layout is the layout the image is in between frames.
	layout driver.ImageLayout
}

// nativeUsage maps usage onto driver image usages. Render target outputs
// also accept copies for single-sampled contexts.
func nativeUsage(u ImageUsage, upload bool) driver.ImageUsage {
	var out driver.ImageUsage
	if u&ImageUsageShaderInput != 0 {
		out |= driver.ImageUsageSampled
	}
	if u&ImageUsageRenderTarget != 0 {
		out |= driver.ImageUsageColorAttachment | driver.ImageUsageInputAttachment | driver.ImageUsageTransferDst
	}
	if upload {
		out |= driver.ImageUsageTransferDst
	}
	return out
}

// readableLayout is the layout an image rests in: shader readable when
// sampled, general otherwise.
func readableLayout(u ImageUsage) driver.ImageLayout {
	if u&ImageUsageShaderInput != 0 {
		return driver.LayoutShaderReadOnly
	}
	return driver.LayoutGeneral
}

func validateImage(desc *ImageDescriptor) error {
	if desc == nil {
		return errors.Wrap(ErrInvalidArgs, "nil image descriptor")
	}
	if len(desc.Mips) == 0 {
		return errors.Wrap(ErrInvalidArgs, "image has no mip levels")
	}
	if desc.Usage == 0 {
		return errors.Wrap(ErrInvalidArgs, "image has no usage")
	}
	if desc.Format == gputypes.TextureFormatUndefined {
		return errors.Wrap(ErrInvalidArgs, "image format undefined")
	}
	for i, m := range desc.Mips {
		if m.Width == 0 || m.Height == 0 {
			return errors.Wrapf(ErrInvalidArgs, "mip %d is %dx%d", i, m.Width, m.Height)
		}
		if desc.Data != nil && (m.Offset > uint64(len(desc.Data)) || m.Size > uint64(len(desc.Data))-m.Offset) {
			return errors.Wrapf(ErrInvalidArgs, "mip %d at %d+%d exceeds %d bytes of data", i, m.Offset, m.Size, len(desc.Data))
		}
	}
	return nil
}

// CreateImage creates an image and, when desc.Data is set, uploads every
// mip level through a staging buffer. The call blocks until the upload
// has finished. On failure nothing created by the call is left behind.
func (c *Context) CreateImage(desc *ImageDescriptor) (*Image, error) {
	if err := validateImage(desc); err != nil {
		return nil, err
	}
	base := desc.Mips[0]
	img := &Image{
		ctx:    c,
		format: desc.Format,
		usage:  desc.Usage,
		width:  base.Width,
		height: base.Height,
		mips:   uint32(len(desc.Mips)),
		filter: FilterNearest,
		layout: readableLayout(desc.Usage),
	}
	var err error
	img.handle, img.alloc, err = c.newDeviceImage(&driver.ImageDescriptor{
		Format:    desc.Format,
		Width:     base.Width,
		Height:    base.Height,
		MipLevels: img.mips,
		Samples:   1,
		Usage:     nativeUsage(desc.Usage, desc.Data != nil),
	})
	if err != nil {
		return nil, err
	}

	if desc.Data != nil {
		err = c.upload(img, desc)
	} else {
		err = c.sub.oneShot(func(cb driver.CommandBuffer) {
			cb.PipelineBarrier(driver.StageTopOfPipe, driver.StageFragmentShader, []driver.ImageBarrier{{
				Image:     img.handle,
				OldLayout: driver.LayoutUndefined,
				NewLayout: img.layout,
				DstAccess: driver.AccessShaderRead,
			}})
		})
	}
	if err != nil {
		img.Destroy()
		return nil, err
	}

	img.view, err = c.dev.CreateImageView(img.handle, &driver.ImageViewDescriptor{
		Format:    desc.Format,
		Aspect:    driver.AspectColor,
		MipLevels: img.mips,
	})
	if err != nil {
		img.Destroy()
		return nil, classify(err, "create image view")
	}
	Logger().Debug("ocgfx: image created",
		"format", desc.Format, "width", img.width, "height", img.height, "mips", img.mips, "upload", desc.Data != nil)
	return img, nil
}

// upload copies desc.Data into img and leaves it in its readable layout.
// The staging buffer lives until the copy has completed.
func (c *Context) upload(img *Image, desc *ImageDescriptor) error {
	size := uint64(len(desc.Data))
	staging, alloc, err := c.newHostBuffer(size, driver.BufferUsageTransferSrc)
	if err != nil {
		return err
	}
	defer func() {
		staging.Destroy()
		alloc.free()
	}()

	p, err := alloc.mem.Map(0, size)
	if err != nil {
		return classify(err, "map staging buffer")
	}
	copy(p, desc.Data)
	// Unmapping does not imply a flush.
	err = alloc.mem.Flush(0, size)
	alloc.mem.Unmap()
	if err != nil {
		return classify(err, "flush staging buffer")
	}

	regions := make([]driver.BufferImageCopy, len(desc.Mips))
	for i, m := range desc.Mips {
		regions[i] = driver.BufferImageCopy{
			BufferOffset: m.Offset,
			MipLevel:     uint32(i),
			Width:        m.Width,
			Height:       m.Height,
		}
	}
	return c.sub.oneShot(func(cb driver.CommandBuffer) {
		cb.PipelineBarrier(driver.StageTopOfPipe, driver.StageTransfer, []driver.ImageBarrier{{
			Image:     img.handle,
			OldLayout: driver.LayoutUndefined,
			NewLayout: driver.LayoutTransferDst,
			DstAccess: driver.AccessTransferWrite,
		}})
		cb.CopyBufferToImage(staging, img.handle, driver.LayoutTransferDst, regions)
		cb.PipelineBarrier(driver.StageTransfer, driver.StageFragmentShader, []driver.ImageBarrier{{
			Image:     img.handle,
			OldLayout: driver.LayoutTransferDst,
			NewLayout: img.layout,
			SrcAccess: driver.AccessTransferWrite,
			DstAccess: driver.AccessShaderRead,
		}})
	})
}

// Destroy releases the view, the image and its memory.
func (img *Image) Destroy() {
	if img == nil || img.handle == nil {
		return
	}
	if img.view != nil {
		img.view.Destroy()
		img.view = nil
	}
	img.handle.Destroy()
	img.handle = nil
	img.alloc.free()
}

// SetFilter selects the sampler the image is bound with. Objects pick up
// the change on their next draw.
func (img *Image) SetFilter(f Filter) { img.filter = f }

// Filter returns the image's sampler filter.
func (img *Image) Filter() Filter { return img.filter }

// Width returns the width of mip level 0.
func (img *Image) Width() uint32 { return img.width }

// Height returns the height of mip level 0.
func (img *Image) Height() uint32 { return img.height }

// MipCount returns the number of mip levels.
func (img *Image) MipCount() uint32 { return img.mips }

// Format returns the pixel format.
func (img *Image) Format() gputypes.TextureFormat { return img.format }

// Usage returns the usage the image was created with.
func (img *Image) Usage() ImageUsage { return img.usage }

// binding is what a descriptor set needs to sample img.
type binding struct {
	view    driver.ImageView
	sampler driver.Sampler
	layout  driver.ImageLayout
}

func (img *Image) binding() binding {
	return binding{view: img.view, sampler: img.ctx.sampler(img.filter), layout: img.layout}
}

// TextureFormatFromOCD maps an OCD image format onto a texture format.
func TextureFormatFromOCD(f ocd.ImageFormat) (gputypes.TextureFormat, error) {
	switch f {
	case ocd.FormatRGBA8:
		return gputypes.TextureFormatRGBA8Unorm, nil
	case ocd.FormatSRGBA8:
		return gputypes.TextureFormatRGBA8UnormSrgb, nil
	case ocd.FormatRGBA16F:
		return gputypes.TextureFormatRGBA16Float, nil
	default:
		return gputypes.TextureFormatUndefined, errors.Wrapf(ErrNotSupported, "OCD image format %v", f)
	}
}

// CreateImageFromOCD creates a shader input image from a decoded OCD
// image, uploading every mip level.
func (c *Context) CreateImageFromOCD(src *ocd.Image) (*Image, error) {
	if src == nil {
		return nil, errors.Wrap(ErrInvalidArgs, "nil OCD image")
	}
	format, err := TextureFormatFromOCD(src.Format)
	if err != nil {
		return nil, err
	}
	desc := &ImageDescriptor{Format: format, Usage: ImageUsageShaderInput, Data: src.Data}
	for _, m := range src.Mips {
		desc.Mips = append(desc.Mips, MipLevel{Offset: m.Offset, Size: m.Size, Width: m.Width, Height: m.Height})
	}
	return c.CreateImage(desc)
}
