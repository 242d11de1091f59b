package main

import (
	"flag"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/cockroachdb/errors"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/gogpu/ocgfx/ocd"
)

func runImage(args []string) error {
	flags := flag.NewFlagSet("image", flag.ContinueOnError)
	in := flags.String("in", "", "source image file")
	out := flags.String("out", "", "destination OCD file")
	format := flags.String("format", "srgba8", "pixel format: rgba8 or srgba8")
	mips := flags.Bool("mips", false, "generate the full mip chain")
	maxSize := flags.Int("max", 0, "scale down so neither side exceeds this many pixels (0 keeps the size)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *in == "" || *out == "" {
		flags.Usage()
		return flag.ErrHelp
	}
	f, err := parseFormat(*format)
	if err != nil {
		return err
	}

	src, err := decodeFile(*in)
	if err != nil {
		return err
	}
	data, err := encodeImage(src, f, *mips, *maxSize)
	if err != nil {
		return err
	}
	return writeFile(*out, data)
}

func parseFormat(s string) (ocd.ImageFormat, error) {
	switch s {
	case "rgba8":
		return ocd.FormatRGBA8, nil
	case "srgba8":
		return ocd.FormatSRGBA8, nil
	default:
		return ocd.FormatUnknown, errors.Newf("unknown format %q", s)
	}
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	img, kind, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	b := img.Bounds()
	logger.Info("decoded", "path", path, "codec", kind, "width", b.Dx(), "height", b.Dy())
	return img, nil
}

// encodeImage converts src to straight-alpha RGBA8, optionally scaling it
// to fit maxSize, and renders it as an OCD image.
func encodeImage(src image.Image, format ocd.ImageFormat, mips bool, maxSize int) ([]byte, error) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, errors.New("empty image")
	}
	if maxSize > 0 && (w > maxSize || h > maxSize) {
		if w >= h {
			w, h = maxSize, max(1, h*maxSize/w)
		} else {
			w, h = max(1, w*maxSize/h), maxSize
		}
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	}

	builder, err := ocd.NewImageBuilder(format, uint32(w), uint32(h), dst.Pix)
	if err != nil {
		return nil, err
	}
	if mips {
		if err := builder.GenerateMipmaps(); err != nil {
			return nil, err
		}
	}
	logger.Info("encoding", "format", format, "width", w, "height", h, "mips", len(builder.Mips()))
	return builder.Render()
}
