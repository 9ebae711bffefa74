package texture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
)

// ErrUnsupportedFormat is returned for formats the codecs cannot handle.
var ErrUnsupportedFormat = errors.New("texture: unsupported format")

// EncodeFormats lists the target formats Encode can produce.
var EncodeFormats = []string{"png", "jpg", "jpeg", "bmp", "tga", "webp"}

// JPEGQuality is used when encoding jpg targets.
const JPEGQuality = 95

// Decode decodes raw image bytes whose container is given by ext
// (".dds", ".png", ".bmp", ".jpg" or ".tga").
func Decode(data []byte, ext string) (*image.NRGBA, error) {
	var (
		img image.Image
		err error
	)
	r := bytes.NewReader(data)
	switch normalize(ext) {
	case "dds":
		return DecodeDDS(data)
	case "png":
		img, err = png.Decode(r)
	case "jpg", "jpeg":
		img, err = jpeg.Decode(r)
	case "bmp":
		img, err = bmp.Decode(r)
	case "tga":
		img, err = tga.Decode(r)
	default:
		return nil, fmt.Errorf("%w: decode %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("texture: decode %s: %w", normalize(ext), err)
	}
	return toNRGBA(img), nil
}

// Encode writes img to w in the given target format.
func Encode(w io.Writer, img image.Image, format string) error {
	var err error
	switch normalize(format) {
	case "png":
		err = png.Encode(w, img)
	case "jpg", "jpeg":
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: JPEGQuality})
	case "bmp":
		err = bmp.Encode(w, img)
	case "tga":
		err = tga.Encode(w, img)
	case "webp":
		err = nativewebp.Encode(w, img, nil)
	default:
		return fmt.Errorf("%w: encode %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return fmt.Errorf("texture: encode %s: %w", normalize(format), err)
	}
	return nil
}

// CanEncode reports whether Encode supports format.
func CanEncode(format string) bool {
	f := normalize(format)
	for _, e := range EncodeFormats {
		if e == f {
			return true
		}
	}
	return false
}

func normalize(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// toNRGBA converts any image to NRGBA format.
func toNRGBA(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok {
		return n
	}
	b := src.Bounds()
	dst := image.NewNRGBA(b)
	switch src.(type) {
	case *image.YCbCr, *image.Gray:
		// No alpha
		draw.Draw(dst, b, src, b.Min, draw.Src)
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				dst.SetNRGBA(x, y, color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA))
			}
		}
	}
	return dst
}
