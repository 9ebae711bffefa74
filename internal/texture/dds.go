package texture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math/bits"
)

const (
	ddsHeaderSize = 128 // magic + 124-byte header
	ddpfFourCC    = 0x4
	ddpfRGB       = 0x40
	ddpfAlpha     = 0x1
)

var errDDSTruncated = errors.New("texture: dds data truncated")

// DDSInfo is the subset of the DDS header used for decoding.
type DDSInfo struct {
	Width, Height int
	MipCount      int
	FourCC        string
	BitCount      int
	Masks         [4]uint32 // R, G, B, A
	PFFlags       uint32
}

// ParseDDS reads the DDS header at the start of data.
func ParseDDS(data []byte) (DDSInfo, error) {
	if len(data) < ddsHeaderSize || string(data[:4]) != "DDS " {
		return DDSInfo{}, errors.New("texture: not a dds file")
	}
	le := binary.LittleEndian
	if le.Uint32(data[4:]) != 124 {
		return DDSInfo{}, fmt.Errorf("texture: dds header size %d", le.Uint32(data[4:]))
	}
	info := DDSInfo{
		Height:   int(le.Uint32(data[12:])),
		Width:    int(le.Uint32(data[16:])),
		MipCount: int(le.Uint32(data[28:])),
		PFFlags:  le.Uint32(data[80:]),
		BitCount: int(le.Uint32(data[88:])),
	}
	if info.PFFlags&ddpfFourCC != 0 {
		info.FourCC = string(data[84:88])
	}
	for i := range info.Masks {
		info.Masks[i] = le.Uint32(data[92+4*i:])
	}
	if info.Width <= 0 || info.Height <= 0 || info.Width > 16384 || info.Height > 16384 {
		return DDSInfo{}, fmt.Errorf("texture: dds dimensions %dx%d", info.Width, info.Height)
	}
	return info, nil
}

// DecodeDDS decodes the top mip level of a DDS file. Supported layouts are
// DXT1, DXT3, DXT5 and uncompressed 24/32-bit RGB(A) with channel masks.
func DecodeDDS(data []byte) (*image.NRGBA, error) {
	info, err := ParseDDS(data)
	if err != nil {
		return nil, err
	}
	body := data[ddsHeaderSize:]

	switch info.FourCC {
	case "DXT1":
		return decodeBlocks(body, info.Width, info.Height, 8, decodeDXT1Block)
	case "DXT3":
		return decodeBlocks(body, info.Width, info.Height, 16, decodeDXT3Block)
	case "DXT5":
		return decodeBlocks(body, info.Width, info.Height, 16, decodeDXT5Block)
	case "":
		if info.PFFlags&ddpfRGB == 0 {
			return nil, fmt.Errorf("texture: unsupported dds pixel format flags 0x%x", info.PFFlags)
		}
		return decodeUncompressed(body, info)
	default:
		return nil, fmt.Errorf("texture: unsupported dds fourcc %q", info.FourCC)
	}
}

type blockFunc func(block []byte, out *[16]color.NRGBA)

func decodeBlocks(body []byte, w, h, blockSize int, fn blockFunc) (*image.NRGBA, error) {
	bw, bh := (w+3)/4, (h+3)/4
	if len(body) < bw*bh*blockSize {
		return nil, errDDSTruncated
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	var px [16]color.NRGBA
	for by := 0; by < bh; by++ {
		for bx := 0; bx < bw; bx++ {
			off := (by*bw + bx) * blockSize
			fn(body[off:off+blockSize], &px)
			for y := 0; y < 4; y++ {
				for x := 0; x < 4; x++ {
					ix, iy := bx*4+x, by*4+y
					if ix < w && iy < h {
						img.SetNRGBA(ix, iy, px[y*4+x])
					}
				}
			}
		}
	}
	return img, nil
}

func rgb565(c uint16) (r, g, b uint8) {
	r = uint8(c>>11&0x1F) << 3
	g = uint8(c>>5&0x3F) << 2
	b = uint8(c&0x1F) << 3
	return r | r>>5, g | g>>6, b | b>>5
}

// colorBlock decodes the 8-byte color part shared by all DXT formats.
// With fourColor false, c0 <= c1 selects the 3-color + transparent mode.
func colorBlock(block []byte, out *[16]color.NRGBA, fourColor bool) {
	c0 := binary.LittleEndian.Uint16(block[0:])
	c1 := binary.LittleEndian.Uint16(block[2:])
	code := binary.LittleEndian.Uint32(block[4:])

	var pal [4]color.NRGBA
	r0, g0, b0 := rgb565(c0)
	r1, g1, b1 := rgb565(c1)
	pal[0] = color.NRGBA{R: r0, G: g0, B: b0, A: 0xFF}
	pal[1] = color.NRGBA{R: r1, G: g1, B: b1, A: 0xFF}
	if fourColor || c0 > c1 {
		pal[2] = color.NRGBA{R: lerp(r0, r1, 2, 1), G: lerp(g0, g1, 2, 1), B: lerp(b0, b1, 2, 1), A: 0xFF}
		pal[3] = color.NRGBA{R: lerp(r0, r1, 1, 2), G: lerp(g0, g1, 1, 2), B: lerp(b0, b1, 1, 2), A: 0xFF}
	} else {
		pal[2] = color.NRGBA{R: lerp(r0, r1, 1, 1), G: lerp(g0, g1, 1, 1), B: lerp(b0, b1, 1, 1), A: 0xFF}
		pal[3] = color.NRGBA{}
	}
	for i := 0; i < 16; i++ {
		out[i] = pal[code>>(2*i)&3]
	}
}

// lerp returns (a*wa + b*wb) / (wa+wb).
func lerp(a, b uint8, wa, wb int) uint8 {
	return uint8((int(a)*wa + int(b)*wb) / (wa + wb))
}

func decodeDXT1Block(block []byte, out *[16]color.NRGBA) {
	colorBlock(block, out, false)
}

func decodeDXT3Block(block []byte, out *[16]color.NRGBA) {
	colorBlock(block[8:], out, true)
	alpha := binary.LittleEndian.Uint64(block)
	for i := 0; i < 16; i++ {
		a := uint8(alpha >> (4 * i) & 0xF)
		out[i].A = a<<4 | a
	}
}

func decodeDXT5Block(block []byte, out *[16]color.NRGBA) {
	colorBlock(block[8:], out, true)
	a0, a1 := block[0], block[1]
	var pal [8]uint8
	pal[0], pal[1] = a0, a1
	if a0 > a1 {
		for i := 1; i < 7; i++ {
			pal[i+1] = uint8((int(a0)*(7-i) + int(a1)*i) / 7)
		}
	} else {
		for i := 1; i < 5; i++ {
			pal[i+1] = uint8((int(a0)*(5-i) + int(a1)*i) / 5)
		}
		pal[6], pal[7] = 0, 255
	}
	var idx uint64
	for i := 0; i < 6; i++ {
		idx |= uint64(block[2+i]) << (8 * i)
	}
	for i := 0; i < 16; i++ {
		out[i].A = pal[idx>>(3*i)&7]
	}
}

func decodeUncompressed(body []byte, info DDSInfo) (*image.NRGBA, error) {
	bpp := info.BitCount / 8
	if bpp != 3 && bpp != 4 {
		return nil, fmt.Errorf("texture: unsupported dds bit count %d", info.BitCount)
	}
	pitch := info.Width * bpp
	if len(body) < pitch*info.Height {
		return nil, errDDSTruncated
	}
	hasAlpha := info.PFFlags&ddpfAlpha != 0 && info.Masks[3] != 0

	img := image.NewNRGBA(image.Rect(0, 0, info.Width, info.Height))
	for y := 0; y < info.Height; y++ {
		row := body[y*pitch:]
		for x := 0; x < info.Width; x++ {
			var v uint32
			for i := 0; i < bpp; i++ {
				v |= uint32(row[x*bpp+i]) << (8 * i)
			}
			c := color.NRGBA{
				R: channel(v, info.Masks[0]),
				G: channel(v, info.Masks[1]),
				B: channel(v, info.Masks[2]),
				A: 0xFF,
			}
			if hasAlpha {
				c.A = channel(v, info.Masks[3])
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img, nil
}

// channel extracts the bits selected by mask and scales them to 8 bits.
func channel(v, mask uint32) uint8 {
	if mask == 0 {
		return 0
	}
	shift := bits.TrailingZeros32(mask)
	width := bits.OnesCount32(mask)
	c := (v & mask) >> shift
	if width >= 8 {
		return uint8(c >> (width - 8))
	}
	full := uint32(1)<<width - 1
	return uint8(c * 255 / full)
}
