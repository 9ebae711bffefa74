package texture

import "bytes"

// Extensions returned by DetectExtension.
const (
	ExtDDS = ".dds"
	ExtPNG = ".png"
	ExtBMP = ".bmp"
	ExtJPG = ".jpg"
)

// signatures is checked in order; the first matching prefix wins.
var signatures = []struct {
	magic []byte
	ext   string
}{
	{[]byte("DDS "), ExtDDS},
	{[]byte{0x89, 'P', 'N', 'G'}, ExtPNG},
	{[]byte("BM"), ExtBMP},
	{[]byte{0xFF, 0xD8, 0xFF}, ExtJPG},
}

// DetectExtension classifies decoded bytes by their leading magic.
// Unknown content (typically headerless TGA) is reported as DDS, which is
// a safe container for the downstream converter.
func DetectExtension(data []byte) string {
	for _, s := range signatures {
		if bytes.HasPrefix(data, s.magic) {
			return s.ext
		}
	}
	return ExtDDS
}

// Signature renders the first four bytes of data as printable ASCII,
// replacing anything outside 0x20-0x7E with '.'.
func Signature(data []byte) string {
	n := min(4, len(data))
	sig := make([]byte, n)
	for i := range n {
		b := data[i]
		if b < 32 || b >= 127 {
			b = '.'
		}
		sig[i] = b
	}
	return string(sig)
}
