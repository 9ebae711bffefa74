package packed

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultExtensions are the packed-file extensions recognised when none are configured.
var DefaultExtensions = []string{".dt1", ".dt2"}

// ErrTooShort is returned for inputs smaller than HeaderSize.
var ErrTooShort = errors.New("packed: file too small")

// Read loads a packed asset from disk and parses its header.
func Read(path string) (*Asset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("packed: read %s: %w", path, err)
	}
	hdr, err := ParseHeader(raw)
	if err != nil {
		return nil, fmt.Errorf("%w (%d bytes): %s", err, len(raw), path)
	}
	return &Asset{Path: path, Data: raw, Header: hdr}, nil
}

// ParseHeader decodes the 8-byte header at the start of data.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, ErrTooShort
	}
	return Header{
		UncompressedSize: u24(data[0:3]),
		CompressedSize:   u24(data[4:7]),
		Flags:            data[7],
	}, nil
}

func u24(b []byte) int {
	return int(b[0]) | int(b[1])<<8 | int(b[2])<<16
}

// IsPacked reports whether name ends in one of exts, ignoring case.
// A nil exts uses DefaultExtensions.
func IsPacked(name string, exts []string) bool {
	if exts == nil {
		exts = DefaultExtensions
	}
	ext := filepath.Ext(name)
	for _, e := range exts {
		if strings.EqualFold(ext, NormalizeExt(e)) {
			return true
		}
	}
	return false
}

// NormalizeExt lowercases ext and ensures a leading dot.
func NormalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
