package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"dt1-extractor/internal/texture"
)

// Builtin converts with the in-process codecs of the texture package.
type Builtin struct{}

func (Builtin) Name() string { return "builtin" }

func (Builtin) Convert(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	format := targetFormat(dst)
	if !texture.CanEncode(format) {
		return fmt.Errorf("%w: target %q", ErrUnsupported, format)
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("convert: read %s: %w", src, err)
	}
	img, err := texture.Decode(data, filepath.Ext(src))
	if err != nil {
		return err
	}

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("convert: create %s: %w", dst, err)
	}
	if err := texture.Encode(f, img, format); err != nil {
		f.Close()
		os.Remove(dst)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("convert: close %s: %w", dst, err)
	}
	return nil
}
