// Package convert turns a decoded texture file into another image format,
// either through the external texconv tool or the built-in codecs.
package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

var (
	// ErrNoOutput means the converter exited without producing the target file.
	ErrNoOutput = errors.New("convert: converter produced no output")
	// ErrUnsupported means the converter cannot handle the requested pair.
	ErrUnsupported = errors.New("convert: unsupported conversion")
)

// Converter converts the file at src into dst. The target format is the
// extension of dst. Implementations must leave src untouched.
type Converter interface {
	Name() string
	Convert(ctx context.Context, src, dst string) error
}

// Chain tries each converter in order and returns the name of the first one
// that succeeds. When all fail the joined errors are returned.
func Chain(ctx context.Context, convs []Converter, src, dst string, logger *slog.Logger) (string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(convs) == 0 {
		return "", fmt.Errorf("%w: no converter available", ErrUnsupported)
	}
	var errs []error
	for _, c := range convs {
		err := c.Convert(ctx, src, dst)
		if err == nil {
			return c.Name(), nil
		}
		logger.Warn("conversion failed", "converter", c.Name(), "file", filepath.Base(src), "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	return "", errors.Join(errs...)
}

// targetFormat returns the lowercase extension of path without the dot.
func targetFormat(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}
