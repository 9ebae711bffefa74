package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// DefaultTimeout bounds a single external converter run.
const DefaultTimeout = 30 * time.Second

// External runs texconv as a subprocess. texconv writes <stem>.<format>
// into the output directory; the result is then moved to dst.
type External struct {
	Path    string
	Timeout time.Duration
}

func (e *External) Name() string { return "texconv" }

func (e *External) Convert(ctx context.Context, src, dst string) error {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	format := targetFormat(dst)
	outDir := filepath.Dir(dst)
	stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	produced := filepath.Join(outDir, stem+"."+format)

	// -y overwrite, -ft output format, -o output directory
	cmd := exec.CommandContext(ctx, e.Path, "-y", "-ft", format, "-o", outDir, src)
	cmd.WaitDelay = time.Second
	out, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		removePartial(produced, src)
		return fmt.Errorf("convert: texconv timed out after %s", timeout)
	}
	if err != nil {
		removePartial(produced, src)
		msg := strings.TrimSpace(string(out))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		if msg != "" {
			return fmt.Errorf("convert: texconv: %w: %s", err, msg)
		}
		return fmt.Errorf("convert: texconv: %w", err)
	}

	if _, err := os.Stat(produced); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNoOutput, produced)
		}
		return fmt.Errorf("convert: stat %s: %w", produced, err)
	}
	if produced != dst {
		if err := os.Rename(produced, dst); err != nil {
			return fmt.Errorf("convert: move %s: %w", produced, err)
		}
	}
	return nil
}

// removePartial deletes whatever a failed run left at produced.
func removePartial(produced, src string) {
	if produced != src {
		_ = os.Remove(produced)
	}
}
