package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"

	"dt1-extractor/internal/extract"
	"dt1-extractor/internal/packed"
)

// ErrNoFiles is returned when the input tree holds no packed files.
var ErrNoFiles = errors.New("batch: no packed files found")

// FileDecoder decodes one packed file. *extract.Decoder implements it.
type FileDecoder interface {
	DecodeFile(ctx context.Context, job extract.Job) (extract.Result, error)
}

// Config holds the inputs of a batch run.
type Config struct {
	InputDir   string
	OutputDir  string
	Extensions []string // packed extensions; nil uses packed.DefaultExtensions
	Exclude    []string // doublestar patterns matched against slash-separated relative paths
	Logger     *slog.Logger

	// ProgressInterval is the period of progress reports; zero disables them.
	ProgressInterval time.Duration
}

// Result holds the outcome of processing one file.
type Result struct {
	Path    string
	Success bool
	Error   string
	extract.Result
}

// Summary aggregates a batch run. The file that triggers an abort and the
// files after it are counted in neither OK nor Fail.
type Summary struct {
	Found     int
	Attempted int
	OK        int
	Fail      int
	Aborted   bool
	Results   []Result
}

// Unattempted is the number of files never handed to the decoder.
func (s Summary) Unattempted() int {
	return s.Found - s.Attempted
}

// Find returns every packed file under root, sorted by ordinal comparison
// of the full path.
func Find(root string, exts, exclude []string) ([]string, error) {
	for _, p := range exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("batch: invalid exclude pattern %q", p)
		}
	}

	var (
		mu    sync.Mutex
		files []string
	)
	err := fastwalk.Walk(&fastwalk.Config{Follow: false}, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if d.IsDir() || !packed.IsPacked(d.Name(), exts) {
			return nil
		}
		if excluded(root, path, exclude) {
			return nil
		}
		mu.Lock()
		files = append(files, path)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("batch: walk %s: %w", root, err)
	}
	slices.Sort(files)
	return files, nil
}

func excluded(root, path string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// Run decodes every packed file under cfg.InputDir one at a time. A fatal
// decoder error stops the run immediately; other errors are counted and the
// run continues. Context cancellation is honoured between files.
func Run(ctx context.Context, cfg Config, dec FileDecoder) (Summary, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	files, err := Find(cfg.InputDir, cfg.Extensions, cfg.Exclude)
	if err != nil {
		return Summary{}, err
	}
	if len(files) == 0 {
		return Summary{}, fmt.Errorf("%w in %s", ErrNoFiles, cfg.InputDir)
	}

	sum := Summary{Found: len(files)}
	var processed atomic.Int64
	stop := startProgress(log, cfg.ProgressInterval, len(files), &processed)
	defer stop()

	index := NewOutputIndex()
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			log.Warn("batch cancelled", "remaining", sum.Unattempted())
			return sum, err
		}

		sum.Attempted++
		res, err := dec.DecodeFile(ctx, extract.Job{
			Path:       path,
			InputRoot:  cfg.InputDir,
			OutputRoot: cfg.OutputDir,
		})
		if errors.Is(err, extract.ErrFatal) {
			sum.Aborted = true
			log.Error("processing stopped", "file", path, "unattempted", sum.Unattempted())
			break
		}
		processed.Add(1)

		r := Result{Path: path, Success: err == nil, Result: res}
		if err != nil {
			sum.Fail++
			r.Error = err.Error()
		} else {
			sum.OK++
			if prev, dup := index.Add(res.Output, path); dup {
				log.Warn("output overwritten by a later file", "output", res.Output, "previous", prev, "file", path)
			}
		}
		sum.Results = append(sum.Results, r)
	}

	log.Info(fmt.Sprintf("Done. OK=%d, FAIL=%d", sum.OK, sum.Fail))
	return sum, nil
}

// startProgress logs progress every interval until the returned func is called.
func startProgress(log *slog.Logger, interval time.Duration, total int, processed *atomic.Int64) func() {
	if interval <= 0 {
		return func() {}
	}
	start := time.Now()
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				p := processed.Load()
				if p > 0 {
					rate := float64(p) / time.Since(start).Seconds()
					log.Info(fmt.Sprintf("[%d/%d] %.1f files/sec", p, total, rate))
				}
			}
		}
	}()
	return func() { close(done) }
}
