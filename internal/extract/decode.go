// Package extract drives the native decompressor for a single packed file:
// load, size, decompress, classify, name, convert and write.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"dt1-extractor/internal/convert"
	"dt1-extractor/internal/native"
	"dt1-extractor/internal/packed"
	"dt1-extractor/internal/texture"
)

// ErrFatal marks a failure that makes the native library unusable for the
// rest of the run. Callers processing many files should stop.
var ErrFatal = errors.New("extract: native library unusable")

// Decoder holds everything needed to decode packed files.
type Decoder struct {
	Loader     native.Loader
	Library    string // path of the native decompressor
	Format     string // requested output format without dot; empty keeps the real format
	Converters []convert.Converter
	Logger     *slog.Logger
}

// Job identifies one packed file and where its output goes.
type Job struct {
	Path       string
	InputRoot  string // empty in single-file mode
	OutputRoot string
}

// Result describes the outcome of decoding one file.
type Result struct {
	Source    string
	Output    string
	Bytes     int
	RealExt   string
	Converted bool
	Converter string
	Version   uint32
	Header    packed.Header
	APISize   int32
	Status    int32
}

// DecodeFile runs the full pipeline for one file. A nil error means the
// output was written. Errors matching ErrFatal abort a batch; any other
// error fails only this file. The native module is released before
// DecodeFile returns on every path.
func (d *Decoder) DecodeFile(ctx context.Context, job Job) (res Result, err error) {
	log := d.logger()
	res.Source = job.Path
	defer func() {
		if err != nil {
			log.Error("[FAIL] "+job.Path, "error", err)
		}
	}()

	asset, err := packed.Read(job.Path)
	if err != nil {
		return res, err
	}

	data, res, err := d.Decompress(asset)
	if err != nil {
		return res, err
	}
	hdr := res.Header
	if err := d.write(ctx, job, data, &res); err != nil {
		return res, err
	}

	log.Info("[OK] "+job.Path,
		"output", res.Output,
		"size", humanize.IBytes(uint64(res.Bytes)),
		"real", res.RealExt,
		"sig", texture.Signature(data),
		"converter", res.Converter,
		"ver", fmt.Sprintf("0x%x", res.Version),
		"hdrUnc", hdr.UncompressedSize,
		"apiUnc", res.APISize,
	)
	return res, nil
}

// Decompress loads the native module, decompresses asset into a buffer
// sized by ChooseOutputSize and returns the payload cut to its effective
// length. Nothing is written to disk. Errors matching ErrFatal mean the
// module cannot be loaded for any file. The module is released before
// Decompress returns.
func (d *Decoder) Decompress(asset *packed.Asset) (data []byte, res Result, err error) {
	log := d.logger()
	res.Source = asset.Path
	res.Header = asset.Header

	mod, err := d.Loader.Open(d.Library)
	if err != nil {
		if errors.Is(err, native.ErrInitFailed) {
			log.Error("the native library failed to initialize; copies bundled with unofficial game builds often do. " +
				"Use the library from the retail release, the engine SDK or the GrpUnpacker tool.")
			return nil, res, fmt.Errorf("%w: %w", ErrFatal, err)
		}
		return nil, res, err
	}
	defer func() {
		if cerr := mod.Close(); cerr != nil {
			log.Debug("native module release failed", "error", cerr)
		}
	}()

	ver, err := mod.Version()
	if err != nil {
		return nil, res, fmt.Errorf("%w (%s)", err, diag(res))
	}
	res.Version = ver

	api, err := mod.UnloadSize(asset.Data)
	if err != nil {
		log.Debug("size query failed, using header hint", "file", asset.Path, "error", err)
		api = 0
	}
	res.APISize = api

	out := make([]byte, ChooseOutputSize(res.Header.UncompressedSize, int(api)))
	status, err := mod.Unload(asset.Data, out)
	res.Status = status
	if err != nil {
		return nil, res, fmt.Errorf("%w (%s)", err, diag(res))
	}
	if status <= 0 {
		return nil, res, fmt.Errorf("extract: %s returned %d (%s)", native.ExportUnload, status, diag(res))
	}

	data = out[:effectiveLength(int(api), len(out))]
	res.Bytes = len(data)
	return data, res, nil
}

// write names the payload and stores it, converting when a different
// format was requested. A failed conversion keeps the raw bytes under the
// content-detected extension.
func (d *Decoder) write(ctx context.Context, job Job, data []byte, res *Result) error {
	id := ParseIdentity(job.Path)
	dec := Decide(texture.DetectExtension(data), d.Format)
	res.RealExt = dec.RealExt

	outDir := filepath.Join(job.OutputRoot, relDir(job))
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("extract: create %s: %w", outDir, err)
	}

	rawPath := filepath.Join(outDir, id.Base+dec.RealExt)
	if err := os.WriteFile(rawPath, data, 0644); err != nil {
		return fmt.Errorf("extract: write %s: %w", rawPath, err)
	}
	res.Output = rawPath

	if !dec.Convert || len(d.Converters) == 0 {
		return nil
	}

	finalPath := filepath.Join(outDir, id.Base+dec.FinalExt)
	name, err := convert.Chain(ctx, d.Converters, rawPath, finalPath, d.logger())
	if err != nil {
		d.logger().Warn("conversion failed, kept "+dec.RealExt, "file", job.Path, "output", rawPath)
		return nil
	}
	if err := os.Remove(rawPath); err != nil {
		d.logger().Debug("temporary file not removed", "path", rawPath, "error", err)
	}
	res.Output = finalPath
	res.Converted = true
	res.Converter = name
	return nil
}

// relDir mirrors the input's directory below the output root.
func relDir(job Job) string {
	if job.InputRoot == "" {
		return ""
	}
	rel, err := filepath.Rel(job.InputRoot, job.Path)
	if err != nil {
		return ""
	}
	return filepath.Dir(rel)
}

func diag(r Result) string {
	return fmt.Sprintf("ver=0x%x, hdrUnc=%d, apiUnc=%d, hdrComp24=%d, flags=0x%02x",
		r.Version, r.Header.UncompressedSize, r.APISize, r.Header.CompressedSize, r.Header.Flags)
}

func (d *Decoder) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
