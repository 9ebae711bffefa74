package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"dt1-extractor/internal/extract"
	"dt1-extractor/internal/locate"
	"dt1-extractor/internal/native"
	"dt1-extractor/internal/packed"
	"dt1-extractor/internal/texture"
)

const previewBytes = 64

func main() {
	if err := run(os.Args[1:], os.Stdout, native.DefaultLoader{}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, w io.Writer, loader native.Loader) error {
	var lib string
	var decode bool
	var preview int

	flagSet := pflag.NewFlagSet("dt1inspect", pflag.ContinueOnError)
	flagSet.StringVar(&lib, "lib", "", "native decompressor library (default: searched next to the program)")
	flagSet.BoolVarP(&decode, "decode", "d", false, "decompress in memory and describe the payload")
	flagSet.IntVarP(&preview, "preview", "n", previewBytes, "bytes of hex preview to print (0 disables)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	files := flagSet.Args()
	if len(files) == 0 {
		return errors.New("usage: dt1inspect [--decode] [--lib path] <file.dt1>...")
	}
	if decode && lib == "" {
		lib = locate.New().NativeLibrary()
	}

	var dec *extract.Decoder
	if decode {
		dec = &extract.Decoder{
			Loader:  loader,
			Library: lib,
			Logger:  slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelWarn})),
		}
	}

	errs := 0
	for i, path := range files {
		err := inspect(w, path, preview, dec)
		if err == nil {
			continue
		}
		fmt.Fprintf(w, "ERR %s: %v\n", path, err)
		errs++
		if errors.Is(err, extract.ErrFatal) {
			return fmt.Errorf("stopped after %s: %d file(s) not inspected: %w", path, len(files)-i-1, err)
		}
	}
	if errs > 0 {
		return fmt.Errorf("%d of %d file(s) failed", errs, len(files))
	}
	return nil
}

// inspect prints the header of one packed file. A non-nil dec also
// decompresses it in memory and describes the payload.
func inspect(w io.Writer, path string, preview int, dec *extract.Decoder) error {
	asset, err := packed.Read(path)
	if err != nil {
		return err
	}
	h := asset.Header
	fmt.Fprintf(w, "%s\n", path)
	fmt.Fprintf(w, "  File:         %s\n", humanize.IBytes(uint64(len(asset.Data))))
	fmt.Fprintf(w, "  Uncompressed: %s (%d)\n", humanize.IBytes(uint64(h.UncompressedSize)), h.UncompressedSize)
	fmt.Fprintf(w, "  Compressed:   %s (%d)\n", humanize.IBytes(uint64(h.CompressedSize)), h.CompressedSize)
	fmt.Fprintf(w, "  Flags:        0x%02x\n", h.Flags)
	if preview > 0 {
		fmt.Fprint(w, hex.Dump(asset.Data[:min(preview, len(asset.Data))]))
	}
	if dec == nil {
		return nil
	}

	out, res, err := dec.Decompress(asset)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "  Library:      version 0x%x, size hint %d, status %d\n", res.Version, res.APISize, res.Status)
	fmt.Fprintf(w, "  Payload:      %s, signature %q, detected %s\n",
		humanize.IBytes(uint64(len(out))), texture.Signature(out), texture.DetectExtension(out))
	if info, err := texture.ParseDDS(out); err == nil {
		format := info.FourCC
		if format == "" {
			format = fmt.Sprintf("%d-bit", info.BitCount)
		}
		fmt.Fprintf(w, "  DDS:          %dx%d %s, %d mip(s)\n", info.Width, info.Height, format, info.MipCount)
	}
	return nil
}
