package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dt1-extractor/internal/batch"
	"dt1-extractor/internal/config"
	"dt1-extractor/internal/convert"
	"dt1-extractor/internal/extract"
	"dt1-extractor/internal/locate"
	"dt1-extractor/internal/logging"
	"dt1-extractor/internal/native"
)

// Exit codes.
const (
	exitOK           = 0
	exitFailures     = 1
	exitUsage        = 2
	exitNoLibrary    = 3
	exitNoFiles      = 4
	exitInputMissing = 5
)

const progressInterval = 2 * time.Second

// exitError carries a process exit code out of cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr, native.DefaultLoader{}))
}

type options struct {
	configFile string
	flags      config.Flags
}

// execute runs the CLI and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer, loader native.Loader) int {
	var opts options
	cmd := &cobra.Command{
		Use:   "dt1extract <input_file_or_dir> [output_dir] [path_to_native_lib] [format]",
		Short: "Extract textures from packed .DT1/.DT2 files",
		Long: "dt1extract decompresses packed texture files with the game's native decompressor, " +
			"detects the real image format from the decoded bytes and writes it next to the input " +
			"or below output_dir, mirroring the input tree.\n\n" +
			"When output_dir is omitted for a directory input, files are written beside their " +
			"inputs inside that directory, not in its parent directory as earlier console releases did.\n\n" +
			"Exit codes: 0 success, 1 failures, 2 bad usage, 3 native library not found, " +
			"4 no packed files found, 5 input path not found.",
		Args:          cobra.RangeArgs(1, 4),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args, opts, stdout, stderr, loader)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.configFile, "config", "", "path to a config file (yaml, json or toml)")
	f.StringVarP(&opts.flags.Format, "format", "f", "", "output format (dds, tga, bmp, png, jpg, webp); default keeps the detected format")
	f.StringVar(&opts.flags.Converter, "converter", "", "path to texconv (default: next to the program, then PATH)")
	f.StringVar(&opts.flags.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	f.StringVar(&opts.flags.LogFile, "log-file", "", "also write JSON logs to this rotating file")
	f.StringSliceVar(&opts.flags.Exclude, "exclude", nil, "glob of relative paths to skip (repeatable)")
	f.BoolVar(&opts.flags.Manifest, "manifest", false, "write manifest.json into the output directory")
	f.BoolVar(&opts.flags.NoBuiltinConvert, "no-builtin-convert", false, "do not fall back to the built-in converter")

	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(stderr, "Error:", ee.err)
		}
		return ee.code
	}
	fmt.Fprintln(stderr, "Error:", err)
	fmt.Fprintln(stderr)
	fmt.Fprint(stderr, cmd.UsageString())
	return exitUsage
}

func run(ctx context.Context, args []string, opts options, stdout, stderr io.Writer, loader native.Loader) error {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return &exitError{exitUsage, err}
	}

	flags := opts.flags
	if len(args) >= 2 {
		flags.OutputDir = args[1]
	}
	if len(args) >= 3 {
		flags.NativeLib = args[2]
	}
	if len(args) >= 4 {
		flags.Format = args[3]
	}
	cfg.Resolve(flags, locate.New())
	if err := cfg.Validate(); err != nil {
		return &exitError{exitUsage, err}
	}

	level, _ := logging.ParseLevel(cfg.LogLevel)
	logger, closer, err := logging.New(logging.Options{Level: level, File: cfg.LogFile, Stderr: stderr})
	if err != nil {
		logger.Warn("file logging disabled", "error", err)
	}
	defer closer.Close()

	input, err := filepath.Abs(args[0])
	if err != nil {
		return &exitError{exitUsage, err}
	}
	if info, err := os.Stat(cfg.NativeLib); err != nil || info.IsDir() {
		return &exitError{exitNoLibrary, fmt.Errorf("native library not found: %s", cfg.NativeLib)}
	}

	dec := &extract.Decoder{
		Loader:     loader,
		Library:    cfg.NativeLib,
		Format:     cfg.Format,
		Converters: converters(cfg, logger),
		Logger:     logger,
	}

	info, err := os.Stat(input)
	switch {
	case err != nil:
		return &exitError{exitInputMissing, fmt.Errorf("input path not found: %s", input)}
	case info.IsDir():
		return runBatch(ctx, input, cfg, dec, logger, stdout)
	default:
		return runSingle(ctx, input, cfg, dec)
	}
}

func runSingle(ctx context.Context, input string, cfg config.Config, dec *extract.Decoder) error {
	out := cfg.OutputDir
	if out == "" {
		out = filepath.Dir(input)
	}
	if _, err := dec.DecodeFile(ctx, extract.Job{Path: input, OutputRoot: out}); err != nil {
		return &exitError{code: exitFailures}
	}
	return nil
}

func runBatch(ctx context.Context, input string, cfg config.Config, dec *extract.Decoder, logger *slog.Logger, stdout io.Writer) error {
	out := cfg.OutputDir
	if out == "" {
		out = input
	}
	sum, err := batch.Run(ctx, batch.Config{
		InputDir:         input,
		OutputDir:        out,
		Extensions:       cfg.Extensions,
		Exclude:          cfg.Exclude,
		Logger:           logger,
		ProgressInterval: progressInterval,
	}, dec)
	if errors.Is(err, batch.ErrNoFiles) {
		return &exitError{exitNoFiles, err}
	}
	if err != nil {
		return &exitError{exitFailures, err}
	}

	if cfg.Manifest {
		path := filepath.Join(out, "manifest.json")
		if err := batch.WriteManifest(path, input, out, sum.Results); err != nil {
			logger.Warn("manifest write failed", "path", path, "error", err)
		} else {
			logger.Info("manifest written", "path", path)
		}
	}

	if sum.Aborted {
		fmt.Fprintf(stdout, "Stopped early: %d file(s) not processed.\n", sum.Unattempted())
	}
	if sum.Fail > 0 || sum.Aborted {
		return &exitError{code: exitFailures}
	}
	return nil
}

// converters builds the conversion chain for the configured format.
func converters(cfg config.Config, logger *slog.Logger) []convert.Converter {
	if cfg.Format == "" {
		return nil
	}
	var convs []convert.Converter
	if cfg.Converter != "" {
		convs = append(convs, &convert.External{Path: cfg.Converter, Timeout: cfg.ConvertTimeout})
	}
	if cfg.BuiltinConvert {
		convs = append(convs, convert.Builtin{})
	}
	if len(convs) == 0 {
		logger.Warn("no converter available; files keep their detected format", "format", cfg.Format)
	}
	return convs
}
