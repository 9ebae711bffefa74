package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"dt1-extractor/internal/locate"
	"dt1-extractor/internal/packed"
)

// EnvPrefix is the prefix of environment variables that override settings.
const EnvPrefix = "DT1X"

// Defaults.
const (
	DefaultConvertTimeout = 30 * time.Second
	DefaultLogLevel       = "info"
)

// Config holds all configurable paths and extraction settings.
type Config struct {
	// Paths
	NativeLib string `mapstructure:"native_lib"`
	Converter string `mapstructure:"converter"`
	OutputDir string `mapstructure:"output_dir"`
	LogFile   string `mapstructure:"log_file"`

	// Extraction settings
	Format         string        `mapstructure:"format"`
	Extensions     []string      `mapstructure:"extensions"`
	Exclude        []string      `mapstructure:"exclude"`
	ConvertTimeout time.Duration `mapstructure:"convert_timeout"`
	BuiltinConvert bool          `mapstructure:"builtin_convert"`
	Manifest       bool          `mapstructure:"manifest"`
	LogLevel       string        `mapstructure:"log_level"`
}

// Load reads an optional config file plus DT1X_* environment variables.
// An empty path loads defaults and environment only.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("native_lib", "")
	v.SetDefault("converter", "")
	v.SetDefault("output_dir", "")
	v.SetDefault("log_file", "")
	v.SetDefault("format", "")
	v.SetDefault("extensions", packed.DefaultExtensions)
	v.SetDefault("exclude", []string{})
	v.SetDefault("convert_timeout", DefaultConvertTimeout)
	v.SetDefault("builtin_convert", true)
	v.SetDefault("manifest", false)
	v.SetDefault("log_level", DefaultLogLevel)
}

// Flags holds CLI values that override config file settings.
type Flags struct {
	NativeLib        string
	Converter        string
	OutputDir        string
	Format           string
	LogLevel         string
	LogFile          string
	Exclude          []string
	Manifest         bool
	NoBuiltinConvert bool
}

// Resolve applies CLI overrides, then fills empty paths using loc.
// CLI flags take priority when non-empty.
func (c *Config) Resolve(flags Flags, loc *locate.Locator) {
	if flags.NativeLib != "" {
		c.NativeLib = flags.NativeLib
	}
	if flags.Converter != "" {
		c.Converter = flags.Converter
	}
	if flags.OutputDir != "" {
		c.OutputDir = flags.OutputDir
	}
	if flags.Format != "" {
		c.Format = flags.Format
	}
	if flags.LogLevel != "" {
		c.LogLevel = flags.LogLevel
	}
	if flags.LogFile != "" {
		c.LogFile = flags.LogFile
	}
	if len(flags.Exclude) > 0 {
		c.Exclude = append(c.Exclude, flags.Exclude...)
	}
	if flags.Manifest {
		c.Manifest = true
	}
	if flags.NoBuiltinConvert {
		c.BuiltinConvert = false
	}

	c.Format = NormalizeFormat(c.Format)
	exts := make([]string, 0, len(c.Extensions))
	for _, e := range c.Extensions {
		exts = append(exts, packed.NormalizeExt(e))
	}
	if len(exts) == 0 {
		exts = slices.Clone(packed.DefaultExtensions)
	}
	c.Extensions = exts
	if c.ConvertTimeout <= 0 {
		c.ConvertTimeout = DefaultConvertTimeout
	}

	if loc == nil {
		return
	}
	if c.NativeLib == "" {
		c.NativeLib = loc.NativeLibrary()
	} else if abs, err := filepath.Abs(c.NativeLib); err == nil {
		c.NativeLib = abs
	}
	if c.Converter == "" {
		c.Converter, _ = loc.Converter()
	}
}

// NormalizeFormat lowercases a requested format and strips a leading dot.
// "auto" means no explicit format.
func NormalizeFormat(f string) string {
	f = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(f), "."))
	if f == "auto" {
		return ""
	}
	return f
}

// ValidationError represents a config validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors represents multiple validation failures.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	var b strings.Builder
	b.WriteString("config validation failed:\n")
	for _, err := range e {
		b.WriteString("  - ")
		b.WriteString(err.Error())
		b.WriteString("\n")
	}
	return b.String()
}

// Validate checks a resolved configuration.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if c.Format != "" && !validFormat(c.Format) {
		errs = append(errs, ValidationError{
			Field:   "format",
			Message: fmt.Sprintf("%q must be 2-4 letters or digits", c.Format),
		})
	}
	if c.ConvertTimeout < 0 {
		errs = append(errs, ValidationError{Field: "convert_timeout", Message: "must not be negative"})
	}
	for _, e := range c.Extensions {
		if len(e) < 2 || !strings.HasPrefix(e, ".") {
			errs = append(errs, ValidationError{Field: "extensions", Message: fmt.Sprintf("invalid extension %q", e)})
		}
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{Field: "log_level", Message: fmt.Sprintf("unknown level %q", c.LogLevel)})
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func validFormat(f string) bool {
	if len(f) < 2 || len(f) > 4 {
		return false
	}
	for _, r := range f {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// IsValidation reports whether err came from Validate.
func IsValidation(err error) bool {
	var ve ValidationErrors
	return errors.As(err, &ve)
}
