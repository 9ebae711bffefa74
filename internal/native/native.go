// Package native loads the closed-source decompressor module and calls its
// three exports. Each Module is meant to live for exactly one input file.
package native

import (
	"errors"
	"fmt"
	"runtime"
)

// Export names resolved from the native module.
const (
	ExportVersion    = "GetCLVersion"
	ExportUnloadSize = "GetUnloadSize"
	ExportUnload     = "Unload"
)

var (
	// ErrInitFailed means the module was found but its initialisation
	// routine failed. Every later load in this process fails the same way.
	ErrInitFailed = errors.New("native: module initialization failed")

	// ErrMissingExport means one of the required exports is absent.
	ErrMissingExport = errors.New("native: required export not found")

	// ErrUnsupported is returned on platforms without a loader backend.
	ErrUnsupported = errors.New("native: dynamic loading not supported on this platform")
)

// Loader opens a native module by path.
type Loader interface {
	Open(path string) (Module, error)
}

// Module is a loaded decompressor with its exports resolved.
type Module interface {
	// Version returns the library's self-reported version.
	Version() (uint32, error)
	// UnloadSize returns the library's estimate of the decompressed size of
	// packed. Non-positive means unknown.
	UnloadSize(packed []byte) (int32, error)
	// Unload decompresses packed into out and returns the native status.
	Unload(packed, out []byte) (int32, error)
	// Close releases the module.
	Close() error
}

// LoadError describes a failed module load.
type LoadError struct {
	Path string
	Code uintptr // OS error code, 0 when not available
	Err  error
}

func (e *LoadError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("native: load %s failed (%d): %v", e.Path, e.Code, e.Err)
	}
	return fmt.Sprintf("native: load %s failed: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// pin keeps bufs at a fixed address until the returned pinner is unpinned.
// Empty buffers are skipped.
func pin(bufs ...[]byte) *runtime.Pinner {
	p := new(runtime.Pinner)
	for _, b := range bufs {
		if len(b) > 0 {
			p.Pin(&b[0])
		}
	}
	return p
}

// guard converts a panic raised during a foreign call into an error.
func guard(export string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("native: %s call failed: %v", export, r)
	}
}
