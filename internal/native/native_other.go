//go:build !windows && !darwin && !freebsd && !linux

package native

// DefaultLoader always fails on this platform.
type DefaultLoader struct{}

// Open returns ErrUnsupported.
func (DefaultLoader) Open(path string) (Module, error) {
	return nil, &LoadError{Path: path, Err: ErrUnsupported}
}
