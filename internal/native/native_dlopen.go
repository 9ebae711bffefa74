//go:build darwin || freebsd || linux

package native

import (
	"fmt"
	"unsafe"

	"github.com/ebitengine/purego"
)

// DefaultLoader loads shared objects with dlopen. There is no distinct
// initialisation-failure code on these platforms, so load errors are
// always per-file.
type DefaultLoader struct{}

// Open loads the shared object at path and resolves the three exports.
func (DefaultLoader) Open(path string) (Module, error) {
	h, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	m := &soModule{h: h}
	syms := map[string]uintptr{}
	for _, name := range []string{ExportVersion, ExportUnloadSize, ExportUnload} {
		sym, err := purego.Dlsym(h, name)
		if err != nil || sym == 0 {
			purego.Dlclose(h)
			return nil, fmt.Errorf("%w: %s", ErrMissingExport, name)
		}
		syms[name] = sym
	}
	purego.RegisterFunc(&m.version, syms[ExportVersion])
	purego.RegisterFunc(&m.unloadSize, syms[ExportUnloadSize])
	purego.RegisterFunc(&m.unload, syms[ExportUnload])
	return m, nil
}

type soModule struct {
	h          uintptr
	version    func() uint32
	unloadSize func(packed unsafe.Pointer) int32
	unload     func(packed, out unsafe.Pointer, outLen int32) int32
}

func (m *soModule) Version() (v uint32, err error) {
	defer guard(ExportVersion, &err)
	return m.version(), nil
}

func (m *soModule) UnloadSize(packed []byte) (n int32, err error) {
	if len(packed) == 0 {
		return 0, nil
	}
	p := pin(packed)
	defer p.Unpin()
	defer guard(ExportUnloadSize, &err)
	return m.unloadSize(unsafe.Pointer(&packed[0])), nil
}

func (m *soModule) Unload(packed, out []byte) (status int32, err error) {
	if len(packed) == 0 || len(out) == 0 {
		return 0, nil
	}
	p := pin(packed, out)
	defer p.Unpin()
	defer guard(ExportUnload, &err)
	return m.unload(unsafe.Pointer(&packed[0]), unsafe.Pointer(&out[0]), int32(len(out))), nil
}

func (m *soModule) Close() error {
	if m.h == 0 {
		return nil
	}
	err := purego.Dlclose(m.h)
	m.h = 0
	return err
}
