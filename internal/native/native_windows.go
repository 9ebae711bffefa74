//go:build windows

package native

import (
	"errors"
	"fmt"
	"path/filepath"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// searchFlags restricts dependency resolution to the module's own folder
// and System32.
const searchFlags = windows.LOAD_LIBRARY_SEARCH_DLL_LOAD_DIR | windows.LOAD_LIBRARY_SEARCH_SYSTEM32

// DefaultLoader loads DLLs with LoadLibraryEx.
type DefaultLoader struct{}

// Open loads the DLL at path and resolves the three exports.
func (DefaultLoader) Open(path string) (Module, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	h, err := windows.LoadLibraryEx(abs, 0, searchFlags)
	if err != nil {
		le := &LoadError{Path: abs, Err: err}
		var errno syscall.Errno
		if errors.As(err, &errno) {
			le.Code = uintptr(errno)
			if errno == windows.ERROR_DLL_INIT_FAILED {
				le.Err = fmt.Errorf("%w: %v", ErrInitFailed, err)
			}
		}
		return nil, le
	}

	m := &dllModule{h: h}
	for _, e := range []struct {
		name string
		dst  *uintptr
	}{
		{ExportVersion, &m.version},
		{ExportUnloadSize, &m.unloadSize},
		{ExportUnload, &m.unload},
	} {
		proc, err := windows.GetProcAddress(h, e.name)
		if err != nil || proc == 0 {
			windows.FreeLibrary(h)
			return nil, fmt.Errorf("%w: %s", ErrMissingExport, e.name)
		}
		*e.dst = proc
	}
	return m, nil
}

type dllModule struct {
	h          windows.Handle
	version    uintptr
	unloadSize uintptr
	unload     uintptr
}

func (m *dllModule) Version() (v uint32, err error) {
	defer guard(ExportVersion, &err)
	r, _, _ := syscall.SyscallN(m.version)
	return uint32(r), nil
}

func (m *dllModule) UnloadSize(packed []byte) (n int32, err error) {
	if len(packed) == 0 {
		return 0, nil
	}
	p := pin(packed)
	defer p.Unpin()
	defer guard(ExportUnloadSize, &err)
	r, _, _ := syscall.SyscallN(m.unloadSize, uintptr(unsafe.Pointer(&packed[0])))
	return int32(r), nil
}

func (m *dllModule) Unload(packed, out []byte) (status int32, err error) {
	if len(packed) == 0 || len(out) == 0 {
		return 0, nil
	}
	p := pin(packed, out)
	defer p.Unpin()
	defer guard(ExportUnload, &err)
	r, _, _ := syscall.SyscallN(m.unload,
		uintptr(unsafe.Pointer(&packed[0])),
		uintptr(unsafe.Pointer(&out[0])),
		uintptr(int32(len(out))),
	)
	return int32(r), nil
}

func (m *dllModule) Close() error {
	if m.h == 0 {
		return nil
	}
	err := windows.FreeLibrary(m.h)
	m.h = 0
	return err
}
