package locate

import (
	"os"
	"path/filepath"
	"runtime"
)

// SiblingTool is the folder name of the unpacker whose copy of the native
// library is known to work.
const SiblingTool = "GrpUnpacker"

// Locator finds the native decompressor and the optional external converter.
// Zero-valued fields are filled from the running process.
type Locator struct {
	ExeDir  string // directory of the running program
	WorkDir string // working directory
	PathEnv string // value of the PATH variable
	GOOS    string

	// Exists reports whether a regular file is present at path.
	Exists func(path string) bool
}

// New returns a Locator bound to the current process.
func New() *Locator {
	l := &Locator{GOOS: runtime.GOOS, PathEnv: os.Getenv("PATH")}
	if exe, err := os.Executable(); err == nil {
		l.ExeDir = filepath.Dir(exe)
	}
	l.WorkDir, _ = os.Getwd()
	return l
}

// LibraryName is the file name of the native decompressor on the target OS.
func (l *Locator) LibraryName() string {
	switch l.goos() {
	case "windows":
		return "VELoader.dll"
	case "darwin":
		return "libVELoader.dylib"
	default:
		return "libVELoader.so"
	}
}

// ConverterName is the file name of the external converter on the target OS.
func (l *Locator) ConverterName() string {
	if l.goos() == "windows" {
		return "texconv.exe"
	}
	return "texconv"
}

// LibraryCandidates lists native library paths in priority order.
func (l *Locator) LibraryCandidates() []string {
	name := l.LibraryName()
	dirs := []string{
		l.ExeDir,
		filepath.Join(l.WorkDir, SiblingTool),
		filepath.Join(l.WorkDir, "..", SiblingTool),
		filepath.Join(l.WorkDir, ".."),
	}
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		out = append(out, filepath.Clean(filepath.Join(d, name)))
	}
	return out
}

// NativeLibrary returns the first library candidate that exists. When none
// exists it returns the highest-priority candidate so callers can report
// the exact path that was expected.
func (l *Locator) NativeLibrary() string {
	candidates := l.LibraryCandidates()
	for _, c := range candidates {
		if l.exists(c) {
			return c
		}
	}
	return candidates[0]
}

// Converter returns the path of the external converter, checking next to
// the program first and then every directory on the search path.
func (l *Locator) Converter() (string, bool) {
	name := l.ConverterName()
	if l.ExeDir != "" {
		if p := filepath.Join(l.ExeDir, name); l.exists(p) {
			return p, true
		}
	}
	for _, dir := range filepath.SplitList(l.PathEnv) {
		if dir == "" {
			continue
		}
		if p := filepath.Join(dir, name); l.exists(p) {
			return p, true
		}
	}
	return "", false
}

func (l *Locator) goos() string {
	if l.GOOS == "" {
		return runtime.GOOS
	}
	return l.GOOS
}

func (l *Locator) exists(path string) bool {
	if l.Exists != nil {
		return l.Exists(path)
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
