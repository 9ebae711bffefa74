package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dt1-extractor/internal/native"
)

type stubModule struct{ payload []byte }

func (m stubModule) Version() (uint32, error)           { return 1, nil }
func (m stubModule) UnloadSize([]byte) (int32, error)   { return int32(len(m.payload)), nil }
func (m stubModule) Close() error                       { return nil }
func (m stubModule) Unload(_, out []byte) (int32, error) { return int32(copy(out, m.payload)), nil }

type stubLoader struct {
	payload []byte
	err     error
}

func (l stubLoader) Open(string) (native.Module, error) {
	if l.err != nil {
		return nil, l.err
	}
	return stubModule{payload: l.payload}, nil
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func packedFile(size int) []byte {
	hdr := []byte{byte(size), byte(size >> 8), byte(size >> 16), 0, 8, 0, 0, 0}
	return append(hdr, make([]byte, 8)...)
}

func ddsBytes(n int) []byte {
	b := make([]byte, n)
	copy(b, "DDS ")
	return b
}

func runCLI(t *testing.T, loader native.Loader, args ...string) (int, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := execute(args, &out, &errOut, loader)
	return code, out.String() + errOut.String()
}

func fakeLibrary(t *testing.T) string {
	t.Helper()
	lib := filepath.Join(t.TempDir(), "VELoader.dll")
	writeFile(t, lib, []byte("MZ"))
	return lib
}

func TestExecute_Usage(t *testing.T) {
	code, out := runCLI(t, stubLoader{})
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, out, "Usage:")

	code, _ = runCLI(t, stubLoader{}, "a", "b", "c", "d", "e")
	assert.Equal(t, exitUsage, code)

	code, _ = runCLI(t, stubLoader{}, "--format", "toolong", t.TempDir(), t.TempDir(), fakeLibrary(t))
	assert.Equal(t, exitUsage, code)
}

func TestExecute_LibraryNotFound(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.dll")
	code, out := runCLI(t, stubLoader{}, t.TempDir(), t.TempDir(), missing)
	assert.Equal(t, exitNoLibrary, code)
	assert.Contains(t, out, "native library not found")
}

func TestExecute_InputNotFound(t *testing.T) {
	input := filepath.Join(t.TempDir(), "missing")
	code, out := runCLI(t, stubLoader{}, input, t.TempDir(), fakeLibrary(t))
	assert.Equal(t, exitInputMissing, code)
	assert.Contains(t, out, "input path not found")
}

func TestExecute_NoFiles(t *testing.T) {
	in := t.TempDir()
	writeFile(t, filepath.Join(in, "readme.txt"), []byte("x"))
	code, _ := runCLI(t, stubLoader{}, in, t.TempDir(), fakeLibrary(t))
	assert.Equal(t, exitNoFiles, code)
}

func TestExecute_Directory(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(in, "world", "grass_tga.dt1"), packedFile(64))
	writeFile(t, filepath.Join(in, "sky.DT2"), packedFile(64))

	code, log := runCLI(t, stubLoader{payload: ddsBytes(64)}, "--manifest", in, out, fakeLibrary(t))
	require.Equal(t, exitOK, code, log)
	assert.Contains(t, log, "Done. OK=2, FAIL=0")

	data, err := os.ReadFile(filepath.Join(out, "world", "grass.dds"))
	require.NoError(t, err)
	assert.Len(t, data, 64)
	assert.FileExists(t, filepath.Join(out, "sky.dds"))
	assert.FileExists(t, filepath.Join(out, "manifest.json"))
}

func TestExecute_SingleFileBesideInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "tile.dt1")
	writeFile(t, input, packedFile(32))

	lib := fakeLibrary(t)
	code, log := runCLI(t, stubLoader{payload: ddsBytes(32)}, input, "", lib)
	require.Equal(t, exitOK, code, log)
	assert.FileExists(t, filepath.Join(dir, "tile.dds"))
}

func TestExecute_FatalLoadStopsBatch(t *testing.T) {
	in := t.TempDir()
	for _, name := range []string{"a.dt1", "b.dt1", "c.dt1"} {
		writeFile(t, filepath.Join(in, name), packedFile(16))
	}
	loader := stubLoader{err: &native.LoadError{Path: "x", Code: 1114, Err: native.ErrInitFailed}}
	code, log := runCLI(t, loader, in, t.TempDir(), fakeLibrary(t))
	assert.Equal(t, exitFailures, code)
	assert.Contains(t, log, "Stopped early: 2 file(s) not processed.")
}

func TestExecute_HelpDescribesDefaultOutput(t *testing.T) {
	code, out := runCLI(t, stubLoader{}, "--help")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, out, "written beside their inputs")
	assert.Contains(t, out, "not in its parent directory")
}

func TestExecute_DirectoryDefaultsOutputBesideInputs(t *testing.T) {
	in := t.TempDir()
	writeFile(t, filepath.Join(in, "sub", "rock.dt1"), packedFile(16))

	code, log := runCLI(t, stubLoader{payload: ddsBytes(16)}, in, "", fakeLibrary(t))
	require.Equal(t, exitOK, code, log)
	assert.FileExists(t, filepath.Join(in, "sub", "rock.dds"))
	assert.NoFileExists(t, filepath.Join(filepath.Dir(in), "sub", "rock.dds"))
}
