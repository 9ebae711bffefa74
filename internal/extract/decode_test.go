package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"dt1-extractor/internal/convert"
	"dt1-extractor/internal/native"
	"dt1-extractor/internal/packed"
)

// fakeModule decompresses by copying payload into the output buffer.
type fakeModule struct {
	l *fakeLoader
}

func (m *fakeModule) Version() (uint32, error) {
	return 0x0102, m.l.versionErr
}

func (m *fakeModule) UnloadSize(packed []byte) (int32, error) {
	return m.l.apiSize, m.l.sizeErr
}

func (m *fakeModule) Unload(packed, out []byte) (int32, error) {
	m.l.outLen = len(out)
	if m.l.unloadErr != nil {
		return 0, m.l.unloadErr
	}
	copy(out, m.l.payload)
	return m.l.status, nil
}

func (m *fakeModule) Close() error {
	m.l.closed++
	return nil
}

type fakeLoader struct {
	openErr    error
	versionErr error
	sizeErr    error
	unloadErr  error
	apiSize    int32
	status     int32
	payload    []byte

	opened, closed, outLen int
}

func (l *fakeLoader) Open(path string) (native.Module, error) {
	if l.openErr != nil {
		return nil, l.openErr
	}
	l.opened++
	return &fakeModule{l: l}, nil
}

func ddsPayload(n int) []byte {
	p := make([]byte, n)
	copy(p, "DDS ")
	for i := 4; i < n; i++ {
		p[i] = byte(i)
	}
	return p
}

// writePacked writes a packed file declaring size bytes uncompressed.
func writePacked(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	hdr := []byte{byte(size), byte(size >> 8), byte(size >> 16), 0, 0x10, 0, 0, 0x03}
	require.NoError(t, os.WriteFile(path, append(hdr, make([]byte, 16)...), 0644))
}

func newDecoder(l *fakeLoader, format string, convs ...convert.Converter) (*Decoder, *bytes.Buffer) {
	var buf bytes.Buffer
	return &Decoder{
		Loader:     l,
		Library:    "VELoader.dll",
		Format:     format,
		Converters: convs,
		Logger:     slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})),
	}, &buf
}

func TestDecodeFileWritesDDS(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in", "stone.DT1")
	writePacked(t, src, 1024)
	payload := ddsPayload(1024)

	l := &fakeLoader{status: 1, payload: payload}
	d, logs := newDecoder(l, "")
	res, err := d.DecodeFile(context.Background(), Job{Path: src, OutputRoot: filepath.Join(dir, "out")})
	require.NoError(t, err)

	want := filepath.Join(dir, "out", "stone.dds")
	require.Equal(t, want, res.Output)
	require.Equal(t, 1024, res.Bytes)
	require.Equal(t, ".dds", res.RealExt)
	require.False(t, res.Converted)
	got, err := os.ReadFile(want)
	require.NoError(t, err)
	require.Equal(t, payload, got)
	require.Contains(t, logs.String(), "[OK]")
	require.Equal(t, 1, l.opened)
	require.Equal(t, 1, l.closed)
}

func TestDecodeFileTruncatesToAPISize(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.DT1")
	writePacked(t, src, 2048)

	l := &fakeLoader{status: 1, apiSize: 1000, payload: ddsPayload(2048)}
	d, _ := newDecoder(l, "")
	res, err := d.DecodeFile(context.Background(), Job{Path: src, OutputRoot: dir})
	require.NoError(t, err)
	require.Equal(t, 2048, l.outLen)
	require.Equal(t, 1000, res.Bytes)

	info, err := os.Stat(res.Output)
	require.NoError(t, err)
	require.EqualValues(t, 1000, info.Size())
}

func TestDecodeFileSizeQueryFailureUsesHeader(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.DT1")
	writePacked(t, src, 512)

	l := &fakeLoader{status: 1, apiSize: 999, sizeErr: errors.New("trap"), payload: ddsPayload(512)}
	d, _ := newDecoder(l, "")
	res, err := d.DecodeFile(context.Background(), Job{Path: src, OutputRoot: dir})
	require.NoError(t, err)
	require.Zero(t, res.APISize)
	require.Equal(t, 512, l.outLen)
	require.Equal(t, 512, res.Bytes)
}

func TestDecodeFileDetectsRealFormat(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "icon_tga.DT1")
	writePacked(t, src, 64)
	payload := append([]byte{0x89, 'P', 'N', 'G'}, make([]byte, 60)...)

	l := &fakeLoader{status: 1, payload: payload}
	d, _ := newDecoder(l, "")
	res, err := d.DecodeFile(context.Background(), Job{Path: src, OutputRoot: dir})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "icon.png"), res.Output)
}

func TestDecodeFileMirrorsRelativeDirectory(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	src := filepath.Join(in, "maps", "desert", "sand.DT1")
	writePacked(t, src, 32)

	l := &fakeLoader{status: 1, payload: ddsPayload(32)}
	d, _ := newDecoder(l, "")
	res, err := d.DecodeFile(context.Background(), Job{Path: src, InputRoot: in, OutputRoot: filepath.Join(dir, "out")})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "out", "maps", "desert", "sand.dds"), res.Output)
}

type stubConverter struct {
	err   error
	calls int
	src   string
}

func (s *stubConverter) Name() string { return "stub" }

func (s *stubConverter) Convert(ctx context.Context, src, dst string) error {
	s.calls++
	s.src = src
	if s.err != nil {
		return s.err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, append([]byte("TGA:"), data[:4]...), 0644)
}

func TestDecodeFileConvertsToUserFormat(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "stone.DT1")
	writePacked(t, src, 1024)

	conv := &stubConverter{}
	l := &fakeLoader{status: 1, payload: ddsPayload(1024)}
	d, _ := newDecoder(l, "tga", conv)
	res, err := d.DecodeFile(context.Background(), Job{Path: src, OutputRoot: dir})
	require.NoError(t, err)

	require.Equal(t, 1, conv.calls)
	require.Equal(t, filepath.Join(dir, "stone.dds"), conv.src)
	require.True(t, res.Converted)
	require.Equal(t, "stub", res.Converter)
	require.Equal(t, filepath.Join(dir, "stone.tga"), res.Output)
	got, err := os.ReadFile(res.Output)
	require.NoError(t, err)
	require.Equal(t, "TGA:DDS ", string(got))
	require.NoFileExists(t, filepath.Join(dir, "stone.dds"))
}

func TestDecodeFileConversionFailureKeepsRaw(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "stone.DT1")
	writePacked(t, src, 1024)
	payload := ddsPayload(1024)

	conv := &stubConverter{err: convert.ErrNoOutput}
	l := &fakeLoader{status: 1, payload: payload}
	d, logs := newDecoder(l, "tga", conv)
	res, err := d.DecodeFile(context.Background(), Job{Path: src, OutputRoot: dir})
	require.NoError(t, err)

	require.False(t, res.Converted)
	require.Equal(t, filepath.Join(dir, "stone.dds"), res.Output)
	got, err := os.ReadFile(res.Output)
	require.NoError(t, err)
	require.Equal(t, payload, got)
	require.NoFileExists(t, filepath.Join(dir, "stone.tga"))
	require.Contains(t, logs.String(), "conversion failed")
}

func TestDecodeFileSameFormatSkipsConversion(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "stone.DT1")
	writePacked(t, src, 64)

	conv := &stubConverter{}
	l := &fakeLoader{status: 1, payload: ddsPayload(64)}
	d, _ := newDecoder(l, "DDS", conv)
	res, err := d.DecodeFile(context.Background(), Job{Path: src, OutputRoot: dir})
	require.NoError(t, err)
	require.Zero(t, conv.calls)
	require.Equal(t, filepath.Join(dir, "stone.dds"), res.Output)
}

func TestDecodeFileNoConverterKeepsRaw(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "stone.DT1")
	writePacked(t, src, 64)

	l := &fakeLoader{status: 1, payload: ddsPayload(64)}
	d, _ := newDecoder(l, "png")
	res, err := d.DecodeFile(context.Background(), Job{Path: src, OutputRoot: dir})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "stone.dds"), res.Output)
}

func TestDecodeFileFailures(t *testing.T) {
	tests := []struct {
		name   string
		loader *fakeLoader
		short  bool
		fatal  bool
		msg    string
	}{
		{name: "too short", loader: &fakeLoader{status: 1}, short: true, msg: "too small"},
		{name: "load error", loader: &fakeLoader{openErr: &native.LoadError{Path: "VELoader.dll", Code: 126, Err: errors.New("not found")}}, msg: "(126)"},
		{name: "init failed", loader: &fakeLoader{openErr: &native.LoadError{Path: "VELoader.dll", Code: 1114, Err: native.ErrInitFailed}}, fatal: true, msg: "unusable"},
		{name: "missing export", loader: &fakeLoader{openErr: fmt.Errorf("%w: Unload", native.ErrMissingExport)}, msg: "export"},
		{name: "version failure", loader: &fakeLoader{versionErr: errors.New("native: GetCLVersion call failed")}, msg: "GetCLVersion"},
		{name: "zero status", loader: &fakeLoader{status: 0}, msg: "returned 0 (ver=0x102, hdrUnc=64, apiUnc=0, hdrComp24=16, flags=0x03)"},
		{name: "negative status", loader: &fakeLoader{status: -2}, msg: "returned -2"},
		{name: "unload trap", loader: &fakeLoader{unloadErr: errors.New("native: Unload call failed")}, msg: "Unload call failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			src := filepath.Join(dir, "x.DT1")
			if tt.short {
				require.NoError(t, os.WriteFile(src, []byte{1, 2, 3}, 0644))
			} else {
				writePacked(t, src, 64)
			}
			d, logs := newDecoder(tt.loader, "")
			_, err := d.DecodeFile(context.Background(), Job{Path: src, OutputRoot: dir})
			require.Error(t, err)
			require.Equal(t, tt.fatal, errors.Is(err, ErrFatal))
			require.ErrorContains(t, err, tt.msg)
			require.Contains(t, logs.String(), "[FAIL]")
			require.Equal(t, tt.loader.opened, tt.loader.closed, "module must be released")
			require.NoFileExists(t, filepath.Join(dir, "x.dds"))
		})
	}
}

func TestDecodeFileMissingInput(t *testing.T) {
	d, _ := newDecoder(&fakeLoader{status: 1}, "")
	_, err := d.DecodeFile(context.Background(), Job{Path: filepath.Join(t.TempDir(), "gone.DT1")})
	require.ErrorIs(t, err, os.ErrNotExist)
	require.NotErrorIs(t, err, ErrFatal)
}

func TestDecompressInMemory(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.DT1")
	writePacked(t, src, 256)
	asset, err := packed.Read(src)
	require.NoError(t, err)

	l := &fakeLoader{status: 1, apiSize: 200, payload: ddsPayload(256)}
	d, _ := newDecoder(l, "tga")
	data, res, err := d.Decompress(asset)
	require.NoError(t, err)
	require.Len(t, data, 200)
	require.Equal(t, 200, res.Bytes)
	require.EqualValues(t, 0x0102, res.Version)
	require.Equal(t, 1, l.closed)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestDecompressInitFailureIsFatal(t *testing.T) {
	src := filepath.Join(t.TempDir(), "a.DT1")
	writePacked(t, src, 64)
	asset, err := packed.Read(src)
	require.NoError(t, err)

	l := &fakeLoader{openErr: &native.LoadError{Path: "VELoader.dll", Code: 1114, Err: native.ErrInitFailed}}
	d, _ := newDecoder(l, "")
	_, _, err = d.Decompress(asset)
	require.ErrorIs(t, err, ErrFatal)
	require.ErrorIs(t, err, native.ErrInitFailed)
}
