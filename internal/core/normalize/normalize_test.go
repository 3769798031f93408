package normalize

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/freight-intake/constants"
	"github.com/joseph-ayodele/freight-intake/internal/core/runner"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		for y := 0; y < 20; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 5), G: 100, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func noTool(t *testing.T) runner.Tool {
	return runner.Func(func(context.Context, time.Duration, string, ...string) (runner.Output, error) {
		t.Fatal("external tool must not be invoked")
		return runner.Output{}, nil
	})
}

func TestNormalize_EmailPassesThrough(t *testing.T) {
	dir := t.TempDir()
	raw := "From: a@example.com\r\nTo: b@example.com\r\nSubject: quote\r\nMessage-ID: <1@x>\r\n\r\nVIN: 1HGCM82633A123456\r\n"
	p := writeFile(t, dir, "mail.eml", []byte(raw))

	n := NewNormalizer(Config{WorkDir: dir}, noTool(t), nil)
	art, err := n.Normalize(context.Background(), Input{Path: p})
	require.NoError(t, err)

	assert.Equal(t, p, art.Path)
	assert.Equal(t, constants.MimeEmail, art.MimeType)
	assert.Equal(t, constants.SourceTagEmail, art.SourceTag)
	assert.False(t, art.Converted)
	assert.Equal(t, int64(len(raw)), art.Size)
}

func TestNormalize_EmailDetectedWithoutExtension(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "upload.bin", []byte("Received: by mx\nFrom: a@example.com\nSubject: hi\n\nbody\n"))

	n := NewNormalizer(Config{WorkDir: dir}, noTool(t), nil)
	art, err := n.Normalize(context.Background(), Input{Path: p})
	require.NoError(t, err)
	assert.Equal(t, constants.SourceTagEmail, art.SourceTag)
}

func TestDetectBytes(t *testing.T) {
	mail := []byte("From: a@example.com\r\nTo: b@example.com\r\nSubject: hi\r\n\r\nbody\r\n")
	tests := []struct {
		name     string
		data     []byte
		filename string
		want     string
	}{
		{"email named txt", mail, "request.txt", constants.MimeEmail},
		{"email without name", mail, "", constants.MimeEmail},
		{"eml extension", []byte("hello"), "note.eml", constants.MimeEmail},
		{"plain text", []byte("From Antwerp to Lagos\nthanks\n"), "note.txt", "text/plain"},
		{"pdf", []byte("%PDF-1.4\n% test\n"), "scan.txt", constants.MimePDF},
		{"png", pngBytes(t), "photo", "image/png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectBytes(tt.data, tt.filename))
		})
	}
}

func TestNormalize_PDFUnchanged(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "packing-list.pdf", []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n"))

	n := NewNormalizer(Config{WorkDir: dir, ImagesToPDF: true, StripEXIF: true}, noTool(t), nil)
	art, err := n.Normalize(context.Background(), Input{Path: p})
	require.NoError(t, err)
	assert.Equal(t, p, art.Path)
	assert.Equal(t, constants.MimePDF, art.MimeType)
	assert.Equal(t, constants.SourceTagPDF, art.SourceTag)
}

func TestNormalize_UnknownTaggedProcessed(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "notes.txt", []byte("just some notes about a shipment"))

	n := NewNormalizer(Config{WorkDir: dir}, noTool(t), nil)
	art, err := n.Normalize(context.Background(), Input{Path: p})
	require.NoError(t, err)
	assert.Equal(t, p, art.Path)
	assert.Equal(t, constants.SourceTagProcessed, art.SourceTag)
	assert.NotEmpty(t, art.Warnings)
}

func TestNormalize_MissingInput(t *testing.T) {
	n := NewNormalizer(Config{}, noTool(t), nil)
	_, err := n.Normalize(context.Background(), Input{Path: filepath.Join(t.TempDir(), "gone.pdf")})
	assert.Error(t, err)
}

func TestNormalize_HEICConverted(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "IMG_0001.HEIC", []byte("not-really-heic"))

	var gotName string
	tool := runner.Func(func(_ context.Context, _ time.Duration, name string, args ...string) (runner.Output, error) {
		gotName = name
		out := args[len(args)-1]
		return runner.Output{}, os.WriteFile(out, []byte("jpeg-bytes"), 0o644)
	})

	n := NewNormalizer(Config{WorkDir: dir, HeicConverter: "magick"}, tool, nil)
	art, err := n.Normalize(context.Background(), Input{Path: p, MimeType: constants.MimeHEIC})
	require.NoError(t, err)

	assert.Equal(t, "magick", gotName)
	assert.Equal(t, constants.SourceTagHEICConverted, art.SourceTag)
	assert.Equal(t, constants.MimeJPEG, art.MimeType)
	assert.Equal(t, "IMG_0001.jpg", art.Filename)
	assert.True(t, art.Converted)
	assert.NotEqual(t, p, art.Path)
	assert.FileExists(t, art.Path)
}

func TestNormalize_HEICFailOpen(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "photo.heic", []byte("heic-bytes"))

	tool := runner.Func(func(context.Context, time.Duration, string, ...string) (runner.Output, error) {
		return runner.Output{ExitCode: 127}, errors.New("executable file not found")
	})

	n := NewNormalizer(Config{WorkDir: dir, HeicConverter: "heif-convert"}, tool, nil)
	art, err := n.Normalize(context.Background(), Input{Path: p, MimeType: constants.MimeHEIC})
	require.NoError(t, err)

	assert.Equal(t, p, art.Path)
	assert.Equal(t, constants.SourceTagHEICPassthru, art.SourceTag)
	assert.False(t, art.Converted)
	data, err := os.ReadFile(art.Path)
	require.NoError(t, err)
	assert.Equal(t, []byte("heic-bytes"), data)
}

func TestNormalize_HEICCacheReused(t *testing.T) {
	dir := t.TempDir()
	cache := filepath.Join(dir, "cache")
	p := writeFile(t, dir, "photo.heic", []byte("same-heic"))

	calls := 0
	tool := runner.Func(func(_ context.Context, _ time.Duration, _ string, args ...string) (runner.Output, error) {
		calls++
		return runner.Output{}, os.WriteFile(args[len(args)-1], []byte("jpeg"), 0o644)
	})
	n := NewNormalizer(Config{WorkDir: dir, ArtifactCacheDir: cache}, tool, nil)

	first, err := n.Normalize(context.Background(), Input{Path: p, MimeType: constants.MimeHEIC})
	require.NoError(t, err)
	second, err := n.Normalize(context.Background(), Input{Path: p, MimeType: constants.MimeHEIC})
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first.Path, second.Path)
	assert.False(t, second.Converted, "cached artifacts are shared and must not be cleaned up")
}

func TestNormalize_ImageEXIFStripped(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "scan.png", pngBytes(t))

	n := NewNormalizer(Config{WorkDir: dir, StripEXIF: true}, noTool(t), nil)
	art, err := n.Normalize(context.Background(), Input{Path: p})
	require.NoError(t, err)

	assert.Equal(t, constants.SourceTagEXIFStripped, art.SourceTag)
	assert.Equal(t, constants.MimePNG, art.MimeType)
	assert.True(t, art.Converted)
	assert.NotEqual(t, p, art.Path)
	assert.FileExists(t, p, "source must be untouched")
}

func TestNormalize_ImageToA4PDF(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "scan.png", pngBytes(t))

	n := NewNormalizer(Config{WorkDir: dir, StripEXIF: true, ImagesToPDF: true}, noTool(t), nil)
	art, err := n.Normalize(context.Background(), Input{Path: p})
	require.NoError(t, err)

	assert.Equal(t, constants.SourceTagImagePDF, art.SourceTag)
	assert.Equal(t, constants.MimePDF, art.MimeType)
	assert.Equal(t, "scan.pdf", art.Filename)
	data, err := os.ReadFile(art.Path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestNormalize_UndecodableImageFallsBack(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "broken.jpg", append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, []byte("garbage")...))

	n := NewNormalizer(Config{WorkDir: dir, StripEXIF: true}, noTool(t), nil)
	art, err := n.Normalize(context.Background(), Input{Path: p})
	require.NoError(t, err)

	assert.Equal(t, p, art.Path)
	assert.Equal(t, constants.SourceTagImagePassthru, art.SourceTag)
	assert.False(t, art.Converted)
	assert.NotEmpty(t, art.Warnings)
}
