package ocr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/freight-intake/constants"
	"github.com/joseph-ayodele/freight-intake/internal/common"
	"github.com/joseph-ayodele/freight-intake/internal/core/ratelimit"
	"github.com/joseph-ayodele/freight-intake/internal/core/runner"
	"github.com/joseph-ayodele/freight-intake/internal/entity"
)

const longText = "Booking request for one Toyota Land Cruiser 2019, shipping from Antwerp to Lagos by RoRo."

// fakeTools scripts pdftotext / pdftoppm / tesseract.
type fakeTools struct {
	mu sync.Mutex

	pdfText       string
	pdfTextErr    error
	rasterPages   int
	rasterErr     error
	tesseractErr  error
	calls         map[string]int
	pdftoppmArgs  []string
	rasterDirSeen string
}

func newFakeTools() *fakeTools {
	return &fakeTools{calls: map[string]int{}, rasterPages: 2}
}

func (f *fakeTools) Run(_ context.Context, _ time.Duration, name string, args ...string) (runner.Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	switch name {
	case "pdftotext":
		if f.pdfTextErr != nil {
			return runner.Output{ExitCode: 1, Stderr: []byte("boom")}, f.pdfTextErr
		}
		return runner.Output{Stdout: []byte(f.pdfText)}, nil
	case "pdftoppm":
		f.pdftoppmArgs = args
		prefix := args[len(args)-1]
		f.rasterDirSeen = filepath.Dir(prefix)
		if f.rasterErr != nil {
			return runner.Output{ExitCode: 99}, f.rasterErr
		}
		for i := 1; i <= f.rasterPages; i++ {
			if err := os.WriteFile(prefix+"-"+string(rune('0'+i))+".png", []byte("png"), 0o644); err != nil {
				return runner.Output{}, err
			}
		}
		return runner.Output{}, nil
	case "tesseract":
		if f.tesseractErr != nil {
			return runner.Output{ExitCode: 1}, f.tesseractErr
		}
		return runner.Output{Stdout: []byte("Text of " + filepath.Base(args[0]) + " |||| \n\n\n\nsecond  line")}, nil
	}
	return runner.Output{ExitCode: 127}, errors.New("unknown tool " + name)
}

func newTestExtractor(cfg Config, tools *fakeTools, lim *ratelimit.Limiter) *Extractor {
	e := NewExtractor(cfg, tools, lim, nil)
	e.pageCount = func(string) (int, error) { return 2, nil }
	return e
}

func TestExtract_PDFWithTextLayer(t *testing.T) {
	tools := newFakeTools()
	tools.pdfText = longText + "\f" + longText + "\f"
	e := newTestExtractor(Config{}, tools, nil)

	res, err := e.Extract(context.Background(), "/tmp/booking.pdf")
	require.NoError(t, err)

	assert.Equal(t, "pdf-text", res.Method)
	assert.Equal(t, 2, res.Pages)
	assert.Contains(t, res.Text, "Antwerp to Lagos")
	require.NotNil(t, res.TextLayer)
	assert.True(t, *res.TextLayer)
	assert.Zero(t, tools.calls["pdftoppm"])
	assert.Zero(t, tools.calls["tesseract"])
}

func TestExtract_ScannedPDFFallsBackToOCR(t *testing.T) {
	tools := newFakeTools()
	tools.pdfText = "  \f"
	e := newTestExtractor(Config{DPI: 200}, tools, nil)

	res, err := e.Extract(context.Background(), "/tmp/scan.pdf")
	require.NoError(t, err)

	assert.Equal(t, "pdf-ocr", res.Method)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, 2, tools.calls["tesseract"])
	assert.Contains(t, tools.pdftoppmArgs, "200")
	assert.Equal(t, 1, strings.Count(res.Text, strings.TrimSpace(PageBreak)))
	assert.Contains(t, res.Text, "Text of page-1.png")
	assert.Contains(t, res.Text, "Text of page-2.png")
	assert.NotContains(t, res.Text, "||||")
	assert.NotContains(t, res.Text, "\n\n\n")
	require.NotNil(t, res.TextLayer)
	assert.False(t, *res.TextLayer)

	assert.NoDirExists(t, tools.rasterDirSeen, "rasterization temp dir must be removed")
}

func TestExtract_PageCapBoundsRasterization(t *testing.T) {
	tools := newFakeTools()
	tools.rasterPages = 5
	e := newTestExtractor(Config{MaxPages: 2}, tools, nil)
	e.pageCount = func(string) (int, error) { return 5, nil }

	res, err := e.Extract(context.Background(), "/tmp/huge.pdf")
	require.NoError(t, err)

	assert.Equal(t, []string{"-r", "300", "-f", "1", "-l", "2", "-png", "/tmp/huge.pdf"}, tools.pdftoppmArgs[:8])
	assert.Equal(t, 2, tools.calls["tesseract"])
	assert.Equal(t, 2, res.Pages)
	assert.NotEmpty(t, res.Warnings)
}

func TestExtract_RasterizerFailureYieldsEmptyText(t *testing.T) {
	tools := newFakeTools()
	tools.rasterErr = errors.New("pdftoppm crashed")
	e := newTestExtractor(Config{}, tools, nil)

	text, err := e.ExtractText(context.Background(), "/tmp/scan.pdf")
	require.NoError(t, err)
	assert.Equal(t, "", text)
	assert.NoDirExists(t, tools.rasterDirSeen)
}

func TestExtract_ShortNativeTextKeptWhenOCRFails(t *testing.T) {
	tools := newFakeTools()
	tools.pdfText = "VIN 1HGCM82633A123456"
	tools.tesseractErr = errors.New("tesseract missing")
	e := newTestExtractor(Config{}, tools, nil)

	res, err := e.Extract(context.Background(), "/tmp/short.pdf")
	require.NoError(t, err)
	assert.Equal(t, "VIN 1HGCM82633A123456", res.Text)
	assert.Equal(t, "pdf-text", res.Method)
}

func TestExtract_ImageOCRFailureYieldsEmptyText(t *testing.T) {
	tools := newFakeTools()
	tools.tesseractErr = errors.New("exit status 1")
	e := newTestExtractor(Config{}, tools, nil)

	res, err := e.Extract(context.Background(), "/tmp/photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, "", res.Text)
	assert.Equal(t, float64(0), res.Confidence)
	assert.NotEmpty(t, res.Warnings)
}

func TestExtract_ImageOCR(t *testing.T) {
	tools := newFakeTools()
	e := newTestExtractor(Config{Language: "eng+fra", TessdataDir: "/usr/share/tessdata"}, tools, nil)

	res, err := e.Extract(context.Background(), "/tmp/photo.png")
	require.NoError(t, err)
	assert.Equal(t, "image-ocr", res.Method)
	assert.Equal(t, "Text of photo.png\n\nsecond line", res.Text)
	assert.Equal(t, "eng+fra", res.Language)
	assert.Zero(t, tools.calls["pdftotext"])
}

func TestExtract_RateLimited(t *testing.T) {
	tools := newFakeTools()
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	lim := ratelimit.New("ocr", 1, ratelimit.WithClock(func() time.Time { return now }))
	e := newTestExtractor(Config{}, tools, lim)

	_, err := e.Extract(context.Background(), "/tmp/a.png")
	require.NoError(t, err)

	_, err = e.Extract(context.Background(), "/tmp/b.png")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrRateLimited)
	assert.Equal(t, 1, tools.calls["tesseract"])
}

func TestExtract_PDFTextLayerDoesNotConsumeRateLimit(t *testing.T) {
	tools := newFakeTools()
	tools.pdfText = longText
	now := time.Now()
	lim := ratelimit.New("ocr", 1, ratelimit.WithClock(func() time.Time { return now }))
	e := newTestExtractor(Config{}, tools, lim)

	for i := 0; i < 3; i++ {
		_, err := e.Extract(context.Background(), "/tmp/text.pdf")
		require.NoError(t, err)
	}
}

func TestExtract_Unsupported(t *testing.T) {
	e := newTestExtractor(Config{}, newFakeTools(), nil)
	_, err := e.Extract(context.Background(), filepath.Join(t.TempDir(), "missing.xyz"))
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func pdfDoc(hasText *bool) *entity.Document {
	return &entity.Document{ID: uuid.New(), Filename: "doc.pdf", MimeType: constants.MimePDF, HasTextLayer: hasText}
}

func boolPtr(b bool) *bool { return &b }

func TestNeedsOCR_Policy(t *testing.T) {
	tests := []struct {
		name   string
		policy TextLayerPolicy
		doc    *entity.Document
		want   bool
	}{
		{"image always", PolicyAssumeText, &entity.Document{Filename: "a.jpg", MimeType: constants.MimeJPEG}, true},
		{"email never", PolicyAssumeScanned, &entity.Document{Filename: "a.eml", MimeType: constants.MimeEmail}, false},
		{"known text layer", PolicyAssumeScanned, pdfDoc(boolPtr(true)), false},
		{"known scan", PolicyAssumeText, pdfDoc(boolPtr(false)), true},
		{"unknown probe", PolicyProbe, pdfDoc(nil), true},
		{"unknown assume text", PolicyAssumeText, pdfDoc(nil), false},
		{"unknown assume scanned", PolicyAssumeScanned, pdfDoc(nil), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestExtractor(Config{UnknownTextLayer: tt.policy}, newFakeTools(), nil)
			assert.Equal(t, tt.want, e.NeedsOCR(tt.doc))
		})
	}
}

func TestExtractDocument_AssumeTextNeverRasterizes(t *testing.T) {
	tools := newFakeTools()
	tools.pdfText = "tiny"
	e := newTestExtractor(Config{UnknownTextLayer: PolicyAssumeText}, tools, nil)

	res, err := e.ExtractDocument(context.Background(), pdfDoc(nil), "/tmp/doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, "tiny", res.Text)
	assert.Zero(t, tools.calls["pdftoppm"])
}

func TestExtractDocument_AssumeScannedSkipsNativeLayer(t *testing.T) {
	tools := newFakeTools()
	tools.pdfText = longText
	e := newTestExtractor(Config{UnknownTextLayer: PolicyAssumeScanned}, tools, nil)

	res, err := e.ExtractDocument(context.Background(), pdfDoc(nil), "/tmp/doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, "pdf-ocr", res.Method)
	assert.Zero(t, tools.calls["pdftotext"])
}

func TestExtractDocument_ProbeRecordsTextLayer(t *testing.T) {
	tools := newFakeTools()
	tools.pdfText = longText
	e := newTestExtractor(Config{}, tools, nil)
	doc := pdfDoc(nil)

	_, err := e.ExtractDocument(context.Background(), doc, "/tmp/doc.pdf")
	require.NoError(t, err)
	require.NotNil(t, doc.HasTextLayer)
	assert.True(t, *doc.HasTextLayer)
}

func TestDetectTextLayer(t *testing.T) {
	tools := newFakeTools()
	tools.pdfText = longText
	e := newTestExtractor(Config{}, tools, nil)

	doc := pdfDoc(nil)
	assert.True(t, e.DetectTextLayer(context.Background(), doc, "/tmp/doc.pdf"))
	require.NotNil(t, doc.HasTextLayer)

	tools.pdfText = "x"
	scan := pdfDoc(nil)
	assert.False(t, e.DetectTextLayer(context.Background(), scan, "/tmp/scan.pdf"))
	require.NotNil(t, scan.HasTextLayer)
	assert.False(t, *scan.HasTextLayer)

	img := &entity.Document{Filename: "x.png", MimeType: constants.MimePNG}
	assert.False(t, e.DetectTextLayer(context.Background(), img, "/tmp/x.png"))

	mail := &entity.Document{Filename: "x.eml", MimeType: constants.MimeEmail}
	assert.True(t, e.DetectTextLayer(context.Background(), mail, "/tmp/x.eml"))

	tools.pdfTextErr = errors.New("corrupt")
	broken := pdfDoc(nil)
	assert.False(t, e.DetectTextLayer(context.Background(), broken, "/tmp/broken.pdf"))
	assert.Nil(t, broken.HasTextLayer, "failed probe leaves state unknown")
}
