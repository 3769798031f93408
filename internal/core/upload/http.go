package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"time"

	"github.com/joseph-ayodele/freight-intake/internal/common"
)

// HTTPUploader posts artifacts as multipart/form-data to the CRM endpoint.
type HTTPUploader struct {
	url    string
	token  string
	client *http.Client
	logger *slog.Logger
}

func NewHTTPUploader(url, token string, timeout time.Duration, logger *slog.Logger) *HTTPUploader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPUploader{url: url, token: token, client: &http.Client{Timeout: timeout}, logger: logger}
}

func (u *HTTPUploader) Upload(ctx context.Context, p Payload) error {
	body, contentType, err := buildForm(p)
	if err != nil {
		return &common.UploadError{Local: true, Cause: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.url, body)
	if err != nil {
		return &common.UploadError{Local: true, Cause: fmt.Errorf("build upload request: %w", err)}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Idempotency-Key", p.Key)
	if u.token != "" {
		req.Header.Set("Authorization", "Bearer "+u.token)
	}

	start := time.Now()
	resp, err := u.client.Do(req)
	if err != nil {
		return &common.UploadError{Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	u.logger.Debug("upload.http.response",
		"status", resp.StatusCode,
		"doc_id", p.DocumentID,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if resp.StatusCode/100 != 2 {
		return &common.UploadError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return nil
}

func buildForm(p Payload) (*bytes.Buffer, string, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		return nil, "", fmt.Errorf("open artifact: %w", err)
	}
	defer func() { _ = f.Close() }()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("document_id", p.DocumentID.String())
	_ = w.WriteField("offer_id", p.OfferID)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, p.Filename))
	ct := p.MimeType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("copy artifact: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
