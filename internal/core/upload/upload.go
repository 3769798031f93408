// Package upload sends converted artifacts to the CRM at most once per content hash.
package upload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/freight-intake/internal/common"
	"github.com/joseph-ayodele/freight-intake/internal/kv"
)

// DefaultBackoff is the delay before each retry after the first attempt.
var DefaultBackoff = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// Payload is one file handed to an Uploader.
type Payload struct {
	DocumentID uuid.UUID
	OfferID    string
	Path       string
	Filename   string
	MimeType   string
	Key        string // idempotency key, forwarded to the receiver
}

// Uploader performs a single upload attempt. HTTP failures are *common.UploadError.
type Uploader interface {
	Upload(ctx context.Context, p Payload) error
}

type Request struct {
	DocumentID   uuid.UUID
	OfferID      string
	ArtifactPath string
	Filename     string
	MimeType     string
	// Converted marks ArtifactPath as a conversion output that may be removed after upload.
	Converted bool
	// SourcePath is the original file; it is never removed.
	SourcePath string
}

type Result struct {
	Key       string
	Skipped   bool
	Attempts  int
	CleanedUp bool
}

type Manager struct {
	uploader Uploader
	markers  kv.Store
	ttl      time.Duration
	backoff  []time.Duration
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewManager(uploader Uploader, markers kv.Store, ttl time.Duration, logger *slog.Logger) *Manager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		uploader: uploader,
		markers:  markers,
		ttl:      ttl,
		backoff:  DefaultBackoff,
		logger:   logger,
		sleep:    sleepCtx,
	}
}

// Key builds the idempotency key from the document, the offer and the artifact hash.
func Key(documentID uuid.UUID, offerID, contentSHA string) string {
	short := contentSHA
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("upload:%s:%s:%s", documentID, offerID, short)
}

// EnsureUploadedOnce uploads req's artifact unless a marker for the same key exists.
// 4xx responses and local failures end immediately; others are retried per the backoff schedule.
func (m *Manager) EnsureUploadedOnce(ctx context.Context, req Request) (*Result, error) {
	sha, err := fileSHA256(req.ArtifactPath)
	if err != nil {
		return nil, fmt.Errorf("hash artifact: %w", err)
	}
	key := Key(req.DocumentID, req.OfferID, sha)
	logger := m.logger.With("doc_id", req.DocumentID, "offer_id", req.OfferID, "key", key)
	res := &Result{Key: key}

	done, err := m.markers.Has(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("check upload marker: %w", err)
	}
	if done {
		logger.Info("upload.skip.already_uploaded")
		res.Skipped = true
		res.CleanedUp = m.cleanup(req, logger)
		return res, nil
	}

	filename := req.Filename
	if filename == "" {
		filename = filepath.Base(req.ArtifactPath)
	}
	payload := Payload{
		DocumentID: req.DocumentID,
		OfferID:    req.OfferID,
		Path:       req.ArtifactPath,
		Filename:   filename,
		MimeType:   req.MimeType,
		Key:        key,
	}

	var lastErr error
	for attempt := 0; attempt <= len(m.backoff); attempt++ {
		if attempt > 0 {
			delay := m.backoff[attempt-1]
			logger.Warn("upload.retry", "attempt", attempt+1, "delay_ms", delay.Milliseconds(), "error", lastErr)
			if err := m.sleep(ctx, delay); err != nil {
				return res, err
			}
		}
		res.Attempts = attempt + 1
		lastErr = m.uploader.Upload(ctx, payload)
		if lastErr == nil {
			break
		}
		var upErr *common.UploadError
		if errors.As(lastErr, &upErr) && !upErr.Retryable() {
			logger.Error("upload.rejected", "status", upErr.StatusCode, "local", upErr.Local, "error", lastErr)
			return res, lastErr
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
	}
	if lastErr != nil {
		logger.Error("upload.failed", "attempts", res.Attempts, "error", lastErr)
		var upErr *common.UploadError
		if !errors.As(lastErr, &upErr) {
			lastErr = &common.UploadError{Cause: lastErr}
		}
		return res, lastErr
	}

	if err := m.markers.Put(ctx, key, []byte(time.Now().UTC().Format(time.RFC3339)), m.ttl); err != nil {
		// The upload itself succeeded; a missing marker only risks one repeat upload.
		logger.Warn("upload.marker_failed", "error", err)
	}
	res.CleanedUp = m.cleanup(req, logger)
	logger.Info("upload.ok", "attempts", res.Attempts)
	return res, nil
}

// cleanup removes the artifact only when it was produced by conversion.
func (m *Manager) cleanup(req Request, logger *slog.Logger) bool {
	if !req.Converted || req.ArtifactPath == "" {
		return false
	}
	if req.SourcePath != "" && filepath.Clean(req.SourcePath) == filepath.Clean(req.ArtifactPath) {
		return false
	}
	if err := os.Remove(req.ArtifactPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("upload.cleanup_failed", "path", req.ArtifactPath, "error", err)
		return false
	}
	return true
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
