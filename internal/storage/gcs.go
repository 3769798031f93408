package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// GCS stores objects in one Cloud Storage bucket. Writes are create-if-absent:
// paths are content-addressed, so an existing object already holds the same bytes.
type GCS struct {
	bucket *gcs.BucketHandle
	name   string
	logger *slog.Logger
}

// NewGCS opens bucket with application default credentials.
func NewGCS(ctx context.Context, bucket string, logger *slog.Logger) (*GCS, func() error, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("gcs client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GCS{bucket: client.Bucket(bucket), name: bucket, logger: logger}, client.Close, nil
}

func (g *GCS) Exists(ctx context.Context, path string) (bool, error) {
	_, err := g.bucket.Object(path).Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (g *GCS) Get(ctx context.Context, path string) ([]byte, error) {
	r, err := g.bucket.Object(path).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, fmt.Errorf("gs://%s/%s: %w", g.name, path, ErrNotExist)
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}

func (g *GCS) Put(ctx context.Context, path string, data []byte) (string, error) {
	w := g.bucket.Object(path).If(gcs.Conditions{DoesNotExist: true}).NewWriter(ctx)
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		if isPreconditionFailed(err) {
			g.logger.Info("storage.gcs.exists", "bucket", g.name, "path", path)
			return path, nil
		}
		return "", fmt.Errorf("write gs://%s/%s: %w", g.name, path, err)
	}
	if err := w.Close(); err != nil {
		if isPreconditionFailed(err) {
			g.logger.Info("storage.gcs.exists", "bucket", g.name, "path", path)
			return path, nil
		}
		return "", fmt.Errorf("finalize gs://%s/%s: %w", g.name, path, err)
	}
	return path, nil
}

func (g *GCS) Size(ctx context.Context, path string) (int64, error) {
	attrs, err := g.bucket.Object(path).Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return 0, fmt.Errorf("gs://%s/%s: %w", g.name, path, ErrNotExist)
	}
	if err != nil {
		return 0, err
	}
	return attrs.Size, nil
}

func (g *GCS) Delete(ctx context.Context, path string) error {
	err := g.bucket.Object(path).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("delete gs://%s/%s: %w", g.name, path, err)
	}
	return nil
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
