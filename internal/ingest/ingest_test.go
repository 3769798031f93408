package ingest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/freight-intake/constants"
	"github.com/joseph-ayodele/freight-intake/internal/core"
	"github.com/joseph-ayodele/freight-intake/internal/entity"
)

type fakeSubmitter struct {
	mu      sync.Mutex
	intakes []uuid.UUID
	files   map[uuid.UUID][]string
	seen    map[string]uuid.UUID
}

func newFakeSubmitter() *fakeSubmitter {
	return &fakeSubmitter{files: map[uuid.UUID][]string{}, seen: map[string]uuid.UUID{}}
}

func (f *fakeSubmitter) CreateIntake(context.Context, string) (*entity.Intake, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.intakes = append(f.intakes, id)
	return &entity.Intake{ID: id}, nil
}

// IngestFile reports byte-identical content as a duplicate.
func (f *fakeSubmitter) IngestFile(_ context.Context, intakeID uuid.UUID, filename string, data []byte) (*core.IngestResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if prev, ok := f.seen[string(data)]; ok {
		return &core.IngestResult{Status: constants.IngestStatusDuplicate, DocumentID: prev, Message: "duplicate"}, nil
	}
	id := uuid.New()
	f.seen[string(data)] = id
	f.files[intakeID] = append(f.files[intakeID], filename)
	return &core.IngestResult{Status: constants.IngestStatusCreated, DocumentID: id}, nil
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestGroupKey(t *testing.T) {
	assert.Equal(t, "acme", GroupKey("/in", "/in/acme/mail.eml"))
	assert.Equal(t, "acme", GroupKey("/in", "/in/acme/scans/p1.pdf"))
	assert.Equal(t, "loose.pdf", GroupKey("/in", "/in/loose.pdf"))
}

func TestIngestDirectory_OneIntakePerSubdirectory(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "acme", "request.eml"), "email-1")
	write(t, filepath.Join(root, "acme", "scan.pdf"), "pdf-1")
	write(t, filepath.Join(root, "globex", "photo.jpg"), "jpg-1")
	write(t, filepath.Join(root, "globex", "again.pdf"), "pdf-1") // same bytes as acme/scan.pdf
	write(t, filepath.Join(root, "loose.pdf"), "pdf-2")
	write(t, filepath.Join(root, "notes.txt"), "ignored")
	write(t, filepath.Join(root, ".hidden", "x.pdf"), "hidden")

	sub := newFakeSubmitter()
	ing := NewFSIngestor(sub, "", quiet())

	results, touched, stats, err := ing.IngestDirectory(context.Background(), root, true)
	require.NoError(t, err)

	assert.Equal(t, uint32(5), stats.Matched)
	assert.Equal(t, uint32(5), stats.Succeeded)
	assert.Equal(t, uint32(1), stats.Deduplicated)
	assert.Equal(t, uint32(3), stats.Intakes)
	assert.Len(t, results, 5)
	assert.Len(t, touched, 3)

	// Walk order is lexical: acme, globex, loose.pdf.
	require.Len(t, sub.intakes, 3)
	assert.ElementsMatch(t, []string{"request.eml", "scan.pdf"}, sub.files[sub.intakes[0]])
	assert.Equal(t, []string{"photo.jpg"}, sub.files[sub.intakes[1]])
	assert.Equal(t, []string{"loose.pdf"}, sub.files[sub.intakes[2]])
}

func TestIngestDirectory_RequiresRoot(t *testing.T) {
	_, _, _, err := NewFSIngestor(newFakeSubmitter(), "", quiet()).IngestDirectory(context.Background(), " ", true)
	assert.Error(t, err)
}

func TestIngestPath_RejectsUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	write(t, path, "x")
	_, err := NewFSIngestor(newFakeSubmitter(), "", quiet()).IngestPath(context.Background(), uuid.New(), path)
	assert.Error(t, err)
}

func TestStartWatcher_EmitsNewFiles(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "existing.pdf"), "old")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{
		Roots:       []string{root},
		InitialScan: true,
		Debounce:    20 * time.Millisecond,
		Logger:      quiet(),
	})
	require.NoError(t, err)

	next := func() string {
		select {
		case p := <-events:
			return p
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for watcher event")
			return ""
		}
	}
	assert.Equal(t, filepath.Join(root, "existing.pdf"), next())

	write(t, filepath.Join(root, "skip.txt"), "x")
	write(t, filepath.Join(root, "new.eml"), "From: a@example.com\r\n\r\nhi")
	assert.Equal(t, filepath.Join(root, "new.eml"), next())

	cancel()
	for range events {
	}
}
