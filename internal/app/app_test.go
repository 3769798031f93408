package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/freight-intake/constants"
)

func setEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_URL", filepath.Join(dir, "intake.db"))
	t.Setenv("STORAGE_BACKEND", "local")
	t.Setenv("STORAGE_LOCAL_ROOT", filepath.Join(dir, "data"))
	t.Setenv("PIPELINE_WORK_DIR", t.TempDir())
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GCP_PROJECT_ID", "")
	t.Setenv("CRM_UPLOAD_URL", "")
}

func TestNew_PatternOnlyPipeline(t *testing.T) {
	setEnv(t)
	cfg, err := LoadConfig()
	require.NoError(t, err)

	ctx := context.Background()
	a, err := New(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Router)
	assert.Nil(t, a.Uploads)
	require.NotNil(t, a.Processor)

	intake, err := a.Processor.CreateIntake(ctx, constants.SourceChannelEmail)
	require.NoError(t, err)
	raw := "From: a@example.com\r\nSubject: quote\r\n\r\nVIN: 1HGCM82633A123456, from Antwerp to Lagos\r\n"
	_, err = a.Processor.IngestEmail(ctx, intake.ID, "", []byte(raw))
	require.NoError(t, err)

	rec, err := a.Processor.ProcessIntake(ctx, intake.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lagos", rec.Shipment.Destination)

	b, err := a.Exporter.ExportIntakeXLSX(ctx, intake.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, b)
}

func TestNew_UploadsEnabledByURL(t *testing.T) {
	setEnv(t)
	t.Setenv("CRM_UPLOAD_URL", "http://crm.invalid/upload")
	cfg, err := LoadConfig()
	require.NoError(t, err)

	a, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer a.Close()
	assert.NotNil(t, a.Uploads)
}

func TestLoadConfig_RejectsBadPolicy(t *testing.T) {
	setEnv(t)
	t.Setenv("OCR_UNKNOWN_TEXT_LAYER", "guess")
	_, err := LoadConfig()
	assert.Error(t, err)
}
