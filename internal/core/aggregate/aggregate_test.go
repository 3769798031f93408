package aggregate

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/freight-intake/constants"
	"github.com/joseph-ayodele/freight-intake/internal/entity"
)

type memStore struct {
	intake  *entity.Intake
	docs    []*entity.Document
	updates int
}

func (m *memStore) ListByIntake(_ context.Context, _ uuid.UUID) ([]*entity.Document, error) {
	return m.docs, nil
}

func (m *memStore) GetByID(_ context.Context, _ uuid.UUID) (*entity.Intake, error) {
	cp := *m.intake
	return &cp, nil
}

func (m *memStore) Update(_ context.Context, in *entity.Intake) error {
	m.updates++
	m.intake = in
	return nil
}

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func doc(name, mime string, offset time.Duration, conf *float64, data entity.ExtractionData) *entity.Document {
	return &entity.Document{
		ID:               uuid.New(),
		Filename:         name,
		MimeType:         mime,
		ProcessingStatus: constants.DocumentStatusCompleted,
		CreatedAt:        t0.Add(offset),
		ExtractionData: &entity.ExtractionResult{
			Data:     data,
			Metadata: entity.ExtractionMetadata{Confidence: conf},
		},
	}
}

func f(v float64) *float64 { return &v }

func TestMerge_PriorityNonOverwrite(t *testing.T) {
	// The image is older, but the email still wins conflicting leaves.
	img := doc("photo.jpg", constants.MimeJPEG, 0, f(0.4), entity.ExtractionData{
		Shipment: entity.Shipment{Origin: "Rotterdam", Destination: "Lagos"},
		Vehicle:  entity.Vehicle{VIN: "WRONGVIN000000000", Color: "red"},
	})
	mail := doc("mail.eml", constants.MimeEmail, time.Minute, f(0.9), entity.ExtractionData{
		Shipment: entity.Shipment{Origin: "Antwerp"},
		Vehicle:  entity.Vehicle{VIN: "1HGCM82633A123456"},
	})

	rec := Merge([]*entity.Document{img, mail})
	assert.Equal(t, "Antwerp", rec.Shipment.Origin)
	assert.Equal(t, "1HGCM82633A123456", rec.Vehicle.VIN)
	assert.Equal(t, "Lagos", rec.Shipment.Destination, "gaps are filled by lower priority")
	assert.Equal(t, "red", rec.Vehicle.Color)

	require.Len(t, rec.Metadata.Sources, 2)
	assert.Equal(t, mail.ID, rec.Metadata.Sources[0].DocumentID)
	assert.Equal(t, "email", rec.Metadata.Sources[0].Type)
	assert.Equal(t, 3, rec.Metadata.Sources[0].Priority)
	assert.Equal(t, "image", rec.Metadata.Sources[1].Type)
}

func TestMerge_NestedObjectsMergeKeyByKey(t *testing.T) {
	pdf := doc("packing-list.pdf", constants.MimePDF, 0, nil, entity.ExtractionData{
		Cargo: entity.Cargo{Dimensions: &entity.Dimensions{Length: "5.3", Unit: "m"}},
	})
	img := doc("scan.png", constants.MimePNG, 0, nil, entity.ExtractionData{
		Cargo: entity.Cargo{Dimensions: &entity.Dimensions{Length: "9", Width: "1.8", Height: "1.9", Unit: "ft"}},
	})

	rec := Merge([]*entity.Document{img, pdf})
	require.NotNil(t, rec.Cargo.Dimensions)
	assert.Equal(t, entity.Dimensions{Length: "5.3", Width: "1.8", Height: "1.9", Unit: "m"}, *rec.Cargo.Dimensions)
	assert.Nil(t, rec.Metadata.Confidence)
}

func TestMerge_ConfidenceExcludesUnscored(t *testing.T) {
	a := doc("a.eml", constants.MimeEmail, 0, f(0.9), entity.ExtractionData{})
	b := doc("b.pdf", constants.MimePDF, 0, f(0.5), entity.ExtractionData{})
	c := doc("c.jpg", constants.MimeJPEG, 0, nil, entity.ExtractionData{})

	rec := Merge([]*entity.Document{a, b, c})
	require.NotNil(t, rec.Metadata.Confidence)
	assert.InDelta(t, 0.7, *rec.Metadata.Confidence, 1e-9)
	assert.Equal(t, 3, rec.Metadata.DocumentCount)
}

func TestMerge_SkipsDocumentsWithoutData(t *testing.T) {
	pending := &entity.Document{ID: uuid.New(), Filename: "x.pdf", MimeType: constants.MimePDF}
	rec := Merge([]*entity.Document{pending})
	assert.Equal(t, 0, rec.Metadata.DocumentCount)
	assert.Empty(t, rec.Metadata.Sources)
	assert.True(t, rec.Data().IsEmpty())
}

func TestMerge_OrderIndependent(t *testing.T) {
	docs := []*entity.Document{
		doc("a.pdf", constants.MimePDF, 0, f(0.3), entity.ExtractionData{Contact: entity.Contact{Name: "A"}}),
		doc("b.pdf", constants.MimePDF, time.Second, f(0.6), entity.ExtractionData{Contact: entity.Contact{Name: "B", Phone: "+1"}}),
		doc("c.bin", "application/octet-stream", 0, nil, entity.ExtractionData{Contact: entity.Contact{Email: "c@x"}}),
	}
	reversed := []*entity.Document{docs[2], docs[1], docs[0]}

	a, err := json.Marshal(Merge(docs))
	require.NoError(t, err)
	b, err := json.Marshal(Merge(reversed))
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
	assert.Equal(t, string(a), string(b))
	assert.Contains(t, string(a), `"name":"A"`)
}

func TestAggregate_IdempotentAndPersisted(t *testing.T) {
	intakeID := uuid.New()
	store := &memStore{
		intake: &entity.Intake{ID: intakeID, Status: constants.IntakeStatusProcessing},
		docs: []*entity.Document{
			doc("mail.eml", constants.MimeEmail, 0, f(0.6), entity.ExtractionData{Vehicle: entity.Vehicle{VIN: "1HGCM82633A123456"}}),
			doc("quote.pdf", constants.MimePDF, time.Second, nil, entity.ExtractionData{Shipment: entity.Shipment{Origin: "Antwerp"}}),
		},
	}
	agg := NewAggregator(store, store, nil)

	first, err := agg.Aggregate(context.Background(), intakeID)
	require.NoError(t, err)
	second, err := agg.Aggregate(context.Background(), intakeID)
	require.NoError(t, err)

	b1, _ := json.Marshal(first)
	b2, _ := json.Marshal(second)
	assert.Equal(t, string(b1), string(b2))

	assert.Equal(t, 2, store.updates)
	assert.Equal(t, constants.IntakeStatusCompleted, store.intake.Status)
	assert.Equal(t, 2, store.intake.TotalDocuments)
	assert.Equal(t, 2, store.intake.ProcessedDocuments)
	assert.True(t, store.intake.IsMultiDocument)
	assert.Equal(t, "Antwerp", store.intake.AggregatedExtractionData.Shipment.Origin)
}

func TestAggregate_Status(t *testing.T) {
	intakeID := uuid.New()
	pending := &entity.Document{ID: uuid.New(), MimeType: constants.MimePDF, ProcessingStatus: constants.DocumentStatusPending}
	failed := &entity.Document{ID: uuid.New(), MimeType: constants.MimePDF, ProcessingStatus: constants.DocumentStatusFailed}

	store := &memStore{intake: &entity.Intake{ID: intakeID}, docs: []*entity.Document{pending, failed}}
	_, err := NewAggregator(store, store, nil).Aggregate(context.Background(), intakeID)
	require.NoError(t, err)
	assert.Equal(t, constants.IntakeStatusProcessing, store.intake.Status)
	assert.Equal(t, 1, store.intake.ProcessedDocuments)

	store.docs = []*entity.Document{failed}
	_, err = NewAggregator(store, store, nil).Aggregate(context.Background(), intakeID)
	require.NoError(t, err)
	assert.Equal(t, constants.IntakeStatusFailed, store.intake.Status)
}
