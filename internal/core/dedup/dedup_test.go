package dedup

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/freight-intake/internal/entity"
)

type memLookup struct {
	docs []*entity.Document
	err  error
}

func (m *memLookup) FindByMessageID(_ context.Context, id string, intakeID *uuid.UUID) (*entity.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, d := range m.docs {
		if d.SourceMessageID != nil && *d.SourceMessageID == id && (intakeID == nil || d.IntakeID == *intakeID) {
			return d, nil
		}
	}
	return nil, nil
}

func (m *memLookup) FindByContentSHA(_ context.Context, sha string, intakeID *uuid.UUID) (*entity.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, d := range m.docs {
		if d.SourceContentSHA != nil && *d.SourceContentSHA == sha && (intakeID == nil || d.IntakeID == *intakeID) {
			return d, nil
		}
	}
	return nil, nil
}

func rawEmail(messageID, body string) []byte {
	var b strings.Builder
	b.WriteString("From: jane@example.com\r\nTo: quotes@example.com\r\nSubject: Quote\r\n")
	if messageID != "" {
		b.WriteString("Message-ID: <" + messageID + ">\r\n")
	}
	b.WriteString("\r\n" + body + "\r\n")
	return []byte(b.String())
}

func docFor(intakeID uuid.UUID, fp entity.Fingerprint) *entity.Document {
	return &entity.Document{ID: uuid.New(), IntakeID: intakeID, SourceMessageID: fp.MessageID, SourceContentSHA: &fp.ContentSHA}
}

func TestFingerprint(t *testing.T) {
	fp, msg, err := Fingerprint(rawEmail("m1@example.com", "hello"))
	require.NoError(t, err)
	require.NotNil(t, fp.MessageID)
	assert.Equal(t, "m1@example.com", *fp.MessageID)
	assert.Len(t, fp.ContentSHA, 64)
	assert.Equal(t, "hello", strings.TrimSpace(msg.Body()))

	noID, _, err := Fingerprint(rawEmail("", "hello"))
	require.NoError(t, err)
	assert.Nil(t, noID.MessageID)
	assert.Equal(t, fp.ContentSHA, noID.ContentSHA, "message id is not part of the content hash")

	spaced, _, err := Fingerprint(rawEmail("", "hello   \r\n\r\n\r\n\r\n"))
	require.NoError(t, err)
	assert.Equal(t, fp.ContentSHA, spaced.ContentSHA)

	other, _, err := Fingerprint(rawEmail("", "goodbye"))
	require.NoError(t, err)
	assert.NotEqual(t, fp.ContentSHA, other.ContentSHA)
}

func TestIsDuplicate_Precedence(t *testing.T) {
	intake := uuid.New()
	fp, _, err := Fingerprint(rawEmail("m1@example.com", "hello"))
	require.NoError(t, err)
	byID := docFor(intake, entity.Fingerprint{MessageID: fp.MessageID, ContentSHA: "other"})
	byHash := docFor(intake, entity.Fingerprint{ContentSHA: fp.ContentSHA})
	d := NewDeduplicator(&memLookup{docs: []*entity.Document{byHash, byID}}, false, nil)

	got, err := d.IsDuplicate(context.Background(), fp, &intake)
	require.NoError(t, err)
	assert.Equal(t, byID.ID, got.ID)

	fp.MessageID = nil
	got, err = d.IsDuplicate(context.Background(), fp, &intake)
	require.NoError(t, err)
	assert.Equal(t, byHash.ID, got.ID)

	other := uuid.New()
	got, err = d.IsDuplicate(context.Background(), fp, &other)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = d.IsDuplicate(context.Background(), fp, nil)
	require.NoError(t, err)
	assert.Equal(t, byHash.ID, got.ID)
}

func TestGuard_Scoping(t *testing.T) {
	intake1, intake2 := uuid.New(), uuid.New()
	fp, _, err := Fingerprint(rawEmail("", "VIN: 1HGCM82633A123456, from Antwerp to Lagos"))
	require.NoError(t, err)
	original := docFor(intake1, fp)
	lookup := &memLookup{docs: []*entity.Document{original}}
	ctx := context.Background()

	scoped := NewDeduplicator(lookup, false, nil)
	m, err := scoped.Guard(ctx, fp, intake1)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, original.ID, m.Document.ID)
	assert.Equal(t, TierIntakeContent, m.Tier)

	m, err = scoped.Guard(ctx, fp, intake2)
	require.NoError(t, err)
	assert.Nil(t, m, "new under another intake without the global guard")

	global := NewDeduplicator(lookup, true, nil)
	m, err = global.Guard(ctx, fp, intake2)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, TierGlobalContent, m.Tier)
	assert.Equal(t, original.ID, m.Document.ID)
	assert.NotEqual(t, TierIntakeContent.Message(), m.Message)
}

func TestGuard_MessageIDTier(t *testing.T) {
	intake := uuid.New()
	fp, _, err := Fingerprint(rawEmail("m1@example.com", "hello"))
	require.NoError(t, err)
	// Same Message-ID, different content (e.g. a re-sent copy with a footer).
	orig := docFor(intake, entity.Fingerprint{MessageID: fp.MessageID, ContentSHA: "different"})
	d := NewDeduplicator(&memLookup{docs: []*entity.Document{orig}}, true, nil)

	m, err := d.Guard(context.Background(), fp, intake)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, TierIntakeMessageID, m.Tier)
}

func TestGuard_LookupError(t *testing.T) {
	d := NewDeduplicator(&memLookup{err: errors.New("db down")}, false, nil)
	_, err := d.Guard(context.Background(), entity.Fingerprint{ContentSHA: "x"}, uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}
