// Package dedup identifies inbound emails that were already ingested.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/freight-intake/internal/core/email"
	"github.com/joseph-ayodele/freight-intake/internal/entity"
)

// Lookup finds previously ingested documents. Both methods return nil, nil on no match;
// a nil intakeID searches across all intakes.
type Lookup interface {
	FindByMessageID(ctx context.Context, messageID string, intakeID *uuid.UUID) (*entity.Document, error)
	FindByContentSHA(ctx context.Context, sha string, intakeID *uuid.UUID) (*entity.Document, error)
}

// Tier is the guard that matched.
type Tier int

const (
	TierIntakeMessageID Tier = iota + 1
	TierIntakeContent
	TierGlobalContent
)

func (t Tier) Message() string {
	switch t {
	case TierIntakeMessageID:
		return "email already ingested for this intake (same Message-ID)"
	case TierIntakeContent:
		return "email already ingested for this intake (identical content)"
	case TierGlobalContent:
		return "identical email already ingested under another intake"
	default:
		return "duplicate"
	}
}

// Match is a positive duplicate result.
type Match struct {
	Document *entity.Document
	Tier     Tier
	Message  string
}

type Deduplicator struct {
	lookup      Lookup
	globalGuard bool
	logger      *slog.Logger
}

// NewDeduplicator builds a deduplicator; globalGuard enables the cross-intake content check.
func NewDeduplicator(lookup Lookup, globalGuard bool, logger *slog.Logger) *Deduplicator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deduplicator{lookup: lookup, globalGuard: globalGuard, logger: logger}
}

// Fingerprint parses raw and derives its identity.
func Fingerprint(raw []byte) (entity.Fingerprint, *email.Message, error) {
	msg, err := email.Parse(raw)
	if err != nil {
		return entity.Fingerprint{}, nil, fmt.Errorf("fingerprint: %w", err)
	}
	return FingerprintMessage(msg), msg, nil
}

// FingerprintMessage derives the identity of a parsed message. The content hash is
// always computed; the message id is set only when the header is present.
func FingerprintMessage(msg *email.Message) entity.Fingerprint {
	var fp entity.Fingerprint
	if id := strings.TrimSpace(msg.MessageID); id != "" {
		fp.MessageID = &id
	}
	fp.ContentSHA = ContentSHA(msg)
	return fp
}

var (
	reTrailingSpace = regexp.MustCompile(`(?m)[ \t]+$`)
	reBlankLines    = regexp.MustCompile(`\n{3,}`)
)

// ContentSHA hashes the identifying headers and the normalized plain body.
func ContentSHA(msg *email.Message) string {
	h := sha256.New()
	for _, kv := range [][2]string{
		{"from", msg.From},
		{"to", msg.To},
		{"cc", msg.Cc},
		{"subject", msg.Subject},
		{"date", msg.Date},
	} {
		fmt.Fprintf(h, "%s:%s\n", kv[0], strings.Join(strings.Fields(kv[1]), " "))
	}
	h.Write([]byte{0})
	h.Write([]byte(normalizeBody(msg.Body())))
	return hex.EncodeToString(h.Sum(nil))
}

func normalizeBody(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = reTrailingSpace.ReplaceAllString(s, "")
	s = reBlankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// IsDuplicate looks up by message id, then by content hash, scoped to intakeID when given.
func (d *Deduplicator) IsDuplicate(ctx context.Context, fp entity.Fingerprint, intakeID *uuid.UUID) (*entity.Document, error) {
	if fp.MessageID != nil && *fp.MessageID != "" {
		doc, err := d.lookup.FindByMessageID(ctx, *fp.MessageID, intakeID)
		if err != nil {
			return nil, fmt.Errorf("lookup message-id: %w", err)
		}
		if doc != nil {
			return doc, nil
		}
	}
	if fp.ContentSHA == "" {
		return nil, nil
	}
	doc, err := d.lookup.FindByContentSHA(ctx, fp.ContentSHA, intakeID)
	if err != nil {
		return nil, fmt.Errorf("lookup content sha: %w", err)
	}
	return doc, nil
}

// Guard applies the ingestion checks in order: intake message id, intake content hash,
// then the global content hash when enabled. It returns nil when the email is new.
func (d *Deduplicator) Guard(ctx context.Context, fp entity.Fingerprint, intakeID uuid.UUID) (*Match, error) {
	if fp.MessageID != nil && *fp.MessageID != "" {
		doc, err := d.lookup.FindByMessageID(ctx, *fp.MessageID, &intakeID)
		if err != nil {
			return nil, fmt.Errorf("lookup message-id: %w", err)
		}
		if doc != nil {
			return d.match(doc, TierIntakeMessageID, intakeID), nil
		}
	}
	doc, err := d.lookup.FindByContentSHA(ctx, fp.ContentSHA, &intakeID)
	if err != nil {
		return nil, fmt.Errorf("lookup content sha: %w", err)
	}
	if doc != nil {
		return d.match(doc, TierIntakeContent, intakeID), nil
	}
	if !d.globalGuard {
		return nil, nil
	}
	doc, err = d.lookup.FindByContentSHA(ctx, fp.ContentSHA, nil)
	if err != nil {
		return nil, fmt.Errorf("lookup global content sha: %w", err)
	}
	if doc != nil {
		return d.match(doc, TierGlobalContent, intakeID), nil
	}
	return nil, nil
}

func (d *Deduplicator) match(doc *entity.Document, tier Tier, intakeID uuid.UUID) *Match {
	d.logger.Info("dedup.duplicate",
		"intake_id", intakeID,
		"original_doc_id", doc.ID,
		"original_intake_id", doc.IntakeID,
		"tier", int(tier),
	)
	return &Match{Document: doc, Tier: tier, Message: tier.Message()}
}
