package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/freight-intake/internal/entity"
)

type IntakeReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Intake, error)
	List(ctx context.Context, limit int) ([]*entity.Intake, error)
}

type DocumentLister interface {
	ListByIntake(ctx context.Context, intakeID uuid.UUID) ([]*entity.Document, error)
}

const (
	sheetRecord  = "Record"
	sheetSources = "Documents"
	sheetIntakes = "Intakes"
)

// Service produces XLSX workbooks from intakes and their documents.
type Service struct {
	intakes IntakeReader
	docs    DocumentLister
	logger  *slog.Logger
}

func NewService(intakes IntakeReader, docs DocumentLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{intakes: intakes, docs: docs, logger: logger}
}

// ExportIntakeXLSX returns a workbook with the intake's merged record on one sheet
// and every document with its status and extraction method on another.
func (s *Service) ExportIntakeXLSX(ctx context.Context, intakeID uuid.UUID) ([]byte, error) {
	start := time.Now()

	intake, err := s.intakes.GetByID(ctx, intakeID)
	if err != nil {
		return nil, fmt.Errorf("load intake: %w", err)
	}
	docs, err := s.docs.ListByIntake(ctx, intakeID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", sheetRecord); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(sheetSources); err != nil {
		return nil, err
	}

	w := &sheetWriter{f: f, sheet: sheetRecord}
	w.row("Field", "Value")
	w.row("intake.id", intake.ID.String())
	w.row("intake.status", string(intake.Status))
	w.row("intake.documents", intake.TotalDocuments)
	if rec := intake.AggregatedExtractionData; rec != nil {
		for _, kv := range flatten(rec.Data()) {
			w.row(kv.key, kv.value)
		}
		if rec.Metadata.Confidence != nil {
			w.row("metadata.confidence", *rec.Metadata.Confidence)
		}
		w.row("metadata.document_count", rec.Metadata.DocumentCount)
	}
	_ = f.SetColWidth(sheetRecord, "A", "A", 28)
	_ = f.SetColWidth(sheetRecord, "B", "B", 48)

	w = &sheetWriter{f: f, sheet: sheetSources}
	w.row("Document ID", "Filename", "Mime Type", "Status", "Method", "Confidence", "Error")
	for _, d := range docs {
		method, conf := "", any("")
		if d.ExtractionData != nil {
			method = d.ExtractionData.Metadata.Method
			if c := d.ExtractionData.Metadata.Confidence; c != nil {
				conf = *c
			}
		}
		errMsg := ""
		if d.ErrorMessage != nil {
			errMsg = truncate(*d.ErrorMessage, 140)
		}
		w.row(d.ID.String(), d.Filename, d.MimeType, string(d.ProcessingStatus), method, conf, errMsg)
	}
	_ = f.SetColWidth(sheetSources, "A", "A", 38)
	_ = f.SetColWidth(sheetSources, "B", "C", 28)
	_ = f.SetColWidth(sheetSources, "G", "G", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.xlsx.ok",
		"intake_id", intakeID.String(),
		"documents", len(docs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// ExportSummaryXLSX lists the most recent intakes, one row each.
func (s *Service) ExportSummaryXLSX(ctx context.Context, limit int) ([]byte, error) {
	intakes, err := s.intakes.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list intakes: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", sheetIntakes); err != nil {
		return nil, err
	}
	w := &sheetWriter{f: f, sheet: sheetIntakes}
	w.row("Intake ID", "Created", "Status", "Documents", "Origin", "Destination", "Type", "VIN", "Contact", "Cargo Value")
	for _, in := range intakes {
		var d entity.ExtractionData
		if in.AggregatedExtractionData != nil {
			d = in.AggregatedExtractionData.Data()
		}
		contact := d.Contact.Name
		if contact == "" {
			contact = d.Contact.Email
		}
		w.row(in.ID.String(), in.CreatedAt.UTC().Format(time.RFC3339), string(in.Status), in.TotalDocuments,
			d.Shipment.Origin, d.Shipment.Destination, d.Shipment.Type, d.Vehicle.VIN, contact, money(d.Cargo))
	}
	_ = f.SetColWidth(sheetIntakes, "A", "A", 38)
	_ = f.SetColWidth(sheetIntakes, "B", "B", 22)
	_ = f.SetColWidth(sheetIntakes, "E", "I", 20)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.summary.ok", "rows", len(intakes))
	return buf.Bytes(), nil
}

type sheetWriter struct {
	f     *excelize.File
	sheet string
	n     int
}

func (w *sheetWriter) row(values ...any) {
	w.n++
	cell, _ := excelize.CoordinatesToCellName(1, w.n)
	_ = w.f.SetSheetRow(w.sheet, cell, &values)
}

type field struct {
	key   string
	value any
}

// flatten lists the non-empty leaves of d under dotted json names.
func flatten(d entity.ExtractionData) []field {
	var out []field
	add := func(key, v string) {
		if v != "" {
			out = append(out, field{key, v})
		}
	}
	addMeasure := func(key string, m *entity.Measure) {
		if m != nil && m.Value != "" {
			add(key, strings.TrimSpace(m.Value+" "+m.Unit))
		}
	}
	addDims := func(key string, dm *entity.Dimensions) {
		if dm != nil && (dm.Length != "" || dm.Width != "" || dm.Height != "") {
			add(key, strings.TrimSpace(fmt.Sprintf("%s x %s x %s %s", dm.Length, dm.Width, dm.Height, dm.Unit)))
		}
	}

	add("contact.name", d.Contact.Name)
	add("contact.company", d.Contact.Company)
	add("contact.email", d.Contact.Email)
	add("contact.phone", d.Contact.Phone)
	add("shipment.origin", d.Shipment.Origin)
	add("shipment.destination", d.Shipment.Destination)
	add("shipment.type", d.Shipment.Type)
	add("shipment.service", d.Shipment.Service)
	add("shipment.preferred_date", d.Shipment.PreferredDate)
	add("shipment.incoterm", d.Shipment.Incoterm)
	add("vehicle.vin", d.Vehicle.VIN)
	add("vehicle.make", d.Vehicle.Make)
	add("vehicle.model", d.Vehicle.Model)
	add("vehicle.year", d.Vehicle.Year)
	add("vehicle.condition", d.Vehicle.Condition)
	add("vehicle.color", d.Vehicle.Color)
	addDims("vehicle.dimensions", d.Vehicle.Dimensions)
	addMeasure("vehicle.weight", d.Vehicle.Weight)
	add("cargo.description", d.Cargo.Description)
	add("cargo.quantity", d.Cargo.Quantity)
	add("cargo.packaging", d.Cargo.Packaging)
	add("cargo.value", d.Cargo.Value)
	add("cargo.currency", d.Cargo.Currency)
	addMeasure("cargo.weight", d.Cargo.Weight)
	addDims("cargo.dimensions", d.Cargo.Dimensions)
	add("route.port_of_loading", d.Route.PortOfLoading)
	add("route.port_of_discharge", d.Route.PortOfDischarge)
	add("route.via", d.Route.Via)
	return out
}

// money renders the declared cargo value as a number when it parses, else as text.
func money(c entity.Cargo) any {
	if c.Value == "" {
		return ""
	}
	raw := strings.NewReplacer(",", "", " ", "").Replace(c.Value)
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return strings.TrimSpace(c.Value + " " + c.Currency)
	}
	f, _ := v.Round(2).Float64()
	return f
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
