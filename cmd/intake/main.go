package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/freight-intake/constants"
	"github.com/joseph-ayodele/freight-intake/internal/app"
)

const usage = `usage: intake <command> [flags] [args]

commands:
  ingest  [-intake ID] [-source S] FILE...   submit files (emails are fingerprinted)
  process INTAKE_ID                          extract pending documents and aggregate
  export  [-out FILE] [-limit N] [INTAKE_ID] write an XLSX for one intake, or a summary
  upload  -offer OFFER_ID DOCUMENT_ID        upload a document to the CRM once per offer
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := app.LoadConfig()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "ingest":
		err = runIngest(ctx, a, args)
	case "process":
		err = runProcess(ctx, a, args)
	case "export":
		err = runExport(ctx, a, args)
	case "upload":
		err = runUpload(ctx, a, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		a.Close()
		os.Exit(2)
	}
	if err != nil {
		logger.Error(cmd+" failed", "error", err)
		a.Close()
		os.Exit(1)
	}
}

func runIngest(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	intakeFlag := fs.String("intake", "", "existing intake ID (a new intake is opened when empty)")
	source := fs.String("source", constants.SourceChannelUpload, "source channel recorded on a new intake")
	_ = fs.Parse(args)
	if fs.NArg() == 0 {
		return fmt.Errorf("at least one file is required")
	}

	var intakeID uuid.UUID
	if *intakeFlag != "" {
		id, err := uuid.Parse(*intakeFlag)
		if err != nil {
			return fmt.Errorf("invalid -intake: %w", err)
		}
		intakeID = id
	} else {
		in, err := a.Processor.CreateIntake(ctx, *source)
		if err != nil {
			return err
		}
		intakeID = in.ID
	}

	type row struct {
		File        string      `json:"file"`
		Status      string      `json:"status"`
		DocumentID  uuid.UUID   `json:"document_id"`
		Attachments []uuid.UUID `json:"attachments,omitempty"`
		Message     string      `json:"message,omitempty"`
	}
	out := struct {
		IntakeID uuid.UUID `json:"intake_id"`
		Files    []row     `json:"files"`
	}{IntakeID: intakeID}

	for _, path := range fs.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		res, err := a.Processor.IngestFile(ctx, intakeID, filepath.Base(path), data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		out.Files = append(out.Files, row{
			File:        path,
			Status:      string(res.Status),
			DocumentID:  res.DocumentID,
			Attachments: res.Attachments,
			Message:     res.Message,
		})
	}
	return printJSON(out)
}

func runProcess(ctx context.Context, a *app.App, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: intake process INTAKE_ID")
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid intake id: %w", err)
	}
	rec, err := a.Processor.ProcessIntake(ctx, id)
	if err != nil {
		return err
	}
	return printJSON(rec)
}

func runExport(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("out", "intakes.xlsx", "output XLSX path")
	limit := fs.Int("limit", 100, "number of recent intakes in the summary")
	_ = fs.Parse(args)

	var (
		b   []byte
		err error
	)
	if fs.NArg() > 0 {
		id, perr := uuid.Parse(fs.Arg(0))
		if perr != nil {
			return fmt.Errorf("invalid intake id: %w", perr)
		}
		b, err = a.Exporter.ExportIntakeXLSX(ctx, id)
	} else {
		b, err = a.Exporter.ExportSummaryXLSX(ctx, *limit)
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, b, 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d bytes)\n", *out, len(b))
	return nil
}

func runUpload(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	offer := fs.String("offer", "", "CRM offer ID (required)")
	_ = fs.Parse(args)
	if *offer == "" || fs.NArg() != 1 {
		return fmt.Errorf("usage: intake upload -offer OFFER_ID DOCUMENT_ID")
	}
	id, err := uuid.Parse(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("invalid document id: %w", err)
	}
	res, err := a.Processor.UploadDocument(ctx, id, *offer)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
