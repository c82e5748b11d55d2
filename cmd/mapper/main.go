// Command mapper detects the column layout of distributor depletion
// extracts, transforms their rows into canonical records and learns from
// accepted results.
//
// Usage:
//
//	mapper [flags] FILE...
//
// Each file is decoded (CSV, TSV, XLSX or fixed-width text), processed and
// printed as one JSON document on stdout. Configuration is read from the
// environment (see pkg/config).
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/FACorreiaa/depletion-mapper/internal/domain/import/parser"
	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping"
	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping/learned"
	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping/service"
	"github.com/FACorreiaa/depletion-mapper/pkg/config"
	"github.com/FACorreiaa/depletion-mapper/pkg/metrics"
	"github.com/FACorreiaa/depletion-mapper/pkg/money"
	"github.com/FACorreiaa/depletion-mapper/pkg/storage"
)

type options struct {
	distributor string
	org         string
	period      string
	european    string
	headerRow   int
	sheet       string
	detectOnly  bool
	pretty      bool
	verbose     bool
}

func main() {
	var opts options
	flag.StringVar(&opts.distributor, "distributor", "", "distributor id scoping the learned mapping")
	flag.StringVar(&opts.org, "org", "", "organization id for scoped synonyms")
	flag.StringVar(&opts.period, "period", "", "default period (YYYY-MM) for extracts without a date column")
	flag.StringVar(&opts.european, "european", "auto", "number dialect: auto, true or false")
	flag.IntVar(&opts.headerRow, "header-row", -1, "0-based header row (-1 detects it)")
	flag.StringVar(&opts.sheet, "sheet", "", "spreadsheet sheet name")
	flag.BoolVar(&opts.detectOnly, "detect-only", false, "print the detected mapping without transforming")
	flag.BoolVar(&opts.pretty, "pretty", false, "indent JSON output")
	flag.BoolVar(&opts.verbose, "v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: mapper [flags] FILE...")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := run(opts, flag.Args(), logger); err != nil {
		logger.Error("mapper failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(opts options, files []string, logger *slog.Logger) error {
	european, err := parseDialect(opts.european)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	deps, err := InitDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	if cfg.Observability.MetricsEnabled {
		srv := &http.Server{
			Addr:              ":" + strconv.Itoa(cfg.Observability.MetricsPort),
			Handler:           metrics.Handler(deps.Registry),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("metrics server listening", slog.Int("port", cfg.Observability.MetricsPort))
	}

	enc := json.NewEncoder(os.Stdout)
	if opts.pretty {
		enc.SetIndent("", "  ")
	}

	failed := 0
	revenue := money.NewTotals("")
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc, err := processFile(ctx, deps.Engine, deps.Archive, file, opts, european)
		if err != nil {
			failed++
			logger.Error("file failed", slog.String("file", file), slog.Any("error", err))
			doc = fileReport{File: file, Error: err.Error()}
			var rfe *mapping.RequiredFieldError
			if errors.As(err, &rfe) {
				doc.Missing = rfe.Missing
				doc.Detected = rfe.Detected
			}
		}
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		if err := addRevenue(revenue, doc); err != nil {
			logger.Warn("failed to total file revenue", slog.String("file", file), slog.Any("error", err))
		}
	}

	logger.Info("run complete",
		slog.Int("files", len(files)),
		slog.Int("failed", failed),
		slog.Any("revenue", revenue.Display()),
	)
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

type fileReport struct {
	File      string                   `json:"file"`
	Rows      int                      `json:"rows"`
	Detection *mapping.DetectionResult `json:"detection,omitempty"`
	Result    *service.ProcessResult   `json:"result,omitempty"`
	Error     string                   `json:"error,omitempty"`
	Missing   []mapping.CanonicalField `json:"missing_fields,omitempty"`
	Detected  mapping.ColumnMapping    `json:"detected,omitempty"`
	Archived  *storage.Entry           `json:"archived,omitempty"`
}

func processFile(ctx context.Context, engine service.MappingService, archive storage.Archive, file string, opts options, european *bool) (fileReport, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return fileReport{}, fmt.Errorf("failed to read file: %w", err)
	}

	pcfg := parser.DefaultConfig()
	pcfg.HeaderRowIndex = opts.headerRow
	pcfg.Sheet = opts.sheet
	table, err := parser.Decode(filepath.Base(file), data, pcfg)
	if err != nil {
		return fileReport{}, fmt.Errorf("failed to decode file: %w", err)
	}

	report := fileReport{File: file, Rows: len(table.Rows)}
	detectIn := mapping.DetectionInput{
		Headers:        table.Headers,
		SampleRows:     table.Rows,
		DistributorID:  opts.distributor,
		OrganizationID: opts.org,
	}

	if opts.detectOnly {
		det, err := engine.Detect(ctx, detectIn)
		if err != nil {
			return fileReport{}, err
		}
		report.Detection = det
		return report, nil
	}

	res, err := engine.Process(ctx, service.ProcessInput{
		DetectionInput: detectIn,
		Rows:           table.Rows,
		DefaultPeriod:  opts.period,
		EuropeanFormat: european,
	})
	if err != nil {
		if errors.Is(err, mapping.ErrRequiredFieldUnresolved) {
			archiveExtract(ctx, archive, storage.Entry{
				SourceKey: learned.SourceKey(opts.distributor, table.Headers),
				Name:      file,
				Reason:    storage.ReasonUnresolved,
			}, data)
		}
		return fileReport{}, err
	}
	report.Result = res

	if res.Feedback != nil && !res.Feedback.Accepted {
		report.Archived = archiveExtract(ctx, archive, storage.Entry{
			ID:          res.Feedback.OutcomeID,
			SourceKey:   res.Detection.SourceKey,
			Name:        file,
			Reason:      storage.ReasonRejected,
			SuccessRate: res.Transform.SuccessRate,
		}, data)
	}
	return report, nil
}

// addRevenue folds the file's per-currency revenue into the run totals.
func addRevenue(run *money.Totals, doc fileReport) error {
	if doc.Result == nil || doc.Result.Transform == nil {
		return nil
	}
	totals, err := money.ParseTotals(doc.Result.Transform.RevenueTotals)
	if err != nil {
		return err
	}
	return run.Merge(totals)
}

// archiveExtract keeps the raw file for review. Failures are logged only.
func archiveExtract(ctx context.Context, archive storage.Archive, entry storage.Entry, data []byte) *storage.Entry {
	if archive == nil {
		return nil
	}
	stored, err := archive.Put(ctx, entry, bytes.NewReader(data))
	if err != nil {
		slog.Warn("failed to archive extract", slog.String("file", entry.Name), slog.Any("error", err))
		return nil
	}
	slog.Info("extract archived",
		slog.String("file", entry.Name),
		slog.String("reason", entry.Reason),
		slog.String("id", stored.ID.String()),
	)
	return stored
}

func parseDialect(s string) (*bool, error) {
	if s == "" || s == "auto" {
		return nil, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return nil, fmt.Errorf("invalid -european value %q: want auto, true or false", s)
	}
	return &v, nil
}
