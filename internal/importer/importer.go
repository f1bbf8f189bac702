// Package importer loads exported SMS records from disk so they can be run
// through the same normalization and ingestion path as a gateway fetch.
package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fjacquet/sms-ledger/internal/fileutils"
	"fjacquet/sms-ledger/internal/gateway"
	"fjacquet/sms-ledger/internal/ingest"
	"fjacquet/sms-ledger/internal/logging"
	"fjacquet/sms-ledger/internal/models"
	"fjacquet/sms-ledger/internal/normalizer"
	"fjacquet/sms-ledger/internal/parsererror"
)

// Supported export formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// BatchIngester stores canonical records.
type BatchIngester interface {
	IngestBatch(ctx context.Context, recs []models.CanonicalRecord) ingest.BatchResult
}

// Importer reads export files and hands their records to the ingester.
type Importer struct {
	ingester   BatchIngester
	normalizer *normalizer.Normalizer
	logger     logging.Logger
}

// NewImporter creates an importer.
func NewImporter(ingester BatchIngester, norm *normalizer.Normalizer, logger logging.Logger) *Importer {
	return &Importer{ingester: ingester, normalizer: norm, logger: logger}
}

// Import ingests one export file, or every .json and .csv export below path
// when it is a directory.
func (i *Importer) Import(ctx context.Context, path string) (ingest.BatchResult, error) {
	switch {
	case fileutils.DirectoryExists(path):
		return i.ImportDir(ctx, path)
	case fileutils.FileExists(path):
		return i.importFile(ctx, path)
	default:
		return ingest.BatchResult{}, fmt.Errorf("export %s: %w", path, os.ErrNotExist)
	}
}

// ImportDir imports every export file below dir. A file that cannot be
// loaded is logged and reported in the returned error; the other files are
// still imported.
func (i *Importer) ImportDir(ctx context.Context, dir string) (ingest.BatchResult, error) {
	files, err := fileutils.ListFilesWithExtensions(dir, ".json", ".csv")
	if err != nil {
		return ingest.BatchResult{}, err
	}
	i.logger.Info("Importing directory",
		logging.F(logging.FieldInputFile, dir),
		logging.F(logging.FieldCount, len(files)))

	var (
		total ingest.BatchResult
		errs  []error
	)
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		result, err := i.importFile(ctx, file)
		if err != nil {
			i.logger.WithError(err).Warn("Skipping export file", logging.F(logging.FieldInputFile, file))
			errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(file), err))
			continue
		}
		total.Stored += result.Stored
		total.Skipped += result.Skipped
		total.Failed += result.Failed
		total.Outcomes = append(total.Outcomes, result.Outcomes...)
	}
	return total, errors.Join(errs...)
}

func (i *Importer) importFile(ctx context.Context, path string) (ingest.BatchResult, error) {
	raws, err := Load(path, i.logger)
	if err != nil {
		return ingest.BatchResult{}, err
	}
	result := i.ingester.IngestBatch(ctx, i.normalizer.Normalize(raws))
	i.logger.Info("Import completed",
		logging.F(logging.FieldInputFile, path),
		logging.F(logging.FieldCount, len(raws)),
		logging.F("stored", result.Stored),
		logging.F("skipped", result.Skipped),
		logging.F("failed", result.Failed))
	return result, nil
}

// DetectFormat picks the export format from the file extension.
func DetectFormat(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", &parsererror.InvalidFormatError{
			FilePath:       path,
			ExpectedFormat: ".json or .csv export",
			Msg:            "unsupported file extension",
		}
	}
}

// Load reads a JSON or CSV export into raw records.
func Load(path string, logger logging.Logger) ([]map[string]any, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatCSV:
		rows, err := ReadCSVFile[Row](path, logger)
		if err != nil {
			return nil, err
		}
		raws := make([]map[string]any, 0, len(rows))
		for _, row := range rows {
			raws = append(raws, row.Raw())
		}
		return raws, nil
	default:
		body, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading JSON file: %w", err)
		}
		raws, err := gateway.Unwrap(body)
		if err != nil {
			return nil, &parsererror.InvalidFormatError{
				FilePath:             path,
				ExpectedFormat:       "JSON list or {\"sms\": [...]} object",
				ActualContentSnippet: snippet(body),
				Msg:                  err.Error(),
			}
		}
		logger.Info("Successfully read JSON export",
			logging.F(logging.FieldInputFile, path),
			logging.F(logging.FieldCount, len(raws)))
		return raws, nil
	}
}

func snippet(body []byte) string {
	const limit = 80
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
