package importer

import (
	"fmt"
	"os"

	"fjacquet/sms-ledger/internal/logging"

	"github.com/gocarina/gocsv"
)

// Row is one line of a CSV export. Only the columns present in the header
// are filled; empty cells are left out of the raw record.
type Row struct {
	GUID          string `csv:"guid"`
	Number        string `csv:"number"`
	Message       string `csv:"message"`
	Date          string `csv:"date"`
	Hour          string `csv:"hour"`
	TimeReceived  string `csv:"time_received"`
	TimestampUnix string `csv:"timestamp_unix"`
	DeviceID      string `csv:"device_id"`
}

// Raw converts the row into the map shape the gateway returns.
func (r Row) Raw() map[string]any {
	raw := make(map[string]any, 8)
	for key, value := range map[string]string{
		"guid":           r.GUID,
		"number":         r.Number,
		"message":        r.Message,
		"date":           r.Date,
		"hour":           r.Hour,
		"time_received":  r.TimeReceived,
		"timestamp_unix": r.TimestampUnix,
		"device_id":      r.DeviceID,
	} {
		if value != "" {
			raw[key] = value
		}
	}
	return raw
}

// ReadCSVFile reads CSV data into a slice of structs using gocsv.
// TCSVRow is the struct type that maps to the CSV columns.
func ReadCSVFile[TCSVRow any](filePath string, logger logging.Logger) ([]TCSVRow, error) {
	logger.Info("Reading CSV file", logging.F(logging.FieldInputFile, filePath))

	file, err := os.Open(filePath)
	if err != nil {
		logger.WithError(err).Error("Failed to open CSV file")
		return nil, fmt.Errorf("error opening CSV file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close file")
		}
	}()

	var rows []TCSVRow
	if err := gocsv.UnmarshalFile(file, &rows); err != nil {
		logger.WithError(err).Error("Failed to parse CSV file")
		return nil, fmt.Errorf("error parsing CSV file: %w", err)
	}

	logger.Info("Successfully read CSV data", logging.F(logging.FieldCount, len(rows)))
	return rows, nil
}
