package importer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fjacquet/sms-ledger/internal/dateutils"
	"fjacquet/sms-ledger/internal/ingest"
	"fjacquet/sms-ledger/internal/logging"
	"fjacquet/sms-ledger/internal/models"
	"fjacquet/sms-ledger/internal/mpesaparser"
	"fjacquet/sms-ledger/internal/normalizer"
	"fjacquet/sms-ledger/internal/parsererror"
	"fjacquet/sms-ledger/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mpesaBody = "ABC12345 Confirmed. You have received Ksh 5,000.00 from John Doe +254712345678 on 20/01/25 at 10:15 AM"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{path: "export.json", want: FormatJSON},
		{path: "EXPORT.CSV", want: FormatCSV},
		{path: "export.xml", wantErr: true},
		{path: "export", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := DetectFormat(tt.path)
			if tt.wantErr {
				var formatErr *parsererror.InvalidFormatError
				assert.ErrorAs(t, err, &formatErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoad_CSV(t *testing.T) {
	path := writeFile(t, "export.csv",
		"guid,number,message,date,hour,time_received\n"+
			"csv-0001,MPESA,\""+mpesaBody+"\",2025-01-20,10:15:00,2025-01-20 10:15:03\n"+
			"csv-0002,+254700000000,lunch?,,,1705312245\n")

	raws, err := Load(path, logging.NewMockLogger())

	require.NoError(t, err)
	require.Len(t, raws, 2)
	assert.Equal(t, "csv-0001", raws[0]["guid"])
	assert.Equal(t, mpesaBody, raws[0]["message"])
	assert.Equal(t, "2025-01-20", raws[0]["date"])
	assert.NotContains(t, raws[1], "date", "empty cells are dropped")
	assert.NotContains(t, raws[1], "device_id", "absent columns are dropped")
	assert.Equal(t, "1705312245", raws[1]["time_received"])
}

func TestLoad_JSONShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"bare list", `[{"guid":"a"},{"guid":"b"}]`, 2},
		{"result wrapper", `{"result":{"sms":[{"guid":"a"}]}}`, 1},
		{"sms wrapper", `{"sms":[{"guid":"a"},"junk"]}`, 1},
		{"unknown object", `{"status":"ok"}`, 0},
		{"empty file", ``, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raws, err := Load(writeFile(t, "export.json", tt.body), logging.NewMockLogger())
			require.NoError(t, err)
			assert.Len(t, raws, tt.want)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Run("malformed json", func(t *testing.T) {
		_, err := Load(writeFile(t, "export.json", `[{"guid":`), logging.NewMockLogger())
		var formatErr *parsererror.InvalidFormatError
		require.ErrorAs(t, err, &formatErr)
		assert.Contains(t, formatErr.ActualContentSnippet, `[{"guid":`)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.csv"), logging.NewMockLogger())
		assert.Error(t, err)
	})
}

func TestLoad_JSONKeepsLongEpochs(t *testing.T) {
	raws, err := Load(writeFile(t, "export.json", `[{"guid":"a","timestamp_unix":1705312245123}]`), logging.NewMockLogger())
	require.NoError(t, err)
	assert.Equal(t, json.Number("1705312245123"), raws[0]["timestamp_unix"])
}

func TestImporter_Import(t *testing.T) {
	logger := logging.NewMockLogger()
	loc := dateutils.FixedOffset(3)
	st := store.NewMemoryStore()
	norm := normalizer.NewNormalizer(logger, loc)
	svc := ingest.NewService(st, mpesaparser.NewParser(logger), nil, norm, logger, ingest.WithLocation(loc))
	imp := NewImporter(svc, norm, logger)

	path := writeFile(t, "export.csv",
		"guid,number,message,date,hour\n"+
			"imp-0001,MPESA,\""+mpesaBody+"\",2025-01-20,10:15:00\n"+
			"imp-0002,+254700000000,see you,2025-01-20,09:00:00\n")

	result, err := imp.Import(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Stored)

	msg, err := st.FindMessage(context.Background(), "imp-0001")
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessed, msg.Status)
	assert.Equal(t, time.Date(2025, 1, 20, 7, 15, 0, 0, time.UTC), msg.OccurredAt)

	again, err := imp.Import(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, again.Skipped, "re-importing the same file is a no-op")
	assert.True(t, logger.HasEntry("INFO", "Import completed"))
}

func TestImporter_ImportMissingPath(t *testing.T) {
	logger := logging.NewMockLogger()
	loc := dateutils.FixedOffset(3)
	norm := normalizer.NewNormalizer(logger, loc)
	svc := ingest.NewService(store.NewMemoryStore(), mpesaparser.NewParser(logger), nil, norm, logger, ingest.WithLocation(loc))

	_, err := NewImporter(svc, norm, logger).Import(context.Background(), filepath.Join(t.TempDir(), "missing.json"))

	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "missing.json")
}

func TestImporter_ImportDir(t *testing.T) {
	logger := logging.NewMockLogger()
	loc := dateutils.FixedOffset(3)
	st := store.NewMemoryStore()
	norm := normalizer.NewNormalizer(logger, loc)
	svc := ingest.NewService(st, mpesaparser.NewParser(logger), nil, norm, logger, ingest.WithLocation(loc))
	imp := NewImporter(svc, norm, logger)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"),
		[]byte(`[{"guid":"dir-0001","number":"MPESA","message":"`+mpesaBody+`","timestamp_unix":1705734900}]`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"),
		[]byte("guid,number,message,timestamp_unix\ndir-0002,+254700000000,hello,1705734960\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.json"), []byte(`[{"guid":`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("ignored"), 0o600))

	result, err := imp.Import(context.Background(), dir)

	require.Error(t, err, "the broken file is reported")
	assert.Contains(t, err.Error(), "c.json")
	assert.Equal(t, 2, result.Stored, "the readable files are still imported")
	assert.True(t, logger.HasEntry("WARN", "Skipping export file"))
}
