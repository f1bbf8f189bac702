package importcmd_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"fjacquet/sms-ledger/cmd/importcmd"
	"fjacquet/sms-ledger/cmd/root"
	"fjacquet/sms-ledger/internal/config"
	"fjacquet/sms-ledger/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportCommand_Metadata(t *testing.T) {
	assert.Equal(t, "import", importcmd.Cmd.Use)
	assert.Contains(t, importcmd.Cmd.Short, "Import SMS messages")

	inputFlag := importcmd.Cmd.Flags().Lookup("input")
	require.NotNil(t, inputFlag)
	assert.Equal(t, "i", inputFlag.Shorthand)
}

func TestImportCommand_Run(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "export.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"guid":"exp-0001","number":"MPESA","message":"ABC12345 Confirmed. You have received Ksh 5,000.00 from John Doe +254712345678 on 20/01/25 at 10:15 AM","timestamp_unix":1705734900},
		{"guid":"exp-0002","number":"+254700000000","message":"see you","timestamp_unix":1705734960}
	]`), 0o600))

	root.AppConfig = &config.Config{
		Database: config.DatabaseConfig{Driver: config.DriverSQLite, SQLitePath: filepath.Join(dir, "ledger.db")},
		Gateway:  config.GatewayConfig{TimeoutSeconds: 5},
		Provider: config.ProviderConfig{Name: "MPESA", BrandTokens: []string{"mpesa"}, CountryCode: "254", MobilePrefix: "7", UTCOffsetHours: 3},
		Ingest:   config.IngestConfig{EmptyIDPolicy: config.EmptyIDReject, ExtractWorkers: 1},
	}
	root.Log = logging.NewMockLogger()
	importcmd.Input = path
	importcmd.Format = root.FormatJSON
	t.Cleanup(func() {
		root.AppConfig = nil
		importcmd.Input = ""
		importcmd.Format = root.FormatYAML
	})

	var out bytes.Buffer
	importcmd.Cmd.SetOut(&out)
	importcmd.Cmd.SetContext(context.Background())

	require.NoError(t, importcmd.Cmd.RunE(importcmd.Cmd, nil))
	assert.JSONEq(t, `{"stored":2,"skipped":0,"failed":0}`, out.String())

	out.Reset()
	require.NoError(t, importcmd.Cmd.RunE(importcmd.Cmd, nil))
	assert.JSONEq(t, `{"stored":0,"skipped":2,"failed":0}`, out.String(), "second import skips stored messages")
}
