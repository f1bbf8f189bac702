package fetch_test

import (
	"errors"
	"testing"

	"fjacquet/sms-ledger/cmd/fetch"
	"fjacquet/sms-ledger/internal/ingest"

	"github.com/stretchr/testify/assert"
)

func TestFetchCommand_Metadata(t *testing.T) {
	assert.Equal(t, "fetch", fetch.Cmd.Use)
	assert.Contains(t, fetch.Cmd.Short, "Fetch SMS messages")
	assert.NotNil(t, fetch.Cmd.RunE)
}

func TestFetchCommand_Flags(t *testing.T) {
	tests := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{"unread-only", "u", "false"},
		{"device-id", "d", ""},
		{"sync-recent", "", "false"},
		{"hours-back", "", "24"},
		{"auto", "a", "false"},
		{"preview", "", "false"},
		{"format", "f", "yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := fetch.Cmd.Flags().Lookup(tt.name)
			if assert.NotNil(t, flag) {
				assert.Equal(t, tt.shorthand, flag.Shorthand)
				assert.Equal(t, tt.defValue, flag.DefValue)
				assert.NotEmpty(t, flag.Usage)
			}
		})
	}
}

func TestNewReport(t *testing.T) {
	result := ingest.BatchResult{Stored: 3, Skipped: 1, Failed: 1}
	result.Outcomes = []ingest.Outcome{
		{MessageID: "a", State: ingest.StateStored},
		{MessageID: "b", State: ingest.StateError, Err: errors.New("disk full")},
	}

	report := fetch.NewReport(result)

	assert.Equal(t, 3, report.Stored)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, []string{"b: disk full"}, report.Errors)
}
