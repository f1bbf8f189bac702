package parse_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"fjacquet/sms-ledger/cmd/parse"
	"fjacquet/sms-ledger/cmd/root"
	"fjacquet/sms-ledger/internal/config"
	"fjacquet/sms-ledger/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const body = "ABC12345 Confirmed. You have received Ksh 5,000.00 from John Doe +254712345678 on 20/01/25 at 10:15 AM"

func setup(t *testing.T, format string) *bytes.Buffer {
	t.Helper()
	root.AppConfig = &config.Config{
		Provider: config.ProviderConfig{Name: "MPESA", BrandTokens: []string{"mpesa", "m-pesa"}, CountryCode: "254", MobilePrefix: "7", UTCOffsetHours: 3},
	}
	root.Log = logging.NewMockLogger()
	parse.Message, parse.Sender, parse.Format = body, "MPESA", format
	t.Cleanup(func() {
		root.AppConfig = nil
		parse.Message, parse.Sender, parse.Format = "", "", root.FormatYAML
	})

	var out bytes.Buffer
	parse.Cmd.SetOut(&out)
	return &out
}

func TestParseCommand_Metadata(t *testing.T) {
	assert.Equal(t, "parse", parse.Cmd.Use)
	for _, name := range []string{"message", "sender", "format"} {
		assert.NotNil(t, parse.Cmd.Flags().Lookup(name), name)
	}
}

func TestParseCommand_JSON(t *testing.T) {
	out := setup(t, root.FormatJSON)

	require.NoError(t, parse.Cmd.RunE(parse.Cmd, nil))

	var draft map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &draft))
	assert.Equal(t, "received", draft["direction"])
	assert.Equal(t, "ABC12345", draft["transaction_code"])
	assert.Equal(t, "+254712345678", draft["counterparty_phone"])
	assert.GreaterOrEqual(t, draft["confidence"], 0.9)
	assert.Equal(t, "Ksh 5,000.00", draft["formatted_amount"])
	assert.Equal(t, "2025-01-20", draft["tx_date"])
	assert.Equal(t, "10:15:00", draft["tx_time"])
}

func TestParseCommand_YAML(t *testing.T) {
	out := setup(t, root.FormatYAML)

	require.NoError(t, parse.Cmd.RunE(parse.Cmd, nil))

	var draft map[string]any
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &draft))
	assert.Equal(t, "MPESA", draft["provider"])
	assert.Equal(t, "John Doe", draft["counterparty_name"])
	assert.Equal(t, "2025-01-20", draft["tx_date"])
}

func TestParseCommand_UnmatchedHasNoPreview(t *testing.T) {
	out := setup(t, root.FormatJSON)
	parse.Message = "Your M-PESA balance is Ksh 1,000.00"

	require.NoError(t, parse.Cmd.RunE(parse.Cmd, nil))

	var draft map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &draft))
	assert.Nil(t, draft["direction"])
	assert.NotContains(t, draft, "formatted_amount")
	assert.NotContains(t, draft, "tx_date")
	assert.NotContains(t, draft, "tx_time")
}

func TestParseCommand_UnknownFormat(t *testing.T) {
	setup(t, "xml")
	assert.Error(t, parse.Cmd.RunE(parse.Cmd, nil))
}
