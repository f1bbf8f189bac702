package serve_test

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"fjacquet/sms-ledger/cmd/serve"
	"fjacquet/sms-ledger/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestServeCommand_Metadata(t *testing.T) {
	assert.Equal(t, "serve", serve.Cmd.Use)
	assert.Contains(t, serve.Cmd.Short, "webhook server")
	assert.NotNil(t, serve.Cmd.RunE)
}

func TestServeCommand_Flags(t *testing.T) {
	portFlag := serve.Cmd.Flags().Lookup("port")
	assert.NotNil(t, portFlag)
	assert.Equal(t, "p", portFlag.Shorthand)
	assert.Equal(t, "0", portFlag.DefValue)
}

func TestErrorLog_WritesThroughLogrus(t *testing.T) {
	out := &syncBuffer{}
	logger := logging.NewLogrusAdapterWithOutput("info", "text", out)

	errorLog := serve.ErrorLog(logger)
	require.NotNil(t, errorLog)
	errorLog.Print("http: TLS handshake error from 10.0.0.1")

	assert.Eventually(t, func() bool {
		s := out.String()
		return strings.Contains(s, "TLS handshake error") && strings.Contains(s, "level=warning")
	}, time.Second, 10*time.Millisecond)
}

func TestErrorLog_OtherLoggersKeepDefault(t *testing.T) {
	assert.Nil(t, serve.ErrorLog(logging.NewMockLogger()))
}
