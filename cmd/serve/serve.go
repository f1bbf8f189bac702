// Package serve runs the HTTP ingress and the scheduled poller
package serve

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fjacquet/sms-ledger/cmd/root"
	"fjacquet/sms-ledger/internal/logging"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Port overrides the configured listen port when non-zero
var Port int

// Cmd represents the serve command
var Cmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server",
	Long: `Run the HTTP server that accepts gateway webhooks and exposes the fetch
triggers. When the poller is enabled the gateway inbox is also polled on schedule.`,
	RunE: serveFunc,
}

func init() {
	Cmd.Flags().IntVarP(&Port, "port", "p", 0, "Listen port (overrides server.port)")
}

func serveFunc(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := root.NewContainer(ctx)
	if err != nil {
		return err
	}
	defer root.Close(c)

	cfg := c.GetConfig()
	port := cfg.Server.Port
	if Port != 0 {
		port = Port
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           c.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          ErrorLog(root.Log),
	}

	if sched := c.GetScheduler(); sched != nil {
		if err := sched.Start(); err != nil {
			return err
		}
		defer func() {
			<-sched.Stop().Done()
			root.Log.Info("Scheduler stopped")
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		root.Log.Info("Server listening",
			logging.F("port", port),
			logging.F(logging.FieldEndpoint, cfg.Server.WebhookPath))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	root.Log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	root.Log.Info("Server exited")
	return nil
}

// ErrorLog sends net/http's own error output through logrus at warn level.
// Loggers not backed by logrus get nil, which keeps the standard logger.
func ErrorLog(logger logging.Logger) *log.Logger {
	adapter, ok := logger.(*logging.LogrusAdapter)
	if !ok {
		return nil
	}
	return log.New(adapter.Logrus().WriterLevel(logrus.WarnLevel), "", 0)
}
