// Package scheduler runs the gateway fetch cycle on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fjacquet/sms-ledger/internal/config"
	"fjacquet/sms-ledger/internal/gateway"
	"fjacquet/sms-ledger/internal/ingest"
	"fjacquet/sms-ledger/internal/logging"

	"github.com/robfig/cron/v3"
)

// Runner is the part of the ingestion service the scheduler drives.
type Runner interface {
	FetchCycle(ctx context.Context, opts gateway.FetchOptions) (ingest.BatchResult, error)
	AutoFetch(ctx context.Context, opts gateway.FetchOptions) (ingest.BatchResult, error)
}

type printfer interface {
	Printf(format string, args ...interface{})
}

// Scheduler manages the poll job.
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	logger  logging.Logger
	config  config.PollerConfig
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler for cfg. timeout bounds a single run;
// zero leaves runs unbounded.
func NewScheduler(runner Runner, logger logging.Logger, cfg config.PollerConfig, timeout time.Duration) *Scheduler {
	var cronLogger cron.Logger = cron.DiscardLogger
	if p, ok := logger.(printfer); ok {
		cronLogger = cron.PrintfLogger(p)
	}
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    c,
		runner:  runner,
		logger:  logger,
		config:  cfg,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start registers the poll job and starts the cron scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.config.Schedule, s.runJob); err != nil {
		s.logger.WithError(err).Error("Failed to schedule fetch job")
		return fmt.Errorf("invalid poller schedule %q: %w", s.config.Schedule, err)
	}
	s.logger.Info("Scheduled fetch job",
		logging.F("schedule", s.config.Schedule),
		logging.F("auto_cutoff", s.config.AutoCutoff))
	s.cron.Start()
	return nil
}

// Stop halts the schedule and cancels a running cycle. The returned context
// is done once the running job has returned.
func (s *Scheduler) Stop() context.Context {
	s.cancel()
	return s.cron.Stop()
}

func (s *Scheduler) runJob() {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	_, _ = s.RunOnce(ctx)
}

// RunOnce performs one scheduled cycle. An overlapping cycle is logged and
// reported without error.
func (s *Scheduler) RunOnce(ctx context.Context) (ingest.BatchResult, error) {
	opts := gateway.FetchOptions{UnreadOnly: s.config.UnreadOnly, DeviceID: s.config.DeviceID}

	var (
		result ingest.BatchResult
		err    error
	)
	if s.config.AutoCutoff {
		result, err = s.runner.AutoFetch(ctx, opts)
	} else {
		result, err = s.runner.FetchCycle(ctx, opts)
	}

	switch {
	case errors.Is(err, ingest.ErrCycleInProgress):
		s.logger.Info("Scheduled fetch skipped, cycle already running")
		return result, nil
	case err != nil:
		s.logger.WithError(err).Error("Scheduled fetch failed")
		return result, err
	}
	s.logger.Info("Scheduled fetch completed",
		logging.F("stored", result.Stored),
		logging.F("skipped", result.Skipped),
		logging.F("failed", result.Failed))
	return result, nil
}
