package ingest

import (
	"context"
	"errors"
	"time"

	"fjacquet/sms-ledger/internal/gateway"
	"fjacquet/sms-ledger/internal/logging"
	"fjacquet/sms-ledger/internal/models"
	"fjacquet/sms-ledger/internal/parsererror"
)

// Preview list sizes
const (
	PreviewMessages   = 50
	PreviewCandidates = 20
)

var errNoFetcher = errors.New("no gateway fetcher configured")

// Summary is a read-only view of the gateway inbox.
type Summary struct {
	TotalCount     int                      `json:"total_count" yaml:"total_count"`
	CandidateCount int                      `json:"mpesa_count" yaml:"mpesa_count"`
	Messages       []models.CanonicalRecord `json:"messages" yaml:"messages"`
	Candidates     []models.CanonicalRecord `json:"mpesa_messages" yaml:"mpesa_messages"`
}

// FetchCycle pulls the inbox once and ingests it. On an upstream failure no
// record is touched and the error is returned with an empty result. Cycles
// never overlap: a concurrent call gets ErrCycleInProgress.
func (s *Service) FetchCycle(ctx context.Context, opts gateway.FetchOptions) (BatchResult, error) {
	if s.fetcher == nil {
		return BatchResult{}, errNoFetcher
	}
	if !s.cycleMu.TryLock() {
		s.logger.Warn("Fetch cycle skipped, previous cycle still running")
		return BatchResult{}, ErrCycleInProgress
	}
	defer s.cycleMu.Unlock()

	start := time.Now()
	logger := s.logger.WithFields(
		logging.F(logging.FieldSource, "gateway"),
		logging.F("after", opts.AfterUnix))

	raws, err := s.fetcher.FetchInbox(ctx, opts)
	if err != nil {
		var upErr *parsererror.UpstreamError
		if !errors.As(err, &upErr) {
			err = &parsererror.UpstreamError{Op: "fetch inbox", Err: err}
		}
		logger.WithError(err).Error("Fetch cycle abandoned")
		return BatchResult{}, err
	}

	result := s.IngestBatch(ctx, s.normalizer.Normalize(raws))
	logger.Info("Fetch cycle completed",
		logging.F(logging.FieldCount, len(raws)),
		logging.F("stored", result.Stored),
		logging.F("failed", result.Failed),
		logging.F(logging.FieldDuration, time.Since(start).Milliseconds()))
	return result, nil
}

// AutoFetch runs a cycle restricted to messages newer than the latest stored
// one. An empty store fetches everything.
func (s *Service) AutoFetch(ctx context.Context, opts gateway.FetchOptions) (BatchResult, error) {
	latest, ok, err := s.store.LatestMessageTime(ctx)
	if err != nil {
		return BatchResult{}, &parsererror.StorageError{Op: "latest message time", Err: err}
	}
	opts.AfterUnix = 0
	if ok {
		opts.AfterUnix = latest.Unix()
	}
	return s.FetchCycle(ctx, opts)
}

// SyncRecent runs a cycle for the last hoursBack hours.
func (s *Service) SyncRecent(ctx context.Context, hoursBack int, opts gateway.FetchOptions) (BatchResult, error) {
	if hoursBack <= 0 {
		return BatchResult{}, &parsererror.ValidationError{Field: "hours_back", Reason: "must be positive"}
	}
	opts.AfterUnix = s.now().Add(-time.Duration(hoursBack) * time.Hour).Unix()
	return s.FetchCycle(ctx, opts)
}

// Preview fetches and normalizes the inbox without storing anything.
func (s *Service) Preview(ctx context.Context, opts gateway.FetchOptions) (Summary, error) {
	if s.fetcher == nil {
		return Summary{}, errNoFetcher
	}
	raws, err := s.fetcher.FetchInbox(ctx, opts)
	if err != nil {
		return Summary{}, err
	}

	recs := s.normalizer.Normalize(raws)
	summary := Summary{
		TotalCount: len(recs),
		Messages:   recs[:min(len(recs), PreviewMessages)],
		Candidates: []models.CanonicalRecord{},
	}
	for _, rec := range recs {
		if !s.extractor.IsCandidate(rec.Body, rec.Address) {
			continue
		}
		summary.CandidateCount++
		if len(summary.Candidates) < PreviewCandidates {
			summary.Candidates = append(summary.Candidates, rec)
		}
	}
	return summary, nil
}
