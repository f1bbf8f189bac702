package ingest

import (
	"sync"

	"fjacquet/sms-ledger/internal/logging"
	"fjacquet/sms-ledger/internal/models"
)

// sequentialThreshold is the batch size below which workers cost more than
// they save.
const sequentialThreshold = 16

type extractJob struct {
	index int
	rec   *models.CanonicalRecord
}

// preExtract runs the extractor over every candidate record of a batch. The
// result is index-aligned with recs; non-candidates get a nil draft.
func (s *Service) preExtract(recs []models.CanonicalRecord) []*models.Draft {
	drafts := make([]*models.Draft, len(recs))
	if len(recs) < sequentialThreshold || s.workers <= 1 {
		for i := range recs {
			drafts[i] = s.extractOne(&recs[i])
		}
		return drafts
	}

	jobs := make(chan extractJob, s.workers)
	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				// each index is written by exactly one worker
				drafts[job.index] = s.extractOne(job.rec)
			}
		}()
	}
	for i := range recs {
		jobs <- extractJob{index: i, rec: &recs[i]}
	}
	close(jobs)
	wg.Wait()

	s.logger.Debug("Concurrent extraction completed",
		logging.F(logging.FieldCount, len(recs)),
		logging.F("workers", s.workers))
	return drafts
}

func (s *Service) extractOne(rec *models.CanonicalRecord) *models.Draft {
	if !s.extractor.IsCandidate(rec.Body, rec.Address) {
		return nil
	}
	d := s.extractor.Parse(rec.Body, rec.Address)
	return &d
}
