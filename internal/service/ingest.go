package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xampla/insider-bot/internal/client/sec"
	"github.com/xampla/insider-bot/internal/metrics"
	"github.com/xampla/insider-bot/internal/repository"
)

type DocumentSource interface {
	Documents(ctx context.Context, symbols []string, from, to time.Time) ([]sec.Document, error)
}

type SymbolSource interface {
	Symbols(ctx context.Context) []string
}

type IngestResult struct {
	Documents int   `json:"documents"`
	Filings   int   `json:"filings"`
	Inserted  int64 `json:"inserted"`
}

// FilingIngestService pulls new Form 4 documents for the tracked universe.
// A document is marked processed only after its filings are stored.
type FilingIngestService struct {
	Source       DocumentSource
	Repo         repository.FilingRepository
	Universe     SymbolSource
	LookbackDays int
	Flags        *SystemSettingsService
	Metrics      *metrics.Recorder
	Logger       *zap.Logger
	Now          func() time.Time
}

func (s *FilingIngestService) RunOnce(ctx context.Context) (IngestResult, error) {
	var out IngestResult
	if s == nil || s.Source == nil || s.Repo == nil || s.Universe == nil {
		return out, nil
	}
	if s.Flags != nil && !s.Flags.IsEnabled(ctx, FeatureFilingIngest, true) {
		return out, nil
	}
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now()
	}
	lookback := s.LookbackDays
	if lookback <= 0 {
		lookback = 3
	}
	symbols := s.Universe.Symbols(ctx)
	if len(symbols) == 0 {
		return out, nil
	}

	docs, err := s.Source.Documents(ctx, symbols, now.AddDate(0, 0, -lookback), now)
	for _, d := range docs {
		out.Documents++
		out.Filings += len(d.Filings)
		if len(d.Filings) > 0 {
			n, ierr := s.Repo.InsertFilings(ctx, d.Filings)
			if ierr != nil {
				if s.Logger != nil {
					s.Logger.Warn("service: insert filings failed", zap.String("accession", d.Filing.AccessionNumber), zap.Error(ierr))
				}
				continue
			}
			out.Inserted += n
		}
		rec := d.Record()
		if merr := s.Repo.MarkDocumentProcessed(ctx, &rec); merr != nil && s.Logger != nil {
			s.Logger.Warn("service: mark document processed failed", zap.String("accession", rec.AccessionNumber), zap.Error(merr))
		}
	}
	s.Metrics.FilingsIngested(int(out.Inserted))
	if s.Logger != nil {
		s.Logger.Info("service: filing ingest finished",
			zap.Int("symbols", len(symbols)),
			zap.Int("documents", out.Documents),
			zap.Int("filings", out.Filings),
			zap.Int64("inserted", out.Inserted),
		)
	}
	return out, err
}
