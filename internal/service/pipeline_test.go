package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xampla/insider-bot/internal/client/sec"
	"github.com/xampla/insider-bot/internal/config"
	"github.com/xampla/insider-bot/internal/models"
)

type failingDocuments struct{}

func (failingDocuments) Documents(context.Context, []string, time.Time, time.Time) ([]sec.Document, error) {
	return nil, errors.New("edgar unavailable")
}

// persistingAnalyzer stores a BUY for every pending filing.
type persistingAnalyzer struct {
	repo *memRepo
}

func (a persistingAnalyzer) Analyze(ctx context.Context, f models.InsiderFiling) (models.StrategyScore, bool, error) {
	s := buyScore(f.FilingID, f.Symbol, 6)
	ok, err := a.repo.InsertStrategyScore(ctx, &s)
	return s, ok, err
}

func TestPipelineRunOnceContinuesPastIngestFailure(t *testing.T) {
	f := newLifecycleFixture(t, config.RiskConfig{})
	if _, err := f.repo.InsertFilings(context.Background(), []models.InsiderFiling{purchase("p1", "DDOG", "Jane Roe")}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	p := &Pipeline{
		Ingest: &FilingIngestService{
			Source:   failingDocuments{},
			Repo:     f.repo,
			Universe: staticSymbols{"DDOG"},
			Now:      func() time.Time { return f.now },
		},
		Analysis:  &AnalysisService{Engine: persistingAnalyzer{repo: f.repo}, Repo: f.repo, BatchSize: 10},
		Lifecycle: f.mgr,
		Positions: &PositionManager{Repo: f.repo, Broker: f.broker, Risk: f.mgr.Risk},
	}

	res, err := p.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if res.Scored != 1 || res.Cycle.Opened != 1 {
		t.Fatalf("res=%+v", res)
	}
	if res.Exits.Checked != 1 || res.Exits.Closed != 0 {
		t.Fatalf("exits=%+v", res.Exits)
	}
}

func TestPipelineRunOnceStopsOnCancelledIngest(t *testing.T) {
	f := newLifecycleFixture(t, config.RiskConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &Pipeline{
		Ingest: &FilingIngestService{
			Source:   failingDocuments{},
			Repo:     f.repo,
			Universe: staticSymbols{"DDOG"},
		},
		Analysis:  &AnalysisService{Engine: persistingAnalyzer{repo: f.repo}, Repo: f.repo},
		Lifecycle: f.mgr,
		Positions: &PositionManager{Repo: f.repo, Broker: f.broker},
	}
	if _, err := p.RunOnce(ctx); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
	if len(f.broker.orders) != 0 {
		t.Fatalf("orders=%d want 0", len(f.broker.orders))
	}
}
