package service

import (
	"context"

	"go.uber.org/zap"
)

type PipelineResult struct {
	Ingest IngestResult `json:"ingest"`
	Scored int          `json:"scored"`
	Cycle  CycleResult  `json:"cycle"`
	Exits  CloseResult  `json:"exits"`
}

// Pipeline is one full pass: ingest, score, trade, manage exits.
type Pipeline struct {
	Ingest    *FilingIngestService
	Analysis  *AnalysisService
	Lifecycle *TradeLifecycleManager
	Positions *PositionManager
	Logger    *zap.Logger
}

// RunOnce keeps going past an ingest failure since already stored filings can
// still be scored; any later failure stops the pass.
func (p *Pipeline) RunOnce(ctx context.Context) (PipelineResult, error) {
	var out PipelineResult
	ing, err := p.Ingest.RunOnce(ctx)
	out.Ingest = ing
	if err != nil {
		if ctx.Err() != nil {
			return out, err
		}
		if p.Logger != nil {
			p.Logger.Warn("pipeline: ingest failed", zap.Error(err))
		}
	}
	scored, err := p.Analysis.RunOnce(ctx)
	out.Scored = len(scored)
	if err != nil {
		return out, err
	}
	if out.Cycle, err = p.Lifecycle.RunCycle(ctx); err != nil {
		return out, err
	}
	if out.Exits, err = p.Positions.RunOnce(ctx); err != nil {
		return out, err
	}
	return out, nil
}
