package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xampla/insider-bot/internal/cache"
	"github.com/xampla/insider-bot/internal/models"
	"github.com/xampla/insider-bot/internal/repository"
)

type SnapshotSource interface {
	Snapshot(ctx context.Context, symbol string, asOf time.Time) (*models.MarketSnapshot, error)
}

// SnapshotService reads through cache, then the database, then the data vendor.
type SnapshotService struct {
	Repo   repository.MarketRepository
	Cache  cache.Store
	Source SnapshotSource
	TTL    time.Duration
	Logger *zap.Logger
}

func (s *SnapshotService) Snapshot(ctx context.Context, symbol string, asOf time.Time) (*models.MarketSnapshot, error) {
	if s == nil || s.Source == nil {
		return nil, fmt.Errorf("snapshot service not configured")
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	key := fmt.Sprintf("snapshot:%s:%s", symbol, asOf.Format("2006-01-02"))

	var cached models.MarketSnapshot
	if ok, err := cache.GetJSON(ctx, s.Cache, key, &cached); err == nil && ok {
		return &cached, nil
	}
	if s.Repo != nil {
		stored, err := s.Repo.GetMarketSnapshot(ctx, symbol, asOf)
		if err != nil {
			s.warn("service: snapshot lookup failed", symbol, err)
		} else if stored != nil {
			s.remember(ctx, key, stored)
			return stored, nil
		}
	}

	snap, err := s.Source.Snapshot(ctx, symbol, asOf)
	if err != nil {
		return nil, err
	}
	if s.Repo != nil {
		if err := s.Repo.UpsertMarketSnapshot(ctx, snap); err != nil {
			s.warn("service: snapshot store failed", symbol, err)
		}
	}
	s.remember(ctx, key, snap)
	return snap, nil
}

func (s *SnapshotService) remember(ctx context.Context, key string, snap *models.MarketSnapshot) {
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	if err := cache.SetJSON(ctx, s.Cache, key, snap, ttl); err != nil && s.Logger != nil {
		s.Logger.Debug("service: snapshot cache write failed", zap.Error(err))
	}
}

func (s *SnapshotService) warn(msg, symbol string, err error) {
	if s.Logger != nil {
		s.Logger.Warn(msg, zap.String("symbol", symbol), zap.Error(err))
	}
}
