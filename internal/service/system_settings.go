package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/xampla/insider-bot/internal/models"
	"github.com/xampla/insider-bot/internal/repository"
)

const (
	FeatureFilingIngest    = "feature.filing_ingest"
	FeatureAnalysis        = "feature.analysis"
	FeatureTradeExecutor   = "feature.trade_executor"
	FeaturePositionManager = "feature.position_manager"
	FeatureEODSweep        = "feature.eod_sweep"
	FeatureFillStream      = "feature.fill_stream"
	FeatureStatusReport    = "feature.status_report"
	FeatureScaling         = "feature.performance_scaling"
	FeatureUniverse        = "feature.universe_refresh"

	SettingScalingFactor = "risk.scaling_factor"
)

func DefaultFeatureSwitches() map[string]bool {
	return map[string]bool{
		FeatureFilingIngest:    true,
		FeatureAnalysis:        true,
		FeatureTradeExecutor:   true,
		FeaturePositionManager: true,
		FeatureEODSweep:        true,
		FeatureFillStream:      true,
		FeatureStatusReport:    true,
		FeatureScaling:         true,
		FeatureUniverse:        true,
	}
}

type SystemSettingsService struct {
	Repo repository.SettingsRepository
}

// EnsureDefaultSwitches creates missing switches. Existing values are never changed.
func (s *SystemSettingsService) EnsureDefaultSwitches(ctx context.Context) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	now := time.Now().UTC()
	for key, enabled := range DefaultFeatureSwitches() {
		existing, err := s.Repo.GetSystemSettingByKey(ctx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		raw, _ := json.Marshal(enabled)
		item := &models.SystemSetting{
			Key:         key,
			Value:       datatypes.JSON(raw),
			Description: "feature switch",
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.Repo.UpsertSystemSetting(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (s *SystemSettingsService) IsEnabled(ctx context.Context, key string, fallback bool) bool {
	if s == nil || s.Repo == nil {
		return fallback
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fallback
	}
	item, err := s.Repo.GetSystemSettingByKey(ctx, key)
	if err != nil || item == nil || len(item.Value) == 0 {
		return fallback
	}
	var enabled bool
	if err := json.Unmarshal(item.Value, &enabled); err != nil {
		return fallback
	}
	return enabled
}

func (s *SystemSettingsService) SetEnabled(ctx context.Context, key string, enabled bool) error {
	return s.setJSON(ctx, key, enabled, "feature switch")
}

// Float reads a numeric setting; missing or malformed values yield fallback.
func (s *SystemSettingsService) Float(ctx context.Context, key string, fallback float64) (float64, error) {
	if s == nil || s.Repo == nil {
		return fallback, nil
	}
	item, err := s.Repo.GetSystemSettingByKey(ctx, strings.TrimSpace(key))
	if err != nil {
		return fallback, err
	}
	if item == nil || len(item.Value) == 0 {
		return fallback, nil
	}
	var v float64
	if err := json.Unmarshal(item.Value, &v); err != nil {
		return fallback, nil
	}
	return v, nil
}

func (s *SystemSettingsService) SetFloat(ctx context.Context, key string, v float64, description string) error {
	return s.setJSON(ctx, key, v, description)
}

func (s *SystemSettingsService) setJSON(ctx context.Context, key string, v any, description string) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("setting key required")
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	item := &models.SystemSetting{
		Key:         key,
		Value:       datatypes.JSON(raw),
		Description: description,
		UpdatedAt:   time.Now().UTC(),
	}
	return s.Repo.UpsertSystemSetting(ctx, item)
}
