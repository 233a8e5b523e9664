package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"protocol-backend/logging"
	"protocol-backend/models"
)

// SeedFile is the document accepted by the import command.
type SeedFile struct {
	Emblems   []models.Emblem       `yaml:"emblems"`
	Badges    []models.Badge        `yaml:"badges"`
	Lore      []models.Lore         `yaml:"lore"`
	Timelines []CreateTimelineInput `yaml:"timelines"`
}

type ImportReport struct {
	Emblems          int `json:"emblems"`
	Badges           int `json:"badges"`
	Lore             int `json:"lore"`
	TimelinesCreated int `json:"timelinesCreated"`
	TimelinesSkipped int `json:"timelinesSkipped"`
}

// SeedService loads collaborator documents and timelines in one pass.
type SeedService struct {
	Emblems   *EmblemService
	Badges    *BadgeService
	Lore      *LoreService
	Timelines *TimelineService
	Log       *zap.Logger
}

func NewSeedService(emblems *EmblemService, badges *BadgeService, lore *LoreService, timelines *TimelineService, log *zap.Logger) *SeedService {
	log = logging.OrNop(log)
	return &SeedService{Emblems: emblems, Badges: badges, Lore: lore, Timelines: timelines, Log: log}
}

// Import upserts emblems, badges and lore, then creates timelines. A
// timeline whose id already exists is skipped, so re-running a file is safe.
func (s *SeedService) Import(ctx context.Context, seed SeedFile) (*ImportReport, error) {
	report := &ImportReport{}

	if err := s.Emblems.UpsertEmblems(ctx, seed.Emblems); err != nil {
		return report, fmt.Errorf("failed to import emblems: %w", err)
	}
	report.Emblems = len(seed.Emblems)

	if err := s.Badges.UpsertBadges(ctx, seed.Badges); err != nil {
		return report, fmt.Errorf("failed to import badges: %w", err)
	}
	report.Badges = len(seed.Badges)

	if err := s.Lore.UpsertLore(ctx, seed.Lore); err != nil {
		return report, fmt.Errorf("failed to import lore: %w", err)
	}
	report.Lore = len(seed.Lore)

	for _, in := range seed.Timelines {
		tl, err := s.Timelines.Create(ctx, in)
		var f *Failure
		if errors.As(err, &f) && f.Kind == FailureConflict {
			s.Log.Info("⏭️ Timeline already imported", zap.String("timeline_id", in.TimelineID))
			report.TimelinesSkipped++
			continue
		}
		if err != nil {
			return report, fmt.Errorf("failed to import timeline %q: %w", in.Name, err)
		}
		report.TimelinesCreated++
		s.Log.Info("📥 Timeline imported", zap.String("timeline_id", tl.TimelineID))
	}
	return report, nil
}
