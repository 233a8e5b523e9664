package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"protocol-backend/logging"
	"protocol-backend/models"
)

// ParticipantSyncWorker re-mirrors agent progress onto timeline rosters,
// repairing counters that drifted through writes outside the interaction
// engine.
type ParticipantSyncWorker struct {
	db       *gorm.DB
	interval time.Duration
	log      *zap.Logger
	now      func() time.Time
}

func NewParticipantSyncWorker(db *gorm.DB, interval time.Duration, log *zap.Logger) *ParticipantSyncWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	log = logging.OrNop(log)
	return &ParticipantSyncWorker{db: db, interval: interval, log: log, now: time.Now}
}

// Start runs SyncOnce on every tick until ctx is done.
func (w *ParticipantSyncWorker) Start(ctx context.Context) {
	w.log.Info("Starting participant sync worker", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Participant sync worker stopped.")
			return
		case <-ticker.C:
			repaired, err := w.SyncOnce(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					w.log.Error("❌ Participant sync failed", zap.Error(err))
				}
				continue
			}
			if repaired > 0 {
				w.log.Info("✅ Repaired participant records", zap.Int("count", repaired))
			}
		}
	}
}

// SyncOnce walks every OPEN or STABILIZED timeline and returns how many
// participant records it rewrote.
func (w *ParticipantSyncWorker) SyncOnce(ctx context.Context) (int, error) {
	var ids []string
	err := w.db.WithContext(ctx).Model(&models.Timeline{}).
		Where("status IN ?", []models.TimelineStatus{models.TimelineStatusOpen, models.TimelineStatusStabilized}).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return 0, fmt.Errorf("failed to list timelines: %w", err)
	}

	total := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := w.syncTimeline(ctx, id)
		if err != nil {
			return total, fmt.Errorf("timeline %s: %w", id, err)
		}
		total += n
	}
	return total, nil
}

// syncTimeline reads agents without locks first, so it never takes an agent
// lock while holding a timeline lock.
func (w *ParticipantSyncWorker) syncTimeline(ctx context.Context, id string) (int, error) {
	var roster models.Timeline
	if err := w.db.WithContext(ctx).Select("id", "timeline_id", "participants").First(&roster, "id = ?", id).Error; err != nil {
		return 0, err
	}
	if len(roster.Participants) == 0 {
		return 0, nil
	}
	agentIDs := make([]string, 0, len(roster.Participants))
	for _, p := range roster.Participants {
		agentIDs = append(agentIDs, p.AgentID)
	}
	var agents []models.Agent
	if err := w.db.WithContext(ctx).Where("id IN ?", agentIDs).Find(&agents).Error; err != nil {
		return 0, err
	}
	byID := make(map[string]*models.Agent, len(agents))
	for i := range agents {
		byID[agents[i].ID] = &agents[i]
	}

	repaired := 0
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tl models.Timeline
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&tl, "id = ?", id).Error; err != nil {
			return err
		}
		now := w.now()
		for _, part := range tl.Participants {
			agent := byID[part.AgentID]
			if agent == nil {
				continue
			}
			progress := agent.TimelineProgress(tl.TimelineID)
			if progress == nil || !drifted(part, progress) {
				continue
			}
			tl.MirrorProgress(agent.ID, progress, now)
			repaired++
		}
		if repaired == 0 {
			return nil
		}
		return tx.Model(&tl).Select("participants", "updated_at").Updates(&tl).Error
	})
	return repaired, err
}

func drifted(part models.Participant, p *models.AgentTimelineProgress) bool {
	return part.FragmentsCollected != p.FragmentsCollected ||
		part.KeysCollected != len(p.KeysFound) ||
		part.EntriesResolved != len(p.EntriesResolved) ||
		part.Completed != p.Completed
}
