package services

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"protocol-backend/fragments"
	"protocol-backend/logging"
	"protocol-backend/models"
)

// RewardsGiven lists what a completing agent received.
type RewardsGiven struct {
	Role    string   `json:"role,omitempty"`
	Badge   string   `json:"badge,omitempty"`
	Emblems []string `json:"emblems,omitempty"`
}

type CompletionResult struct {
	Completed     bool          `json:"completed"`
	JustCompleted bool          `json:"justCompleted"`
	Progress      int           `json:"progress"`
	RewardsGiven  *RewardsGiven `json:"rewardsGiven,omitempty"`
}

// CompletionEngine detects the first full collection of a timeline's code
// and applies its rewards.
type CompletionEngine struct {
	Badges BadgeFinder
	Log    *zap.Logger

	now func() time.Time
}

func NewCompletionEngine(badges BadgeFinder, log *zap.Logger) *CompletionEngine {
	log = logging.OrNop(log)
	return &CompletionEngine{Badges: badges, Log: log, now: time.Now}
}

// CheckAndApply mutates agent, timeline and progress in memory and persists
// the timeline through tx when it stabilizes. The caller saves the agent in
// the same transaction, so the completed flag and the grants commit together.
func (e *CompletionEngine) CheckAndApply(tx *gorm.DB, agent *models.Agent, timeline *models.Timeline, progress *models.AgentTimelineProgress) (*CompletionResult, error) {
	if progress.Completed {
		return &CompletionResult{Completed: true, JustCompleted: false, Progress: 100}, nil
	}

	reveal := fragments.Reveal(timeline.Code.Format, timeline.Code.Pattern, progress.FragmentsFound)
	if reveal.Total == 0 || reveal.Collected < reveal.Total {
		return &CompletionResult{Progress: reveal.Progress}, nil
	}

	now := e.now()
	progress.Completed = true
	progress.CompletedAt = &now

	rewards := &RewardsGiven{}
	if role := timeline.Rewards.DiscordRoleID; role != "" {
		agent.GrantRole(role)
		rewards.Role = role
	}
	if badgeID := timeline.Rewards.Badge; badgeID != "" {
		badge, err := e.Badges.FindBadgeByBusinessID(tx, badgeID)
		if err != nil {
			return nil, err
		}
		if badge == nil {
			e.Log.Warn("⚠️ Reward badge not found, skipping", zap.String("badge_id", badgeID), zap.String("timeline_id", timeline.TimelineID))
		} else {
			agent.GrantBadge(badge.BadgeID, now)
			rewards.Badge = badge.BadgeID
		}
	}
	if len(timeline.Rewards.Emblem) > 0 {
		rewards.Emblems = append([]string(nil), timeline.Rewards.Emblem...)
	}

	timeline.Status = models.TimelineStatusStabilized
	timeline.StabilizedAt = &models.StabilizedAt{
		WinnerType:    models.WinnerTypeAgent,
		WinnerAgentID: agent.ID,
		CompletedAt:   now,
	}
	if err := tx.Model(timeline).Select("status", "stabilized_at", "updated_at").Updates(timeline).Error; err != nil {
		return nil, err
	}

	completionsTotal.Inc()
	e.Log.Info("🏆 Timeline stabilized",
		zap.String("timeline_id", timeline.TimelineID),
		zap.String("agent_id", agent.ID))

	return &CompletionResult{Completed: true, JustCompleted: true, Progress: 100, RewardsGiven: rewards}, nil
}
