package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"protocol-backend/models"
)

type NavigationAction string

const (
	ActionHome           NavigationAction = "HOME"
	ActionBackToTimeline NavigationAction = "BACK_TO_TIMELINE"
	ActionBackToRoot     NavigationAction = "BACK_TO_ROOT"
	ActionAlreadyAtRoot  NavigationAction = "ALREADY_AT_ROOT"
)

type NavigationResult struct {
	Success      bool                        `json:"success"`
	Action       NavigationAction            `json:"action"`
	Message      string                      `json:"message,omitempty"`
	Kind         FailureKind                 `json:"kind,omitempty"`
	Localization models.TimelineLocalization `json:"timelineLocalization"`
}

// NavigationService moves the agent's breadcrumb. Writes are single column
// updates, so they never race with interaction transactions over the rest
// of the agent row.
type NavigationService struct {
	DB *gorm.DB

	now func() time.Time
}

func NewNavigationService(db *gorm.DB) *NavigationService {
	return &NavigationService{DB: db, now: time.Now}
}

// GoHome clears the breadcrumb.
func (s *NavigationService) GoHome(ctx context.Context, agentID string) (*NavigationResult, error) {
	return s.localize(ctx, agentID, ActionHome, models.TimelineLocalization{})
}

// GoBack clears the entry when one is given, otherwise both ids. With no
// context the agent is already at the root and nothing is written.
func (s *NavigationService) GoBack(ctx context.Context, agentID string, ic InteractionContext) (*NavigationResult, error) {
	switch {
	case ic.EntryID != "":
		loc := models.TimelineLocalization{}
		if ic.TimelineID != "" {
			tid := ic.TimelineID
			loc.CurrentTimelineID = &tid
		}
		return s.localize(ctx, agentID, ActionBackToTimeline, loc)
	case ic.TimelineID != "":
		return s.localize(ctx, agentID, ActionBackToRoot, models.TimelineLocalization{})
	default:
		return &NavigationResult{
			Success: false,
			Action:  ActionAlreadyAtRoot,
			Kind:    FailureConflict,
			Message: "Already at root",
		}, nil
	}
}

func (s *NavigationService) localize(ctx context.Context, agentID string, action NavigationAction, loc models.TimelineLocalization) (*NavigationResult, error) {
	if _, err := uuid.Parse(agentID); err != nil {
		return &NavigationResult{Action: action, Kind: FailureNotFound, Message: MsgAgentNotFound}, nil
	}

	now := s.now()
	loc.LastSyncedAt = &now
	updates := map[string]any{
		"protocol_current_timeline_entry_id": nil,
		"protocol_last_synced_at":            now,
	}
	// BACK_TO_TIMELINE without a timeline id keeps the stored one.
	if action != ActionBackToTimeline || loc.CurrentTimelineID != nil {
		updates["protocol_current_timeline_id"] = loc.CurrentTimelineID
	}

	res := s.DB.WithContext(ctx).Model(&models.Agent{}).Where("id = ?", agentID).Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update localization for %s: %w", agentID, res.Error)
	}
	if res.RowsAffected == 0 {
		return &NavigationResult{Action: action, Kind: FailureNotFound, Message: MsgAgentNotFound}, nil
	}

	if action == ActionBackToTimeline && loc.CurrentTimelineID == nil {
		var agent models.Agent
		if err := s.DB.WithContext(ctx).Select("id", "protocol_current_timeline_id").First(&agent, "id = ?", agentID).Error; err != nil {
			return nil, fmt.Errorf("failed to reload localization for %s: %w", agentID, err)
		}
		loc.CurrentTimelineID = agent.Protocol.TimelineLocalization.CurrentTimelineID
	}
	return &NavigationResult{Success: true, Action: action, Localization: loc}, nil
}
