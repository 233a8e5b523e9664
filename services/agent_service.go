package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"protocol-backend/fragments"
	"protocol-backend/models"
)

type AgentService struct {
	DB   *gorm.DB
	Lore *LoreService
}

func NewAgentService(db *gorm.DB) *AgentService {
	return &AgentService{DB: db, Lore: NewLoreService(db)}
}

// AgentProgress is an agent's standing in one timeline.
type AgentProgress struct {
	Timeline models.TimelineSummary       `json:"timeline"`
	Progress models.AgentTimelineProgress `json:"progress"`
	Reveal   fragments.Progress           `json:"reveal"`
	Lore     []UnlockedLore               `json:"lore"`
}

// UnlockedLore is the agent-facing view of a lore record.
type UnlockedLore struct {
	LoreID  string `json:"loreId"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// EnsureAgent returns the agent for bungieID, creating it on first sight.
func (s *AgentService) EnsureAgent(ctx context.Context, bungieID, displayName string) (*models.Agent, error) {
	bungieID = strings.TrimSpace(bungieID)
	if bungieID == "" {
		return nil, fail(FailureInvalid, "Validation failed", "bungieId is required")
	}

	db := s.DB.WithContext(ctx)
	var existing models.Agent
	err := db.First(&existing, "bungie_id = ?", bungieID).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load agent %s: %w", bungieID, err)
	}

	agent := models.Agent{
		ID:          uuid.NewString(),
		BungieID:    bungieID,
		DisplayName: displayName,
		Protocol: models.AgentProtocol{
			Roles:     []string{},
			Badges:    []models.AgentBadge{},
			Timelines: []models.AgentTimelineProgress{},
		},
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "bungie_id"}},
		DoNothing: true,
	}).Create(&agent).Error; err != nil {
		return nil, fmt.Errorf("failed to ensure agent %s: %w", bungieID, err)
	}

	var stored models.Agent
	if err := db.First(&stored, "bungie_id = ?", bungieID).Error; err != nil {
		return nil, fmt.Errorf("failed to load agent %s: %w", bungieID, err)
	}
	return &stored, nil
}

func (s *AgentService) GetAgent(ctx context.Context, agentID string) (*models.Agent, error) {
	if _, err := uuid.Parse(agentID); err != nil {
		return nil, fail(FailureNotFound, MsgAgentNotFound)
	}
	var agent models.Agent
	err := s.DB.WithContext(ctx).First(&agent, "id = ?", agentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fail(FailureNotFound, MsgAgentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load agent %s: %w", agentID, err)
	}
	return &agent, nil
}

// GetProgress returns the agent's progress in a timeline with the current
// fragment reveal and the timeline's lore the agent has unlocked.
func (s *AgentService) GetProgress(ctx context.Context, agentID, timelineID string) (*AgentProgress, error) {
	agent, err := s.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	progress := agent.TimelineProgress(timelineID)
	if progress == nil {
		return nil, fail(FailureNotFound, "No progress for this timeline")
	}

	var tl models.Timeline
	err = s.DB.WithContext(ctx).
		Select("id", "timeline_id", "name", "description", "tier", "code", "entries").
		First(&tl, "timeline_id = ?", timelineID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fail(FailureNotFound, MsgTimelineMissing)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load timeline %s: %w", timelineID, err)
	}

	unlocked, err := s.Lore.ListUnlocked(ctx, agentID)
	if err != nil {
		return nil, err
	}
	linked := map[string]bool{}
	tl.Entries.Walk(func(e *models.Entry, _ int) bool {
		for _, id := range e.LinkedLore {
			linked[id] = true
		}
		return true
	})
	lore := []UnlockedLore{}
	for _, l := range unlocked {
		if linked[l.LoreID] {
			lore = append(lore, UnlockedLore{LoreID: l.LoreID, Title: l.Title, Content: l.Content})
		}
	}

	return &AgentProgress{
		Timeline: tl.Summary(),
		Progress: *progress,
		Reveal:   fragments.Reveal(tl.Code.Format, tl.Code.Pattern, progress.FragmentsFound),
		Lore:     lore,
	}, nil
}
