package services

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"protocol-backend/models"
)

// LoreUnlocker unlocks lore for an agent inside the caller's transaction.
type LoreUnlocker interface {
	UnlockLoreForAgent(tx *gorm.DB, loreID, agentID string) (bool, error)
}

type LoreService struct {
	DB *gorm.DB
}

func NewLoreService(db *gorm.DB) *LoreService {
	return &LoreService{DB: db}
}

// UnlockLoreForAgent appends agentID to the lore's unlock list. It reports
// false, without error, when the lore is unknown or already unlocked.
func (s *LoreService) UnlockLoreForAgent(tx *gorm.DB, loreID, agentID string) (bool, error) {
	if tx == nil {
		tx = s.DB
	}
	var lore models.Lore
	err := forUpdate(tx).Where("lore_id = ?", loreID).First(&lore).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load lore %s: %w", loreID, err)
	}
	if slices.Contains(lore.UnlockedBy, agentID) {
		return false, nil
	}
	lore.UnlockedBy = append(lore.UnlockedBy, agentID)
	if err := tx.Model(&lore).Select("unlocked_by", "updated_at").Updates(&lore).Error; err != nil {
		return false, fmt.Errorf("failed to unlock lore %s: %w", loreID, err)
	}
	return true, nil
}

// ListUnlocked returns the lore an agent has unlocked. The unlock list is a
// json column, so filtering happens in memory.
func (s *LoreService) ListUnlocked(ctx context.Context, agentID string) ([]models.Lore, error) {
	var all []models.Lore
	if err := s.DB.WithContext(ctx).Order("created_at ASC").Find(&all).Error; err != nil {
		return nil, fmt.Errorf("failed to list lore: %w", err)
	}
	out := all[:0]
	for _, l := range all {
		if slices.Contains(l.UnlockedBy, agentID) {
			out = append(out, l)
		}
	}
	return out, nil
}

// UpsertLore inserts lore or refreshes title and content by lore id. The
// unlock list is never overwritten.
func (s *LoreService) UpsertLore(ctx context.Context, lore []models.Lore) error {
	if len(lore) == 0 {
		return nil
	}
	for i := range lore {
		if lore[i].ID == "" {
			lore[i].ID = uuid.NewString()
		}
		if lore[i].UnlockedBy == nil {
			lore[i].UnlockedBy = []string{}
		}
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "lore_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "content", "updated_at"}),
	}).Create(&lore).Error
}
