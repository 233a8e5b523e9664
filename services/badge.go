package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"protocol-backend/models"
)

// BadgeFinder looks a badge up by its business id inside a transaction.
type BadgeFinder interface {
	FindBadgeByBusinessID(tx *gorm.DB, badgeID string) (*models.Badge, error)
}

type BadgeService struct {
	DB *gorm.DB
}

func NewBadgeService(db *gorm.DB) *BadgeService {
	return &BadgeService{DB: db}
}

// FindBadgeByBusinessID returns nil, nil when no badge has that id.
func (s *BadgeService) FindBadgeByBusinessID(tx *gorm.DB, badgeID string) (*models.Badge, error) {
	if tx == nil {
		tx = s.DB
	}
	var badge models.Badge
	err := tx.Where("badge_id = ?", badgeID).First(&badge).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load badge %s: %w", badgeID, err)
	}
	return &badge, nil
}

// UpsertBadges inserts badges or refreshes their display fields by badge id.
func (s *BadgeService) UpsertBadges(ctx context.Context, badges []models.Badge) error {
	if len(badges) == 0 {
		return nil
	}
	for i := range badges {
		rarity, err := models.ParseRarity(string(badges[i].Rarity))
		if err != nil {
			return fail(FailureInvalid, fmt.Sprintf("badge %s: %v", badges[i].BadgeID, err))
		}
		badges[i].Rarity = rarity
		if badges[i].ID == "" {
			badges[i].ID = uuid.NewString()
		}
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "badge_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description", "icon_url", "rarity", "updated_at"}),
	}).Create(&badges).Error
}
