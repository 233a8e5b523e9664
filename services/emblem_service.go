package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"protocol-backend/models"
)

// EmblemFinder resolves linked emblems at timeline creation.
type EmblemFinder interface {
	FindEmblemsByIDs(ctx context.Context, ids []string) ([]models.Emblem, error)
}

type EmblemService struct {
	DB *gorm.DB
}

func NewEmblemService(db *gorm.DB) *EmblemService {
	return &EmblemService{DB: db}
}

// FindEmblemsByIDs returns the emblems that exist, in no particular order.
func (s *EmblemService) FindEmblemsByIDs(ctx context.Context, ids []string) ([]models.Emblem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var emblems []models.Emblem
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&emblems).Error; err != nil {
		return nil, fmt.Errorf("failed to load emblems: %w", err)
	}
	return emblems, nil
}

// UpsertEmblems inserts emblems or refreshes name and code by id.
func (s *EmblemService) UpsertEmblems(ctx context.Context, emblems []models.Emblem) error {
	if len(emblems) == 0 {
		return nil
	}
	for i := range emblems {
		if emblems[i].ID == "" {
			emblems[i].ID = uuid.NewString()
		}
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "code", "updated_at"}),
	}).Create(&emblems).Error
}
