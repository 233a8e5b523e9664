package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"protocol-backend/fragments"
	"protocol-backend/logging"
	"protocol-backend/models"
)

type TimelineService struct {
	DB      *gorm.DB
	Emblems EmblemFinder
	Log     *zap.Logger
}

func NewTimelineService(db *gorm.DB, emblems EmblemFinder, log *zap.Logger) *TimelineService {
	log = logging.OrNop(log)
	return &TimelineService{DB: db, Emblems: emblems, Log: log}
}

// CreateTimelineInput is the admin payload for a new timeline. The code is
// derived from the first linked emblem and cannot be supplied.
type CreateTimelineInput struct {
	TimelineID       string                  `json:"timelineId" yaml:"timelineId" validate:"omitempty,max=64"`
	Name             string                  `json:"name" yaml:"name" validate:"required,max=200"`
	Description      string                  `json:"description" yaml:"description"`
	Tier             int                     `json:"tier" yaml:"tier" validate:"omitempty,min=1,max=5"`
	Status           string                  `json:"status" yaml:"status"`
	EmblemIDs        []string                `json:"emblemIds" yaml:"emblemIds" validate:"required,min=1,dive,uuid"`
	Entries          models.Entries          `json:"entries" yaml:"entries"`
	Rewards          models.TimelineRewards  `json:"rewards" yaml:"rewards"`
	SecurityProtocol models.SecurityProtocol `json:"securityProtocol" yaml:"securityProtocol"`
	OpensAt          *time.Time              `json:"opensAt" yaml:"opensAt"`
}

// UpdateTimelineInput is a partial update; nil fields are left alone.
type UpdateTimelineInput struct {
	Name             *string                  `json:"name" validate:"omitempty,min=1,max=200"`
	Description      *string                  `json:"description"`
	Tier             *int                     `json:"tier" validate:"omitempty,min=1,max=5"`
	Status           *string                  `json:"status"`
	Entries          *models.Entries          `json:"entries"`
	Rewards          *models.TimelineRewards  `json:"rewards"`
	SecurityProtocol *models.SecurityProtocol `json:"securityProtocol"`
	OpensAt          *time.Time               `json:"opensAt"`
}

// ListFilter narrows admin listings. Zero value lists everything.
type ListFilter struct {
	Status models.TimelineStatus
}

// Create validates input, resolves emblems and persists a new timeline.
func (s *TimelineService) Create(ctx context.Context, in CreateTimelineInput) (*models.Timeline, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	security := in.SecurityProtocol
	security.AccessCode = strings.TrimSpace(security.AccessCode)
	if security.AccessCode == "" {
		return nil, fail(FailureInvalid, "Validation failed", "securityProtocol.accessCode is required")
	}
	entries := in.Entries
	if entries == nil {
		entries = models.Entries{}
	}
	if err := entries.Validate(); err != nil {
		return nil, fail(FailureInvalid, "Validation failed", err.Error())
	}

	status := models.TimelineStatusDraft
	if in.Status != "" {
		parsed, err := models.ParseTimelineStatus(in.Status)
		if err != nil {
			return nil, fail(FailureInvalid, "Validation failed", err.Error())
		}
		status = parsed
	}

	code, err := s.deriveCode(ctx, in.EmblemIDs)
	if err != nil {
		return nil, err
	}

	timelineID := strings.TrimSpace(in.TimelineID)
	if timelineID == "" {
		timelineID = slug.Make(in.Name) + "-" + uuid.NewString()[:6]
	}
	tier := in.Tier
	if tier == 0 {
		tier = 1
	}

	tl := &models.Timeline{
		ID:               uuid.NewString(),
		TimelineID:       timelineID,
		Name:             strings.TrimSpace(in.Name),
		Description:      in.Description,
		Tier:             tier,
		Status:           status,
		Code:             code,
		Entries:          entries,
		Participants:     []models.Participant{},
		Rewards:          in.Rewards,
		SecurityProtocol: security,
		EmblemIDs:        in.EmblemIDs,
		OpensAt:          in.OpensAt,
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Timeline{}).Where("timeline_id = ?", timelineID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fail(FailureConflict, "Timeline id already exists", timelineID)
		}
		return tx.Create(tl).Error
	})
	if err != nil {
		var f *Failure
		if errors.As(err, &f) {
			return nil, f
		}
		return nil, fmt.Errorf("failed to create timeline: %w", err)
	}

	s.Log.Info("✅ Timeline created",
		zap.String("timeline_id", tl.TimelineID),
		zap.String("status", string(tl.Status)),
		zap.Int("entries", tl.Entries.Count()))
	return tl, nil
}

// deriveCode loads every linked emblem and builds the code from the first.
func (s *TimelineService) deriveCode(ctx context.Context, ids []string) (models.TimelineCode, error) {
	emblems, err := s.Emblems.FindEmblemsByIDs(ctx, ids)
	if err != nil {
		return models.TimelineCode{}, err
	}
	byID := make(map[string]models.Emblem, len(emblems))
	for _, e := range emblems {
		byID[e.ID] = e
	}
	var missing []string
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return models.TimelineCode{}, fail(FailureInvalid, MsgEmblemsNotFound, missing...)
	}

	if len(ids) > 1 {
		s.Log.Warn("⚠️ Multiple emblems linked, only the first seeds the code",
			zap.String("emblem_id", ids[0]),
			zap.Int("linked", len(ids)))
	}

	first := byID[ids[0]]
	groups := fragments.SplitCode(first.Code)
	if !fragments.ValidCode(groups) {
		return models.TimelineCode{}, fail(FailureInvalid, "Emblem code is malformed", first.ID)
	}
	return models.TimelineCode{
		Format:     fragments.FormatFor(groups),
		Pattern:    fragments.GeneratePattern(groups),
		TargetCode: groups,
	}, nil
}

// GetByID loads a timeline by storage id.
func (s *TimelineService) GetByID(ctx context.Context, id string) (*models.Timeline, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fail(FailureNotFound, "Timeline not found")
	}
	var tl models.Timeline
	err := s.DB.WithContext(ctx).First(&tl, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fail(FailureNotFound, "Timeline not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load timeline %s: %w", id, err)
	}
	return &tl, nil
}

func (s *TimelineService) List(ctx context.Context, filter ListFilter) ([]models.Timeline, error) {
	q := s.DB.WithContext(ctx).Order("created_at DESC")
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	var timelines []models.Timeline
	if err := q.Find(&timelines).Error; err != nil {
		return nil, fmt.Errorf("failed to list timelines: %w", err)
	}
	return timelines, nil
}

// Update applies a partial update under a row lock. The code is immutable.
func (s *TimelineService) Update(ctx context.Context, id string, in UpdateTimelineInput) (*models.Timeline, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, fail(FailureNotFound, "Timeline not found")
	}

	var tl models.Timeline
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := forUpdate(tx).First(&tl, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(FailureNotFound, "Timeline not found")
		}
		if err != nil {
			return err
		}
		if err := applyUpdate(&tl, in); err != nil {
			return err
		}
		return tx.Save(&tl).Error
	})
	if err != nil {
		var f *Failure
		if errors.As(err, &f) {
			return nil, f
		}
		return nil, fmt.Errorf("failed to update timeline %s: %w", id, err)
	}
	return &tl, nil
}

func applyUpdate(tl *models.Timeline, in UpdateTimelineInput) error {
	if in.Name != nil {
		tl.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		tl.Description = *in.Description
	}
	if in.Tier != nil {
		tl.Tier = *in.Tier
	}
	if in.Status != nil {
		next, err := models.ParseTimelineStatus(*in.Status)
		if err != nil {
			return fail(FailureInvalid, "Validation failed", err.Error())
		}
		if !tl.Status.CanTransitionTo(next) {
			return fail(FailureConflict, "Invalid status transition", string(tl.Status)+" -> "+string(next))
		}
		tl.Status = next
	}
	if in.Entries != nil {
		entries := *in.Entries
		if err := entries.Validate(); err != nil {
			return fail(FailureInvalid, "Validation failed", err.Error())
		}
		tl.Entries = entries
	}
	if in.Rewards != nil {
		tl.Rewards = *in.Rewards
	}
	if in.SecurityProtocol != nil {
		sp := *in.SecurityProtocol
		sp.AccessCode = strings.TrimSpace(sp.AccessCode)
		if sp.AccessCode == "" {
			return fail(FailureInvalid, "Validation failed", "securityProtocol.accessCode is required")
		}
		tl.SecurityProtocol = sp
	}
	if in.OpensAt != nil {
		tl.OpensAt = in.OpensAt
	}
	return nil
}

// Delete removes the timeline row. Agent progress records are kept.
func (s *TimelineService) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fail(FailureNotFound, "Timeline not found")
	}
	res := s.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.Timeline{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete timeline %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fail(FailureNotFound, "Timeline not found")
	}
	s.Log.Info("🗑️ Timeline deleted", zap.String("id", id))
	return nil
}

// ListOpen returns the player-facing summaries of every OPEN timeline.
func (s *TimelineService) ListOpen(ctx context.Context) ([]models.TimelineSummary, error) {
	var timelines []models.Timeline
	err := s.DB.WithContext(ctx).
		Select("id", "timeline_id", "name", "description", "tier", "code", "created_at").
		Where("status = ?", models.TimelineStatusOpen).
		Order("created_at ASC").
		Find(&timelines).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list open timelines: %w", err)
	}
	out := make([]models.TimelineSummary, 0, len(timelines))
	for i := range timelines {
		out = append(out, timelines[i].Summary())
	}
	return out, nil
}

// Publish opens a DRAFT timeline.
func (s *TimelineService) Publish(ctx context.Context, id string) (*models.Timeline, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fail(FailureNotFound, "Timeline not found")
	}
	var tl models.Timeline
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := forUpdate(tx).First(&tl, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(FailureNotFound, "Timeline not found")
		}
		if err != nil {
			return err
		}
		if tl.Status != models.TimelineStatusDraft {
			return fail(FailureConflict, "Only draft timelines can be published", string(tl.Status))
		}
		tl.Status = models.TimelineStatusOpen
		tl.OpensAt = nil
		return tx.Model(&tl).Select("status", "opens_at", "updated_at").Updates(&tl).Error
	})
	if err != nil {
		var f *Failure
		if errors.As(err, &f) {
			return nil, f
		}
		return nil, fmt.Errorf("failed to publish timeline %s: %w", id, err)
	}
	timelinesOpenedTotal.Inc()
	s.Log.Info("✅ Timeline published", zap.String("timeline_id", tl.TimelineID))
	return &tl, nil
}

// OpenDue opens every DRAFT timeline whose OpensAt has passed and returns
// how many were opened.
func (s *TimelineService) OpenDue(ctx context.Context, now time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&models.Timeline{}).
		Where("status = ? AND opens_at IS NOT NULL AND opens_at <= ?", models.TimelineStatusDraft, now).
		Updates(map[string]any{
			"status":     models.TimelineStatusOpen,
			"opens_at":   nil,
			"updated_at": now,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to open due timelines: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		timelinesOpenedTotal.Add(float64(res.RowsAffected))
	}
	return res.RowsAffected, nil
}

// SetCoverImage stores the public URL of an uploaded cover image.
func (s *TimelineService) SetCoverImage(ctx context.Context, id, url string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fail(FailureNotFound, "Timeline not found")
	}
	res := s.DB.WithContext(ctx).Model(&models.Timeline{}).Where("id = ?", id).Update("cover_image_url", url)
	if res.Error != nil {
		return fmt.Errorf("failed to set cover image for %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fail(FailureNotFound, "Timeline not found")
	}
	return nil
}
