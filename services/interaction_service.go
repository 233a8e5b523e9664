package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"protocol-backend/fragments"
	"protocol-backend/logging"
	"protocol-backend/models"
)

const (
	flowTimelineAccess = "timeline_access"
	flowEntryAccess    = "entry_access"
	flowEntrySolution  = "entry_solution"
)

// errBusinessFailure rolls back a transaction whose flow returned a failed
// result. It never leaves run.
var errBusinessFailure = errors.New("business failure")

// InteractionContext is where the agent currently stands, as tracked by the
// caller.
type InteractionContext struct {
	TimelineID string `json:"timelineId"`
	EntryID    string `json:"entryId"`
}

// InteractionService routes free-text input to timeline access, entry
// access or entry solving.
type InteractionService struct {
	DB         *gorm.DB
	Lore       LoreUnlocker
	Completion *CompletionEngine
	Log        *zap.Logger

	now   func() time.Time
	retry retryConfig
}

func NewInteractionService(db *gorm.DB, lore LoreUnlocker, completion *CompletionEngine, log *zap.Logger) *InteractionService {
	log = logging.OrNop(log)
	return &InteractionService{
		DB:         db,
		Lore:       lore,
		Completion: completion,
		Log:        log,
		now:        time.Now,
		retry:      defaultRetryConfig,
	}
}

// ProcessInteraction dispatches input by context: entry solution when both
// ids are set, entry access when only the timeline is set (falling back to
// timeline access on any failure), timeline access otherwise. Business
// failures come back as unsuccessful results; the error is reserved for
// infrastructure failures.
func (s *InteractionService) ProcessInteraction(ctx context.Context, agentID, raw string, ic InteractionContext) (*InteractionResult, error) {
	// Timeline access codes match exactly; only entry input is trimmed.
	input := strings.TrimSpace(raw)
	if input == "" {
		return failed(FailureInvalid, MsgInputRequired), nil
	}
	if _, err := uuid.Parse(agentID); err != nil {
		return failed(FailureNotFound, MsgAgentNotFound), nil
	}

	if ic.TimelineID != "" && ic.EntryID != "" {
		return s.run(ctx, flowEntrySolution, func(tx *gorm.DB) (*InteractionResult, error) {
			return s.solveEntry(tx, agentID, ic.TimelineID, ic.EntryID, input)
		})
	}

	if ic.TimelineID != "" {
		res, err := s.run(ctx, flowEntryAccess, func(tx *gorm.DB) (*InteractionResult, error) {
			return s.accessEntry(tx, agentID, ic.TimelineID, input)
		})
		if err != nil || res.Success || res.Message == MsgAgentNotFound {
			return res, err
		}
		s.Log.Debug("Entry access missed, trying timeline access",
			zap.String("timeline_id", ic.TimelineID),
			zap.String("reason", res.Message))
	}

	return s.run(ctx, flowTimelineAccess, func(tx *gorm.DB) (*InteractionResult, error) {
		return s.accessTimeline(tx, agentID, raw)
	})
}

// run executes one flow in a retried transaction and records metrics.
// Failed results roll the transaction back.
func (s *InteractionService) run(ctx context.Context, flow string, fn func(tx *gorm.DB) (*InteractionResult, error)) (*InteractionResult, error) {
	start := time.Now()
	defer func() {
		interactionDuration.WithLabelValues(flow).Observe(time.Since(start).Seconds())
	}()

	var res *InteractionResult
	err := retryOp(s.retry, func() error {
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			r, err := fn(tx)
			if err != nil {
				return err
			}
			res = r
			if !r.Success {
				return errBusinessFailure
			}
			return nil
		})
	})
	if err != nil && !errors.Is(err, errBusinessFailure) {
		interactionsTotal.WithLabelValues(flow, "error").Inc()
		s.Log.Error("❌ Interaction failed", zap.String("flow", flow), zap.Error(err))
		return nil, fmt.Errorf("%s: %w", flow, err)
	}

	outcome := "success"
	if !res.Success {
		outcome = string(res.Kind)
	}
	interactionsTotal.WithLabelValues(flow, outcome).Inc()
	return res, nil
}

// lockAgent loads the agent row FOR UPDATE. Agents are always locked before
// timelines.
func lockAgent(tx *gorm.DB, agentID string) (*models.Agent, error) {
	var agent models.Agent
	err := forUpdate(tx).First(&agent, "id = ?", agentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

func saveTimelineParticipants(tx *gorm.DB, tl *models.Timeline) error {
	return tx.Model(tl).Select("participants", "updated_at").Updates(tl).Error
}

func (s *InteractionService) accessTimeline(tx *gorm.DB, agentID, code string) (*InteractionResult, error) {
	agent, err := lockAgent(tx, agentID)
	if err != nil || agent == nil {
		return failed(FailureNotFound, MsgAgentNotFound), err
	}

	var tl models.Timeline
	err = forUpdate(tx).
		Where("status = ? AND security_access_code = ?", models.TimelineStatusOpen, code).
		Order("created_at ASC").
		First(&tl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return failed(FailureNotFound, MsgInvalidCode), nil
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	progress, created := agent.StartTimeline(&tl, now)
	if tl.AddParticipant(agent, now) {
		if err := saveTimelineParticipants(tx, &tl); err != nil {
			return nil, err
		}
	}
	snapshot := *progress

	agent.Localize(tl.TimelineID, "", now)
	if err := tx.Save(agent).Error; err != nil {
		return nil, err
	}

	if created {
		s.Log.Info("🔓 Timeline accessed", zap.String("agent_id", agent.ID), zap.String("timeline_id", tl.TimelineID))
	}
	summary := tl.Summary()
	reveal := fragments.Reveal(tl.Code.Format, tl.Code.Pattern, snapshot.FragmentsFound)
	return &InteractionResult{
		Success:     true,
		Message:     "Timeline access granted",
		Type:        InteractionTimelineAccess,
		Timeline:    &summary,
		Progress:    &snapshot,
		Reveal:      &reveal,
		FirstAccess: created,
	}, nil
}

func (s *InteractionService) accessEntry(tx *gorm.DB, agentID, timelineID, code string) (*InteractionResult, error) {
	agent, err := lockAgent(tx, agentID)
	if err != nil || agent == nil {
		return failed(FailureNotFound, MsgAgentNotFound), err
	}

	tl, err := openTimeline(tx, timelineID, false)
	if err != nil || tl == nil {
		return failed(FailureNotFound, MsgTimelineMissing), err
	}

	entry := tl.Entries.FindByAccessCode(code)
	if entry == nil {
		return failed(FailureNotFound, MsgEntryNotFound), nil
	}

	now := s.now()
	progress := agent.TimelineProgress(tl.TimelineID)
	if progress != nil {
		progress.CurrentEntryID = entry.EntryID
	}
	agent.Localize(tl.TimelineID, entry.EntryID, now)
	if err := tx.Save(agent).Error; err != nil {
		return nil, err
	}

	summary := tl.Summary()
	res := &InteractionResult{
		Success:  true,
		Message:  "Entry accessed",
		Type:     InteractionEntryAccess,
		Timeline: &summary,
		Entry:    viewEntry(entry),
	}
	if progress != nil {
		snapshot := *progress
		res.Progress = &snapshot
	}
	return res, nil
}

// openTimeline loads an OPEN timeline by business id, or nil.
func openTimeline(tx *gorm.DB, timelineID string, lock bool) (*models.Timeline, error) {
	q := tx
	if lock {
		q = forUpdate(tx)
	}
	var tl models.Timeline
	err := q.Where("timeline_id = ? AND status = ?", timelineID, models.TimelineStatusOpen).First(&tl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tl, nil
}

func (s *InteractionService) solveEntry(tx *gorm.DB, agentID, timelineID, entryID, input string) (*InteractionResult, error) {
	agent, err := lockAgent(tx, agentID)
	if err != nil || agent == nil {
		return failed(FailureNotFound, MsgAgentNotFound), err
	}

	tl, err := openTimeline(tx, timelineID, true)
	if err != nil || tl == nil {
		return failed(FailureNotFound, MsgTimelineMissing), err
	}

	entry := tl.Entries.FindByID(entryID)
	if entry == nil {
		return failed(FailureNotFound, MsgEntryNotFound), nil
	}
	if !entry.CheckSolution(input) {
		return failed(FailureRejected, MsgIncorrect), nil
	}
	progress := agent.TimelineProgress(tl.TimelineID)
	if progress == nil {
		return failed(FailureForbidden, MsgNotAuthorized), nil
	}
	if progress.HasResolved(entry.EntryID) {
		return failed(FailureConflict, MsgAlreadySolved), nil
	}

	now := s.now()
	newFragments := progress.AddFragments(entry.LinkedFragment)
	newKeys := progress.AddKeys(entry.GrantKeys)

	var unlocked []string
	for _, loreID := range entry.LinkedLore {
		ok, err := s.Lore.UnlockLoreForAgent(tx, loreID, agent.ID)
		if err != nil {
			return nil, err
		}
		if ok {
			unlocked = append(unlocked, loreID)
		}
	}

	progress.MarkResolved(entry.EntryID)
	progress.CurrentEntryID = entry.EntryID

	completion, err := s.Completion.CheckAndApply(tx, agent, tl, progress)
	if err != nil {
		return nil, err
	}
	snapshot := *progress

	agent.Localize(tl.TimelineID, entry.EntryID, now)
	if err := tx.Save(agent).Error; err != nil {
		return nil, err
	}
	if tl.MirrorProgress(agent.ID, &snapshot, now) {
		if err := saveTimelineParticipants(tx, tl); err != nil {
			return nil, err
		}
	}

	s.Log.Info("🧩 Entry solved",
		zap.String("agent_id", agent.ID),
		zap.String("timeline_id", tl.TimelineID),
		zap.String("entry_id", entry.EntryID),
		zap.Int("fragments", snapshot.FragmentsCollected))

	msg := "Entry solved"
	if completion.JustCompleted {
		msg = "Timeline stabilized"
	}
	summary := tl.Summary()
	reveal := fragments.Reveal(tl.Code.Format, tl.Code.Pattern, snapshot.FragmentsFound)
	return &InteractionResult{
		Success:      true,
		Message:      msg,
		Type:         InteractionEntrySolved,
		Timeline:     &summary,
		Entry:        viewEntry(entry),
		Progress:     &snapshot,
		Reveal:       &reveal,
		Completion:   completion,
		NewFragments: newFragments,
		NewKeys:      newKeys,
		UnlockedLore: unlocked,
	}, nil
}
