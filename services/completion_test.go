package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"protocol-backend/models"
)

type fakeBadges struct {
	badges map[string]*models.Badge
	err    error
	calls  int
}

func (f *fakeBadges) FindBadgeByBusinessID(_ *gorm.DB, badgeID string) (*models.Badge, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.badges[badgeID], nil
}

func newEngine(badges BadgeFinder, at time.Time) *CompletionEngine {
	e := NewCompletionEngine(badges, nil)
	e.now = func() time.Time { return at }
	return e
}

func allFragments() []string {
	return []string{"A1", "A2", "A3", "B1", "B2", "B3", "C1", "C2", "C3"}
}

func completionSetup(t *testing.T) (*fixture, *models.Agent, *models.Timeline, *models.AgentTimelineProgress) {
	t.Helper()
	f := newFixture(t)
	tl := f.createTimeline(t, nil)
	agent := f.newAgent(t)
	p, _ := agent.StartTimeline(tl, time.Now())
	return f, agent, tl, p
}

func TestCheckAndApply_Partial(t *testing.T) {
	f, agent, tl, p := completionSetup(t)
	p.AddFragments([]string{"A1"})

	res, err := newEngine(&fakeBadges{}, time.Now()).CheckAndApply(f.db, agent, tl, p)
	require.NoError(t, err)
	assert.False(t, res.Completed)
	assert.False(t, res.JustCompleted)
	assert.Equal(t, 11, res.Progress)
	assert.False(t, p.Completed)
	assert.Equal(t, models.TimelineStatusOpen, tl.Status)
}

func TestCheckAndApply_Completes(t *testing.T) {
	f, agent, tl, p := completionSetup(t)
	p.AddFragments(allFragments())
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	badges := &fakeBadges{badges: map[string]*models.Badge{testBadge: {BadgeID: testBadge}}}

	res, err := newEngine(badges, at).CheckAndApply(f.db, agent, tl, p)
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.True(t, res.JustCompleted)
	assert.Equal(t, 100, res.Progress)
	assert.Equal(t, &RewardsGiven{Role: testRole, Badge: testBadge, Emblems: []string{"emblem-reward"}}, res.RewardsGiven)

	assert.True(t, p.Completed)
	assert.Equal(t, at, *p.CompletedAt)
	assert.Equal(t, []string{testRole}, agent.Protocol.Roles)
	assert.Equal(t, []models.AgentBadge{{BadgeID: testBadge, ObtainedAt: at}}, agent.Protocol.Badges)

	stored := f.reloadTimeline(t, tl.ID)
	assert.Equal(t, models.TimelineStatusStabilized, stored.Status)
	require.NotNil(t, stored.StabilizedAt)
	assert.Equal(t, agent.ID, stored.StabilizedAt.WinnerAgentID)
	assert.True(t, stored.StabilizedAt.CompletedAt.Equal(at))
}

func TestCheckAndApply_IdempotentOnReplay(t *testing.T) {
	f, agent, tl, p := completionSetup(t)
	p.AddFragments(allFragments())
	badges := &fakeBadges{badges: map[string]*models.Badge{testBadge: {BadgeID: testBadge}}}
	engine := newEngine(badges, time.Now())

	first, err := engine.CheckAndApply(f.db, agent, tl, p)
	require.NoError(t, err)
	require.True(t, first.JustCompleted)

	second, err := engine.CheckAndApply(f.db, agent, tl, p)
	require.NoError(t, err)
	assert.Equal(t, &CompletionResult{Completed: true, JustCompleted: false, Progress: 100}, second)
	assert.Len(t, agent.Protocol.Roles, 1)
	assert.Len(t, agent.Protocol.Badges, 1)
	assert.Equal(t, 1, badges.calls)
}

func TestCheckAndApply_ExistingGrantsNotDuplicated(t *testing.T) {
	f, agent, tl, p := completionSetup(t)
	agent.GrantRole(testRole)
	agent.GrantBadge(testBadge, time.Now())
	p.AddFragments(allFragments())
	badges := &fakeBadges{badges: map[string]*models.Badge{testBadge: {BadgeID: testBadge}}}

	res, err := newEngine(badges, time.Now()).CheckAndApply(f.db, agent, tl, p)
	require.NoError(t, err)
	assert.True(t, res.JustCompleted)
	assert.Equal(t, []string{testRole}, agent.Protocol.Roles)
	assert.Len(t, agent.Protocol.Badges, 1)
}

func TestCheckAndApply_UnknownBadgeSkipped(t *testing.T) {
	f, agent, tl, p := completionSetup(t)
	p.AddFragments(allFragments())

	res, err := newEngine(&fakeBadges{}, time.Now()).CheckAndApply(f.db, agent, tl, p)
	require.NoError(t, err)
	assert.True(t, res.JustCompleted)
	assert.Empty(t, res.RewardsGiven.Badge)
	assert.Empty(t, agent.Protocol.Badges)
}

func TestCheckAndApply_BadgeLookupError(t *testing.T) {
	f, agent, tl, p := completionSetup(t)
	p.AddFragments(allFragments())
	boom := errors.New("boom")

	_, err := newEngine(&fakeBadges{err: boom}, time.Now()).CheckAndApply(f.db, agent, tl, p)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, models.TimelineStatusOpen, f.reloadTimeline(t, tl.ID).Status)
}

func TestCheckAndApply_EmptyPattern(t *testing.T) {
	f, agent, tl, p := completionSetup(t)
	tl.Code.Pattern = nil
	p.AddFragments(allFragments())

	res, err := newEngine(&fakeBadges{}, time.Now()).CheckAndApply(f.db, agent, tl, p)
	require.NoError(t, err)
	assert.False(t, res.Completed)
	assert.Equal(t, 0, res.Progress)
}
