package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"protocol-backend/models"
	"protocol-backend/testutil"
)

const (
	testAccessCode = "OPEN-SESAME"
	testRole       = "role-stabilizer"
	testBadge      = "TIMELINE_STABILIZER"
)

type fixture struct {
	db           *gorm.DB
	emblems      *EmblemService
	badges       *BadgeService
	lore         *LoreService
	timelines    *TimelineService
	interactions *InteractionService
	navigation   *NavigationService
	agents       *AgentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	f := &fixture{
		db:         db,
		emblems:    NewEmblemService(db),
		badges:     NewBadgeService(db),
		lore:       NewLoreService(db),
		navigation: NewNavigationService(db),
		agents:     NewAgentService(db),
	}
	f.timelines = NewTimelineService(db, f.emblems, nil)
	f.interactions = NewInteractionService(db, f.lore, NewCompletionEngine(f.badges, nil), nil)
	f.interactions.retry = retryConfig{maxRetries: 2, baseDelay: time.Millisecond, maxDelay: 2 * time.Millisecond}
	return f
}

func (f *fixture) seedEmblem(t *testing.T, code string) models.Emblem {
	t.Helper()
	e := models.Emblem{ID: uuid.NewString(), Name: "Emblem " + code, Code: code}
	require.NoError(t, f.db.Create(&e).Error)
	return e
}

// testEntries is a three fragment-group puzzle: gate (A) with a nested
// inner node (B), and vault (C).
func testEntries() models.Entries {
	return models.Entries{
		{
			EntryID:        "gate",
			Name:           "Gate",
			Type:           models.EntryTypeEnigma,
			AccessCode:     "GATE",
			Solution:       "alpha",
			LinkedFragment: []string{"A1", "A2", "A3"},
			LinkedLore:     []string{"lore-gate"},
			GrantKeys:      []string{"key-gate"},
			SubEntries: models.Entries{
				{
					EntryID:        "inner",
					Name:           "Inner",
					Type:           models.EntryTypeDataNode,
					AccessCode:     "INNER",
					LinkedFragment: []string{"B1", "B2", "B3"},
				},
			},
		},
		{
			EntryID:        "vault",
			Name:           "Vault",
			Type:           models.EntryTypeFirewall,
			AccessCode:     "VAULT",
			Solution:       "omega",
			LinkedFragment: []string{"C1", "C2", "C3"},
		},
	}
}

func (f *fixture) createTimeline(t *testing.T, mutate func(*CreateTimelineInput)) *models.Timeline {
	t.Helper()
	emblem := f.seedEmblem(t, "ABC-DEF-GHI")
	in := CreateTimelineInput{
		Name:      "Signal Lost",
		Status:    string(models.TimelineStatusOpen),
		EmblemIDs: []string{emblem.ID},
		Entries:   testEntries(),
		Rewards: models.TimelineRewards{
			DiscordRoleID: testRole,
			Badge:         testBadge,
			Emblem:        []string{"emblem-reward"},
		},
		SecurityProtocol: models.SecurityProtocol{AccessCode: testAccessCode},
	}
	if mutate != nil {
		mutate(&in)
	}
	tl, err := f.timelines.Create(context.Background(), in)
	require.NoError(t, err)
	return tl
}

func (f *fixture) seedBadgeAndLore(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.badges.UpsertBadges(ctx, []models.Badge{{BadgeID: testBadge, Name: "Stabilizer"}}))
	require.NoError(t, f.lore.UpsertLore(ctx, []models.Lore{{LoreID: "lore-gate", Title: "Behind the gate"}}))
}

func (f *fixture) newAgent(t *testing.T) *models.Agent {
	t.Helper()
	a, err := f.agents.EnsureAgent(context.Background(), "bungie-"+uuid.NewString()[:8], "Guardian")
	require.NoError(t, err)
	return a
}

func (f *fixture) reloadAgent(t *testing.T, id string) *models.Agent {
	t.Helper()
	var a models.Agent
	require.NoError(t, f.db.First(&a, "id = ?", id).Error)
	return &a
}

func (f *fixture) reloadTimeline(t *testing.T, id string) *models.Timeline {
	t.Helper()
	var tl models.Timeline
	require.NoError(t, f.db.First(&tl, "id = ?", id).Error)
	return &tl
}

func (f *fixture) interact(t *testing.T, agentID, input string, ic InteractionContext) *InteractionResult {
	t.Helper()
	res, err := f.interactions.ProcessInteraction(context.Background(), agentID, input, ic)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

// enter gives the agent a progress record on tl.
func (f *fixture) enter(t *testing.T, agentID string) {
	t.Helper()
	res := f.interact(t, agentID, testAccessCode, InteractionContext{})
	require.True(t, res.Success, res.Message)
}
