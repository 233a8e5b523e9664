package models

import (
	"slices"
	"time"
)

// AgentBadge is an awarded badge, unique by BadgeID.
type AgentBadge struct {
	BadgeID    string    `json:"badgeId"`
	ObtainedAt time.Time `json:"obtainedAt"`
}

// TimelineLocalization is the agent's current UI breadcrumb. It is fully
// overwritten on every navigation.
type TimelineLocalization struct {
	CurrentTimelineID      *string    `json:"currentTimelineId" gorm:"column:current_timeline_id"`
	CurrentTimelineEntryID *string    `json:"currentTimelineEntryId" gorm:"column:current_timeline_entry_id"`
	LastSyncedAt           *time.Time `json:"lastSyncedAt" gorm:"column:last_synced_at"`
}

// AgentTimelineProgress is one agent's progress through one timeline.
type AgentTimelineProgress struct {
	TimelineID         string     `json:"timelineId"`
	TimelineRecordID   string     `json:"timelineRecordId"`
	CurrentEntryID     string     `json:"currentEntryId,omitempty"`
	FragmentsFound     []string   `json:"fragmentsFound"`
	FragmentsCollected int        `json:"fragmentsCollected"`
	KeysFound          []string   `json:"keysFound"`
	EntriesResolved    []string   `json:"entriesResolved"`
	Completed          bool       `json:"completed"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
	StartedAt          time.Time  `json:"startedAt"`
}

// AddFragments merges keys into FragmentsFound as a set and recomputes
// FragmentsCollected. Returns the keys that were new.
func (p *AgentTimelineProgress) AddFragments(keys []string) []string {
	var added []string
	p.FragmentsFound, added = union(p.FragmentsFound, keys)
	p.FragmentsCollected = len(p.FragmentsFound)
	return added
}

// AddKeys merges keys into KeysFound as a set.
func (p *AgentTimelineProgress) AddKeys(keys []string) []string {
	var added []string
	p.KeysFound, added = union(p.KeysFound, keys)
	return added
}

func (p *AgentTimelineProgress) HasResolved(entryID string) bool {
	return slices.Contains(p.EntriesResolved, entryID)
}

// MarkResolved appends entryID once.
func (p *AgentTimelineProgress) MarkResolved(entryID string) bool {
	if p.HasResolved(entryID) {
		return false
	}
	p.EntriesResolved = append(p.EntriesResolved, entryID)
	return true
}

func union(set, keys []string) ([]string, []string) {
	var added []string
	for _, k := range keys {
		if k == "" || slices.Contains(set, k) {
			continue
		}
		set = append(set, k)
		added = append(added, k)
	}
	return set, added
}

// AgentProtocol is the platform-specific part of an agent.
type AgentProtocol struct {
	Roles                []string                `json:"roles" gorm:"column:roles;type:jsonb;serializer:json"`
	Badges               []AgentBadge            `json:"badges" gorm:"column:badges;type:jsonb;serializer:json"`
	TimelineLocalization TimelineLocalization    `json:"timelineLocalization" gorm:"embedded"`
	Timelines            []AgentTimelineProgress `json:"timelines" gorm:"column:timelines;type:jsonb;serializer:json"`
}

// Agent is a platform user, keyed by Bungie account id.
type Agent struct {
	ID          string        `json:"id" gorm:"primaryKey;type:uuid"`
	BungieID    string        `json:"bungieId" gorm:"uniqueIndex;not null"`
	DisplayName string        `json:"displayName"`
	Protocol    AgentProtocol `json:"protocol" gorm:"embedded;embeddedPrefix:protocol_"`

	Timestamps
}

// TimelineProgress returns the progress record for a timeline business id.
func (a *Agent) TimelineProgress(timelineID string) *AgentTimelineProgress {
	for i := range a.Protocol.Timelines {
		if a.Protocol.Timelines[i].TimelineID == timelineID {
			return &a.Protocol.Timelines[i]
		}
	}
	return nil
}

// StartTimeline creates a progress record unless one exists, and returns
// the agent's record either way.
func (a *Agent) StartTimeline(t *Timeline, now time.Time) (*AgentTimelineProgress, bool) {
	if p := a.TimelineProgress(t.TimelineID); p != nil {
		return p, false
	}
	a.Protocol.Timelines = append(a.Protocol.Timelines, AgentTimelineProgress{
		TimelineID:       t.TimelineID,
		TimelineRecordID: t.ID,
		FragmentsFound:   []string{},
		KeysFound:        []string{},
		EntriesResolved:  []string{},
		StartedAt:        now,
	})
	return &a.Protocol.Timelines[len(a.Protocol.Timelines)-1], true
}

func (a *Agent) HasRole(role string) bool {
	return slices.Contains(a.Protocol.Roles, role)
}

// GrantRole adds role once; reports whether it was added.
func (a *Agent) GrantRole(role string) bool {
	if role == "" || a.HasRole(role) {
		return false
	}
	a.Protocol.Roles = append(a.Protocol.Roles, role)
	return true
}

func (a *Agent) HasBadge(badgeID string) bool {
	for _, b := range a.Protocol.Badges {
		if b.BadgeID == badgeID {
			return true
		}
	}
	return false
}

// GrantBadge adds badgeID once; reports whether it was added.
func (a *Agent) GrantBadge(badgeID string, now time.Time) bool {
	if badgeID == "" || a.HasBadge(badgeID) {
		return false
	}
	a.Protocol.Badges = append(a.Protocol.Badges, AgentBadge{BadgeID: badgeID, ObtainedAt: now})
	return true
}

// Localize overwrites the breadcrumb. Empty ids clear the field.
func (a *Agent) Localize(timelineID, entryID string, now time.Time) {
	a.Protocol.TimelineLocalization = TimelineLocalization{
		CurrentTimelineID:      optional(timelineID),
		CurrentTimelineEntryID: optional(entryID),
		LastSyncedAt:           &now,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
