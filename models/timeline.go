package models

import (
	"encoding/json"
	"time"

	"protocol-backend/fragments"
)

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

// TimelineCode is derived once from the linked emblem and never rewritten.
type TimelineCode struct {
	Format     string            `json:"format" yaml:"format"`
	Pattern    fragments.Pattern `json:"pattern" yaml:"pattern"`
	TargetCode []string          `json:"targetCode" yaml:"targetCode"`
}

// SecurityProtocol gates access to a timeline. Only AccessCode is read by the
// interaction engine; the brute-force fields are stored for admin tooling.
type SecurityProtocol struct {
	AccessCode       string `json:"accessCode" gorm:"index" yaml:"accessCode"`
	MaxAttempts      int    `json:"maxAttempts" gorm:"default:0" yaml:"maxAttempts"`
	LockDuration     int    `json:"lockDuration" gorm:"default:0" yaml:"lockDuration"` // minutes
	AutoLockOnBreach bool   `json:"autoLockOnBreach" gorm:"default:false" yaml:"autoLockOnBreach"`
}

// TimelineRewards are granted to the first agent to complete the code.
// Lore, Index, Fragment and IRLObject are informational flags only.
type TimelineRewards struct {
	DiscordRoleID string   `json:"discordRoleId,omitempty" yaml:"discordRoleId"`
	Badge         string   `json:"badge,omitempty" yaml:"badge"`
	Emblem        []string `json:"emblem,omitempty" yaml:"emblem"`
	Lore          bool     `json:"lore" yaml:"lore"`
	Index         bool     `json:"index" yaml:"index"`
	Fragment      bool     `json:"fragment" yaml:"fragment"`
	IRLObject     bool     `json:"irlObject" yaml:"irlObject"`
}

// StabilizedAt records the winner. Written exactly once.
type StabilizedAt struct {
	WinnerType    WinnerType `json:"winnerType"`
	WinnerAgentID string     `json:"winnerAgentId,omitempty"`
	WinnerTeamID  string     `json:"winnerTeamId,omitempty"`
	CompletedAt   time.Time  `json:"completedAt"`
}

// Participant mirrors an agent's progress for leaderboards and admin views.
type Participant struct {
	AgentID            string     `json:"agentId"`
	BungieID           string     `json:"bungieId,omitempty"`
	DisplayName        string     `json:"displayName,omitempty"`
	JoinedAt           time.Time  `json:"joinedAt"`
	FragmentsCollected int        `json:"fragmentsCollected"`
	KeysCollected      int        `json:"keysCollected"`
	EntriesResolved    int        `json:"entriesResolved"`
	Completed          bool       `json:"completed"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
	LastActivityAt     time.Time  `json:"lastActivityAt"`
}

// Timeline is the puzzle container. Document-shaped parts are jsonb columns.
type Timeline struct {
	ID               string           `json:"id" gorm:"primaryKey;type:uuid"`
	TimelineID       string           `json:"timelineId" gorm:"uniqueIndex;not null"`
	Name             string           `json:"name" gorm:"not null"`
	Description      string           `json:"description" gorm:"type:text"`
	Tier             int              `json:"tier" gorm:"default:1"`
	Status           TimelineStatus   `json:"status" gorm:"type:varchar(16);not null;default:'DRAFT';index"`
	Code             TimelineCode     `json:"code" gorm:"type:jsonb;serializer:json"`
	Entries          Entries          `json:"entries" gorm:"type:jsonb;serializer:json"`
	Participants     []Participant    `json:"participants" gorm:"type:jsonb;serializer:json"`
	Rewards          TimelineRewards  `json:"rewards" gorm:"type:jsonb;serializer:json"`
	StabilizedAt     *StabilizedAt    `json:"stabilizedAt,omitempty" gorm:"type:jsonb;serializer:json"`
	SecurityProtocol SecurityProtocol `json:"securityProtocol" gorm:"embedded;embeddedPrefix:security_"`
	EmblemIDs        []string         `json:"emblemIds" gorm:"type:jsonb;serializer:json"`
	CoverImageURL    string           `json:"coverImageUrl,omitempty" gorm:"type:text"`
	OpensAt          *time.Time       `json:"opensAt,omitempty" gorm:"index"`

	Timestamps
}

// StateFlags is computed from Status.
func (t *Timeline) StateFlags() StateFlags {
	return t.Status.Flags()
}

func (t Timeline) MarshalJSON() ([]byte, error) {
	type timeline Timeline
	return json.Marshal(struct {
		timeline
		StateFlags StateFlags `json:"stateFlags"`
	}{timeline(t), t.Status.Flags()})
}

// Participant returns the roster record for agentID, or nil.
func (t *Timeline) Participant(agentID string) *Participant {
	for i := range t.Participants {
		if t.Participants[i].AgentID == agentID {
			return &t.Participants[i]
		}
	}
	return nil
}

// AddParticipant appends a roster record unless the agent is already listed.
func (t *Timeline) AddParticipant(agent *Agent, now time.Time) bool {
	if t.Participant(agent.ID) != nil {
		return false
	}
	t.Participants = append(t.Participants, Participant{
		AgentID:        agent.ID,
		BungieID:       agent.BungieID,
		DisplayName:    agent.DisplayName,
		JoinedAt:       now,
		LastActivityAt: now,
	})
	return true
}

// MirrorProgress copies an agent's counters onto their roster record.
// Returns false when the agent is not on the roster.
func (t *Timeline) MirrorProgress(agentID string, p *AgentTimelineProgress, now time.Time) bool {
	part := t.Participant(agentID)
	if part == nil {
		return false
	}
	part.FragmentsCollected = p.FragmentsCollected
	part.KeysCollected = len(p.KeysFound)
	part.EntriesResolved = len(p.EntriesResolved)
	part.Completed = p.Completed
	part.CompletedAt = p.CompletedAt
	part.LastActivityAt = now
	return true
}

// TimelineSummary is the player-facing projection; it never carries
// access codes or solutions.
type TimelineSummary struct {
	TimelineID  string `json:"timelineId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Tier        int    `json:"tier"`
	Format      string `json:"format"`
}

func (t *Timeline) Summary() TimelineSummary {
	return TimelineSummary{
		TimelineID:  t.TimelineID,
		Name:        t.Name,
		Description: t.Description,
		Tier:        t.Tier,
		Format:      t.Code.Format,
	}
}
