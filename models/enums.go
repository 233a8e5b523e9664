package models

import (
	"fmt"
	"strings"
)

// TimelineStatus is the single source of truth for a timeline's lifecycle.
type TimelineStatus string

const (
	TimelineStatusDraft      TimelineStatus = "DRAFT"
	TimelineStatusOpen       TimelineStatus = "OPEN"
	TimelineStatusProgress   TimelineStatus = "PROGRESS"
	TimelineStatusArchived   TimelineStatus = "ARCHIVED"
	TimelineStatusClosed     TimelineStatus = "CLOSED"
	TimelineStatusStabilized TimelineStatus = "STABILIZED"
	TimelineStatusDeleted    TimelineStatus = "DELETED"
)

var timelineStatuses = []TimelineStatus{
	TimelineStatusDraft,
	TimelineStatusOpen,
	TimelineStatusProgress,
	TimelineStatusArchived,
	TimelineStatusClosed,
	TimelineStatusStabilized,
	TimelineStatusDeleted,
}

// StateFlags is the one-hot boolean view of a TimelineStatus. It is derived
// on read and never stored.
type StateFlags struct {
	IsDraft      bool `json:"isDraft"`
	IsOpen       bool `json:"isOpen"`
	IsProgress   bool `json:"isProgress"`
	IsArchived   bool `json:"isArchived"`
	IsClosed     bool `json:"isClosed"`
	IsStabilized bool `json:"isStabilized"`
	IsDeleted    bool `json:"isDeleted"`
}

func (s TimelineStatus) Flags() StateFlags {
	return StateFlags{
		IsDraft:      s == TimelineStatusDraft,
		IsOpen:       s == TimelineStatusOpen,
		IsProgress:   s == TimelineStatusProgress,
		IsArchived:   s == TimelineStatusArchived,
		IsClosed:     s == TimelineStatusClosed,
		IsStabilized: s == TimelineStatusStabilized,
		IsDeleted:    s == TimelineStatusDeleted,
	}
}

// CanTransitionTo guards writes of a new status. STABILIZED is terminal.
func (s TimelineStatus) CanTransitionTo(next TimelineStatus) bool {
	if s == next {
		return true
	}
	return s != TimelineStatusStabilized
}

func ParseTimelineStatus(raw string) (TimelineStatus, error) {
	v := TimelineStatus(strings.ToUpper(strings.TrimSpace(raw)))
	for _, s := range timelineStatuses {
		if v == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("invalid timeline status %q", raw)
}

type EntryType string

const (
	EntryTypeEnigma   EntryType = "ENIGMA"
	EntryTypeFirewall EntryType = "FIREWALL"
	EntryTypeDataNode EntryType = "DATA_NODE"
)

func ParseEntryType(raw string) (EntryType, error) {
	switch v := EntryType(strings.ToUpper(strings.TrimSpace(raw))); v {
	case EntryTypeEnigma, EntryTypeFirewall, EntryTypeDataNode:
		return v, nil
	}
	return "", fmt.Errorf("invalid entry type %q", raw)
}

type EntryStatus string

const (
	EntryStatusActive EntryStatus = "ACTIVE"
	EntryStatusLocked EntryStatus = "LOCKED"
	EntryStatusSolved EntryStatus = "SOLVED"
)

func ParseEntryStatus(raw string) (EntryStatus, error) {
	switch v := EntryStatus(strings.ToUpper(strings.TrimSpace(raw))); v {
	case EntryStatusActive, EntryStatusLocked, EntryStatusSolved:
		return v, nil
	case "":
		return EntryStatusActive, nil
	}
	return "", fmt.Errorf("invalid entry status %q", raw)
}

type WinnerType string

const (
	WinnerTypeAgent WinnerType = "AGENT"
	WinnerTypeTeam  WinnerType = "TEAM"
)

type Rarity string

const (
	RarityCommon    Rarity = "COMMON"
	RarityUncommon  Rarity = "UNCOMMON"
	RarityRare      Rarity = "RARE"
	RarityLegendary Rarity = "LEGENDARY"
	RarityExotic    Rarity = "EXOTIC"
)

func ParseRarity(raw string) (Rarity, error) {
	switch v := Rarity(strings.ToUpper(strings.TrimSpace(raw))); v {
	case RarityCommon, RarityUncommon, RarityRare, RarityLegendary, RarityExotic:
		return v, nil
	case "":
		return RarityCommon, nil
	}
	return "", fmt.Errorf("invalid rarity %q", raw)
}
