package services

import (
	"fmt"
	"strings"

	"protocol-backend/fragments"
	"protocol-backend/models"
)

// FailureKind classifies business-rule failures. Infrastructure errors are
// plain errors and never carry a kind.
type FailureKind string

const (
	FailureInvalid   FailureKind = "invalid"
	FailureNotFound  FailureKind = "not_found"
	FailureConflict  FailureKind = "conflict"
	FailureForbidden FailureKind = "forbidden"
	FailureRejected  FailureKind = "rejected"
)

// Failure is a business-rule failure returned as an error value so callers
// can tell it apart from infrastructure errors with errors.As.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
	Details []string    `json:"details,omitempty"`
}

func (f *Failure) Error() string {
	if len(f.Details) == 0 {
		return f.Message
	}
	return fmt.Sprintf("%s: %s", f.Message, strings.Join(f.Details, ", "))
}

func fail(kind FailureKind, msg string, details ...string) *Failure {
	return &Failure{Kind: kind, Message: msg, Details: details}
}

const (
	MsgInvalidCode     = "Invalid code or unknown command"
	MsgEntryNotFound   = "Entry not found"
	MsgIncorrect       = "Incorrect solution"
	MsgNotAuthorized   = "Access to timeline not authorized"
	MsgAlreadySolved   = "Already solved"
	MsgAgentNotFound   = "Agent not found"
	MsgTimelineMissing = "Timeline not available"
	MsgInputRequired   = "Input is required"

	// MsgEmblemsNotFound is reported with the missing emblem ids as details.
	MsgEmblemsNotFound = "EmblemsNotFound"
)

// InteractionType names the flow that produced a successful result.
type InteractionType string

const (
	InteractionTimelineAccess InteractionType = "TIMELINE_ACCESS"
	InteractionEntryAccess    InteractionType = "ENTRY_ACCESS"
	InteractionEntrySolved    InteractionType = "ENTRY_SOLVED"
)

// EntryView is what an agent sees of an entry. It never includes the
// solution or access code.
type EntryView struct {
	EntryID          string           `json:"entryId"`
	Name             string           `json:"name"`
	Description      string           `json:"description,omitempty"`
	Type             models.EntryType `json:"type"`
	Content          string           `json:"content,omitempty"`
	RequiresSolution bool             `json:"requiresSolution"`
}

func viewEntry(e *models.Entry) *EntryView {
	return &EntryView{
		EntryID:          e.EntryID,
		Name:             e.Name,
		Description:      e.Description,
		Type:             e.Type,
		Content:          e.Content,
		RequiresSolution: e.RequiresSolution(),
	}
}

// InteractionResult is the response to one free-text interaction.
type InteractionResult struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Kind    FailureKind     `json:"kind,omitempty"`
	Type    InteractionType `json:"type,omitempty"`

	Timeline    *models.TimelineSummary       `json:"timeline,omitempty"`
	Entry       *EntryView                    `json:"entry,omitempty"`
	Progress    *models.AgentTimelineProgress `json:"progress,omitempty"`
	Reveal      *fragments.Progress           `json:"reveal,omitempty"`
	Completion  *CompletionResult             `json:"completion,omitempty"`
	FirstAccess bool                          `json:"firstAccess,omitempty"`

	NewFragments []string `json:"newFragments,omitempty"`
	NewKeys      []string `json:"newKeys,omitempty"`
	UnlockedLore []string `json:"unlockedLore,omitempty"`
}

func failed(kind FailureKind, msg string) *InteractionResult {
	return &InteractionResult{Success: false, Kind: kind, Message: msg}
}
