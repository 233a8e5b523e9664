package models

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Entry is a puzzle node. Entries are owned by their timeline and nest
// through SubEntries; a node is never shared between parents.
type Entry struct {
	EntryID        string      `json:"entryId" yaml:"entryId"`
	Name           string      `json:"name" yaml:"name"`
	Description    string      `json:"description,omitempty" yaml:"description"`
	Type           EntryType   `json:"type" yaml:"type"`
	Content        string      `json:"content,omitempty" yaml:"content"`
	AccessCode     string      `json:"accessCode" yaml:"accessCode"`
	Solution       string      `json:"solution,omitempty" yaml:"solution"`
	LinkedFragment []string    `json:"linkedFragment,omitempty" yaml:"linkedFragment"`
	LinkedLore     []string    `json:"linkedLore,omitempty" yaml:"linkedLore"`
	GrantKeys      []string    `json:"grantKeys,omitempty" yaml:"grantKeys"`
	RequiredKeys   []string    `json:"requiredKeys,omitempty" yaml:"requiredKeys"`
	Status         EntryStatus `json:"status" yaml:"status"`
	SubEntries     Entries     `json:"subEntries,omitempty" yaml:"subEntries"`
}

// RequiresSolution is true when the entry is gated by a non-empty solution.
func (e *Entry) RequiresSolution() bool {
	return strings.TrimSpace(e.Solution) != ""
}

// CheckSolution compares trimmed, uppercased input against the solution.
// Entries without a solution accept any input.
func (e *Entry) CheckSolution(input string) bool {
	if !e.RequiresSolution() {
		return true
	}
	return NormalizeSolution(input) == NormalizeSolution(e.Solution)
}

// Entries is an ordered forest of entry nodes.
type Entries []Entry

// FindByAccessCode returns the first entry, in pre-order, whose access code
// matches code ignoring case and surrounding whitespace.
func (es Entries) FindByAccessCode(code string) *Entry {
	needle := NormalizeAccessCode(code)
	if needle == "" {
		return nil
	}
	return es.find(func(e *Entry) bool {
		return NormalizeAccessCode(e.AccessCode) == needle
	})
}

// FindByID returns the first entry, in pre-order, with the exact entryId.
func (es Entries) FindByID(entryID string) *Entry {
	if entryID == "" {
		return nil
	}
	return es.find(func(e *Entry) bool { return e.EntryID == entryID })
}

func (es Entries) find(match func(*Entry) bool) *Entry {
	for i := range es {
		if match(&es[i]) {
			return &es[i]
		}
		if found := es[i].SubEntries.find(match); found != nil {
			return found
		}
	}
	return nil
}

// Walk visits every entry in pre-order with its depth. Returning false stops
// the walk.
func (es Entries) Walk(fn func(e *Entry, depth int) bool) {
	es.walk(fn, 0)
}

func (es Entries) walk(fn func(*Entry, int) bool, depth int) bool {
	for i := range es {
		if !fn(&es[i], depth) {
			return false
		}
		if !es[i].SubEntries.walk(fn, depth+1) {
			return false
		}
	}
	return true
}

// Count is the number of nodes in the forest.
func (es Entries) Count() int {
	n := 0
	es.Walk(func(*Entry, int) bool { n++; return true })
	return n
}

// Validate checks entry ids are present and unique and that every type and
// status parses. Missing statuses default to ACTIVE.
func (es Entries) Validate() error {
	seen := map[string]bool{}
	var err error
	es.Walk(func(e *Entry, _ int) bool {
		if strings.TrimSpace(e.EntryID) == "" {
			err = fmt.Errorf("entry %q has no entryId", e.Name)
			return false
		}
		if seen[e.EntryID] {
			err = fmt.Errorf("duplicate entryId %q", e.EntryID)
			return false
		}
		seen[e.EntryID] = true

		t, perr := ParseEntryType(string(e.Type))
		if perr != nil {
			err = fmt.Errorf("entry %q: %w", e.EntryID, perr)
			return false
		}
		e.Type = t

		s, perr := ParseEntryStatus(string(e.Status))
		if perr != nil {
			err = fmt.Errorf("entry %q: %w", e.EntryID, perr)
			return false
		}
		e.Status = s
		return true
	})
	return err
}

// NormalizeAccessCode trims and case-folds an entry access code. Casers
// carry state, so one is built per call.
func NormalizeAccessCode(code string) string {
	return cases.Fold().String(strings.TrimSpace(code))
}

// NormalizeSolution trims and uppercases a solution attempt.
func NormalizeSolution(s string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(s))
}
