// Package fragments splits a timeline's secret code into per-character
// fragments and rebuilds the partially revealed code an agent has earned.
package fragments

import (
	"math"
	"sort"
	"strings"
)

// Sections are assigned positionally to the groups of a target code.
var Sections = []string{"AAA", "BBB", "CCC", "DDD"}

const (
	FormatThreeGroups = "AAA-BBB-CCC"
	FormatFourGroups  = "AAA-BBB-CCC-DDD"

	hidden = "?"
)

// Pattern maps a section name to its fragment keys (A1, A2, A3) and the
// character found at that position.
type Pattern map[string]map[string]string

// Progress is the revealed state of a pattern for one set of found fragments.
type Progress struct {
	Format      string  `json:"format"`
	Pattern     Pattern `json:"pattern"`
	DisplayCode string  `json:"displayCode"`
	Collected   int     `json:"collected"`
	Total       int     `json:"total"`
	Progress    int     `json:"progress"`
	CanClaim    bool    `json:"canClaim"`
}

// GeneratePattern builds the fragment pattern for a target code. Groups that
// are not exactly three characters, and groups past the fourth, are skipped.
func GeneratePattern(targetCode []string) Pattern {
	pattern := Pattern{}
	for i, group := range targetCode {
		if i >= len(Sections) {
			break
		}
		chars := []rune(group)
		if len(chars) != 3 {
			continue
		}
		letter := Sections[i][:1]
		pattern[Sections[i]] = map[string]string{
			letter + "1": string(chars[0]),
			letter + "2": string(chars[1]),
			letter + "3": string(chars[2]),
		}
	}
	return pattern
}

// TotalFragments counts every fragment key across the sections of a pattern.
func TotalFragments(pattern Pattern) int {
	total := 0
	for _, keys := range pattern {
		total += len(keys)
	}
	return total
}

// Percent is round(collected/total*100), or 0 when there is nothing to collect.
func Percent(collected, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(collected) / float64(total) * 100))
}

// Reveal replaces every fragment the agent has not found with "?" and
// renders the display code, e.g. "A-?-? | ?-?-? | ?-?-?".
func Reveal(format string, pattern Pattern, fragmentsFound []string) Progress {
	found := make(map[string]struct{}, len(fragmentsFound))
	for _, key := range fragmentsFound {
		found[key] = struct{}{}
	}

	revealed := Pattern{}
	var display []string
	collected, total := 0, 0

	for _, section := range orderedSections(pattern) {
		keys := pattern[section]
		names := make([]string, 0, len(keys))
		for key := range keys {
			names = append(names, key)
		}
		sort.Strings(names)

		revealed[section] = make(map[string]string, len(keys))
		chars := make([]string, 0, len(names))
		for _, key := range names {
			total++
			char := hidden
			if _, ok := found[key]; ok {
				char = keys[key]
				collected++
			}
			revealed[section][key] = char
			chars = append(chars, char)
		}
		display = append(display, strings.Join(chars, "-"))
	}

	return Progress{
		Format:      format,
		Pattern:     revealed,
		DisplayCode: strings.Join(display, " | "),
		Collected:   collected,
		Total:       total,
		Progress:    Percent(collected, total),
		CanClaim:    total > 0 && collected == total,
	}
}

// orderedSections yields the known sections first in their fixed order,
// then any unexpected section names alphabetically.
func orderedSections(pattern Pattern) []string {
	out := make([]string, 0, len(pattern))
	known := make(map[string]bool, len(Sections))
	for _, s := range Sections {
		known[s] = true
		if _, ok := pattern[s]; ok {
			out = append(out, s)
		}
	}
	var extra []string
	for s := range pattern {
		if !known[s] {
			extra = append(extra, s)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}
