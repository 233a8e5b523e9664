package fragments

import (
	"strings"
	"unicode/utf8"
)

// SplitCode turns an emblem code into target code groups. Dashed codes are
// split on the dashes; dash-free codes are chunked into groups of three.
func SplitCode(code string) []string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil
	}

	if strings.Contains(code, "-") {
		var groups []string
		for _, part := range strings.Split(code, "-") {
			if part = strings.TrimSpace(part); part != "" {
				groups = append(groups, part)
			}
		}
		return groups
	}

	var groups []string
	runes := []rune(code)
	for i := 0; i < len(runes); i += 3 {
		end := i + 3
		if end > len(runes) {
			end = len(runes)
		}
		groups = append(groups, string(runes[i:end]))
	}
	return groups
}

// FormatFor names the code layout for a set of groups.
func FormatFor(groups []string) string {
	if len(groups) >= 4 {
		return FormatFourGroups
	}
	return FormatThreeGroups
}

// ValidCode reports whether groups form a 3 or 4 group code of three
// characters each.
func ValidCode(groups []string) bool {
	if len(groups) != 3 && len(groups) != 4 {
		return false
	}
	for _, g := range groups {
		if utf8.RuneCountInString(g) != 3 {
			return false
		}
	}
	return true
}
