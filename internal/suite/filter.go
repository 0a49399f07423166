package suite

import (
	"fmt"
	"regexp"
	"strings"
)

// Pattern represents a compiled filter condition supporting substring and regex matching.
type Pattern struct {
	raw   string
	regex *regexp.Regexp
	lower string
}

// Compile transforms raw pattern strings into Pattern values. Patterns
// wrapped in slashes compile as regular expressions; anything else matches
// as a case-insensitive substring.
func Compile(patterns []string) ([]Pattern, error) {
	result := make([]Pattern, 0, len(patterns))
	for _, raw := range patterns {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.HasPrefix(raw, "/") && strings.HasSuffix(raw, "/") && len(raw) >= 2 {
			expr := raw[1 : len(raw)-1]
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("compile regexp %q: %w", raw, err)
			}
			result = append(result, Pattern{raw: raw, regex: re})
			continue
		}
		result = append(result, Pattern{raw: raw, lower: strings.ToLower(raw)})
	}
	return result, nil
}

// Match reports whether the pattern matches the supplied string.
func (p Pattern) Match(s string) bool {
	if s == "" {
		return false
	}
	if p.regex != nil {
		return p.regex.MatchString(s)
	}
	return strings.Contains(strings.ToLower(s), p.lower)
}

// Filter keeps cases whose name matches any name pattern and whose tags
// match any tag pattern. Empty pattern sets impose no constraint.
func Filter(cases []Case, namePatterns, tagPatterns []Pattern) []Case {
	if len(namePatterns) == 0 && len(tagPatterns) == 0 {
		return cases
	}
	result := make([]Case, 0, len(cases))
	for _, c := range cases {
		if len(namePatterns) > 0 && !matchAny(namePatterns, c.Name) {
			continue
		}
		if len(tagPatterns) > 0 && !matchAnyTag(tagPatterns, c.Tags) {
			continue
		}
		result = append(result, c)
	}
	return result
}

func matchAny(patterns []Pattern, s string) bool {
	for _, p := range patterns {
		if p.Match(s) {
			return true
		}
	}
	return false
}

func matchAnyTag(patterns []Pattern, tags []string) bool {
	for _, tag := range tags {
		if matchAny(patterns, tag) {
			return true
		}
	}
	return false
}
