// Package filter implements the keyword title matching engine.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"shopwatch/internal/model"
)

// Match checks whether a listing title passes the given set of rules.
// If no rules are provided, the title always passes.
// Include rules use OR logic (at least one must match).
// Exclude rules use AND logic (none must match).
func Match(title string, rules []model.Rule) bool {
	if len(rules) == 0 {
		return true
	}

	text := strings.ToLower(title)
	hasIncludes := false
	anyIncludeMatched := false

	for _, r := range rules {
		switch r.Kind {
		case model.RuleInclude, model.RuleIncludeRe:
			hasIncludes = true
			if matchesRule(text, r) {
				anyIncludeMatched = true
			}
		case model.RuleExclude, model.RuleExcludeRe:
			if matchesRule(text, r) {
				return false
			}
		}
	}

	return !hasIncludes || anyIncludeMatched
}

func matchesRule(text string, r model.Rule) bool {
	switch r.Kind {
	case model.RuleInclude, model.RuleExclude:
		return strings.Contains(text, strings.ToLower(r.Value))
	case model.RuleIncludeRe, model.RuleExcludeRe:
		re, err := regexp.Compile("(?i)" + r.Value)
		if err != nil {
			return false
		}
		return re.MatchString(text)
	}
	return false
}

// Items returns the items whose titles pass the rules, preserving order.
func Items(items []model.Item, rules []model.Rule) []model.Item {
	if len(rules) == 0 {
		return items
	}
	var kept []model.Item
	for _, it := range items {
		if Match(it.Title, rules) {
			kept = append(kept, it)
		}
	}
	return kept
}

// ValidateRegex checks whether a pattern is a valid regular expression.
func ValidateRegex(pattern string) error {
	_, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return fmt.Errorf("invalid regex: %w", err)
	}
	return nil
}
