// Package scoring implements relevance scoring of jobs against user-defined
// pattern rules.
//
// Scoring is deterministic: the same job and the same rule set (same order,
// same content) always produce the same result. There is no hidden state.
package scoring

import (
	"regexp"

	"jobby/recommend-service/internal/model"
)

// Rule is a scoring pattern whose expression compiled successfully.
type Rule struct {
	Pattern model.ScoringPattern
	re      *regexp.Regexp
}

// Compile prepares enabled patterns for evaluation. Patterns that are
// disabled are dropped; patterns whose expression does not compile are
// returned separately so the caller can surface them instead of the rule
// degrading silently. Input order is preserved.
func Compile(patterns []model.ScoringPattern) (rules []Rule, invalid []model.ScoringPattern) {
	for _, p := range patterns {
		if !p.Enabled {
			continue
		}
		re, err := regexp.Compile("(?i)" + p.Pattern)
		if err != nil {
			invalid = append(invalid, p)
			continue
		}
		rules = append(rules, Rule{Pattern: p, re: re})
	}
	return rules, invalid
}

// Score evaluates one job against a rule set.
//
// Each rule is matched case-insensitively against the job's combined
// title + description. A rule with no matches contributes nothing. A
// disqualifying rule with at least one match latches the disqualified flag
// and contributes no weight — later rules cannot reverse it. Otherwise the
// rule contributes weight × 1 (count-once) or weight × match count, added or
// subtracted per its effect. The final score is floored at zero; the
// disqualified flag is reported independently of the numeric score.
func Score(job model.Job, rules []Rule) (score float64, disqualified bool) {
	text := job.Title + " " + job.Description

	for _, r := range rules {
		matches := r.re.FindAllStringIndex(text, -1)
		if len(matches) == 0 {
			continue
		}

		if r.Pattern.Disqualify {
			disqualified = true
			continue
		}

		contribution := r.Pattern.Weight
		if !r.Pattern.CountOnce {
			contribution = r.Pattern.Weight * float64(len(matches))
		}

		if r.Pattern.Effect == "-" {
			score -= contribution
		} else {
			score += contribution
		}
	}

	if score < 0 {
		score = 0
	}
	return score, disqualified
}

// ScorePatterns compiles and evaluates in one step, skipping malformed
// patterns. Convenience for callers that do not need to report invalid rules.
func ScorePatterns(job model.Job, patterns []model.ScoringPattern) (float64, bool) {
	rules, _ := Compile(patterns)
	return Score(job, rules)
}
