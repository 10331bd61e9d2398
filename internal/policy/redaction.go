// Package policy scrubs user text before it leaves the process.
package policy

import "regexp"

type rule struct {
	marker  string
	pattern *regexp.Regexp
	// match, when set, vetoes candidates the pattern over-matches.
	match func(string) bool
}

var datePattern = regexp.MustCompile(`\d{4}-\d{1,2}-\d{1,2}|\d{1,2}[/.]\d{1,2}[/.]\d{2,4}`)

// phoneLike keeps candidates with at least ten digits that are not dates.
func phoneLike(s string) bool {
	if datePattern.MatchString(s) {
		return false
	}
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 10
}

// Order matters: card and SSN run before phone so long digit runs keep the narrower marker.
var rules = []rule{
	{marker: "[REDACTED_EMAIL]", pattern: regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)},
	{marker: "[REDACTED_CARD]", pattern: regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`), match: func(s string) bool { return !datePattern.MatchString(s) }},
	{marker: "[REDACTED_SSN]", pattern: regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{marker: "[REDACTED_PHONE]", pattern: regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`), match: phoneLike},
	{marker: "[REDACTED_URL_TOKEN]", pattern: regexp.MustCompile(`(?i)\b(?:token|api[_-]?key|password)=[^\s&]+`)},
}

// RedactPII masks emails, card numbers, SSNs, phone numbers and credential query params.
func RedactPII(input string) (string, bool) {
	out := input
	changed := false
	for _, r := range rules {
		next := r.pattern.ReplaceAllStringFunc(out, func(m string) string {
			if r.match != nil && !r.match(m) {
				return m
			}
			return r.marker
		})
		if next != out {
			changed = true
			out = next
		}
	}
	return out, changed
}
