package recurrence

import (
	"fmt"
	"time"
)

// Pattern is a shift recurrence frequency.
type Pattern string

const (
	Daily    Pattern = "daily"
	Weekly   Pattern = "weekly"
	Biweekly Pattern = "biweekly"
	Monthly  Pattern = "monthly"
)

var patterns = map[string]Pattern{
	"daily":    Daily,
	"weekly":   Weekly,
	"biweekly": Biweekly,
	"monthly":  Monthly,
}

// Parse validates a recurrence pattern string.
func Parse(s string) (Pattern, error) {
	p, ok := patterns[s]
	if !ok {
		return "", fmt.Errorf("unknown recurrence pattern: %q", s)
	}
	return p, nil
}

// step advances one occurrence from t.
func (p Pattern) step(t time.Time) time.Time {
	switch p {
	case Daily:
		return t.AddDate(0, 0, 1)
	case Weekly:
		return t.AddDate(0, 0, 7)
	case Biweekly:
		return t.AddDate(0, 0, 14)
	case Monthly:
		return t.AddDate(0, 1, 0)
	}
	return t
}

// Expand lists occurrence dates of a pattern anchored at anchor, within
// [from, to). The anchor itself is an occurrence. Returns at most limit
// dates (0 = no cap).
func Expand(p Pattern, anchor, from, to time.Time, limit int) []time.Time {
	var out []time.Time
	for t := anchor; t.Before(to); t = p.step(t) {
		if t.Before(from) {
			continue
		}
		out = append(out, t)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Describe returns a human-readable description of the pattern.
func (p Pattern) Describe() string {
	switch p {
	case Daily:
		return "Repeats daily"
	case Weekly:
		return "Repeats weekly"
	case Biweekly:
		return "Repeats every 2 weeks"
	case Monthly:
		return "Repeats monthly"
	}
	return ""
}
