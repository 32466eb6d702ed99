package matcher

import (
	"strconv"
	"strings"
)

// ParseBudgetCeiling turns a client's free-text budget into the numeric
// ceiling eligibility is checked against. Rules, in order:
//
//   - currency symbols (₦, NGN, N), commas and whitespace are stripped
//   - a range split on "-", "–" or "to" contributes both bounds; the
//     ceiling is the larger parsed value
//   - a trailing "k" multiplies by 1_000, "m" by 1_000_000
//   - anything that still fails to parse contributes nothing
//
// An entirely unparsable budget yields 0, which excludes every worker with
// a price floor. That is intentional: bad intake data surfaces as
// no_worker_available with a readable reason instead of a wrong match.
func ParseBudgetCeiling(budget string) int64 {
	cleaned := strings.ToLower(strings.TrimSpace(budget))
	if cleaned == "" {
		return 0
	}

	for _, sym := range []string{"₦", "ngn", "naira"} {
		cleaned = strings.ReplaceAll(cleaned, sym, "")
	}
	cleaned = strings.ReplaceAll(cleaned, ",", "")

	// Normalize range separators to a single form before splitting.
	cleaned = strings.ReplaceAll(cleaned, "–", "-")
	cleaned = strings.ReplaceAll(cleaned, " to ", "-")

	var ceiling int64
	for _, part := range strings.Split(cleaned, "-") {
		if v, ok := parseAmount(strings.TrimSpace(part)); ok && v > ceiling {
			ceiling = v
		}
	}
	return ceiling
}

func parseAmount(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}

	multiplier := int64(1)
	switch {
	case strings.HasSuffix(s, "k"):
		multiplier = 1_000
		s = strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "m"):
		multiplier = 1_000_000
		s = strings.TrimSuffix(s, "m")
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return int64(f * float64(multiplier)), true
}
