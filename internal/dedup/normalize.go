// Package dedup collapses noisy scraped conference listings into one record per
// conference.
//
// Matching is best-effort: records sharing an event start date and a venue are
// grouped, and everything else is compared by normalized title using prefix
// overlap and token Jaccard similarity.
//
// Jaccard tokens are the lowercased alphanumeric runs of the raw title, not of
// the normalized key: the key has no word boundaries left and would form a
// single token.
package dedup

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	nonAlnumExpr = regexp.MustCompile(`[^a-z0-9]`)
	isoDateExpr  = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

	// "May 15-16, 2026", "May 15, 2026", "May 15"; never "May 2026"
	monthFirstExpr = regexp.MustCompile(`(?i)(\w+)\s+(\d{1,2})\b(?:\s*[-–]\s*\d{1,2})?,?\s*(\d{4})?`)
	// "15 May 2026", "15-16 May 2026", "15 May"
	dayFirstExpr = regexp.MustCompile(`(?i)\b(\d{1,2})(?:\s*[-–]\s*\d{1,2})?\s+(\w+)\s*(\d{4})?`)
)

var monthNumbers = map[string]int{
	"january": 1, "february": 2, "march": 3, "april": 4,
	"may": 5, "june": 6, "july": 7, "august": 8,
	"september": 9, "october": 10, "november": 11, "december": 12,
	"jan": 1, "feb": 2, "mar": 3, "apr": 4,
	"jun": 6, "jul": 7, "aug": 8, "sep": 9, "oct": 10,
	"nov": 11, "dec": 12,
}

// NormalizeTitle lowercases a title and drops everything except ASCII letters
// and digits. The result is the identity key of a conference.
func NormalizeTitle(title string) string {
	return nonAlnumExpr.ReplaceAllString(strings.ToLower(title), "")
}

// NormalizeDate returns a YYYY-MM-DD key for the first day mentioned in a
// free-text event date. Dates without a year fall in cycleYear.
func NormalizeDate(dates string, cycleYear int) (string, bool) {
	dates = strings.TrimSpace(dates)
	if dates == "" {
		return "", false
	}

	if iso := isoDateExpr.FindString(dates); iso != "" {
		return iso, true
	}

	start, key := -1, ""
	for _, expr := range []*regexp.Regexp{monthFirstExpr, dayFirstExpr} {
		pos, k, ok := firstMonthMatch(expr, dates, cycleYear)
		if ok && (start < 0 || pos < start) {
			start, key = pos, k
		}
	}
	return key, start >= 0
}

// firstMonthMatch scans the matches of expr and returns the first one whose
// month token is a known month name.
func firstMonthMatch(expr *regexp.Regexp, s string, cycleYear int) (int, string, bool) {
	for _, idx := range expr.FindAllStringSubmatchIndex(s, -1) {
		group := func(n int) string {
			if idx[2*n] < 0 {
				return ""
			}
			return s[idx[2*n]:idx[2*n+1]]
		}

		monthName, day, year := group(1), group(2), group(3)
		if isDigits(monthName) {
			day, monthName = monthName, day
		}

		month, ok := monthNumbers[strings.ToLower(monthName)]
		if !ok {
			continue
		}
		dayNum, err := strconv.Atoi(day)
		if err != nil {
			continue
		}
		if year == "" {
			year = strconv.Itoa(cycleYear)
		}
		return idx[0], fmt.Sprintf("%s-%02d-%02d", year, month, dayNum), true
	}
	return 0, "", false
}

// NormalizeLocation reduces a venue to a "city,country" style key. Strings of
// two characters or fewer carry no signal and yield no key.
func NormalizeLocation(location string) (string, bool) {
	loc := strings.ToLower(strings.TrimSpace(location))
	if loc == "" {
		return "", false
	}

	parts := strings.Split(loc, ",")
	if len(parts) >= 2 {
		tail := parts[len(parts)-2:]
		for i := range tail {
			tail[i] = strings.TrimSpace(tail[i])
		}
		return strings.TrimSpace(strings.Join(tail, ",")), true
	}

	if utf8.RuneCountInString(loc) <= 2 {
		return "", false
	}
	return loc, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
