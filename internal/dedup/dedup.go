package dedup

import (
	"log/slog"
	"unicode/utf8"

	"ConferenceScanner/internal/domain"
)

const (
	ReasonSameEvent    = "same dates and location"
	ReasonSimilarTitle = "similar title"
)

// Duplicate records a listing collapsed into another one.
type Duplicate struct {
	Dropped domain.Conference
	Kept    domain.Conference
	Reason  string
}

// Result is the outcome of one dedup pass.
type Result struct {
	Unique       []domain.Conference
	AlreadyKnown []domain.Conference
	Duplicates   []Duplicate
}

// Engine deduplicates freshly scraped listings against each other and
// against titles already persisted.
type Engine struct {
	cycleYear int
	logger    *slog.Logger
}

// NewEngine builds an engine; cycleYear fills in event dates that omit a year.
func NewEngine(cycleYear int, logger *slog.Logger) *Engine {
	return &Engine{cycleYear: cycleYear, logger: logger}
}

type groupKey struct {
	date     string
	location string
}

// Deduplicate drops records whose normalized title is in knownTitles, then
// collapses the remainder in a single greedy pass. Records sharing a start
// date and venue keep only the one with the longest page text; records
// without both keys are accepted only if no already accepted title matches.
// Group representatives come first in first-seen order, followed by accepted
// ungrouped records.
func (e *Engine) Deduplicate(records []domain.Conference, knownTitles map[string]struct{}) Result {
	var result Result

	fresh := make([]domain.Conference, 0, len(records))
	for _, rec := range records {
		if _, ok := knownTitles[NormalizeTitle(rec.Title)]; ok {
			e.debug("already persisted", "title", rec.Title)
			result.AlreadyKnown = append(result.AlreadyKnown, rec)
			continue
		}
		fresh = append(fresh, rec)
	}

	var (
		order     []groupKey
		groups    = map[groupKey][]domain.Conference{}
		ungrouped []domain.Conference
	)
	for _, rec := range fresh {
		date, okDate := NormalizeDate(rec.ConferenceDates, e.cycleYear)
		loc, okLoc := NormalizeLocation(rec.Location)
		if !okDate || !okLoc {
			ungrouped = append(ungrouped, rec)
			continue
		}
		key := groupKey{date: date, location: loc}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], rec)
	}

	accepted := make([]domain.Conference, 0, len(fresh))
	keys := make([]TitleKey, 0, len(fresh))

	for _, gk := range order {
		members := groups[gk]
		best := pickRichest(members)
		for i, m := range members {
			if i == best {
				continue
			}
			result.Duplicates = append(result.Duplicates, Duplicate{
				Dropped: m,
				Kept:    members[best],
				Reason:  ReasonSameEvent,
			})
		}
		accepted = append(accepted, members[best])
		keys = append(keys, NewTitleKey(members[best].Title))
	}

	for _, rec := range ungrouped {
		key := NewTitleKey(rec.Title)
		match := -1
		for i := range keys {
			if key.Matches(keys[i]) {
				match = i
				break
			}
		}
		if match >= 0 {
			result.Duplicates = append(result.Duplicates, Duplicate{
				Dropped: rec,
				Kept:    accepted[match],
				Reason:  ReasonSimilarTitle,
			})
			continue
		}
		accepted = append(accepted, rec)
		keys = append(keys, key)
	}

	result.Unique = accepted

	if e.logger != nil {
		e.logger.Info("dedup finished",
			"raw", len(records),
			"unique", len(result.Unique),
			"duplicates", len(result.Duplicates),
			"already_known", len(result.AlreadyKnown))
	}
	return result
}

// pickRichest returns the index of the member with the longest page text;
// ties go to the earliest member.
func pickRichest(members []domain.Conference) int {
	best, bestLen := 0, utf8.RuneCountInString(members[0].PageText)
	for i := 1; i < len(members); i++ {
		if n := utf8.RuneCountInString(members[i].PageText); n > bestLen {
			best, bestLen = i, n
		}
	}
	return best
}

func (e *Engine) debug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}
