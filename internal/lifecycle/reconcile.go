// Package lifecycle maintains the active and past conference lists across
// runs: it expires conferences whose deadline has elapsed, merges newly
// classified arrivals, sorts by deadline and bounds the past history.
package lifecycle

import (
	"log/slog"
	"slices"
	"time"
	"unicode/utf8"

	"ConferenceScanner/internal/dedup"
	"ConferenceScanner/internal/domain"
)

// DefaultRetentionWindow is how many expired conferences stay in the past list.
const DefaultRetentionWindow = 10

// Merge records a title conflict resolved in the active list.
type Merge struct {
	Kept    domain.Conference
	Dropped domain.Conference
}

// Result is the outcome of one reconciliation.
type Result struct {
	Active []domain.Conference
	Past   []domain.Conference

	// Expired were active before this run and moved to past.
	Expired []domain.Conference
	// ArrivedExpired are new records whose deadline had already passed.
	ArrivedExpired []domain.Conference
	// Merged lists active title conflicts and how they were resolved.
	Merged []Merge
	// Evicted fell out of the past list, either as duplicates or beyond the
	// retention window.
	Evicted []domain.Conference
}

// Manager reconciles persisted lists with new arrivals.
type Manager struct {
	retention int
	logger    *slog.Logger
}

// NewManager builds a manager; a non-positive retention uses DefaultRetentionWindow.
func NewManager(retention int, logger *slog.Logger) *Manager {
	if retention <= 0 {
		retention = DefaultRetentionWindow
	}
	return &Manager{retention: retention, logger: logger}
}

// Reconcile merges the persisted active/past split with newly classified
// records as of today.
//
// Active conferences whose deadline is strictly before today move to past;
// records without a concrete deadline always stay active. The combined active
// list is deduplicated by title prefix, sorted ascending by deadline with
// undated records last, and the past list is sorted most recent first,
// deduplicated by exact normalized title and truncated to the retention
// window.
func (m *Manager) Reconcile(active, past, incoming []domain.Conference, today time.Time) Result {
	var result Result

	stillActive := make([]domain.Conference, 0, len(active)+len(incoming))
	for _, c := range active {
		if c.Deadline.ExpiredOn(today) {
			m.debug("deadline passed", "title", c.Title)
			result.Expired = append(result.Expired, c)
			continue
		}
		stillActive = append(stillActive, c)
	}

	for _, c := range incoming {
		if c.Deadline.ExpiredOn(today) {
			result.ArrivedExpired = append(result.ArrivedExpired, c)
			continue
		}
		stillActive = append(stillActive, c)
	}

	merged, conflicts := mergeByTitlePrefix(stillActive)
	result.Merged = conflicts
	result.Active = sortActive(merged)

	pool := make([]domain.Conference, 0, len(past)+len(result.Expired)+len(result.ArrivedExpired))
	pool = append(pool, past...)
	pool = append(pool, result.Expired...)
	pool = append(pool, result.ArrivedExpired...)
	result.Past, result.Evicted = m.finalizePast(pool)

	if m.logger != nil {
		m.logger.Info("reconciled conference lists",
			"active", len(result.Active),
			"past", len(result.Past),
			"expired", len(result.Expired),
			"arrived_expired", len(result.ArrivedExpired),
			"merged", len(result.Merged),
			"evicted", len(result.Evicted))
	}
	return result
}

// mergeByTitlePrefix walks records in order and folds each one into the first
// accepted record sharing a title prefix. Only the prefix rule applies here;
// token similarity is left to the earlier cross-source pass.
func mergeByTitlePrefix(records []domain.Conference) ([]domain.Conference, []Merge) {
	accepted := make([]domain.Conference, 0, len(records))
	keys := make([]string, 0, len(records))
	var merges []Merge

	for _, c := range records {
		norm := dedup.NormalizeTitle(c.Title)
		match := -1
		for j, existing := range keys {
			if dedup.PrefixOverlap(norm, existing) {
				match = j
				break
			}
		}
		if match < 0 {
			accepted = append(accepted, c)
			keys = append(keys, norm)
			continue
		}

		current := accepted[match]
		if prefersIncoming(c, current) {
			accepted[match] = c
			keys[match] = norm
			merges = append(merges, Merge{Kept: c, Dropped: current})
		} else {
			merges = append(merges, Merge{Kept: current, Dropped: c})
		}
	}
	return accepted, merges
}

// prefersIncoming decides a title conflict: a concrete deadline beats none,
// then the longer description wins, otherwise the existing record stays.
func prefersIncoming(incoming, existing domain.Conference) bool {
	if incoming.Deadline.HasDate() && !existing.Deadline.HasDate() {
		return true
	}
	return utf8.RuneCountInString(incoming.Description) > utf8.RuneCountInString(existing.Description)
}

func sortActive(records []domain.Conference) []domain.Conference {
	dated, undated := splitByDeadline(records)
	slices.SortStableFunc(dated, func(a, b domain.Conference) int {
		return a.Deadline.Compare(b.Deadline)
	})
	return append(dated, undated...)
}

func (m *Manager) finalizePast(pool []domain.Conference) ([]domain.Conference, []domain.Conference) {
	dated, undated := splitByDeadline(pool)
	slices.SortStableFunc(dated, func(a, b domain.Conference) int {
		return b.Deadline.Compare(a.Deadline)
	})

	var (
		kept    []domain.Conference
		evicted []domain.Conference
		seen    = make(map[string]struct{}, len(pool))
	)
	for _, c := range append(dated, undated...) {
		norm := dedup.NormalizeTitle(c.Title)
		if _, dup := seen[norm]; dup {
			evicted = append(evicted, c)
			continue
		}
		seen[norm] = struct{}{}
		kept = append(kept, c)
	}

	if len(kept) > m.retention {
		evicted = append(evicted, kept[m.retention:]...)
		kept = kept[:m.retention]
	}
	return kept, evicted
}

func splitByDeadline(records []domain.Conference) (dated, undated []domain.Conference) {
	dated = make([]domain.Conference, 0, len(records))
	for _, c := range records {
		if c.Deadline.HasDate() {
			dated = append(dated, c)
		} else {
			undated = append(undated, c)
		}
	}
	return dated, undated
}

func (m *Manager) debug(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Debug(msg, args...)
	}
}
