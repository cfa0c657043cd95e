package ports

import (
	"context"
	"time"

	"ConferenceScanner/internal/domain"
)

// ConferenceSource pulls conference listings from upstream sites. URLs in
// knownURLs are already persisted and need no detail fetch.
type ConferenceSource interface {
	Fetch(ctx context.Context, knownURLs map[string]struct{}) ([]domain.Conference, error)
}

// Extractor turns a scraped page into structured conference fields.
type Extractor interface {
	Extract(ctx context.Context, title, pageText string) (domain.Extraction, error)
}

// RelevanceChecker decides whether a conference matches the topic filter.
type RelevanceChecker interface {
	CheckRelevance(ctx context.Context, title, pageText string, filter domain.TopicFilter) (domain.Relevance, error)
}

// Snapshot is the persisted state loaded at the start of a run.
type Snapshot struct {
	Active []domain.Conference
	Past   []domain.Conference
	// KnownTitles holds normalized titles of every stored record.
	KnownTitles map[string]struct{}
	// KnownURLs holds every stored URL, including rows without a title.
	KnownURLs map[string]struct{}
}

// ConferenceStore persists the active and past lists between runs.
type ConferenceStore interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, active, past []domain.Conference) error
}

// Notifier streams selected digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
