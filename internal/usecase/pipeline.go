package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"ConferenceScanner/internal/dedup"
	"ConferenceScanner/internal/domain"
	"ConferenceScanner/internal/lifecycle"
	"ConferenceScanner/internal/ports"
)

// Exclusion reasons reported for records that never reach the active list.
const (
	ReasonNoPageText      = "no page text"
	ReasonNotRelevant     = "not relevant"
	ReasonDeadlineClosed  = "deadline expired/closed"
	ReasonDeadlinePassed  = "deadline passed"
	relevanceErrorVerdict = "relevance check failed, defaulting to include"
)

var (
	closedDeadlineExpr = regexp.MustCompile(`(?i)expired|passed|closed`)
	placeholderExpr    = regexp.MustCompile(`(?i)tba|to be announced|n/a`)
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source    ports.ConferenceSource
	Store     ports.ConferenceStore
	Extractor ports.Extractor
	Relevance ports.RelevanceChecker
	Notifier  ports.Notifier
	// CycleYear is assumed for dates without a year; 0 means the year of the run.
	CycleYear       int
	RetentionWindow int
	Logger          *slog.Logger
}

// RunOptions carries the per-run switches.
type RunOptions struct {
	Filter domain.TopicFilter
	// Debug logs every relevance verdict with its reasoning.
	Debug bool
}

// Exclusion records a conference left out of the active list and why.
type Exclusion struct {
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// Report summarizes one run.
type Report struct {
	RunID        string
	Today        time.Time
	LoadedActive int
	LoadedPast   int
	Scraped      int
	Dedup        dedup.Result
	// Classified are the newly built records handed to reconciliation.
	Classified []domain.Conference
	Excluded   []Exclusion
	Lifecycle  lifecycle.Result
	// NewlyListed are classified records that ended up in the active list.
	NewlyListed []domain.Conference
	Notified    bool
}

// Pipeline implements the conference aggregation workflow.
type Pipeline struct {
	source    ports.ConferenceSource
	store     ports.ConferenceStore
	extractor ports.Extractor
	relevance ports.RelevanceChecker
	notifier  ports.Notifier
	cycleYear int
	retention int
	logger    *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{
		source:    deps.Source,
		store:     deps.Store,
		extractor: deps.Extractor,
		relevance: deps.Relevance,
		notifier:  deps.Notifier,
		cycleYear: deps.CycleYear,
		retention: deps.RetentionWindow,
		logger:    logger,
	}
}

// Run loads the stored lists, scrapes, deduplicates, classifies and
// reconciles as of today, then saves and notifies. Only store failures and
// cancellation abort a run; adapter failures degrade to defaults.
func (p *Pipeline) Run(ctx context.Context, today time.Time, opts RunOptions) (Report, error) {
	report := Report{RunID: uuid.NewString(), Today: domain.DateOf(today)}
	log := p.logger.With("run_id", report.RunID)

	if p.store == nil {
		return report, fmt.Errorf("conference store is not configured")
	}

	snap, err := p.store.Load(ctx)
	if err != nil {
		return report, fmt.Errorf("load conferences: %w", err)
	}
	report.LoadedActive, report.LoadedPast = len(snap.Active), len(snap.Past)
	log.Info("run started",
		"today", report.Today.Format(time.DateOnly),
		"stored_active", report.LoadedActive,
		"stored_past", report.LoadedPast,
		"include", opts.Filter.Include,
		"exclude", opts.Filter.Exclude)

	var scraped []domain.Conference
	if p.source != nil {
		scraped, err = p.source.Fetch(ctx, snap.KnownURLs)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, ctxErr
			}
			log.Warn("scraping failed, continuing with stored conferences", "error", err)
			scraped = nil
		}
	}
	report.Scraped = len(scraped)

	year := p.cycleYear
	if year <= 0 {
		year = report.Today.Year()
	}
	engine := dedup.NewEngine(year, log.With("component", "dedup"))
	report.Dedup = engine.Deduplicate(scraped, snap.KnownTitles)

	for i, c := range report.Dedup.Unique {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		log.Debug("classifying", "index", i+1, "total", len(report.Dedup.Unique), "title", c.Title)

		conf, reason, ok := p.classify(ctx, log, c, opts)
		if !ok {
			report.Excluded = append(report.Excluded, Exclusion{Title: c.Title, Reason: reason})
			continue
		}
		report.Classified = append(report.Classified, conf)
	}

	manager := lifecycle.NewManager(p.retention, log.With("component", "lifecycle"))
	report.Lifecycle = manager.Reconcile(snap.Active, snap.Past, report.Classified, report.Today)
	for _, c := range report.Lifecycle.ArrivedExpired {
		report.Excluded = append(report.Excluded, Exclusion{Title: c.Title, Reason: ReasonDeadlinePassed})
	}
	report.NewlyListed = newlyListed(report.Classified, report.Lifecycle.Active)

	if err := p.store.Save(ctx, report.Lifecycle.Active, report.Lifecycle.Past); err != nil {
		return report, fmt.Errorf("save conferences: %w", err)
	}

	if p.notifier != nil && len(report.NewlyListed) > 0 {
		if err := p.notifier.PublishDigest(ctx, BuildDigestMessage(report.NewlyListed)); err != nil {
			log.Warn("digest not delivered", "error", err)
		} else {
			report.Notified = true
		}
	}

	log.Info("run finished",
		"scraped", report.Scraped,
		"unique", len(report.Dedup.Unique),
		"classified", len(report.Classified),
		"excluded", len(report.Excluded),
		"active", len(report.Lifecycle.Active),
		"past", len(report.Lifecycle.Past))
	return report, nil
}

// classify turns one unique scraped record into a stored conference. It
// reports an exclusion reason when the record must be left out.
func (p *Pipeline) classify(ctx context.Context, log *slog.Logger, c domain.Conference, opts RunOptions) (domain.Conference, string, bool) {
	if strings.TrimSpace(c.PageText) == "" {
		log.Debug("no page text, skipping", "title", c.Title)
		return domain.Conference{}, ReasonNoPageText, false
	}

	if opts.Filter.Active() && p.relevance != nil {
		verdict, err := p.relevance.CheckRelevance(ctx, c.Title, c.PageText, opts.Filter)
		if err != nil {
			log.Warn("relevance check failed", "title", c.Title, "error", err)
			verdict = domain.Relevance{Relevant: true, Reason: relevanceErrorVerdict}
		}
		if opts.Debug {
			decision := "include"
			if !verdict.Relevant {
				decision = "exclude"
			}
			log.Info("relevance decision",
				"title", c.Title,
				"decision", decision,
				"reason", verdict.Reason,
				"detected_topics", verdict.DetectedTopics)
		}
		if !verdict.Relevant {
			return domain.Conference{}, ReasonNotRelevant + ": " + verdict.Reason, false
		}
	}

	var extracted domain.Extraction
	if p.extractor != nil {
		var err error
		extracted, err = p.extractor.Extract(ctx, c.Title, c.PageText)
		if err != nil {
			log.Warn("extraction failed", "title", c.Title, "error", err)
			extracted = domain.Extraction{}
		}
	}

	if closedDeadlineExpr.MatchString(extracted.SubmissionDeadline) || closedDeadlineExpr.MatchString(extracted.DeadlineDate) {
		return domain.Conference{}, ReasonDeadlineClosed, false
	}

	submission := extracted.SubmissionDeadline
	if placeholderExpr.MatchString(submission) {
		submission = ""
	}
	deadlineDate := extracted.DeadlineDate
	if placeholderExpr.MatchString(deadlineDate) {
		deadlineDate = ""
	}

	deadline := domain.ParseDeadline(deadlineDate)
	if !deadline.HasDate() {
		deadline = domain.NoDeadline()
	}

	return domain.Conference{
		Title:              c.Title,
		URL:                c.URL,
		Source:             c.Source,
		SubmissionDeadline: submission,
		Deadline:           deadline,
		ConferenceDates:    firstNonEmpty(extracted.ConferenceDates, c.ConferenceDates),
		Location:           firstNonEmpty(extracted.Location, c.Location),
		KeynoteSpeakers:    extracted.KeynoteSpeakers,
		Description:        extracted.Description,
		Topics:             extracted.Topics,
	}, "", true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// newlyListed keeps classified records that survived into the active list.
func newlyListed(classified, active []domain.Conference) []domain.Conference {
	type key struct{ title, url string }
	inActive := make(map[key]struct{}, len(active))
	for _, c := range active {
		inActive[key{c.Title, c.URL}] = struct{}{}
	}

	var out []domain.Conference
	for _, c := range classified {
		if _, ok := inActive[key{c.Title, c.URL}]; ok {
			out = append(out, c)
		}
	}
	return out
}

// BuildDigestMessage renders newly listed conferences as plain text.
func BuildDigestMessage(confs []domain.Conference) string {
	if len(confs) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "New conferences (%d):\n", len(confs))
	for _, c := range confs {
		fmt.Fprintf(&b, "\n- %s\n", c.Title)
		if d := domain.FormatDeadline(c); d != "" {
			fmt.Fprintf(&b, "  Deadline: %s\n", d)
		}
		if c.ConferenceDates != "" {
			fmt.Fprintf(&b, "  Dates: %s\n", c.ConferenceDates)
		}
		if c.Location != "" {
			fmt.Fprintf(&b, "  Location: %s\n", c.Location)
		}
		if c.URL != "" {
			fmt.Fprintf(&b, "  %s\n", c.URL)
		}
	}
	return b.String()
}
