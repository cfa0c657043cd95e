package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ConferenceScanner/internal/dedup"
	"ConferenceScanner/internal/domain"
	"ConferenceScanner/internal/ports"
)

type fakeStore struct {
	snap    ports.Snapshot
	loadErr error
	saveErr error

	saved       bool
	savedActive []domain.Conference
	savedPast   []domain.Conference
}

func (s *fakeStore) Load(context.Context) (ports.Snapshot, error) {
	if s.loadErr != nil {
		return ports.Snapshot{}, s.loadErr
	}
	return s.snap, nil
}

func (s *fakeStore) Save(_ context.Context, active, past []domain.Conference) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = true
	s.savedActive = active
	s.savedPast = past
	return nil
}

type fakeSource struct {
	confs    []domain.Conference
	err      error
	gotKnown map[string]struct{}
}

func (s *fakeSource) Fetch(_ context.Context, known map[string]struct{}) ([]domain.Conference, error) {
	s.gotKnown = known
	return s.confs, s.err
}

type fakeExtractor struct {
	byTitle map[string]domain.Extraction
	err     error
	calls   int
	onCall  func()
}

func (e *fakeExtractor) Extract(_ context.Context, title, _ string) (domain.Extraction, error) {
	e.calls++
	if e.onCall != nil {
		e.onCall()
	}
	if e.err != nil {
		return domain.Extraction{}, e.err
	}
	return e.byTitle[title], nil
}

type fakeRelevance struct {
	excluded map[string]string
	err      error
	calls    int
}

func (r *fakeRelevance) CheckRelevance(_ context.Context, title, _ string, _ domain.TopicFilter) (domain.Relevance, error) {
	r.calls++
	if r.err != nil {
		return domain.Relevance{}, r.err
	}
	if reason, ok := r.excluded[title]; ok {
		return domain.Relevance{Relevant: false, Reason: reason}, nil
	}
	return domain.Relevance{Relevant: true, Reason: "matches"}, nil
}

type fakeNotifier struct {
	digests []string
	err     error
}

func (n *fakeNotifier) PublishDigest(_ context.Context, digest string) error {
	if n.err != nil {
		return n.err
	}
	n.digests = append(n.digests, digest)
	return nil
}

func date(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func emptySnapshot() ports.Snapshot {
	return ports.Snapshot{KnownTitles: map[string]struct{}{}, KnownURLs: map[string]struct{}{}}
}

func titlesOf(confs []domain.Conference) string {
	out := make([]string, len(confs))
	for i, c := range confs {
		out[i] = c.Title
	}
	return strings.Join(out, "|")
}

func reasonsOf(excluded []Exclusion) map[string]string {
	out := make(map[string]string, len(excluded))
	for _, e := range excluded {
		out[e.Title] = e.Reason
	}
	return out
}

func TestPipelineRun(t *testing.T) {
	t.Parallel()

	store := &fakeStore{snap: ports.Snapshot{
		Active: []domain.Conference{
			{Title: "Econ Conf 2026", Deadline: domain.DeadlineOn(date("2026-01-01")), URL: "https://example.org/econ-old"},
		},
		KnownTitles: map[string]struct{}{
			dedup.NormalizeTitle("Econ Conf 2026"):      {},
			dedup.NormalizeTitle("Known Labor Meeting"): {},
		},
		KnownURLs: map[string]struct{}{"https://example.org/econ-old": {}},
	}}
	source := &fakeSource{confs: []domain.Conference{
		{Title: "Econ Conference 2026", PageText: "call for papers", URL: "https://example.org/econ", Source: "inomics"},
		{Title: "Workshop Without Text", URL: "https://example.org/no-text"},
		{Title: "Closed Call Symposium", PageText: "closed", URL: "https://example.org/closed"},
		{Title: "Asset Pricing Forum", PageText: "finance", URL: "https://example.org/finance"},
		{Title: "Known Labor Meeting", PageText: "known", URL: "https://example.org/known"},
	}}
	extractor := &fakeExtractor{byTitle: map[string]domain.Extraction{
		"Econ Conference 2026": {
			SubmissionDeadline: "July 1, 2026",
			DeadlineDate:       "2026-07-01",
			Description:        "longer text",
			Location:           "Bonn, Germany",
		},
		"Closed Call Symposium": {SubmissionDeadline: "Closed"},
	}}
	relevance := &fakeRelevance{excluded: map[string]string{"Asset Pricing Forum": "finance focus"}}
	notifier := &fakeNotifier{}

	p := NewPipeline(PipelineDeps{
		Source:    source,
		Store:     store,
		Extractor: extractor,
		Relevance: relevance,
		Notifier:  notifier,
		CycleYear: 2026,
	})

	report, err := p.Run(context.Background(), date("2026-06-01"), RunOptions{
		Filter: domain.TopicFilter{Include: "labor economics"},
		Debug:  true,
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if !store.saved {
		t.Fatal("store was not saved")
	}
	if got := titlesOf(store.savedActive); got != "Econ Conference 2026" {
		t.Errorf("saved active = %s", got)
	}
	if got := titlesOf(store.savedPast); got != "Econ Conf 2026" {
		t.Errorf("saved past = %s", got)
	}
	if _, ok := source.gotKnown["https://example.org/econ-old"]; !ok {
		t.Error("known urls were not passed to the source")
	}

	reasons := reasonsOf(report.Excluded)
	want := map[string]string{
		"Workshop Without Text": ReasonNoPageText,
		"Closed Call Symposium": ReasonDeadlineClosed,
		"Asset Pricing Forum":   ReasonNotRelevant + ": finance focus",
	}
	for title, reason := range want {
		if reasons[title] != reason {
			t.Errorf("exclusion of %q = %q, want %q", title, reasons[title], reason)
		}
	}
	if len(report.Dedup.AlreadyKnown) != 1 {
		t.Errorf("expected 1 already known record, got %d", len(report.Dedup.AlreadyKnown))
	}

	saved := store.savedActive[0]
	if d, ok := saved.Deadline.Date(); !ok || !d.Equal(date("2026-07-01")) {
		t.Errorf("unexpected deadline: %+v", saved.Deadline)
	}
	if saved.Source != "inomics" || saved.Location != "Bonn, Germany" || saved.PageText != "" {
		t.Errorf("unexpected saved record: %+v", saved)
	}

	if report.RunID == "" {
		t.Error("missing run id")
	}
	if report.Scraped != 5 || report.LoadedActive != 1 {
		t.Errorf("unexpected counts: scraped=%d loaded=%d", report.Scraped, report.LoadedActive)
	}
	if !report.Notified || len(notifier.digests) != 1 || !strings.Contains(notifier.digests[0], "Econ Conference 2026") {
		t.Errorf("unexpected digests: %v", notifier.digests)
	}
	if relevance.calls != 3 {
		t.Errorf("expected relevance for 3 records with text, got %d", relevance.calls)
	}
}

func TestPipelineRunDegradesAdapterFailures(t *testing.T) {
	t.Parallel()

	store := &fakeStore{snap: emptySnapshot()}
	source := &fakeSource{confs: []domain.Conference{
		{Title: "Spatial Economics Workshop", PageText: "text", ConferenceDates: "May 4-5, 2026", Location: "Vienna, Austria"},
	}}
	p := NewPipeline(PipelineDeps{
		Source:    source,
		Store:     store,
		Extractor: &fakeExtractor{err: errors.New("quota exceeded")},
		Relevance: &fakeRelevance{err: errors.New("timeout")},
		Notifier:  &fakeNotifier{err: errors.New("chat not found")},
	})

	report, err := p.Run(context.Background(), date("2026-06-01"), RunOptions{Filter: domain.TopicFilter{Exclude: "finance"}})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if len(store.savedActive) != 1 {
		t.Fatalf("expected the record to be kept, got %s", titlesOf(store.savedActive))
	}
	got := store.savedActive[0]
	if got.ConferenceDates != "May 4-5, 2026" || got.Location != "Vienna, Austria" {
		t.Errorf("scraped dates and location not used as fallback: %+v", got)
	}
	if got.Deadline.Kind() != domain.DeadlineAbsent {
		t.Errorf("expected no deadline, got %+v", got.Deadline)
	}
	if report.Notified {
		t.Error("failed notification reported as delivered")
	}
}

func TestPipelineRunSourceFailureKeepsStoredLists(t *testing.T) {
	t.Parallel()

	store := &fakeStore{snap: ports.Snapshot{
		Active: []domain.Conference{
			{Title: "Stored Conference On Trade", Deadline: domain.DeadlineOn(date("2026-09-01"))},
			{Title: "Stored Conference Expired", Deadline: domain.DeadlineOn(date("2026-02-01"))},
		},
	}}
	p := NewPipeline(PipelineDeps{Source: &fakeSource{err: errors.New("registry broken")}, Store: store})

	if _, err := p.Run(context.Background(), date("2026-06-01"), RunOptions{}); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if got := titlesOf(store.savedActive); got != "Stored Conference On Trade" {
		t.Errorf("saved active = %s", got)
	}
	if got := titlesOf(store.savedPast); got != "Stored Conference Expired" {
		t.Errorf("saved past = %s", got)
	}
}

func TestPipelineRunDeadlineHandling(t *testing.T) {
	t.Parallel()

	store := &fakeStore{snap: emptySnapshot()}
	source := &fakeSource{confs: []domain.Conference{
		{Title: "Placeholder Deadline Meeting", PageText: "text"},
		{Title: "Already Passed Deadline Forum", PageText: "text"},
	}}
	extractor := &fakeExtractor{byTitle: map[string]domain.Extraction{
		"Placeholder Deadline Meeting":  {SubmissionDeadline: "TBA", DeadlineDate: "n/a"},
		"Already Passed Deadline Forum": {SubmissionDeadline: "March 1, 2026", DeadlineDate: "2026-03-01"},
	}}
	relevance := &fakeRelevance{}
	p := NewPipeline(PipelineDeps{Source: source, Store: store, Extractor: extractor, Relevance: relevance})

	report, err := p.Run(context.Background(), date("2026-06-01"), RunOptions{})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if relevance.calls != 0 {
		t.Errorf("relevance checked without a filter: %d calls", relevance.calls)
	}
	if got := titlesOf(store.savedActive); got != "Placeholder Deadline Meeting" {
		t.Fatalf("saved active = %s", got)
	}
	placeholder := store.savedActive[0]
	if placeholder.SubmissionDeadline != "" || placeholder.Deadline.Kind() != domain.DeadlineAbsent {
		t.Errorf("placeholders not blanked: %+v", placeholder)
	}
	if got := titlesOf(store.savedPast); got != "Already Passed Deadline Forum" {
		t.Errorf("saved past = %s", got)
	}
	if reasonsOf(report.Excluded)["Already Passed Deadline Forum"] != ReasonDeadlinePassed {
		t.Errorf("missing deadline passed exclusion: %+v", report.Excluded)
	}
	if len(report.NewlyListed) != 1 {
		t.Errorf("expected 1 newly listed conference, got %d", len(report.NewlyListed))
	}
}

func TestPipelineRunStoreErrors(t *testing.T) {
	t.Parallel()

	loadFail := &fakeStore{loadErr: errors.New("corrupt workbook")}
	if _, err := NewPipeline(PipelineDeps{Store: loadFail}).Run(context.Background(), date("2026-06-01"), RunOptions{}); err == nil {
		t.Fatal("expected load error")
	}
	if loadFail.saved {
		t.Fatal("saved after failed load")
	}

	saveFail := &fakeStore{snap: emptySnapshot(), saveErr: errors.New("disk full")}
	if _, err := NewPipeline(PipelineDeps{Store: saveFail}).Run(context.Background(), date("2026-06-01"), RunOptions{}); err == nil {
		t.Fatal("expected save error")
	}

	if _, err := NewPipeline(PipelineDeps{}).Run(context.Background(), date("2026-06-01"), RunOptions{}); err == nil {
		t.Fatal("expected error without a store")
	}
}

func TestPipelineRunCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := &fakeStore{snap: emptySnapshot()}
	source := &fakeSource{confs: []domain.Conference{
		{Title: "First Conference With Text", PageText: "text"},
		{Title: "Second Conference With Text", PageText: "text"},
	}}
	extractor := &fakeExtractor{onCall: cancel}
	p := NewPipeline(PipelineDeps{Source: source, Store: store, Extractor: extractor})

	if _, err := p.Run(ctx, date("2026-06-01"), RunOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if store.saved {
		t.Fatal("cancelled run must not save")
	}
	if extractor.calls != 1 {
		t.Fatalf("expected classification to stop after cancellation, got %d calls", extractor.calls)
	}
}

func TestBuildDigestMessage(t *testing.T) {
	t.Parallel()

	if BuildDigestMessage(nil) != "" {
		t.Fatal("expected empty digest")
	}

	msg := BuildDigestMessage([]domain.Conference{
		{
			Title:           "Trade Workshop",
			Deadline:        domain.DeadlineOn(date("2026-03-30")),
			ConferenceDates: "September 4-5, 2026",
			URL:             "https://example.org/trade",
		},
		{Title: "Undated Seminar"},
	})

	for _, want := range []string{
		"New conferences (2):",
		"- Trade Workshop",
		"Deadline: March 30, 2026",
		"Dates: September 4-5, 2026",
		"https://example.org/trade",
		"- Undated Seminar",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("digest missing %q:\n%s", want, msg)
		}
	}
	if strings.Contains(msg, "Location:") {
		t.Errorf("empty location rendered:\n%s", msg)
	}
}
