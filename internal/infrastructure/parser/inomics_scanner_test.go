package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"ConferenceScanner/internal/scanner"
)

const inomicsListingPage = `
<html><body>
  <a href="/conference/labor-econ-workshop-101">
    <h2>Labor Econ Workshop</h2>
    <span class="informations">Between <b>15 May</b> and <b>16 May</b> in <span class="location bold">Barcelona, Spain</span></span>
  </a>
  <a href="/conference/labor-econ-workshop-101">more</a>
  <a href="/conference/known-event-202">
    <h2>Known Event</h2>
  </a>
  <a href="/jobs/assistant-professor-3">
    <h2>Assistant Professor</h2>
  </a>
</body></html>`

const inomicsDetailPage = `
<html><body>
  <div class="post-details">
    <div><span class="detail-title">Deadline</span><h4>30 March 2026</h4></div>
    <div><span class="detail-attendance">Attendance</span><h4>In person</h4></div>
    <div><span class="other">Ignored</span></div>
  </div>
  <div class="col post-body wide">
    <p>The workshop brings together labor economists.</p>
    <p>Keynote: Jane Doe</p>
    <script>var tracking = 1;</script>
  </div>
</body></html>`

type hitCounter struct {
	mu   sync.Mutex
	hits map[string]int
}

func (h *hitCounter) add(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.hits == nil {
		h.hits = map[string]int{}
	}
	h.hits[key]++
}

func (h *hitCounter) get(key string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hits[key]
}

func newInomicsServer(t *testing.T, pages map[string]string, hits *hitCounter) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if page := r.URL.Query().Get("page"); page != "" {
			key += "?page=" + page
		}
		hits.add(key)
		body, ok := pages[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestInomicsScannerScan(t *testing.T) {
	t.Parallel()

	hits := &hitCounter{}
	server := newInomicsServer(t, map[string]string{
		"/top/conferences?page=0":              inomicsListingPage,
		"/top/conferences?page=1":              `<html><body><p>No results</p></body></html>`,
		"/conference/labor-econ-workshop-101": inomicsDetailPage,
		"/conference/known-event-202":         inomicsDetailPage,
	}, hits)

	sc := NewInomicsScanner(FetchConfig{Client: server.Client()}, nil)
	req := scanner.Request{
		SiteName:  "inomics",
		BaseURL:   server.URL + "/top/conferences",
		KnownURLs: map[string]struct{}{server.URL + "/conference/known-event-202": {}},
	}

	confs, err := sc.Scan(context.Background(), req)
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}

	if len(confs) != 1 {
		t.Fatalf("expected 1 conference, got %d", len(confs))
	}
	got := confs[0]
	if got.Title != "Labor Econ Workshop" {
		t.Fatalf("unexpected title: %q", got.Title)
	}
	if got.ConferenceDates != "15 May - 16 May" {
		t.Fatalf("unexpected dates: %q", got.ConferenceDates)
	}
	if got.Location != "Barcelona, Spain" {
		t.Fatalf("unexpected location: %q", got.Location)
	}
	if got.URL != server.URL+"/conference/labor-econ-workshop-101" {
		t.Fatalf("unexpected url: %q", got.URL)
	}
	if got.Source != "inomics" {
		t.Fatalf("unexpected source: %q", got.Source)
	}

	wantText := "Deadline: 30 March 2026\nAttendance: In person\nThe workshop brings together labor economists.\nKeynote: Jane Doe"
	if got.PageText != wantText {
		t.Fatalf("unexpected page text:\n%s", got.PageText)
	}

	if n := hits.get("/conference/known-event-202"); n != 0 {
		t.Fatalf("known detail page fetched %d times", n)
	}
	if n := hits.get("/top/conferences?page=1"); n != 1 {
		t.Fatalf("expected second listing page to be fetched once, got %d", n)
	}
}

func TestInomicsScannerStopsOnKnownPage(t *testing.T) {
	t.Parallel()

	hits := &hitCounter{}
	listing := `<a href="/conference/known-event-202"><h2>Known Event</h2></a>`
	server := newInomicsServer(t, map[string]string{
		"/top/conferences?page=0": listing,
		"/top/conferences?page=1": inomicsListingPage,
	}, hits)

	sc := NewInomicsScanner(FetchConfig{Client: server.Client()}, nil)
	confs, err := sc.Scan(context.Background(), scanner.Request{
		BaseURL:   server.URL + "/top/conferences",
		KnownURLs: map[string]struct{}{server.URL + "/conference/known-event-202": {}},
	})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}

	if len(confs) != 0 {
		t.Fatalf("expected no new conferences, got %d", len(confs))
	}
	if n := hits.get("/top/conferences?page=1"); n != 0 {
		t.Fatalf("pagination continued past a fully known page")
	}
}

func TestInomicsScannerStopsOn404(t *testing.T) {
	t.Parallel()

	hits := &hitCounter{}
	server := newInomicsServer(t, map[string]string{
		"/top/conferences?page=0":              inomicsListingPage,
		"/conference/labor-econ-workshop-101": inomicsDetailPage,
	}, hits)

	sc := NewInomicsScanner(FetchConfig{Client: server.Client()}, nil)
	confs, err := sc.Scan(context.Background(), scanner.Request{BaseURL: server.URL + "/top/conferences"})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}

	// known-event-202 has no detail page and keeps an empty page text.
	if len(confs) != 2 {
		t.Fatalf("expected 2 conferences, got %d", len(confs))
	}
	if confs[1].PageText != "" {
		t.Fatalf("expected empty page text for missing detail, got %q", confs[1].PageText)
	}
	if confs[0].Source != "inomics" {
		t.Fatalf("expected scanner name as default source, got %q", confs[0].Source)
	}
}

func TestInomicsScannerRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		calls int
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.URL.Query().Get("page") == "0" {
			_, _ = w.Write([]byte(`<a href="/conference/retry-event-1"><h2>Retry Event</h2></a>`))
			return
		}
		if r.URL.Path == "/conference/retry-event-1" {
			_, _ = w.Write([]byte(inomicsDetailPage))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	sc := NewInomicsScanner(FetchConfig{Client: server.Client(), Retries: 1}, nil)
	sc.fetch.backoff = 0

	confs, err := sc.Scan(context.Background(), scanner.Request{BaseURL: server.URL + "/top/conferences"})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(confs) != 1 || confs[0].Title != "Retry Event" {
		t.Fatalf("unexpected conferences after retry: %+v", confs)
	}
}

func TestParseInomicsListingWithoutInformation(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
		<a href="/conference/bare-entry-9"><h2> Bare Entry </h2></a>
		<a href="/conference/not-numbered"><h2>Wrong Path</h2></a>`))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}
	base, _ := url.Parse("https://inomics.com/top/conferences")

	entries := parseInomicsListing(doc, base)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].title != "Bare Entry" || entries[0].dates != "" || entries[0].location != "" {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
	if entries[0].url != "https://inomics.com/conference/bare-entry-9" {
		t.Fatalf("unexpected url: %s", entries[0].url)
	}
}

func TestTruncateText(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("é", maxPageText+10)
	if got := truncateText(long, maxPageText); len([]rune(got)) != maxPageText {
		t.Fatalf("expected %d runes, got %d", maxPageText, len([]rune(got)))
	}
	if got := truncateText("short", maxPageText); got != "short" {
		t.Fatalf("short text changed: %q", got)
	}
}
