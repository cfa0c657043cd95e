package parser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
	defaultBackoff   = 2 * time.Second

	// maxPageText bounds the page text handed to the classifier.
	maxPageText = 5000
	// maxListingPages stops pagination on sites that never return an empty page.
	maxListingPages = 200
)

var errPageNotFound = errors.New("page not found")

// FetchConfig tunes HTTP access for a scanner.
type FetchConfig struct {
	Client    *http.Client
	UserAgent string
	// Delay is the minimum spacing between two requests; zero disables pacing.
	Delay   time.Duration
	Retries int
}

type pageFetcher struct {
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
	retries   int
	backoff   time.Duration
}

func newPageFetcher(cfg FetchConfig) *pageFetcher {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	limit := rate.Inf
	if cfg.Delay > 0 {
		limit = rate.Every(cfg.Delay)
	}
	retries := cfg.Retries
	if retries < 0 {
		retries = 0
	}
	return &pageFetcher{
		client:    client,
		userAgent: ua,
		limiter:   rate.NewLimiter(limit, 1),
		retries:   retries,
		backoff:   defaultBackoff,
	}
}

// document fetches and parses pageURL, retrying throttled and server errors.
// A 404 yields errPageNotFound.
func (f *pageFetcher) document(ctx context.Context, pageURL string) (*goquery.Document, error) {
	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			if err := sleepContext(ctx, time.Duration(attempt)*f.backoff); err != nil {
				return nil, err
			}
		}

		doc, retry, err := f.fetchOnce(ctx, pageURL)
		if err == nil {
			return doc, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("after %d attempts: %w", f.retries+1, lastErr)
}

func (f *pageFetcher) fetchOnce(ctx context.Context, pageURL string) (*goquery.Document, bool, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("request %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, errPageNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return nil, true, fmt.Errorf("%s returned %s", pageURL, resp.Status)
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("%s returned %s", pageURL, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("parse document: %w", err)
	}
	return doc, false, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// blockText collects every non-blank text node under sel, trimmed and joined
// by sep. Script and style contents are skipped.
func blockText(sel *goquery.Selection, sep string) string {
	var parts []string
	for _, n := range sel.Nodes {
		collectText(n, &parts)
	}
	return strings.Join(parts, sep)
}

func collectText(n *html.Node, parts *[]string) {
	switch n.Type {
	case html.TextNode:
		if s := strings.TrimSpace(n.Data); s != "" {
			*parts = append(*parts, s)
		}
		return
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}

func truncateText(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

// resolveURL makes href absolute against base.
func resolveURL(base *url.URL, href string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return nil, err
	}
	return base.ResolveReference(ref), nil
}

func allKnown(urls []string, known func(string) bool) bool {
	if len(urls) == 0 {
		return false
	}
	for _, u := range urls {
		if !known(u) {
			return false
		}
	}
	return true
}
