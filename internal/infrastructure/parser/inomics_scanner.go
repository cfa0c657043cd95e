package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"ConferenceScanner/internal/domain"
	"ConferenceScanner/internal/scanner"
)

const inomicsBaseURL = "https://inomics.com/top/conferences"

var (
	inomicsPathExpr  = regexp.MustCompile(`^/conference/[\w-]+-\d+$`)
	inomicsDatesExpr = regexp.MustCompile(`Between\s+(.+?)\s+and\s+(.+?)(?:\s+in\s+|$)`)
)

type inomicsEntry struct {
	title    string
	dates    string
	location string
	url      string
}

// InomicsScanner crawls the inomics.com conference listing. Dates and
// location come from the listing cards; detail pages supply the page text.
type InomicsScanner struct {
	fetch  *pageFetcher
	logger *slog.Logger
}

// NewInomicsScanner wires HTTP access for the scanner.
func NewInomicsScanner(cfg FetchConfig, logger *slog.Logger) *InomicsScanner {
	return &InomicsScanner{fetch: newPageFetcher(cfg), logger: logger}
}

// Name identifies the strategy inside the registry.
func (s *InomicsScanner) Name() string {
	return "inomics"
}

// Scan pages through the listing and fetches detail pages for unknown URLs.
func (s *InomicsScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Conference, error) {
	base := req.BaseURL
	if base == "" {
		base = inomicsBaseURL
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid listing url %s: %w", base, err)
	}

	entries, err := s.listEntries(ctx, baseURL, req)
	if err != nil {
		return nil, err
	}

	source := req.SiteName
	if source == "" {
		source = s.Name()
	}

	var conferences []domain.Conference
	for _, entry := range entries {
		if req.Known(entry.url) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pageText, err := s.detailText(ctx, entry.url)
		if err != nil {
			s.warn("detail page failed", "url", entry.url, "error", err)
		}
		s.debug("fetched detail", "title", entry.title, "chars", len(pageText))

		conferences = append(conferences, domain.Conference{
			Title:           entry.title,
			ConferenceDates: entry.dates,
			Location:        entry.location,
			URL:             entry.url,
			Source:          source,
			PageText:        truncateText(pageText, maxPageText),
		})
	}
	return conferences, nil
}

func (s *InomicsScanner) listEntries(ctx context.Context, baseURL *url.URL, req scanner.Request) ([]inomicsEntry, error) {
	var (
		all  []inomicsEntry
		seen = map[string]struct{}{}
	)

	for page := 0; page < maxListingPages; page++ {
		pageURL := listingPageURL(baseURL, page)
		doc, err := s.fetch.document(ctx, pageURL)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if !errors.Is(err, errPageNotFound) {
				s.warn("listing page failed", "page", page, "error", err)
			}
			break
		}

		onPage := parseInomicsListing(doc, baseURL)
		if len(onPage) == 0 {
			break
		}

		added := 0
		pageURLs := make([]string, 0, len(onPage))
		for _, entry := range onPage {
			pageURLs = append(pageURLs, entry.url)
			if _, ok := seen[entry.url]; ok {
				continue
			}
			seen[entry.url] = struct{}{}
			all = append(all, entry)
			added++
		}
		s.debug("listing page", "page", page, "new_entries", added)

		if added == 0 {
			break
		}
		if allKnown(pageURLs, req.Known) {
			s.debug("listing page fully known, stopping", "page", page)
			break
		}
	}
	return all, nil
}

func listingPageURL(base *url.URL, page int) string {
	u := *base
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

func parseInomicsListing(doc *goquery.Document, base *url.URL) []inomicsEntry {
	var entries []inomicsEntry
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !inomicsPathExpr.MatchString(href) {
			return
		}
		h2 := a.Find("h2").First()
		if h2.Length() == 0 {
			return
		}
		link, err := resolveURL(base, href)
		if err != nil {
			return
		}

		entry := inomicsEntry{
			title: strings.TrimSpace(h2.Text()),
			url:   link.String(),
		}
		if info := a.Find("span.informations").First(); info.Length() > 0 {
			text := blockText(info, " ")
			if m := inomicsDatesExpr.FindStringSubmatch(text); m != nil {
				entry.dates = strings.TrimSpace(m[1]) + " - " + strings.TrimSpace(m[2])
			}
			entry.location = strings.TrimSpace(info.Find("span.location").First().Text())
		}
		entries = append(entries, entry)
	})
	return entries
}

func (s *InomicsScanner) detailText(ctx context.Context, pageURL string) (string, error) {
	doc, err := s.fetch.document(ctx, pageURL)
	if err != nil {
		return "", err
	}
	return inomicsDetailText(doc), nil
}

// inomicsDetailText joins the labelled detail fields with the post body.
func inomicsDetailText(doc *goquery.Document) string {
	var parts []string
	doc.Find("div.post-details").First().ChildrenFiltered("div").Each(func(_ int, div *goquery.Selection) {
		label := div.Find("span.detail-title, span.detail-attendance").First()
		value := div.Find("h4").First()
		if label.Length() == 0 || value.Length() == 0 {
			return
		}
		parts = append(parts, strings.TrimSpace(label.Text())+": "+strings.TrimSpace(value.Text()))
	})

	if body := doc.Find("div[class*='post-body']").First(); body.Length() > 0 {
		if text := blockText(body, "\n"); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}

func (s *InomicsScanner) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *InomicsScanner) warn(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
