package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"ConferenceScanner/internal/domain"
	"ConferenceScanner/internal/scanner"
)

const misfitBaseURL = "https://theeconomicmisfit.com/category/conferences/"

var (
	misfitDateExprs = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Date|Conference date|When)[:\s]*(.+?\d{4})`),
		regexp.MustCompile(`(?i)(\w+ \d{1,2}[-–]\d{1,2},?\s*\d{4})`),
		regexp.MustCompile(`(?i)(\w+ \d{1,2},?\s*\d{4}\s*[-–]\s*\w+ \d{1,2},?\s*\d{4})`),
		regexp.MustCompile(`(?i)(\d{1,2}[-–]\d{1,2}\s+\w+\s+\d{4})`),
	}
	misfitLocationExprs = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Location|Venue|Where|Place)[:\s]*(.+?)(?:\n|$)`),
		regexp.MustCompile(`(?i)(?:held (?:in|at))\s+(.+?)(?:\n|\.|$)`),
	}
	misfitTitleClassExpr = regexp.MustCompile(`title`)
)

const maxMisfitLocation = 100

// MisfitScanner crawls theeconomicmisfit.com conference category. Dates and
// location are pulled from the article text with lightweight patterns.
type MisfitScanner struct {
	fetch  *pageFetcher
	logger *slog.Logger
}

// NewMisfitScanner wires HTTP access for the scanner.
func NewMisfitScanner(cfg FetchConfig, logger *slog.Logger) *MisfitScanner {
	return &MisfitScanner{fetch: newPageFetcher(cfg), logger: logger}
}

// Name identifies the strategy inside the registry.
func (s *MisfitScanner) Name() string {
	return "misfit"
}

// Scan collects post links from every listing page and reads unknown posts.
func (s *MisfitScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Conference, error) {
	base := req.BaseURL
	if base == "" {
		base = misfitBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid listing url %s: %w", base, err)
	}

	links, err := s.listLinks(ctx, baseURL, req)
	if err != nil {
		return nil, err
	}

	source := req.SiteName
	if source == "" {
		source = s.Name()
	}

	var conferences []domain.Conference
	for _, link := range links {
		if req.Known(link) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		doc, err := s.fetch.document(ctx, link)
		if err != nil {
			s.warn("post page failed", "url", link, "error", err)
			continue
		}
		title, text := misfitPost(doc)
		if title == "" || text == "" {
			s.debug("post without title or content", "url", link)
			continue
		}

		conferences = append(conferences, domain.Conference{
			Title:           title,
			ConferenceDates: misfitDates(text),
			Location:        misfitLocation(text),
			URL:             link,
			Source:          source,
			PageText:        truncateText(text, maxPageText),
		})
	}
	return conferences, nil
}

func (s *MisfitScanner) listLinks(ctx context.Context, baseURL *url.URL, req scanner.Request) ([]string, error) {
	postExpr := misfitPostExpr(baseURL)

	var (
		links []string
		seen  = map[string]struct{}{}
	)
	for page := 1; page <= maxListingPages; page++ {
		pageURL := baseURL.String()
		if page > 1 {
			pageURL = fmt.Sprintf("%spage/%d/", baseURL.String(), page)
		}

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

		found := misfitListing(doc, baseURL, postExpr)
		if len(found) == 0 {
			break
		}
		s.debug("listing page", "page", page, "links", len(found))

		for _, link := range found {
			if _, ok := seen[link]; ok {
				continue
			}
			seen[link] = struct{}{}
			links = append(links, link)
		}

		if allKnown(found, req.Known) {
			s.debug("listing page fully known, stopping", "page", page)
			break
		}
	}
	return links, nil
}

// misfitPostExpr matches dated post permalinks on the listing's host.
func misfitPostExpr(base *url.URL) *regexp.Regexp {
	origin := base.Scheme + "://" + base.Host
	return regexp.MustCompile(`^` + regexp.QuoteMeta(origin) + `/\d{4}/\d{2}/\d{2}/[\w-]+/?$`)
}

func misfitListing(doc *goquery.Document, base *url.URL, postExpr *regexp.Regexp) []string {
	var (
		found []string
		seen  = map[string]struct{}{}
	)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		link, err := resolveURL(base, href)
		if err != nil {
			return
		}
		abs := link.String()
		if !postExpr.MatchString(abs) {
			return
		}
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		found = append(found, abs)
	})
	return found
}

// misfitPost returns the post title and its content text.
func misfitPost(doc *goquery.Document) (string, string) {
	titleSel := doc.Find("h1").First()
	if titleSel.Length() == 0 {
		titleSel = doc.Find("h2[class]").FilterFunction(func(_ int, h *goquery.Selection) bool {
			class, _ := h.Attr("class")
			return misfitTitleClassExpr.MatchString(class)
		}).First()
	}
	title := strings.TrimSpace(titleSel.Text())

	content := doc.Find("div[class*='entry-content']").First()
	if content.Length() == 0 {
		content = doc.Find("div[class*='post-content']").First()
	}
	if content.Length() == 0 {
		content = doc.Find("article").First()
	}
	if content.Length() == 0 {
		return title, ""
	}
	return title, blockText(content, "\n")
}

func misfitDates(text string) string {
	for _, expr := range misfitDateExprs {
		if m := expr.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func misfitLocation(text string) string {
	for _, expr := range misfitLocationExprs {
		if m := expr.FindStringSubmatch(text); m != nil {
			loc := strings.TrimSpace(m[1])
			if i := strings.IndexByte(loc, '\n'); i >= 0 {
				loc = loc[:i]
			}
			return truncateText(loc, maxMisfitLocation)
		}
	}
	return ""
}

func (s *MisfitScanner) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *MisfitScanner) warn(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
