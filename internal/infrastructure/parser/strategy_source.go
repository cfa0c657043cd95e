package parser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"ConferenceScanner/internal/config"
	"ConferenceScanner/internal/domain"
	"ConferenceScanner/internal/ports"
	"ConferenceScanner/internal/scanner"
)

// StrategySource implements ConferenceSource via registered scanner strategies.
type StrategySource struct {
	registry    *scanner.Registry
	sites       []config.SiteConfig
	concurrency int
	logger      *slog.Logger
}

var _ ports.ConferenceSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with config-defined sites.
func NewStrategySource(reg *scanner.Registry, sites []config.SiteConfig, concurrency int, log *slog.Logger) *StrategySource {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &StrategySource{
		registry:    reg,
		sites:       sites,
		concurrency: concurrency,
		logger:      log,
	}
}

// Only restricts the source to sites whose name or scanner appears in names.
// An empty list keeps every site.
func (s *StrategySource) Only(names []string) *StrategySource {
	if len(names) == 0 {
		return s
	}
	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			wanted[n] = struct{}{}
		}
	}

	filtered := make([]config.SiteConfig, 0, len(s.sites))
	for _, site := range s.sites {
		_, byName := wanted[strings.ToLower(site.Name)]
		_, byScanner := wanted[strings.ToLower(site.Scanner)]
		if byName || byScanner {
			filtered = append(filtered, site)
		}
	}

	clone := *s
	clone.sites = filtered
	return &clone
}

// Fetch runs every configured site concurrently. A failing site is logged
// and contributes nothing; results keep the configured site order.
func (s *StrategySource) Fetch(ctx context.Context, knownURLs map[string]struct{}) ([]domain.Conference, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	s.debug("fetch conferences", "sites", len(s.sites), "known_urls", len(knownURLs))

	strategies := make([]scanner.Scanner, len(s.sites))
	for i, site := range s.sites {
		strategy, err := s.registry.Resolve(site.Scanner)
		if err != nil {
			return nil, fmt.Errorf("site %s: %w", site.Name, err)
		}
		strategies[i] = strategy
	}

	perSite := make([][]domain.Conference, len(s.sites))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, site := range s.sites {
		g.Go(func() error {
			req := scanner.Request{
				SiteName:  site.Name,
				BaseURL:   site.URL,
				KnownURLs: knownURLs,
				Options:   site.Options,
			}

			results, err := strategies[i].Scan(gctx, req)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				s.warn("site failed, skipping", "site", site.Name, "error", err)
				return nil
			}

			for j := range results {
				if results[j].Source == "" {
					results[j].Source = site.Name
				}
			}
			s.debug("site produced conferences", "site", site.Name, "count", len(results))
			perSite[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch conferences: %w", err)
	}

	var aggregated []domain.Conference
	for _, results := range perSite {
		aggregated = append(aggregated, results...)
	}

	s.debug("strategy source done", "total_conferences", len(aggregated))
	return aggregated, nil
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *StrategySource) warn(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
