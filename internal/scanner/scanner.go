package scanner

import (
	"context"
	"fmt"
	"sort"

	"ConferenceScanner/internal/domain"
)

// Request carries all parameters required to execute a scan.
type Request struct {
	SiteName string
	// BaseURL overrides the site's default listing URL when set.
	BaseURL string
	// KnownURLs are already stored; scanners skip their detail pages and stop
	// paginating once a listing page holds nothing else.
	KnownURLs map[string]struct{}
	Options   map[string]string
}

// Known reports whether url is already stored.
func (r Request) Known(url string) bool {
	_, ok := r.KnownURLs[url]
	return ok
}

// Scanner captures a single strategy implementation (Inomics, Misfit, etc.).
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) ([]domain.Conference, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}

// Names lists registered scanners in alphabetical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.scanners))
	for name := range r.scanners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
