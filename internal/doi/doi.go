// Package doi resolves a catalog entry's DOI to a publication date using
// scholarly-record providers. Lookups never fail the caller: any problem
// degrades to "no publication date".
package doi

import (
	"context"

	"go.uber.org/zap"

	"github.com/rseng/rseng-activity/internal/model"
	"github.com/rseng/rseng-activity/internal/resilience"
)

// Provider looks up publication dates for the DOIs it recognizes.
type Provider interface {
	Name() string
	Matches(doi string) bool
	// Lookup returns the record's publication date, or nil when the provider
	// has no usable record.
	Lookup(ctx context.Context, doi string) (*model.Timestamp, error)
}

// Resolver picks the first DOI a provider recognizes and looks it up behind a
// per-provider circuit breaker.
type Resolver struct {
	providers []Provider
	breakers  map[string]*resilience.Breaker
}

// NewResolver creates a Resolver over the given providers.
func NewResolver(breakerCfg resilience.BreakerConfig, providers ...Provider) *Resolver {
	breakers := make(map[string]*resilience.Breaker, len(providers))
	for _, p := range providers {
		breakers[p.Name()] = resilience.NewBreaker(breakerCfg)
	}
	return &Resolver{providers: providers, breakers: breakers}
}

// Resolve returns the entry's identifier and, when available, the publication
// date reported by the matching provider. An entry without DOIs yields
// (nil, nil); an unrecognized DOI or a failed lookup yields (doi, nil).
func (r *Resolver) Resolve(ctx context.Context, entry *model.CatalogEntry) (*string, *model.Timestamp) {
	dois := entry.DOIs()
	if len(dois) == 0 {
		return nil, nil
	}

	for _, d := range dois {
		for _, p := range r.providers {
			if !p.Matches(d) {
				continue
			}
			doi := d
			published, err := resilience.Call(ctx, r.breakers[p.Name()], func(ctx context.Context) (*model.Timestamp, error) {
				return p.Lookup(ctx, doi)
			})
			if err != nil {
				zap.L().Warn("doi lookup failed",
					zap.String("provider", p.Name()),
					zap.String("doi", doi),
					zap.String("uid", entry.UID),
					zap.Error(err),
				)
				return &doi, nil
			}
			if published != nil {
				zap.L().Info("found publication date",
					zap.String("doi", doi),
					zap.String("published", published.String()),
				)
			}
			return &doi, published
		}
	}

	first := dois[0]
	return &first, nil
}
