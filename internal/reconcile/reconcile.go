// Package reconcile merges the dates gathered for each repository into the
// canonical record used for longevity analysis.
package reconcile

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rseng/rseng-activity/internal/model"
)

// Options controls how the canonical publication date is chosen.
type Options struct {
	// UseDOIPriority prefers a DOI publication date over the date the
	// repository was added to the catalog.
	UseDOIPriority bool
}

// DefaultOptions returns the standard reconciliation policy.
func DefaultOptions() Options {
	return Options{UseDOIPriority: true}
}

// DOIResolver resolves an entry's DOI and its publication date. It never fails.
type DOIResolver interface {
	Resolve(ctx context.Context, entry *model.CatalogEntry) (*string, *model.Timestamp)
}

// AddDateSource answers when a file was first committed to a repository.
type AddDateSource interface {
	AddedAt(ctx context.Context, repoDir, relPath string) (model.Timestamp, error)
}

// Reconciler builds date bundles for catalog entries.
type Reconciler struct {
	dois DOIResolver
	adds AddDateSource
	root string
}

// New creates a Reconciler. root is the catalog checkout whose history is
// searched for each entry's metadata file.
func New(dois DOIResolver, adds AddDateSource, root string) *Reconciler {
	return &Reconciler{dois: dois, adds: adds, root: root}
}

// Bundle gathers the catalog add date, DOI and DOI publication date for one
// entry. A missing add date skips the entry before any DOI lookup; DOI
// problems only drop the DOI date.
func (r *Reconciler) Bundle(ctx context.Context, entry *model.CatalogEntry) model.Outcome[model.DateBundle] {
	rel, err := filepath.Rel(r.root, entry.Filename)
	if err != nil {
		return model.Skip[model.DateBundle](model.ReasonAddedAt, eris.Wrapf(err, "reconcile: relative path of %s", entry.Filename))
	}

	created, err := r.adds.AddedAt(ctx, r.root, filepath.ToSlash(rel))
	if err != nil {
		return model.Skip[model.DateBundle](model.ReasonAddedAt, err)
	}

	doi, published := r.dois.Resolve(ctx, entry)
	return model.Success(model.DateBundle{
		CreatedAt: created,
		DOI:       doi,
		Published: published,
	})
}

// Canonical returns the publication date used for classification.
func Canonical(b model.DateBundle, opts Options) model.Timestamp {
	if opts.UseDOIPriority && b.Published != nil && !b.Published.IsZero() {
		return *b.Published
	}
	return b.CreatedAt
}

// Combine joins the activity and dates stores into reconciled records. A URL
// with activity but no date bundle is left out.
func Combine(activity map[string]model.Timestamp, dates map[string]model.DateBundle, opts Options) map[string]model.ReconciledRecord {
	out := make(map[string]model.ReconciledRecord, len(activity))
	missing := 0
	for url, last := range activity {
		b, ok := dates[url]
		if !ok {
			missing++
			continue
		}
		out[url] = model.ReconciledRecord{
			LastCommit:      last,
			AddedRSEpedia:   b.CreatedAt,
			ZenodoPublished: b.Published,
			Published:       Canonical(b, opts),
			DOI:             b.DOI,
		}
	}
	if missing > 0 {
		zap.L().Debug("reconcile: activity without date bundle", zap.Int("count", missing))
	}
	return out
}
