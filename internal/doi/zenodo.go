package doi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/rseng/rseng-activity/internal/fetcher"
	"github.com/rseng/rseng-activity/internal/model"
)

// DefaultZenodoURL is the Zenodo records API.
const DefaultZenodoURL = "https://zenodo.org/api/records"

// Zenodo resolves Zenodo DOIs (10.5281/zenodo.<id>) through the records API.
type Zenodo struct {
	baseURL string
	fetcher fetcher.Fetcher
}

// NewZenodo creates a Zenodo provider. An empty baseURL uses DefaultZenodoURL.
func NewZenodo(baseURL string, f fetcher.Fetcher) *Zenodo {
	if baseURL == "" {
		baseURL = DefaultZenodoURL
	}
	return &Zenodo{baseURL: strings.TrimRight(baseURL, "/"), fetcher: f}
}

// Name implements Provider.
func (z *Zenodo) Name() string { return "zenodo" }

// Matches implements Provider.
func (z *Zenodo) Matches(doi string) bool {
	return strings.Contains(strings.ToLower(doi), "zenodo")
}

// RecordID extracts the numeric record id: the last dot-separated part of
// the DOI's final path segment.
func RecordID(doi string) string {
	base := path.Base(strings.TrimSpace(doi))
	parts := strings.Split(base, ".")
	return parts[len(parts)-1]
}

type zenodoMetadata struct {
	PublicationDate string `json:"publication_date"`
}

// Lookup implements Provider. A missing record, or a response without a
// metadata object, means Zenodo has no usable record.
func (z *Zenodo) Lookup(ctx context.Context, doi string) (*model.Timestamp, error) {
	id := RecordID(doi)
	if id == "" {
		return nil, eris.Errorf("zenodo: no record id in %q", doi)
	}

	record, err := fetcher.GetJSON[map[string]json.RawMessage](ctx, z.fetcher, z.baseURL+"/"+id)
	var statusErr *fetcher.StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "zenodo: fetch record %s", id)
	}

	raw, ok := (*record)["metadata"]
	if !ok {
		return nil, nil
	}

	var meta zenodoMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, eris.Wrapf(err, "zenodo: decode metadata for record %s", id)
	}
	if meta.PublicationDate == "" {
		return nil, nil
	}

	ts, err := model.ParseTimestamp(meta.PublicationDate)
	if err != nil {
		return nil, eris.Wrapf(err, "zenodo: record %s", id)
	}
	return &ts, nil
}
