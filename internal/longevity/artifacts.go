package longevity

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"sort"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/rseng/rseng-activity/internal/checkpoint"
	"github.com/rseng/rseng-activity/internal/model"
)

// Artifact file names, written next to results.json.
const (
	ResultsCSVFile  = "results.csv"
	HighValueFile   = "highest-value.json"
	RelativeFile    = "highest-value-relative.json"
	GlobalFile      = "highest-value-global-after-24-months.json"
	UpdatedOverTime = "updated-over-time.json"
)

// ErrNoResults means the combined results file does not exist yet.
var ErrNoResults = eris.New("longevity: results file not found; run collect first")

// LoadResults reads a results.json written by the collection pipeline.
func LoadResults(path string) (map[string]model.ReconciledRecord, error) {
	records := make(map[string]model.ReconciledRecord)
	found, err := checkpoint.ReadJSON(path, &records)
	if err != nil {
		return nil, eris.Wrapf(err, "longevity: read %s", path)
	}
	if !found {
		return nil, eris.Wrapf(ErrNoResults, "longevity: %s", path)
	}
	return records, nil
}

type csvRow struct {
	Repo            string           `csv:"repo"`
	LastCommit      model.Timestamp  `csv:"last_commit"`
	AddedRSEpedia   model.Timestamp  `csv:"added_rsepedia"`
	ZenodoPublished *model.Timestamp `csv:"zenodo_published"`
	Published       model.Timestamp  `csv:"published"`
	DOI             *string          `csv:"doi"`
}

// WriteResultsCSV writes one row per record, ordered by URL.
func WriteResultsCSV(path string, records map[string]model.ReconciledRecord) error {
	urls := make([]string, 0, len(records))
	for url := range records {
		urls = append(urls, url)
	}
	sort.Strings(urls)

	rows := make([]csvRow, 0, len(urls))
	for _, url := range urls {
		rec := records[url]
		rows = append(rows, csvRow{
			Repo:            url,
			LastCommit:      rec.LastCommit,
			AddedRSEpedia:   rec.AddedRSEpedia,
			ZenodoPublished: rec.ZenodoPublished,
			Published:       rec.Published,
			DOI:             rec.DOI,
		})
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	enc := csvutil.NewEncoder(w)
	if err := enc.EncodeHeader(csvRow{}); err != nil {
		return eris.Wrap(err, "longevity: encode results csv header")
	}
	if err := enc.Encode(rows); err != nil {
		return eris.Wrap(err, "longevity: encode results csv")
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "longevity: flush results csv")
	}
	return eris.Wrapf(os.WriteFile(path, buf.Bytes(), 0o644), "longevity: write %s", path)
}

// WriteArtifacts writes the CSV export and the classification reports into dir.
func WriteArtifacts(dir string, report *Report, records map[string]model.ReconciledRecord) error {
	if err := WriteResultsCSV(filepath.Join(dir, ResultsCSVFile), records); err != nil {
		return err
	}
	if err := checkpoint.WriteJSON(filepath.Join(dir, HighValueFile), report.HighValue); err != nil {
		return eris.Wrap(err, "longevity: write high value")
	}
	if err := checkpoint.WriteJSON(filepath.Join(dir, UpdatedOverTime), report.Months); err != nil {
		return eris.Wrap(err, "longevity: write updated over time")
	}
	if !report.Options.ComputeRelative {
		return nil
	}
	if err := checkpoint.WriteJSON(filepath.Join(dir, RelativeFile), report.Relative); err != nil {
		return eris.Wrap(err, "longevity: write relative high value")
	}
	return eris.Wrap(checkpoint.WriteJSON(filepath.Join(dir, GlobalFile), report.Global), "longevity: write global high value")
}
