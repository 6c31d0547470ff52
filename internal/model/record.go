package model

// DateBundle holds the externally sourced dates for one repository, keyed by
// URL in rsepedia-times.json. Once written a bundle is never replaced.
type DateBundle struct {
	CreatedAt Timestamp  `json:"created_at"`
	DOI       *string    `json:"doi"`
	Published *Timestamp `json:"published"`
}

// ReconciledRecord is the merged per-repository view written to results.json.
type ReconciledRecord struct {
	LastCommit      Timestamp  `json:"last_commit"`
	AddedRSEpedia   Timestamp  `json:"added_rsepedia"`
	ZenodoPublished *Timestamp `json:"zenodo_published"`
	Published       Timestamp  `json:"published"`
	DOI             *string    `json:"doi"`
}
