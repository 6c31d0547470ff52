// Package longevity classifies repositories by how long they kept receiving
// commits after their estimated publication date.
package longevity

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/rseng/rseng-activity/internal/model"
)

// Options configures the month grid.
type Options struct {
	// MaxMonth is the last month offset measured. Default 40.
	MaxMonth int
	// HighValueMonth is the first offset whose active repositories count as
	// high value. Default 24.
	HighValueMonth int
	// ComputeRelative also tracks, per month from HighValueMonth, the
	// repositories for which that month is the last one measurable.
	ComputeRelative bool
}

// DefaultOptions returns the standard grid.
func DefaultOptions() Options {
	return Options{MaxMonth: 40, HighValueMonth: 24, ComputeRelative: true}
}

// Ratio is a percentage that may be undefined when nothing was eligible.
type Ratio struct {
	Value   float64
	Defined bool
}

// NewRatio returns num/den as a percentage, undefined when den is zero.
func NewRatio(num, den int) Ratio {
	if den == 0 {
		return Ratio{}
	}
	return Ratio{Value: 100 * float64(num) / float64(den), Defined: true}
}

func (r Ratio) String() string {
	if !r.Defined {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", r.Value)
}

// MarshalJSON encodes an undefined ratio as null.
func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.Defined {
		return []byte("null"), nil
	}
	return json.Marshal(r.Value)
}

// UnmarshalJSON accepts a number or null.
func (r *Ratio) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*r = Ratio{}
		return nil
	}
	if err := json.Unmarshal(b, &r.Value); err != nil {
		return err
	}
	r.Defined = true
	return nil
}

// MonthStat is one point of the month grid.
type MonthStat struct {
	Month int `json:"month"`
	// Updated counts repositories with a commit after published + Month.
	Updated int `json:"count"`
	// Eligible counts repositories whose window has already started.
	Eligible int   `json:"eligible"`
	Percent  Ratio `json:"percent"`
}

// Report is the outcome of Classify.
type Report struct {
	Now       time.Time
	Options   Options
	Months    []MonthStat
	HighValue map[int][]string
	// Relative is nil unless Options.ComputeRelative.
	Relative map[int][]string
	Global   []string
	// Excluded lists repositories without a usable published or last-commit date.
	Excluded []string
}

type repo struct {
	url       string
	published time.Time
	last      time.Time
}

// Classify evaluates every record against the month grid relative to now.
func Classify(records map[string]model.ReconciledRecord, now time.Time, opts Options) *Report {
	now = now.UTC()
	report := &Report{
		Now:       now,
		Options:   opts,
		Months:    make([]MonthStat, 0, opts.MaxMonth+1),
		HighValue: make(map[int][]string),
		Excluded:  []string{},
		Global:    []string{},
	}
	if opts.ComputeRelative {
		report.Relative = make(map[int][]string)
	}

	repos := make([]repo, 0, len(records))
	for url, rec := range records {
		if rec.Published.IsZero() || rec.LastCommit.IsZero() {
			report.Excluded = append(report.Excluded, url)
			continue
		}
		repos = append(repos, repo{url: url, published: rec.Published.Day(), last: rec.LastCommit.Day()})
	}
	sort.Slice(repos, func(i, j int) bool { return repos[i].url < repos[j].url })
	sort.Strings(report.Excluded)

	global := make(map[string]struct{})
	for month := 0; month <= opts.MaxMonth; month++ {
		stat := MonthStat{Month: month}
		updated := []string{}
		relative := []string{}

		for _, r := range repos {
			post := AddMonths(r.published, month)
			notFuture := post.Before(now)
			highValue := r.last.After(post)

			if notFuture {
				stat.Eligible++
				// No later month can be measured yet, so this is the last window.
				if opts.ComputeRelative && month >= opts.HighValueMonth &&
					!AddMonths(r.published, month+1).Before(now) {
					relative = append(relative, r.url)
					global[r.url] = struct{}{}
				}
			}
			if !highValue {
				continue
			}
			stat.Updated++
			updated = append(updated, r.url)
		}
		stat.Percent = NewRatio(stat.Updated, stat.Eligible)
		report.Months = append(report.Months, stat)

		if month >= opts.HighValueMonth {
			report.HighValue[month] = updated
			if opts.ComputeRelative {
				report.Relative[month] = relative
			}
		}
		zap.L().Debug("longevity: month classified",
			zap.Int("month", month),
			zap.Int("updated", stat.Updated),
			zap.Int("eligible", stat.Eligible),
			zap.Stringer("percent", stat.Percent),
		)
	}

	for url := range global {
		report.Global = append(report.Global, url)
	}
	sort.Strings(report.Global)
	return report
}
