package longevity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rseng/rseng-activity/internal/model"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(model.DateLayout, s)
	require.NoError(t, err)
	return d
}

func record(t *testing.T, published, last string) model.ReconciledRecord {
	t.Helper()
	pub, err := model.ParseTimestamp(published)
	require.NoError(t, err)
	lc, err := model.ParseTimestamp(last)
	require.NoError(t, err)
	return model.ReconciledRecord{LastCommit: lc, AddedRSEpedia: pub, Published: pub}
}

func TestAddMonths(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"2020-01-01", 0, "2020-01-01"},
		{"2020-01-01", 24, "2022-01-01"},
		{"2021-01-31", 1, "2021-02-28"},
		{"2020-01-31", 1, "2020-02-29"},
		{"2020-03-31", 1, "2020-04-30"},
		{"2020-08-31", 6, "2021-02-28"},
		{"2020-12-15", 1, "2021-01-15"},
		{"2022-06-01", 24, "2024-06-01"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, date(t, tt.want), AddMonths(date(t, tt.in), tt.n))
		})
	}
}

func TestClassify_HighValue(t *testing.T) {
	records := map[string]model.ReconciledRecord{
		"https://github.com/a/b": record(t, "2020-01-01", "2022-06-01 12:00:00"),
	}
	r := Classify(records, date(t, "2025-01-01"), DefaultOptions())

	assert.Equal(t, []string{"https://github.com/a/b"}, r.HighValue[24])
	assert.Empty(t, r.HighValue[30])
	assert.Equal(t, 1, r.Months[24].Updated)
	assert.Equal(t, 0, r.Months[30].Updated)
	require.Len(t, r.Months, 41)
	_, below := r.HighValue[23]
	assert.False(t, below)
}

func TestClassify_StrictBoundary(t *testing.T) {
	records := map[string]model.ReconciledRecord{
		// The last commit falls on exactly published + 24 months.
		"https://h/edge": record(t, "2020-01-01", "2022-01-01 18:30:00"),
	}
	r := Classify(records, date(t, "2025-01-01"), DefaultOptions())
	assert.Equal(t, 1, r.Months[23].Updated)
	assert.Equal(t, 0, r.Months[24].Updated)
}

func TestClassify_FutureWindowExcludedFromDenominator(t *testing.T) {
	records := map[string]model.ReconciledRecord{
		"https://h/recent": record(t, "2022-06-01", "2022-12-01 00:00:00"),
		"https://h/old":    record(t, "2019-01-01", "2022-12-01 00:00:00"),
	}
	r := Classify(records, date(t, "2023-01-01"), DefaultOptions())

	m24 := r.Months[24]
	assert.Equal(t, 1, m24.Eligible)
	assert.Equal(t, 1, m24.Updated)
	assert.True(t, m24.Percent.Defined)
	assert.InDelta(t, 100.0, m24.Percent.Value, 1e-9)

	m0 := r.Months[0]
	assert.Equal(t, 2, m0.Eligible)
	assert.Equal(t, 2, m0.Updated)
}

func TestClassify_UndefinedPercent(t *testing.T) {
	records := map[string]model.ReconciledRecord{
		"https://h/new": record(t, "2022-12-15", "2022-12-20 00:00:00"),
	}
	r := Classify(records, date(t, "2023-01-01"), DefaultOptions())

	assert.Equal(t, 0, r.Months[1].Eligible)
	assert.False(t, r.Months[1].Percent.Defined)
	assert.Equal(t, "n/a", r.Months[1].Percent.String())

	b, err := json.Marshal(r.Months[1])
	require.NoError(t, err)
	assert.JSONEq(t, `{"month":1,"count":0,"eligible":0,"percent":null}`, string(b))
}

func TestClassify_Relative(t *testing.T) {
	now := date(t, "2023-01-15")
	records := map[string]model.ReconciledRecord{
		// Published 2020-12-01: month 25 = 2023-01-01 < now, month 26 = 2023-02-01 >= now.
		"https://h/terminal": record(t, "2020-12-01", "2023-01-10 00:00:00"),
		// Month 40 = 2023-01-01 is the last measurable month.
		"https://h/forty": record(t, "2019-09-01", "2023-01-10 00:00:00"),
		// Its last measurable month (48) lies beyond the grid.
		"https://h/older": record(t, "2019-01-01", "2023-01-10 00:00:00"),
		// Terminal at 25 and inactive since 2021; still counted as relative.
		"https://h/stale": record(t, "2020-12-01", "2021-06-01 00:00:00"),
	}
	r := Classify(records, now, DefaultOptions())

	assert.Equal(t, []string{"https://h/stale", "https://h/terminal"}, r.Relative[25])
	assert.Empty(t, r.Relative[24])
	assert.Equal(t, []string{"https://h/forty"}, r.Relative[40])
	assert.Contains(t, r.HighValue[24], "https://h/older")
	assert.NotContains(t, r.HighValue[25], "https://h/stale")
	assert.Equal(t, []string{"https://h/forty", "https://h/stale", "https://h/terminal"}, r.Global)
}

func TestClassify_RelativeIgnoresActivity(t *testing.T) {
	now := date(t, "2023-01-15")
	records := map[string]model.ReconciledRecord{
		"https://h/quiet": record(t, "2020-12-01", "2021-06-01 00:00:00"),
	}
	r := Classify(records, now, DefaultOptions())

	assert.Equal(t, []string{"https://h/quiet"}, r.Relative[25])
	assert.Empty(t, r.HighValue[25])
	assert.Equal(t, 0, r.Months[25].Updated)
	assert.Equal(t, 1, r.Months[25].Eligible)
	assert.Equal(t, []string{"https://h/quiet"}, r.Global)
}

func TestClassify_RelativeDisabled(t *testing.T) {
	records := map[string]model.ReconciledRecord{
		"https://h/a": record(t, "2020-01-01", "2022-06-01 00:00:00"),
	}
	opts := DefaultOptions()
	opts.ComputeRelative = false
	r := Classify(records, date(t, "2025-01-01"), opts)
	assert.Nil(t, r.Relative)
	assert.Empty(t, r.Global)
	assert.NotEmpty(t, r.HighValue[24])
}

func TestClassify_ExcludesUndated(t *testing.T) {
	records := map[string]model.ReconciledRecord{
		"https://h/nodate": {LastCommit: model.FromEpoch(1600000000)},
		"https://h/ok":     record(t, "2020-01-01", "2020-02-01 00:00:00"),
	}
	r := Classify(records, date(t, "2025-01-01"), DefaultOptions())
	assert.Equal(t, []string{"https://h/nodate"}, r.Excluded)
	assert.Equal(t, 1, r.Months[0].Eligible)
}

func TestRatio(t *testing.T) {
	assert.Equal(t, "50.00%", NewRatio(1, 2).String())

	var r Ratio
	require.NoError(t, json.Unmarshal([]byte("12.5"), &r))
	assert.Equal(t, Ratio{Value: 12.5, Defined: true}, r)
	require.NoError(t, json.Unmarshal([]byte("null"), &r))
	assert.False(t, r.Defined)
}
