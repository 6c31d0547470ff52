package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		want     time.Time
		dateOnly bool
	}{
		{"display", "2021-03-04 05:06:07", time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC), false},
		{"date only", "2020-01-01", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{"rfc3339", "2021-03-04T05:06:07Z", time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC), false},
		{"fractional", "2021-03-04 05:06:07.250000", time.Date(2021, 3, 4, 5, 6, 7, 250000000, time.UTC), false},
		{"padded", "  2020-01-01 ", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got.Time), "got %s", got.Time)
			assert.Equal(t, tt.dateOnly, got.DateOnly)
		})
	}
}

func TestParseTimestamp_Invalid(t *testing.T) {
	_, err := ParseTimestamp("last tuesday")
	assert.Error(t, err)
}

func TestParseEpoch(t *testing.T) {
	ts, err := ParseEpoch("1577836800\n")
	require.NoError(t, err)
	assert.Equal(t, "2020-01-01 00:00:00", ts.String())

	_, err = ParseEpoch("")
	assert.Error(t, err)
}

func TestTimestamp_Day(t *testing.T) {
	ts := Timestamp{Time: time.Date(2022, 6, 1, 23, 59, 59, 0, time.UTC)}
	assert.Equal(t, time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC), ts.Day())
}

func TestTimestamp_JSONRoundTrip(t *testing.T) {
	published, err := ParseTimestamp("2019-05-13")
	require.NoError(t, err)
	doi := "10.5281/zenodo.123"
	in := map[string]DateBundle{
		"https://github.com/a/b": {
			CreatedAt: FromEpoch(1600000000),
			DOI:       &doi,
			Published: &published,
		},
		"https://github.com/c/d": {CreatedAt: FromEpoch(1500000000)},
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"published":"2019-05-13"`)
	assert.Contains(t, string(data), `"published":null`)

	var out map[string]DateBundle
	require.NoError(t, json.Unmarshal(data, &out))
	require.Len(t, out, 2)
	assert.True(t, in["https://github.com/a/b"].CreatedAt.Equal(out["https://github.com/a/b"].CreatedAt))
	require.NotNil(t, out["https://github.com/a/b"].Published)
	assert.True(t, published.Equal(*out["https://github.com/a/b"].Published))
	assert.Nil(t, out["https://github.com/c/d"].DOI)
	assert.Nil(t, out["https://github.com/c/d"].Published)
}

func TestTimestamp_ZeroMarshalsEmpty(t *testing.T) {
	var ts Timestamp
	b, err := ts.MarshalText()
	require.NoError(t, err)
	assert.Empty(t, b)

	require.NoError(t, ts.UnmarshalText(nil))
	assert.True(t, ts.IsZero())
}
