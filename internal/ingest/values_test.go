package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/sheetsync/internal/entities"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw        string
		metricType entities.MetricType
		want       float64
	}{
		{"5%", entities.MetricTypePercentage, 5},
		{"12.5 %", entities.MetricTypePercentage, 12.5},
		{"0.05", entities.MetricTypePercentage, 0.05},
		{"33.3333%", entities.MetricTypePercentage, 33.33},
		{"$1,234.567", entities.MetricTypeCurrency, 1234.57},
		{"€ 99", entities.MetricTypeCurrency, 99},
		{"£10.10", entities.MetricTypeCurrency, 10.1},
		{"(250)", entities.MetricTypeCurrency, -250},
		{"-3", entities.MetricTypeNumber, -3},
		{"1,000,000", entities.MetricTypeNumber, 1000000},
		{"1.23456", entities.MetricTypeNumber, 1.23456},
	}

	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := ParseValue(tc.raw, tc.metricType)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestParseValue_Errors(t *testing.T) {
	for _, raw := range []string{"", "   ", "-"} {
		_, err := ParseValue(raw, entities.MetricTypeNumber)
		assert.ErrorIs(t, err, ErrEmptyCell, "raw=%q", raw)
	}
	for _, raw := range []string{"n/a", "twelve", "NaN", "Inf", "1.2.3"} {
		_, err := ParseValue(raw, entities.MetricTypeNumber)
		require.Error(t, err, "raw=%q", raw)
		assert.NotErrorIs(t, err, ErrEmptyCell)
	}
}

func TestParseDate(t *testing.T) {
	tests := map[string]string{
		"2025-01-10":       "2025-01-10",
		"01/10/2025":       "2025-01-10",
		"1/10/2025":        "2025-01-10",
		"2025/01/10":       "2025-01-10",
		"Jan 10, 2025":     "2025-01-10",
		"January 10, 2025": "2025-01-10",
		"10 Jan 2025":      "2025-01-10",
		" 2025-01-10 ":     "2025-01-10",
	}
	for raw, want := range tests {
		got, err := ParseDate(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParseDate("yesterday")
	assert.Error(t, err)
	_, err = ParseDate("")
	assert.ErrorIs(t, err, ErrEmptyCell)
}
