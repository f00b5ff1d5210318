package ingest

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mrlokans/sheetsync/internal/entities"
)

// ErrEmptyCell marks a cell with no value. Empty cells are skipped, not failed.
var ErrEmptyCell = errors.New("empty cell")

var valueReplacer = strings.NewReplacer(
	"$", "", "€", "", "£", "", ",", "", " ", "", "\u00a0", "", "\t", "",
)

var dateLayouts = []string{
	time.DateOnly,
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"02-Jan-2006",
}

// ParseValue turns a spreadsheet cell into the stored number for metricType.
// Currency symbols and thousands separators are ignored, "(12)" is -12 and a
// trailing "%" keeps the percentage number itself ("5%" is 5). Currency and
// percentage values are rounded to two decimals.
func ParseValue(raw string, metricType entities.MetricType) (float64, error) {
	s := valueReplacer.Replace(strings.TrimSpace(raw))
	if s == "" || s == "-" {
		return 0, ErrEmptyCell
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.TrimSuffix(s, "%")

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a number: %q", raw)
	}
	if negative {
		v = -v
	}

	switch metricType {
	case entities.MetricTypeCurrency, entities.MetricTypePercentage:
		v = math.Round(v*100) / 100
	}
	return v, nil
}

// ParseDate normalizes a date cell to YYYY-MM-DD.
func ParseDate(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrEmptyCell
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(time.DateOnly), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q", raw)
}
