package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mrlokans/sheetsync/internal/entities"
)

// ParseCSV reads an uploaded export into rows keyed by the header line.
// Short lines are padded with empty cells; blank lines are skipped.
func ParseCSV(r io.Reader) ([]entities.RawRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}

	var rows []entities.RawRow
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		row := make(entities.RawRow, len(header))
		blank := true
		for i, h := range header {
			if h == "" {
				continue
			}
			var cell string
			if i < len(record) {
				cell = strings.TrimSpace(record[i])
			}
			if cell != "" {
				blank = false
			}
			row[h] = cell
		}
		if !blank {
			rows = append(rows, row)
		}
	}
	return rows, nil
}
