package reader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

const handleColumn = "handle"

// ReadHandles reads channel handles from r. A CSV whose header has a "handle"
// column is read by that column; anything else is one handle per line with
// blank lines and # comments ignored.
func ReadHandles(r io.Reader) ([]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read handles: %w", err)
	}

	text := strings.TrimPrefix(string(raw), "\ufeff")

	firstLine, _, _ := strings.Cut(text, "\n")
	if column := headerIndex(firstLine); column >= 0 {
		return readHandleColumn(text, column)
	}

	var out []string

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		out = append(out, line)
	}

	return out, nil
}

func headerIndex(line string) int {
	if !strings.Contains(line, ",") {
		return -1
	}

	for i, field := range strings.Split(line, ",") {
		if strings.EqualFold(strings.Trim(strings.TrimSpace(field), `"`), handleColumn) {
			return i
		}
	}

	return -1
}

func readHandleColumn(text string, column int) ([]string, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1

	// header
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var out []string

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}

		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}

		if column >= len(record) {
			continue
		}

		if h := strings.TrimSpace(record[column]); h != "" {
			out = append(out, h)
		}
	}
}
