package source

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/japaniel/ankify/pkg/domain"
)

// ReadTable reads a CSV or TSV file whose first line is the header row.
// The file must be UTF-8.
func ReadTable(path string) ([]string, []Record, error) {
	data, err := readUTF8(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read table: %w", err)
	}

	comma := ','
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		comma = '\t'
	}
	return parseTable(bytes.NewReader(data), comma)
}

// readUTF8 reads path and rejects content that is not valid UTF-8. Only
// subtitles fall back to a legacy encoding.
func readUTF8(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8", domain.ErrUnsupportedFormat, path)
	}
	return data, nil
}

func parseTable(r io.Reader, comma rune) ([]string, []Record, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	headers, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("%w: file is empty", domain.ErrMissingHeader)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\ufeff")
	}
	if !hasName(headers) {
		return nil, nil, fmt.Errorf("%w: header row has no column names", domain.ErrMissingHeader)
	}

	var records []Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read row %d: %w", len(records)+1, err)
		}
		values := make(map[string]string, len(headers))
		for i, h := range headers {
			// Duplicate column names: the rightmost value wins.
			if i < len(row) {
				values[h] = row[i]
			} else if _, ok := values[h]; !ok {
				values[h] = ""
			}
		}
		records = append(records, Record{Row: len(records) + 1, Values: values})
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%w: no data rows", domain.ErrEmptyData)
	}
	return headers, records, nil
}

func hasName(headers []string) bool {
	for _, h := range headers {
		if strings.TrimSpace(h) != "" {
			return true
		}
	}
	return false
}

// ReadLines reads a UTF-8 sentence list: lines are trimmed, blank lines
// and lines starting with "#" are dropped.
func ReadLines(path string) ([]string, error) {
	data, err := readUTF8(path)
	if err != nil {
		return nil, fmt.Errorf("read lines: %w", err)
	}
	return scanLines(bytes.NewReader(data))
}

func scanLines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan lines: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no sentences found", domain.ErrEmptyData)
	}
	return out, nil
}
