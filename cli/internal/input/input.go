// Package input reads row payloads for a load run.
//
// Three shapes are accepted: a JSON array of rows, a single JSON object
// (treated as a one-row load), and newline-delimited JSON with one row per
// line. The shape is detected from the first non-whitespace byte and, for
// objects, from whether more documents follow.
package input

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
)

// ReadFile reads rows from a file on the given filesystem.
func ReadFile(fs afero.Fs, path string) ([]interface{}, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input %s: %w", path, err)
	}
	defer f.Close()
	rows, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read input %s: %w", path, err)
	}
	return rows, nil
}

// Read decodes rows from r.
func Read(r io.Reader) ([]interface{}, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("input is empty")
	}

	if trimmed[0] == '[' {
		var rows []interface{}
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, fmt.Errorf("invalid JSON array: %w", err)
		}
		return rows, nil
	}

	return readDocuments(trimmed)
}

// readDocuments handles both a single JSON object and NDJSON. A stream
// decoder consumes documents one at a time, so a lone object and an
// object-per-line file take the same path.
func readDocuments(data []byte) ([]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var rows []interface{}
	for {
		var row interface{}
		if err := dec.Decode(&row); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("invalid JSON at document %d: %w", len(rows)+1, err)
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("input is empty")
	}
	return rows, nil
}

// ReadNDJSON decodes strictly line-delimited rows, skipping blank lines.
// Unlike Read it rejects multi-line documents, which makes malformed lines
// report an accurate line number.
func ReadNDJSON(r io.Reader) ([]interface{}, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var rows []interface{}
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var row interface{}
		if err := json.Unmarshal([]byte(text), &row); err != nil {
			return nil, fmt.Errorf("invalid JSON on line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}
