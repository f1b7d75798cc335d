package manifest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var ErrNoURLColumn = errors.New("manifest: header has no url column")

var urlColumns = []string{"url", "link", "product_url"}

// ReadFile loads the URL list from path. See Read for the accepted formats.
func ReadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest %s: %w", path, err)
	}
	defer f.Close()

	urls, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	return urls, nil
}

// Read accepts either a CSV with a url, link or product_url header column, or a
// headerless list with one URL per line. Blank lines and lines starting with
// '#' are skipped; first occurrence wins.
func Read(r io.Reader) ([]string, error) {
	var lines [][]byte
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		lines = append(lines, append([]byte(nil), line...))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return []string{}, nil
	}

	cr := csv.NewReader(bytes.NewReader(bytes.Join(lines, []byte("\n"))))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}

	col := 0
	if looksLikeURL(rows[0]) {
		if len(rows[0]) > 1 {
			return nil, ErrNoURLColumn
		}
	} else {
		col = headerColumn(rows[0])
		if col < 0 {
			return nil, ErrNoURLColumn
		}
		rows = rows[1:]
	}

	seen := map[string]struct{}{}
	out := []string{}
	for _, row := range rows {
		if col >= len(row) {
			continue
		}
		u := strings.TrimSpace(row[col])
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out, nil
}

func looksLikeURL(row []string) bool {
	for _, cell := range row {
		c := strings.ToLower(strings.TrimSpace(cell))
		if strings.HasPrefix(c, "http://") || strings.HasPrefix(c, "https://") {
			return true
		}
	}
	return false
}

func headerColumn(header []string) int {
	for _, want := range urlColumns {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), want) {
				return i
			}
		}
	}
	return -1
}
