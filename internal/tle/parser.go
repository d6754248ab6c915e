package tle

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ParseCatalog reads 3-line NORAD TLE text from r and returns the parsed
// element sets. Malformed entries are skipped with a warning log.
// Two-line entries without a name line are accepted and named by catalog number.
func ParseCatalog(r io.Reader, logger *slog.Logger) ([]TLE, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}

	var entries []TLE
	for i := 0; i < len(lines); {
		name := ""
		if !isElementLine(lines[i], '1') {
			name = lines[i]
			i++
		}
		if i+1 >= len(lines) {
			if name != "" {
				logger.Warn("skipping truncated TLE entry", "line_index", i, "name", name)
			}
			break
		}

		line1, line2 := lines[i], lines[i+1]
		if !isElementLine(line1, '1') || !isElementLine(line2, '2') {
			// Resynchronize on the next line.
			logger.Warn("skipping malformed TLE entry", "line_index", i, "name", name)
			if name == "" {
				i++
			}
			continue
		}
		i += 2

		entry, err := Parse(name, line1, line2)
		if err != nil {
			logger.Warn("skipping TLE entry", "name", name, "error", err)
			continue
		}
		if d := entry.Defaulted(); len(d) > 0 {
			logger.Warn("TLE fields defaulted to zero", "name", entry.Name, "norad_id", entry.CatalogNumber, "fields", d)
		}
		if entry.Name == "" {
			entry.Name = fmt.Sprintf("NORAD %d", entry.CatalogNumber)
		}
		entries = append(entries, entry)
	}

	if len(entries) == 0 && len(lines) > 0 {
		return nil, errors.New("no valid TLE entries found")
	}
	return entries, nil
}

func isElementLine(line string, number byte) bool {
	return len(line) >= 2 && line[0] == number && line[1] == ' '
}
