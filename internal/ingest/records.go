package ingest

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aidanlsb/tracemacro/internal/paths"
	"github.com/aidanlsb/tracemacro/internal/uid"
)

// Record is one macro invocation reported by the source scanner.
//
// Scanners write records one per line, tab separated:
//
//	file<TAB>line<TAB>column<TAB>macro<TAB>token
//
// Blank lines and lines starting with '#' are ignored. The token is the
// rest of the line and may itself contain tabs. File paths are normalized
// with paths.NormalizeSourcePath.
type Record struct {
	Location uid.Location
	Macro    string
	Token    string
}

// ParseRecords reads scanner records from r.
func ParseRecords(r io.Reader) ([]Record, error) {
	var records []Record

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rec, err := parseRecord(line)
		if err != nil {
			return nil, fmt.Errorf("record line %d: %w", lineNo, err)
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	return records, nil
}

func parseRecord(line string) (Record, error) {
	parts := strings.SplitN(line, "\t", 5)
	if len(parts) != 5 {
		return Record{}, fmt.Errorf("expected 5 tab-separated fields, got %d", len(parts))
	}

	file := paths.NormalizeSourcePath(parts[0])
	if file == "" {
		return Record{}, fmt.Errorf("file is empty")
	}
	lineNum, err := parseNonNegative(parts[1], "line")
	if err != nil {
		return Record{}, err
	}
	col, err := parseNonNegative(parts[2], "column")
	if err != nil {
		return Record{}, err
	}
	macroName := strings.TrimSpace(parts[3])
	if macroName == "" {
		return Record{}, fmt.Errorf("macro name is empty")
	}

	return Record{
		Location: uid.Location{File: file, Line: lineNum, Column: col},
		Macro:    macroName,
		Token:    parts[4],
	}, nil
}

func parseNonNegative(s, field string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", field, s)
	}
	return n, nil
}

// FormatRecord renders a record in scanner line format.
func FormatRecord(r Record) string {
	return fmt.Sprintf("%s\t%d\t%d\t%s\t%s", r.Location.File, r.Location.Line, r.Location.Column, r.Macro, r.Token)
}

// Unit is the records of one source file, in scan order.
type Unit struct {
	File    string
	Records []Record
}

// GroupUnits splits records into source units by file, keeping the order in
// which files first appear.
func GroupUnits(records []Record) []Unit {
	var units []Unit
	byFile := make(map[string]int)
	for _, r := range records {
		i, ok := byFile[r.Location.File]
		if !ok {
			i = len(units)
			byFile[r.Location.File] = i
			units = append(units, Unit{File: r.Location.File})
		}
		units[i].Records = append(units[i].Records, r)
	}
	return units
}
