package parse

import (
	"bufio"
	"io"
	"strings"

	"github.com/tallyhq/tally/pkg/errors"
	"github.com/tallyhq/tally/pkg/normalize"
)

// column indexes a raw-record field by header name. Header matching is
// case-insensitive and tolerant of spaces vs underscores.
var columns = map[string]func(*normalize.RawRecord, string){
	"activity":    func(r *normalize.RawRecord, v string) { r.Activity = v },
	"name":        func(r *normalize.RawRecord, v string) { r.Activity = v },
	"start time":  func(r *normalize.RawRecord, v string) { r.Start = v },
	"start":       func(r *normalize.RawRecord, v string) { r.Start = v },
	"end time":    func(r *normalize.RawRecord, v string) { r.End = v },
	"end":         func(r *normalize.RawRecord, v string) { r.End = v },
	"category":    func(r *normalize.RawRecord, v string) { r.Category = v },
	"description": func(r *normalize.RawRecord, v string) { r.Description = v },
	"tags":        func(r *normalize.RawRecord, v string) { r.Tags = v },
}

// TSV parses tab-separated records. The first non-empty line is the
// header; column order is free, unknown columns are ignored, and short
// rows leave the missing trailing fields empty.
func TSV(r io.Reader) ([]normalize.RawRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		setters []func(*normalize.RawRecord, string)
		records []normalize.RawRecord
		lineNo  int
	)

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Split(line, "\t")

		if setters == nil {
			var err error
			setters, err = headerSetters(fields, lineNo)
			if err != nil {
				return nil, err
			}
			continue
		}

		var rec normalize.RawRecord
		for i, field := range fields {
			if i >= len(setters) {
				break
			}
			if setters[i] != nil {
				setters[i](&rec, strings.TrimSpace(field))
			}
		}
		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.NewParseError("tsv", "", "reading input", err)
	}
	if setters == nil {
		return nil, errors.NewParseError("tsv", "", "missing header row", nil)
	}
	return records, nil
}

// headerSetters resolves the header row into per-column field setters.
// A header that names none of the known columns is rejected.
func headerSetters(fields []string, lineNo int) ([]func(*normalize.RawRecord, string), error) {
	setters := make([]func(*normalize.RawRecord, string), len(fields))
	known := 0
	for i, name := range fields {
		key := strings.ToLower(strings.TrimSpace(name))
		key = strings.ReplaceAll(key, "_", " ")
		if setter, ok := columns[key]; ok {
			setters[i] = setter
			known++
		}
	}
	if known == 0 {
		return nil, &errors.ParseError{
			Format:  "tsv",
			Line:    lineNo,
			Message: "header row contains no recognized columns",
		}
	}
	return setters, nil
}
