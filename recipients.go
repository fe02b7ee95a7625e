package bulkmailer

import (
	"bufio"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strings"
)

// Fallback values applied when an optional CSV field is missing or empty.
var fieldFallbacks = map[string]string{
	"name":    "there",
	"company": "",
}

// Recipient is one CSV row. Created once at load time, immutable thereafter.
type Recipient struct {
	// Email is the raw email cell, trimmed. May be empty or invalid; the
	// runner converts such rows to Failed outcomes.
	Email string

	// Fields holds every CSV column for this row, keyed by the lowercased
	// trimmed column name. Available to templates as ${field}.
	Fields map[string]string
}

// Field returns the named field, applying the documented fallback when the
// value is missing or empty and a fallback exists.
func (r Recipient) Field(key string) (string, bool) {
	if v, ok := r.Fields[key]; ok && v != "" {
		return v, true
	}
	if fb, ok := fieldFallbacks[key]; ok {
		return fb, true
	}
	v, ok := r.Fields[key]
	return v, ok
}

// Name returns the recipient's name, or the "there" fallback.
func (r Recipient) Name() string {
	v, _ := r.Field("name")
	return v
}

// Company returns the recipient's company, or the empty string.
func (r Recipient) Company() string {
	v, _ := r.Field("company")
	return v
}

// LoadRecipients parses the CSV at path into an ordered recipient list.
// The header row is required and must contain an email column; column names
// are trimmed and lowercased. Rows with no non-empty cell are dropped.
// Returns a DataError if the file is unreadable, empty, or missing the
// email column.
func LoadRecipients(path string) ([]Recipient, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, NewDataError(path, "cannot open recipients file", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, NewDataError(path, "file is empty or missing header row", nil)
		}
		return nil, NewDataError(path, "cannot read header row", err)
	}

	columns := make([]string, len(header))
	hasEmail := false
	for i, h := range header {
		columns[i] = strings.ToLower(strings.TrimSpace(h))
		if columns[i] == "email" {
			hasEmail = true
		}
	}
	if !hasEmail {
		return nil, NewDataError(path, "missing required column: email", ErrMissingEmailColumn)
	}

	var recipients []Recipient
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, NewDataError(path, "malformed CSV row", err)
		}

		fields := make(map[string]string, len(columns))
		empty := true
		for i, col := range columns {
			if col == "" || i >= len(record) {
				continue
			}
			value := strings.TrimSpace(record[i])
			fields[col] = value
			if value != "" {
				empty = false
			}
		}
		if empty {
			continue
		}

		recipients = append(recipients, Recipient{
			Email:  fields["email"],
			Fields: fields,
		})
	}

	if len(recipients) == 0 {
		return nil, NewDataError(path, "no recipient rows", ErrNoRecipients)
	}
	return recipients, nil
}

// LoadSuppressions reads a suppression list, one address per line, matched
// case-insensitively. A missing file yields an empty set; blank lines are
// ignored.
func LoadSuppressions(path string) (map[string]struct{}, error) {
	suppressed := make(map[string]struct{})
	if path == "" {
		return suppressed, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return suppressed, nil
		}
		return nil, NewDataError(path, "cannot open suppressions file", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if line == "" {
			continue
		}
		suppressed[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, NewDataError(path, "cannot read suppressions file", err)
	}
	return suppressed, nil
}
