/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package importcsv reads categories from CSV: one category per line, the
// first field naming the category and the rest listing its answers.
package importcsv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Seednode/quizbox/conflict"
)

var (
	ErrNoRows      = errors.New("no importable rows")
	ErrHeaderRange = errors.New("header row out of range")
)

// Row is one importable line.
type Row struct {
	Category string   `json:"category"`
	Answers  []string `json:"answers"`
	Line     int      `json:"line"`
}

// Incoming converts r to an import candidate labelled "<source>:<line>".
func (r Row) Incoming(source string) conflict.Incoming {
	label := fmt.Sprintf("line %d", r.Line)
	if source != "" {
		label = fmt.Sprintf("%s:%d", source, r.Line)
	}
	return conflict.Incoming{
		Name:    r.Category,
		Answers: append([]string(nil), r.Answers...),
		Source:  label,
	}
}

// Parse reads every row with a category and at least one answer. Fields are
// trimmed, blank answers dropped, and lines that end up with no category or
// no answers are skipped.
func Parse(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	var rows []Row
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		if len(record) < 2 {
			continue
		}

		name := strings.TrimSpace(record[0])
		if name == "" {
			continue
		}

		var answers []string
		for _, field := range record[1:] {
			if a := strings.TrimSpace(field); a != "" {
				answers = append(answers, a)
			}
		}
		if len(answers) == 0 {
			continue
		}

		line, _ := cr.FieldPos(0)
		rows = append(rows, Row{Category: name, Answers: answers, Line: line})
	}

	if len(rows) == 0 {
		return nil, ErrNoRows
	}

	return rows, nil
}

// WithHeader treats rows[h] as a header: every row's category becomes
// "<header category> - <category>" and its i-th answer becomes
// "<header answer i> - <answer>", with an empty header answer when the
// header is shorter. The header row itself is prefixed too.
func WithHeader(rows []Row, h int) ([]Row, error) {
	if h < 0 || h >= len(rows) {
		return nil, fmt.Errorf("%w: %d of %d", ErrHeaderRange, h, len(rows))
	}
	header := rows[h]

	out := make([]Row, len(rows))
	for i, r := range rows {
		answers := make([]string, len(r.Answers))
		for j, a := range r.Answers {
			prefix := ""
			if j < len(header.Answers) {
				prefix = header.Answers[j]
			}
			answers[j] = prefix + " - " + a
		}
		out[i] = Row{
			Category: header.Category + " - " + r.Category,
			Answers:  answers,
			Line:     r.Line,
		}
	}

	return out, nil
}

// Select keeps the rows at the given indices, in the order given. A nil
// selection keeps every row.
func Select(rows []Row, indices []int) ([]Row, error) {
	if indices == nil {
		return rows, nil
	}

	out := make([]Row, 0, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(rows) {
			return nil, fmt.Errorf("row %d out of range [0,%d)", i, len(rows))
		}
		out = append(out, rows[i])
	}

	return out, nil
}

// Incoming converts rows to import candidates.
func Incoming(rows []Row, source string) []conflict.Incoming {
	out := make([]conflict.Incoming, len(rows))
	for i, r := range rows {
		out[i] = r.Incoming(source)
	}
	return out
}
