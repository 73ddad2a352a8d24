package parser

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/quillforge/quillforge/pkg/value"
)

// parseCSV reads the first row as field names and every subsequent row as
// one record. Records are collected, in file order, into a list under the
// configured root key so templates can range over them.
func parseCSV(doc *Document, text string, opts Options) error {
	rowsKey := opts.CSVRowsKey
	if rowsKey == "" {
		rowsKey = DefaultCSVRowsKey
	}

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = 0 // every row must match the header width

	header, err := r.Read()
	if err != nil {
		return csvSyntaxError(err)
	}

	warnedDup := map[string]bool{}
	seen := map[string]bool{}
	for _, name := range header {
		if seen[name] && !warnedDup[name] {
			doc.warnf("duplicate CSV header %q: later columns overwrite earlier ones", name)
			warnedDup[name] = true
		}
		seen[name] = true
	}

	rows := value.List{}
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return csvSyntaxError(err)
		}
		row := value.NewMap()
		for i, field := range record {
			row.Set(header[i], csvCell(field, opts))
		}
		rows = append(rows, row)
	}

	doc.Root.Set(rowsKey, rows)
	return nil
}

// csvCell coerces a field into the narrowest unambiguous type: integers,
// floats, and the literals true/false keep their types, everything else
// stays a string. Empty cells are null unless the fill option is on.
func csvCell(field string, opts Options) value.Value {
	if field == "" {
		if opts.FillEmpty {
			fill := opts.FillEmptyWith
			if fill == "" {
				fill = "#"
			}
			return value.String(fill)
		}
		return value.Null{}
	}
	if i, err := strconv.ParseInt(field, 10, 64); err == nil {
		return value.Int(i)
	}
	if f, err := strconv.ParseFloat(field, 64); err == nil {
		return value.Float(f)
	}
	switch field {
	case "true":
		return value.Bool(true)
	case "false":
		return value.Bool(false)
	}
	return value.String(field)
}

func csvSyntaxError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &SyntaxError{
			Format:  FormatCSV,
			Line:    pe.Line,
			Column:  pe.Column,
			Message: pe.Err.Error(),
		}
	}
	return &SyntaxError{Format: FormatCSV, Message: err.Error()}
}
