/*
Package parser converts raw configuration bytes in one of three formats
(CSV, YAML, TOML) into the canonical ordered mapping defined by pkg/value.

Parsing is a pure function over its inputs: a byte buffer, a format
discriminator, and options. It enforces a maximum input size, decodes the
bytes to UTF-8 via pkg/transcode, and reports format-specific syntax errors
with line and column context. Duplicate keys resolve last-write-wins with a
recorded warning, and empty input is a distinct recoverable condition
(ErrEmptyInput) rather than a failure.
*/
package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/quillforge/quillforge/pkg/transcode"
	"github.com/quillforge/quillforge/pkg/value"
)

// MaxInputBytes is the largest config file the parser accepts.
const MaxInputBytes = 30 * 1024 * 1024

// Format discriminates the supported configuration syntaxes.
type Format int

const (
	FormatCSV Format = iota
	FormatYAML
	FormatTOML
)

func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatYAML:
		return "yaml"
	case FormatTOML:
		return "toml"
	default:
		return "unknown"
	}
}

// FormatFromExtension maps a file extension (with or without the leading
// dot) to a Format. It reports false for unsupported extensions.
func FormatFromExtension(ext string) (Format, bool) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "csv":
		return FormatCSV, true
	case "yaml", "yml":
		return FormatYAML, true
	case "toml":
		return FormatTOML, true
	default:
		return 0, false
	}
}

// Options adjust parsing behavior. The zero value is usable.
type Options struct {
	// Encoding overrides charset detection when non-empty.
	Encoding string

	// CSVRowsKey is the root key under which CSV records are collected.
	// Defaults to "csv_rows".
	CSVRowsKey string

	// FillEmpty replaces empty CSV cells with FillEmptyWith instead of
	// leaving them null.
	FillEmpty bool

	// FillEmptyWith is the replacement for empty CSV cells when FillEmpty
	// is set. Defaults to "#".
	FillEmptyWith string
}

// DefaultCSVRowsKey is the implicit root key for CSV records.
const DefaultCSVRowsKey = "csv_rows"

// Document is a parsed configuration: the canonical ordered mapping plus
// any non-fatal warnings collected along the way.
type Document struct {
	Root     *value.Map
	Format   Format
	Encoding transcode.Detection
	Warnings []string
}

// Parse converts raw bytes into a Document. The error, when non-nil, is one
// of *SizeLimitError, *transcode.EncodingError, *SyntaxError, or the
// recoverable ErrEmptyInput (which still comes with a valid empty Document).
func Parse(data []byte, format Format, opts Options) (*Document, error) {
	if len(data) > MaxInputBytes {
		return nil, &SizeLimitError{Size: len(data), Limit: MaxInputBytes}
	}

	text, det, err := transcode.ToUTF8(data, opts.Encoding)
	if err != nil {
		return nil, err
	}

	doc := &Document{Root: value.NewMap(), Format: format, Encoding: det}
	if det.Fallback {
		doc.warnf("character encoding could not be detected reliably, assuming UTF-8")
	}

	if strings.TrimSpace(text) == "" {
		return doc, ErrEmptyInput
	}

	switch format {
	case FormatCSV:
		err = parseCSV(doc, text, opts)
	case FormatYAML:
		err = parseYAML(doc, text)
	case FormatTOML:
		err = parseTOML(doc, text)
	default:
		err = fmt.Errorf("unsupported config format %d", format)
	}
	if errors.Is(err, ErrEmptyInput) {
		// Comment-only documents land here; keep the empty Document so the
		// caller can still proceed with an empty mapping.
		return doc, err
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (d *Document) warnf(format string, args ...any) {
	d.Warnings = append(d.Warnings, fmt.Sprintf(format, args...))
}
