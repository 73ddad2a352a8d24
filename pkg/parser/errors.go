package parser

import (
	"errors"
	"fmt"
)

// ErrEmptyInput marks zero-byte or whitespace-only input. It is a
// recoverable condition: Parse still returns a valid empty Document
// alongside it, so callers may treat "no configuration" as an empty
// mapping instead of a hard failure.
var ErrEmptyInput = errors.New("config input is empty")

// SizeLimitError reports input larger than the parser accepts.
type SizeLimitError struct {
	Size  int
	Limit int
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("config file size %d exceeds the maximum limit of %d bytes", e.Size, e.Limit)
}

// SyntaxError reports malformed input with source position context.
// Line and Column are 1-based; zero means the position is unknown.
type SyntaxError struct {
	Format  Format
	Line    int
	Column  int
	Message string
}

func (e *SyntaxError) Error() string {
	switch {
	case e.Line > 0 && e.Column > 0:
		return fmt.Sprintf("%s syntax error at line %d, column %d: %s", e.Format, e.Line, e.Column, e.Message)
	case e.Line > 0:
		return fmt.Sprintf("%s syntax error at line %d: %s", e.Format, e.Line, e.Message)
	default:
		return fmt.Sprintf("%s syntax error: %s", e.Format, e.Message)
	}
}
