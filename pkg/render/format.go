package render

import "regexp"

// Format selects whitespace post-processing applied to rendered output.
// Substitution results inside lines are never touched; these modes only
// reshape blank lines and line-break runs.
type Format int

const (
	// FormatRaw leaves the output exactly as the template produced it.
	FormatRaw Format = iota
	// FormatCompressBlank collapses every run of blank lines into one.
	FormatCompressBlank
	// FormatNormalizeBreaks reduces runs of three or more newlines to two.
	FormatNormalizeBreaks
	// FormatCompressAndNormalize applies both of the above.
	FormatCompressAndNormalize
	// FormatStripBlank removes blank lines entirely.
	FormatStripBlank
)

var (
	blankRunRe  = regexp.MustCompile(`\n(?:[ \t]*\n)+`)
	breakRunRe  = regexp.MustCompile(`\n{3,}`)
	blankLineRe = regexp.MustCompile(`(?m)^[ \t]*\n`)
)

func applyFormat(text string, f Format) string {
	switch f {
	case FormatCompressBlank:
		return blankRunRe.ReplaceAllString(text, "\n\n")
	case FormatNormalizeBreaks:
		return breakRunRe.ReplaceAllString(text, "\n\n")
	case FormatCompressAndNormalize:
		return breakRunRe.ReplaceAllString(blankRunRe.ReplaceAllString(text, "\n\n"), "\n\n")
	case FormatStripBlank:
		return blankLineRe.ReplaceAllString(text, "")
	default:
		return text
	}
}
