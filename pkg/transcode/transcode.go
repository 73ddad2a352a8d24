// Package transcode sniffs the character encoding of uploaded text and
// converts it to UTF-8. Detection never fails: when confidence is too low
// the package falls back to UTF-8 and flags the result instead of erroring.
package transcode

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/htmlindex"
)

// FallbackThreshold is the minimum detection confidence, in [0,1], below
// which the detected encoding is discarded in favor of UTF-8.
const FallbackThreshold = 0.60

// binarySniffLen is how many leading bytes are checked for NUL when
// deciding whether a payload is binary rather than text.
const binarySniffLen = 1024

// preferredEncodings are tried, in order, when the detector's guess is not
// one of them. Operation runbooks in the wild are overwhelmingly ASCII,
// UTF-8, or one of the Japanese legacy encodings.
var preferredEncodings = []string{"ascii", "shift_jis", "euc-jp", "iso-2022-jp", "utf-8"}

// Detection is the outcome of a charset sniff.
type Detection struct {
	// Encoding is a WHATWG encoding label such as "utf-8" or "shift_jis".
	Encoding string
	// Confidence is the detector's score in [0,1].
	Confidence float64
	// Fallback is set when the score was below FallbackThreshold and
	// Encoding was forced to UTF-8.
	Fallback bool
}

// EncodingError reports input that could not be decoded as text.
type EncodingError struct {
	Encoding string
	Reason   string
}

func (e *EncodingError) Error() string {
	if e.Encoding == "" {
		return "encoding error: " + e.Reason
	}
	return fmt.Sprintf("encoding error (%s): %s", e.Encoding, e.Reason)
}

// IsBinary reports whether data looks like a binary payload. Text files do
// not contain NUL bytes; a NUL in the leading chunk disqualifies the input.
func IsBinary(data []byte) bool {
	chunk := data
	if len(chunk) > binarySniffLen {
		chunk = chunk[:binarySniffLen]
	}
	return bytes.IndexByte(chunk, 0) >= 0
}

// Detect sniffs the character encoding of data. It never fails: inputs the
// detector cannot classify come back as UTF-8 with the Fallback flag set.
func Detect(data []byte) Detection {
	if len(data) == 0 {
		return Detection{Encoding: "utf-8", Confidence: 1}
	}

	res, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil {
		return Detection{Encoding: "utf-8", Fallback: true}
	}

	enc := normalizeLabel(res.Charset)
	conf := float64(res.Confidence) / 100

	if isPreferred(enc) {
		return Detection{Encoding: enc, Confidence: conf}
	}

	// The detector leans toward Western charsets for short inputs. Before
	// trusting an unusual guess, try the preferred encodings by decoding
	// strictly; the first that round-trips wins.
	for _, candidate := range preferredEncodings {
		if _, err := decodeStrict(data, candidate); err == nil {
			return Detection{Encoding: candidate, Confidence: conf}
		}
	}

	if conf < FallbackThreshold {
		return Detection{Encoding: "utf-8", Confidence: conf, Fallback: true}
	}
	return Detection{Encoding: enc, Confidence: conf}
}

// ToUTF8 decodes data into a UTF-8 string. When override is empty the
// encoding is detected; otherwise override must be a known encoding label.
// Binary payloads and undecodable sequences return an *EncodingError.
func ToUTF8(data []byte, override string) (string, Detection, error) {
	if IsBinary(data) {
		return "", Detection{}, &EncodingError{Reason: "input contains NUL bytes, not a text file"}
	}

	if override != "" {
		label := normalizeLabel(override)
		text, err := decodeStrict(data, label)
		if err != nil {
			return "", Detection{Encoding: label, Confidence: 1}, err
		}
		return text, Detection{Encoding: label, Confidence: 1}, nil
	}

	det := Detect(data)
	text, err := decodeStrict(data, det.Encoding)
	if err == nil {
		return text, det, nil
	}
	if det.Encoding != "utf-8" {
		// Last resort mirrors the detector's own fallback policy.
		if text, uerr := decodeStrict(data, "utf-8"); uerr == nil {
			det.Encoding = "utf-8"
			det.Fallback = true
			return text, det, nil
		}
	}
	return "", det, err
}

// decodeStrict decodes data with the named encoding and rejects any byte
// sequence that does not cleanly map into Unicode.
func decodeStrict(data []byte, label string) (string, error) {
	switch label {
	case "ascii":
		for _, b := range data {
			if b >= utf8.RuneSelf {
				return "", &EncodingError{Encoding: label, Reason: "non-ASCII byte"}
			}
		}
		return string(data), nil
	case "utf-8":
		if !utf8.Valid(data) {
			return "", &EncodingError{Encoding: label, Reason: "invalid UTF-8 sequence"}
		}
		return string(data), nil
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		return "", &EncodingError{Encoding: label, Reason: "unknown encoding"}
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", &EncodingError{Encoding: label, Reason: err.Error()}
	}
	// The x/text decoders substitute U+FFFD for unmappable bytes rather
	// than failing, so a replacement rune marks a failed decode here.
	if bytes.ContainsRune(out, utf8.RuneError) && !bytes.ContainsRune(data, utf8.RuneError) {
		return "", &EncodingError{Encoding: label, Reason: "unmappable byte sequence"}
	}
	return string(out), nil
}

// Encode converts UTF-8 text into the named encoding, for download output.
func Encode(text string, label string) ([]byte, error) {
	label = normalizeLabel(label)
	if label == "utf-8" || label == "ascii" {
		return []byte(text), nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, &EncodingError{Encoding: label, Reason: "unknown encoding"}
	}
	out, err := enc.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, &EncodingError{Encoding: label, Reason: err.Error()}
	}
	return out, nil
}

func normalizeLabel(name string) string {
	label := strings.ToLower(strings.TrimSpace(name))
	label = strings.ReplaceAll(label, " ", "-")
	switch label {
	case "utf8":
		return "utf-8"
	case "shift-jis", "sjis":
		return "shift_jis"
	case "us-ascii":
		return "ascii"
	}
	return label
}

func isPreferred(label string) bool {
	for _, p := range preferredEncodings {
		if p == label {
			return true
		}
	}
	return false
}
