// Package textsource supplies decoded text to the detector. Inputs that are
// not valid UTF-8 are decoded lossily instead of rejected, so corruption in
// the bytes surfaces as replacement characters the detector can see.
package textsource

import (
	"fmt"
	"io"
	"os"
	"unicode/utf8"
)

// Decode interprets data as UTF-8. Invalid input is re-decoded with U+FFFD
// substituted for each byte that is not part of a valid sequence; the rune
// round trip performs exactly that substitution.
func Decode(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return string([]rune(string(data)))
}

// ReadFile returns the decoded contents of path.
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return Decode(data), nil
}

// ReadAll drains r, up to maxBytes when maxBytes > 0, and decodes the result.
func ReadAll(r io.Reader, maxBytes int64) (string, error) {
	var limited io.Reader = r
	if maxBytes > 0 {
		limited = io.LimitReader(r, maxBytes)
	}
	data, err := io.ReadAll(limited)
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return Decode(data), nil
}
