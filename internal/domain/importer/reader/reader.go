// Package reader loads export files from disk and normalizes their text
// encoding. WeChat exports are plain UTF-8 while Alipay still ships GBK, so
// decoding is attempted in that order.
package reader

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
)

var (
	// ErrFileNotFound reports a missing input file.
	ErrFileNotFound = errors.New("reader: file not found")
	// ErrUndecodable reports content that is neither valid UTF-8 nor GBK.
	ErrUndecodable = errors.New("reader: content is not valid UTF-8 or GBK")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadFile loads path and returns its content decoded to UTF-8.
// A leading byte order mark is stripped.
func ReadFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Decode(raw)
}

// Decode converts raw bytes to a UTF-8 string, trying UTF-8 first and
// falling back to GBK. A decode that would require substitution characters
// is rejected rather than silently corrupting merchant names.
func Decode(raw []byte) (string, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)

	if utf8.Valid(raw) {
		return string(raw), nil
	}

	decoded, err := simplifiedchinese.GBK.NewDecoder().Bytes(raw)
	if err != nil || bytes.ContainsRune(decoded, utf8.RuneError) {
		return "", ErrUndecodable
	}
	return string(decoded), nil
}

// Lines splits decoded content into lines, tolerating CRLF endings.
func Lines(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return strings.Split(content, "\n")
}
