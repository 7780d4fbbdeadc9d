package api

import (
	"net/url"
	"unicode/utf8"
)

// EncodePath percent-encodes p with the path-safe character set. Slashes are
// kept as separators. Only malformed input (invalid UTF-8) fails.
func EncodePath(p string) (string, error) {
	if !utf8.ValidString(p) {
		return "", &URLEncodingError{Path: p}
	}
	return (&url.URL{Path: p}).EscapedPath(), nil
}
