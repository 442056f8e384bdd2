// Package fragment parses and encodes the key/value pairs carried in a
// URL fragment or query string, matching what a browser page sees in
// location.hash after an implicit-flow redirect.
package fragment

import (
	"net/url"
	"strings"
)

// Parse splits s into key/value pairs joined by "&". A single leading
// "#" or "?" is ignored. Keys and values are percent-decoded and "+" in
// a value decodes to a space. A pair without "=" yields an empty value.
// Sequences that fail to decode are kept verbatim. When a key repeats,
// the last occurrence wins. An empty input yields an empty map.
func Parse(s string) map[string]string {
	params := make(map[string]string)

	s = strings.TrimPrefix(s, "#")
	if s == "" {
		return params
	}

	if strings.HasPrefix(s, "?") {
		s = s[1:]
	}

	for _, pair := range strings.Split(s, "&") {
		if pair == "" {
			continue
		}

		rawKey, rawValue, _ := strings.Cut(pair, "=")
		if rawKey == "" {
			continue
		}

		value := ""
		if rawValue != "" {
			value = decode(strings.ReplaceAll(rawValue, "+", " "), rawValue)
		}

		params[decode(rawKey, rawKey)] = value
	}

	return params
}

// decode percent-decodes s, returning fallback when s is malformed.
func decode(s, fallback string) string {
	out, err := url.PathUnescape(s)
	if err != nil {
		return fallback
	}

	return out
}

// componentKeep lists the characters url.QueryEscape escapes but a
// browser's encodeURIComponent leaves alone.
var componentKeep = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EncodeComponent escapes s for use as a single URL component, the
// same way encodeURIComponent does: everything except letters, digits
// and -_.!~*'() is percent-encoded, and spaces become %20.
func EncodeComponent(s string) string {
	return componentKeep.Replace(url.QueryEscape(s))
}
