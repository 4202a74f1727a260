package logging

import (
	"log/slog"
	"sort"
	"strings"
)

// RedactedValue replaces sensitive values in log output.
const RedactedValue = "[REDACTED]"

// Keys are matched case-insensitively, so entries are stored lower-case.
var redactionAllowlist = map[string]struct{}{
	"service":   {},
	"env":       {},
	"error":     {},
	"op":        {},
	"code":      {},
	"event":     {},
	"route":     {},
	"method":    {},
	"status":    {},
	"requestid": {},
	"gig":       {},
	"order":     {},
	"asset":     {},
	"seq":       {},
}

// IsAllowlisted reports whether the provided key is exempt from automatic redaction.
func IsAllowlisted(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	_, ok := redactionAllowlist[normalized]
	return ok
}

// RedactionAllowlist returns the allowlisted keys in sorted order.
func RedactionAllowlist() []string {
	keys := make([]string, 0, len(redactionAllowlist))
	for key := range redactionAllowlist {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MaskValue replaces a non-empty value with RedactedValue.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// MaskHeader redacts a credential-bearing header value while keeping its
// scheme visible, e.g. "Bearer [REDACTED]".
func MaskHeader(value string) string {
	scheme, rest, found := strings.Cut(strings.TrimSpace(value), " ")
	if !found || strings.TrimSpace(rest) == "" {
		return MaskValue(value)
	}
	return scheme + " " + RedactedValue
}

// MaskField builds a string attribute whose value is redacted unless key is
// allowlisted.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}
