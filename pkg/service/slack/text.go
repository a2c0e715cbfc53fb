package slack

import "unicode/utf8"

// maxFieldBytes is below Slack's limit of 2000 characters for section fields
const maxFieldBytes = 1900

// truncateText cuts s to at most maxBytes bytes without splitting a UTF-8
// sequence, appending "…" when shortened.
func truncateText(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	const ellipsis = "…"
	limit := maxBytes - len(ellipsis)
	if limit <= 0 {
		return ""
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit] + ellipsis
}
