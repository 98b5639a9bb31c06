package main

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// textPolicy strips every tag; the page renders chat content as plain text,
// so anything that survives markup stripping is display-safe.
var textPolicy = bluemonday.StrictPolicy()

// sanitizeText removes HTML from backend-originated text (message content,
// usernames, room names) before it crosses into the page. The result is
// plain text, not markup: Sanitize entity-encodes whatever survives the
// strip, so it is unescaped again afterwards (the page escapes once more
// for display).
func sanitizeText(s string) string {
	if s == "" {
		return ""
	}
	stripped := textPolicy.Sanitize(html.UnescapeString(s))
	return strings.TrimSpace(html.UnescapeString(stripped))
}
