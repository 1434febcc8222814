// Package match decides whether two notes carry the same content.
//
// Deck, model, and the exact tag sequence must match. Field text is
// compared after canonicalization because field values round-trip through
// the remote store's rendering layer, which re-wraps whitespace and
// escapes angle brackets; tags are short structured markers and do not
// drift that way.
package match

import (
	"maps"
	"slices"
	"strings"
	"unicode"

	"github.com/akida/ankitex/internal/models"
)

// canonical strips all whitespace and unescapes the two HTML entities the
// remote store introduces for angle brackets.
func canonical(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	out := strings.ReplaceAll(b.String(), "&gt;", ">")
	return strings.ReplaceAll(out, "&lt;", "<")
}

type fieldPair struct {
	name  string
	value string
}

// canonicalFields builds the comparison set of (name, value) pairs.
// Empty-valued fields are excluded; a stored note omits fields the author
// never filled in.
func canonicalFields(fields map[string]string) map[fieldPair]struct{} {
	set := make(map[fieldPair]struct{}, len(fields))
	for name, value := range fields {
		if value == "" {
			continue
		}
		set[fieldPair{canonical(name), canonical(value)}] = struct{}{}
	}
	return set
}

// Equivalent reports whether a and b carry the same content. Identifiers
// and question previews never participate; the comparison has no side
// effects.
func Equivalent(a, b *models.Note) bool {
	if a.Deck != b.Deck || a.Model != b.Model {
		return false
	}
	if !slices.Equal(a.Tags, b.Tags) {
		return false
	}
	return maps.Equal(canonicalFields(a.Fields), canonicalFields(b.Fields))
}

// IDConflict reports whether two notes already judged equivalent carry
// different assigned identifiers. Callers log this as a data
// inconsistency; the equivalence verdict is unaffected.
func IDConflict(a, b *models.Note) bool {
	return a.ID != nil && b.ID != nil && *a.ID != *b.ID
}
