// Package models defines the domain types for ankitex.
package models

import "fmt"

// DeckSeparator separates segments of a hierarchical deck name.
const DeckSeparator = "::"

// Note represents one flashcard record.
//
// ID is set only once the remote store has assigned one; freshly parsed
// notes carry nil. Question is a rendered preview used in log messages
// only; it never participates in equivalence or storage decisions.
type Note struct {
	ID       *int64
	Deck     string
	Model    string
	Fields   map[string]string
	Tags     []string
	Question string
}

// Preview returns the diagnostic question text if present, otherwise a
// compact rendering of the field map.
func (n *Note) Preview() string {
	if n.Question != "" {
		return n.Question
	}
	return fmt.Sprintf("%v", n.Fields)
}
