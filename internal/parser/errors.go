package parser

import (
	"errors"
	"fmt"
	"strings"
)

// Authoring errors abort the parse of the whole document.
var (
	ErrDuplicateTag   = errors.New("tag added multiple times")
	ErrDuplicateField = errors.New("field already added")
	ErrMissingDeck    = errors.New("select a deck before ending a note")
	ErrMissingModel   = errors.New("select a model before ending a note")
	ErrEmptyFields    = errors.New("cannot add note without fields")
)

// FramingError reports a document that does not start with the required
// header or end with the required footer. Notes carry positional context
// to help locate the drift.
type FramingError struct {
	Part  string // "header" or "footer"
	Notes []string
}

func (e *FramingError) Error() string {
	verb := "start"
	if e.Part == "footer" {
		verb = "end"
	}
	msg := fmt.Sprintf("document does not %s with the required %s", verb, e.Part)
	if len(e.Notes) > 0 {
		msg += "\n  " + strings.Join(e.Notes, "\n  ")
	}
	return msg
}
