// Package parser turns a framed flashcard document into Note records.
//
// A document is free text bracketed by an exact header and footer. Inside,
// a small closed command vocabulary describes notes: \deck{...},
// \model{...}, \tag{...}, \fields{...}{...}, \begin{field}{...} ...
// \end{field}, and \next, which completes the current note. The scanner
// finds every command occurrence; the builder folds the position-ordered
// stream into completed notes.
package parser

import (
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/akida/ankitex/internal/models"
)

type commandKind int

const (
	cmdDeck commandKind = iota
	cmdModel
	cmdTag
	cmdField
	cmdNext
)

// pattern pairs a command kind with its compiled regex. Capture groups are
// the command's arguments.
type pattern struct {
	kind commandKind
	re   *regexp.Regexp
}

// newPatternTable compiles the command vocabulary. The table is immutable
// after construction and shared by every Parse call on the same Parser.
func newPatternTable() []pattern {
	return []pattern{
		{cmdDeck, regexp.MustCompile(`\\deck\{([^}]*)\}`)},
		{cmdModel, regexp.MustCompile(`\\model\{([^}]*)\}`)},
		{cmdTag, regexp.MustCompile(`\\tag\{([^}]*)\}`)},
		{cmdField, regexp.MustCompile(`\\fields\{([^}]*)\}\{([^}]*)\}`)},
		{cmdField, regexp.MustCompile(`(?s)\\begin\{field\}\{([^}]*)\}(.*?)\\end\{field\}`)},
		{cmdNext, regexp.MustCompile(`\\next`)},
	}
}

// token is one recognized command occurrence in the document body.
type token struct {
	pos  int
	kind commandKind
	args []string
}

// Parser parses documents against a fixed header/footer pair.
type Parser struct {
	header   string
	footer   string
	patterns []pattern
	logger   *slog.Logger
}

// New creates a Parser for documents framed by header and footer. Both are
// matched after trimming surrounding whitespace.
func New(header, footer string, logger *slog.Logger) *Parser {
	return &Parser{
		header:   strings.TrimSpace(header),
		footer:   strings.TrimSpace(footer),
		patterns: newPatternTable(),
		logger:   logger,
	}
}

// scan returns every non-overlapping command occurrence in text, sorted by
// starting position. The sort is stable, so tokens starting at the same
// position keep pattern-table order; the vocabulary makes such ties
// impossible in practice. An unterminated \begin{field} block matches
// nothing and therefore yields no token.
func (p *Parser) scan(text string) []token {
	var tokens []token
	for _, pat := range p.patterns {
		for _, m := range pat.re.FindAllStringSubmatchIndex(text, -1) {
			t := token{pos: m[0], kind: pat.kind}
			for g := 1; 2*g < len(m); g++ {
				t.args = append(t.args, text[m[2*g]:m[2*g+1]])
			}
			tokens = append(tokens, t)
		}
	}
	sort.SliceStable(tokens, func(i, j int) bool { return tokens[i].pos < tokens[j].pos })
	return tokens
}

// Parse checks the document framing and folds the command stream into
// completed notes. Authoring mistakes (duplicate tags or fields, a \next
// with missing deck, missing model, or no fields) fail the whole parse.
// A trailing unfinished note and a document with zero completed notes are
// logged, not errors.
func (p *Parser) Parse(content string) ([]models.Note, error) {
	doc := strings.TrimSpace(content)

	body, ok := strings.CutPrefix(doc, p.header)
	if !ok {
		return nil, p.headerError(doc)
	}
	body, ok = strings.CutSuffix(body, p.footer)
	if !ok {
		return nil, p.footerError(body)
	}

	var (
		deck   string
		model  string
		tags   []string
		fields = make(map[string]string)
		notes  []models.Note
	)

	for _, tok := range p.scan(body) {
		switch tok.kind {
		case cmdDeck:
			// Last write wins; restating a deck is legal.
			deck = tok.args[0]
		case cmdModel:
			model = tok.args[0]
		case cmdTag:
			tag := tok.args[0]
			if slices.Contains(tags, tag) {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateTag, tag)
			}
			tags = append(tags, tag)
		case cmdField:
			name, value := tok.args[0], tok.args[1]
			if _, dup := fields[name]; dup {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateField, name)
			}
			fields[name] = value
		case cmdNext:
			if deck == "" {
				return nil, ErrMissingDeck
			}
			if model == "" {
				return nil, ErrMissingModel
			}
			if len(fields) == 0 {
				return nil, ErrEmptyFields
			}
			notes = append(notes, models.Note{
				Deck:   deck,
				Model:  model,
				Fields: fields,
				Tags:   tags,
			})
			deck, model = "", ""
			tags = nil
			fields = make(map[string]string)
		}
	}

	if deck != "" || model != "" || len(tags) > 0 || len(fields) > 0 {
		p.logger.Warn("dismissing unfinished note",
			slog.Any("fields", fields),
			slog.Any("tags", tags))
	}
	if len(notes) == 0 {
		p.logger.Warn("no completed notes found")
	}

	return notes, nil
}

func (p *Parser) headerError(doc string) error {
	preview := doc
	if r := []rune(doc); len(r) > 50 {
		preview = string(r[:50])
	}
	notes := []string{fmt.Sprintf("started instead with: %s", preview)}

	if i := firstDiff(doc, p.header); i >= 0 {
		notes = append(notes,
			fmt.Sprintf("they differ at char %d: required %q got %q", i, runeAt(p.header, i), runeAt(doc, i)),
			fmt.Sprintf("required line %q", lineAt(p.header, i)),
			fmt.Sprintf("got line %q", lineAt(doc, i)),
		)
	} else {
		notes = append(notes,
			fmt.Sprintf("file is too short, expected at least %d characters but it has %d", len(p.header), len(doc)))
	}

	return &FramingError{Part: "header", Notes: notes}
}

func (p *Parser) footerError(body string) error {
	tail := body
	if r := []rune(body); len(r) > 50 {
		tail = string(r[len(r)-50:])
	}
	return &FramingError{
		Part:  "footer",
		Notes: []string{fmt.Sprintf("ended instead with: %s", tail)},
	}
}

// firstDiff returns the rune position of the first difference between a
// and b, or -1 when one is a prefix of the other.
func firstDiff(a, b string) int {
	ar, br := []rune(a), []rune(b)
	n := min(len(ar), len(br))
	for i := 0; i < n; i++ {
		if ar[i] != br[i] {
			return i
		}
	}
	return -1
}

func runeAt(s string, pos int) rune {
	r := []rune(s)
	if pos < 0 || pos >= len(r) {
		return 0
	}
	return r[pos]
}

// lineAt returns the line of text containing rune position pos.
func lineAt(text string, pos int) string {
	offset := 0
	for _, line := range strings.Split(text, "\n") {
		offset += len([]rune(line)) + 1
		if offset > pos {
			return line
		}
	}
	return ""
}
