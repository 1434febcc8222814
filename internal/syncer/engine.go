// Package syncer drives the parse-validate-diff-create cycle that keeps
// the remote note store in line with the documents on disk.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/akida/ankitex/internal/anki"
	"github.com/akida/ankitex/internal/cache"
	"github.com/akida/ankitex/internal/checksum"
	"github.com/akida/ankitex/internal/match"
	"github.com/akida/ankitex/internal/models"
	"github.com/akida/ankitex/internal/parser"
)

// Store is the remote note-store surface the engine consumes.
// *anki.Client implements it.
type Store interface {
	DeckNames(ctx context.Context) ([]string, error)
	ModelNames(ctx context.Context) ([]string, error)
	ModelFieldNamesMulti(ctx context.Context, models []string) ([][]string, error)
	FindNotes(ctx context.Context, query string) ([]int64, error)
	NotesInfo(ctx context.Context, ids []int64) ([]anki.NoteInfo, error)
	CardsInfo(ctx context.Context, ids []int64) ([]anki.CardInfo, error)
	AddNote(ctx context.Context, note anki.NoteParams) (*int64, error)
	CreateDeck(ctx context.Context, name string) (*int64, error)
}

var _ Store = (*anki.Client)(nil)

// Field values travel wrapped in literal [latex] markers so the store
// treats them as pre-formatted markup instead of escaping them again.
// Stored notes come back still wrapped, so wrapping also happens before
// equivalence comparison.
const (
	latexOpen  = "[latex]"
	latexClose = "[/latex]"
)

// WrapLatex wraps one field value for transmission.
func WrapLatex(s string) string {
	return latexOpen + s + latexClose
}

// StripLatex removes the wire markers for display.
func StripLatex(s string) string {
	s = strings.ReplaceAll(s, latexOpen, "")
	return strings.ReplaceAll(s, latexClose, "")
}

// Summary reports the outcome of one completed pass.
type Summary struct {
	Path       string    `json:"path"`
	Candidates int       `json:"candidates"`
	Created    int       `json:"created"`
	Duplicates int       `json:"duplicates"`
	FinishedAt time.Time `json:"finished_at"`
}

// Options configures an Engine.
type Options struct {
	// ExtraTags are appended to every surviving note before creation.
	ExtraTags []string
	// Include, when non-empty, requires paths to match every pattern.
	Include []*regexp.Regexp
	// Exclude skips paths matching any pattern.
	Exclude []*regexp.Regexp
	// Events, when set, receives pass and note events for broadcasting.
	Events func(event string, data any)
}

// view is one consistent snapshot of the remote store's metadata and
// known notes. A pass works on a fresh view and the engine keeps it only
// when the pass succeeds, so an aborted pass discards its refresh.
type view struct {
	decks  []string
	fields map[string][]string
	known  []models.Note
}

// Engine owns the known-note set and the per-path fingerprints for the
// lifetime of the process. Passes run strictly sequentially.
type Engine struct {
	store  Store
	parser *parser.Parser
	cache  *cache.DB // optional
	logger *slog.Logger
	opts   Options

	view *view
	sums map[string]string

	mu   sync.Mutex // guards last, read by the status surface
	last *Summary
}

// New creates an Engine. db may be nil to run without local state.
func New(store Store, p *parser.Parser, db *cache.DB, logger *slog.Logger, opts Options) *Engine {
	return &Engine{
		store:  store,
		parser: p,
		cache:  db,
		logger: logger,
		opts:   opts,
		sums:   make(map[string]string),
	}
}

// Bootstrap seeds per-path fingerprints from the cache and loads an
// initial view of the remote store, so a misconfigured endpoint fails
// before the watch loop starts.
func (e *Engine) Bootstrap(ctx context.Context) error {
	if e.cache != nil {
		sums, err := e.cache.Fingerprints()
		if err != nil {
			return fmt.Errorf("load fingerprints: %w", err)
		}
		e.sums = sums
	}

	v, err := e.loadView(ctx)
	if err != nil {
		return err
	}
	e.commitView(v)
	return nil
}

// loadView fetches deck names, model schemas, and the known-note set.
func (e *Engine) loadView(ctx context.Context) (*view, error) {
	e.logger.Debug("loading remote state")

	decks, err := e.store.DeckNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list decks: %w", err)
	}

	names, err := e.store.ModelNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	schemas, err := e.store.ModelFieldNamesMulti(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("list model fields: %w", err)
	}
	if len(schemas) != len(names) {
		return nil, fmt.Errorf("list model fields: got %d schemas for %d models", len(schemas), len(names))
	}
	fields := make(map[string][]string, len(names))
	for i, name := range names {
		fields[name] = schemas[i]
	}

	known, err := FetchNotes(ctx, e.store, e.logger, "*")
	if err != nil {
		return nil, fmt.Errorf("load known notes: %w", err)
	}

	return &view{decks: decks, fields: fields, known: known}, nil
}

// commitView installs a view and snapshots its known notes to the cache.
func (e *Engine) commitView(v *view) {
	e.view = v
	if e.cache == nil {
		return
	}
	if err := e.cache.ReplaceNotes(v.known); err != nil {
		e.logger.Warn("cache: snapshot failed", slog.String("error", err.Error()))
	}
}

// SyncPath runs one pass over path. Directories recurse into their
// children; files are fingerprint-gated and parsed. The parser's framing
// and the include/exclude rules travel with the engine rather than being
// re-read per recursion level.
func (e *Engine) SyncPath(ctx context.Context, path string) error {
	if e.ignored(path) {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return fmt.Errorf("read dir %s: %w", path, err)
		}
		for _, entry := range entries {
			if err := e.SyncPath(ctx, filepath.Join(path, entry.Name())); err != nil {
				return err
			}
		}
		return nil
	}

	return e.syncFile(ctx, path)
}

func (e *Engine) ignored(path string) bool {
	for _, re := range e.opts.Include {
		if !re.MatchString(path) {
			e.logger.Info("ignoring path: not included",
				slog.String("path", path), slog.String("pattern", re.String()))
			return true
		}
	}
	for _, re := range e.opts.Exclude {
		if re.MatchString(path) {
			e.logger.Info("ignoring path: excluded",
				slog.String("path", path), slog.String("pattern", re.String()))
			return true
		}
	}
	return false
}

// syncFile fingerprint-gates one document and runs a pass over it. The
// fingerprint is recorded only after a successful pass, so a failed pass
// is retried from scratch on the next change notification.
func (e *Engine) syncFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	sum := checksum.Sum(data)
	if e.sums[path] == sum {
		e.logger.Debug("nothing changed", slog.String("path", path))
		return nil
	}

	e.logger.Info("syncing changes", slog.String("path", path))

	v, err := e.loadView(ctx)
	if err != nil {
		e.emit("pass.failed", map[string]string{"path": path, "error": err.Error()})
		return err
	}

	summary, err := e.pass(ctx, v, path, string(data))
	if err != nil {
		e.emit("pass.failed", map[string]string{"path": path, "error": err.Error()})
		return err
	}

	e.commitView(v)
	e.sums[path] = sum
	if e.cache != nil {
		if err := e.cache.SetFingerprint(path, sum); err != nil {
			e.logger.Warn("cache: fingerprint not persisted",
				slog.String("path", path), slog.String("error", err.Error()))
		}
	}

	e.setLast(summary)
	e.emit("pass.completed", summary)
	return nil
}

// pass is one parse-validate-diff-create cycle over content. Notes are
// processed in parse order; the first invalid note aborts the cycle, and
// notes created before an abort stay created (each creation commits
// upstream individually).
func (e *Engine) pass(ctx context.Context, v *view, path, content string) (*Summary, error) {
	notes, err := e.parser.Parse(content)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Path: path, Candidates: len(notes)}

	for i := range notes {
		note := &notes[i]

		if !slices.Contains(v.decks, note.Deck) {
			return nil, fmt.Errorf("note references unknown deck %q", note.Deck)
		}
		schema, ok := v.fields[note.Model]
		if !ok {
			return nil, fmt.Errorf("note references unknown model %q", note.Model)
		}
		for name := range note.Fields {
			if !slices.Contains(schema, name) {
				return nil, fmt.Errorf("model %q has no field %q (fields: %s)",
					note.Model, name, strings.Join(schema, ", "))
			}
		}

		for name, value := range note.Fields {
			note.Fields[name] = WrapLatex(value)
		}
		note.Tags = append(note.Tags, e.opts.ExtraTags...)

		if idx := slices.IndexFunc(v.known, func(k models.Note) bool {
			return match.Equivalent(note, &k)
		}); idx >= 0 {
			dup := &v.known[idx]
			if match.IDConflict(note, dup) {
				e.logger.Error("same content stored under two identifiers",
					slog.Int64("id_a", *note.ID), slog.Int64("id_b", *dup.ID),
					slog.String("deck", note.Deck), slog.String("model", note.Model))
			}
			e.logger.Info("skipping duplicate note",
				slog.String("deck", note.Deck), slog.String("note", note.Preview()))
			summary.Duplicates++
			continue
		}

		e.logger.Info("creating note",
			slog.String("deck", note.Deck), slog.String("note", note.Preview()))

		id, err := e.store.AddNote(ctx, anki.NoteParams{
			DeckName:  note.Deck,
			ModelName: note.Model,
			Fields:    note.Fields,
			Tags:      note.Tags,
		})
		if err != nil {
			return nil, fmt.Errorf("create note in deck %q: %w", note.Deck, err)
		}
		if id == nil {
			e.logger.Info("remote store already held this note",
				slog.String("deck", note.Deck))
			summary.Duplicates++
		} else {
			summary.Created++
			e.emit("note.created", map[string]any{"deck": note.Deck, "id": *id})
		}

		// Append immediately so an equivalent note later in the same
		// document is treated as a duplicate within this cycle.
		note.ID = id
		v.known = append(v.known, *note)
	}

	if summary.Created == 0 {
		e.logger.Info("nothing to do")
	} else {
		e.logger.Info("added new notes",
			slog.Int("created", summary.Created), slog.Int("candidates", summary.Candidates))
	}

	summary.FinishedAt = time.Now()
	return summary, nil
}

func (e *Engine) emit(event string, data any) {
	if e.opts.Events != nil {
		e.opts.Events(event, data)
	}
}

func (e *Engine) setLast(s *Summary) {
	e.mu.Lock()
	e.last = s
	e.mu.Unlock()
}

// LastSummary returns the most recent completed pass, if any.
func (e *Engine) LastSummary() (Summary, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return Summary{}, false
	}
	return *e.last, true
}

// FetchNotes reconstructs full notes for an Anki search query: findNotes
// for ids, notesInfo for model, fields, and tags, cardsInfo for the deck
// name and a preview question. All cards of one note must live in the
// same deck.
func FetchNotes(ctx context.Context, store Store, logger *slog.Logger, query string) ([]models.Note, error) {
	ids, err := store.FindNotes(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("find notes: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	logger.Debug("fetching notes", slog.Int("count", len(ids)))

	infos, err := store.NotesInfo(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("notes info: %w", err)
	}

	var cardIDs []int64
	for _, info := range infos {
		cardIDs = append(cardIDs, info.Cards...)
	}
	cards, err := store.CardsInfo(ctx, cardIDs)
	if err != nil {
		return nil, fmt.Errorf("cards info: %w", err)
	}
	byCard := make(map[int64]anki.CardInfo, len(cards))
	for _, c := range cards {
		byCard[c.CardID] = c
	}

	notes := make([]models.Note, 0, len(infos))
	for _, info := range infos {
		fields := make(map[string]string, len(info.Fields))
		for name, f := range info.Fields {
			fields[name] = f.Value
		}

		id := info.NoteID
		n := models.Note{
			ID:     &id,
			Model:  info.ModelName,
			Fields: fields,
			Tags:   info.Tags,
		}
		for _, cid := range info.Cards {
			card, ok := byCard[cid]
			if !ok {
				return nil, fmt.Errorf("note %d: no card info for card %d", info.NoteID, cid)
			}
			if n.Deck != "" && n.Deck != card.DeckName {
				return nil, fmt.Errorf("note %d spans decks %q and %q", info.NoteID, n.Deck, card.DeckName)
			}
			n.Deck = card.DeckName
			n.Question = card.Question
		}
		notes = append(notes, n)
	}
	return notes, nil
}
