package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/akida/ankitex/internal/anki"
	"github.com/akida/ankitex/internal/models"
	"github.com/akida/ankitex/internal/parser"
	"github.com/akida/ankitex/internal/testutil"
)

const (
	testHeader = "\\documentclass{article}\n\\begin{document}"
	testFooter = "\\end{document}"
)

// fakeStore is an in-memory Store. Remote notes are held as models.Note
// values with assigned ids; notesInfo and cardsInfo are synthesized from
// them (one card per note, card id = note id * 10).
type fakeStore struct {
	mu      sync.Mutex
	decks   []string
	fields  map[string][]string
	remote  []models.Note
	nextID  int64
	added   []anki.NoteParams
	calls   map[string]int
	failAdd error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		decks:  []string{"Default", "Math"},
		fields: map[string][]string{"Basic": {"Front", "Back"}},
		nextID: 1000,
		calls:  make(map[string]int),
	}
}

func (f *fakeStore) count(action string) { f.calls[action]++ }

func (f *fakeStore) callCount(action string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[action]
}

func (f *fakeStore) addedNotes() []anki.NoteParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]anki.NoteParams(nil), f.added...)
}

func (f *fakeStore) DeckNames(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("deckNames")
	return append([]string(nil), f.decks...), nil
}

func (f *fakeStore) ModelNames(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("modelNames")
	names := make([]string, 0, len(f.fields))
	for name := range f.fields {
		names = append(names, name)
	}
	return names, nil
}

func (f *fakeStore) ModelFieldNamesMulti(_ context.Context, names []string) ([][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("modelFieldNames")
	out := make([][]string, len(names))
	for i, name := range names {
		schema, ok := f.fields[name]
		if !ok {
			return nil, fmt.Errorf("model was not found: %s", name)
		}
		out[i] = schema
	}
	return out, nil
}

func (f *fakeStore) FindNotes(context.Context, string) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("findNotes")
	var ids []int64
	for _, n := range f.remote {
		ids = append(ids, *n.ID)
	}
	return ids, nil
}

func (f *fakeStore) NotesInfo(_ context.Context, ids []int64) ([]anki.NoteInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("notesInfo")
	var infos []anki.NoteInfo
	for _, id := range ids {
		for _, n := range f.remote {
			if *n.ID != id {
				continue
			}
			fields := make(map[string]anki.NoteInfoField, len(n.Fields))
			order := 0
			for name, value := range n.Fields {
				fields[name] = anki.NoteInfoField{Value: value, Order: order}
				order++
			}
			infos = append(infos, anki.NoteInfo{
				NoteID:    id,
				ModelName: n.Model,
				Fields:    fields,
				Tags:      n.Tags,
				Cards:     []int64{id * 10},
			})
		}
	}
	return infos, nil
}

func (f *fakeStore) CardsInfo(_ context.Context, ids []int64) ([]anki.CardInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("cardsInfo")
	var cards []anki.CardInfo
	for _, id := range ids {
		for _, n := range f.remote {
			if *n.ID*10 != id {
				continue
			}
			cards = append(cards, anki.CardInfo{
				CardID:   id,
				Note:     *n.ID,
				DeckName: n.Deck,
				Question: "Q: " + n.Fields["Front"],
			})
		}
	}
	return cards, nil
}

func (f *fakeStore) AddNote(_ context.Context, note anki.NoteParams) (*int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("addNote")
	if f.failAdd != nil {
		return nil, f.failAdd
	}
	f.added = append(f.added, note)

	f.nextID++
	id := f.nextID
	f.remote = append(f.remote, models.Note{
		ID:     &id,
		Deck:   note.DeckName,
		Model:  note.ModelName,
		Fields: note.Fields,
		Tags:   note.Tags,
	})
	return &id, nil
}

func (f *fakeStore) CreateDeck(_ context.Context, name string) (*int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("createDeck")
	f.decks = append(f.decks, name)
	id := int64(1)
	return &id, nil
}

// seedRemote installs an already-stored note, field values wrapped the
// way the store would hold them.
func (f *fakeStore) seedRemote(deck, model string, fields map[string]string, tags ...string) {
	wrapped := make(map[string]string, len(fields))
	for k, v := range fields {
		wrapped[k] = WrapLatex(v)
	}
	f.nextID++
	id := f.nextID
	f.remote = append(f.remote, models.Note{ID: &id, Deck: deck, Model: model, Fields: wrapped, Tags: tags})
}

func writeDoc(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cards.tex")
	content := testHeader + "\n" + body + "\n" + testFooter + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestEngine(store Store, opts Options) *Engine {
	logger := testutil.Logger()
	return New(store, parser.New(testHeader, testFooter, logger), nil, logger, opts)
}

func TestEngine_CreatesNewNote(t *testing.T) {
	fs := newFakeStore()
	e := newTestEngine(fs, Options{})
	path := writeDoc(t, `\deck{Math} \model{Basic} \fields{Front}{2+2} \fields{Back}{4} \next`)

	if err := e.SyncPath(context.Background(), path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	added := fs.addedNotes()
	if len(added) != 1 {
		t.Fatalf("addNote calls = %d, want 1", len(added))
	}
	if added[0].DeckName != "Math" || added[0].ModelName != "Basic" {
		t.Errorf("note = %+v", added[0])
	}
	if added[0].Fields["Front"] != "[latex]2+2[/latex]" {
		t.Errorf("field not wrapped: %q", added[0].Fields["Front"])
	}

	summary, ok := e.LastSummary()
	if !ok || summary.Created != 1 || summary.Candidates != 1 {
		t.Errorf("summary = %+v, ok = %v", summary, ok)
	}
}

func TestEngine_SkipsEquivalentKnown(t *testing.T) {
	fs := newFakeStore()
	// Stored copy drifted in whitespace, still the same content.
	fs.seedRemote("Math", "Basic", map[string]string{"Front": "2 + 2", "Back": "4"})

	e := newTestEngine(fs, Options{})
	path := writeDoc(t, `\deck{Math} \model{Basic} \fields{Front}{2+2} \fields{Back}{4} \next`)

	if err := e.SyncPath(context.Background(), path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n := len(fs.addedNotes()); n != 0 {
		t.Fatalf("addNote calls = %d, want 0", n)
	}
	summary, _ := e.LastSummary()
	if summary.Duplicates != 1 || summary.Created != 0 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestEngine_UnknownDeckAbortsPass(t *testing.T) {
	fs := newFakeStore()
	e := newTestEngine(fs, Options{})
	path := writeDoc(t, `\deck{Unknown} \model{Basic} \fields{Front}{x} \next`)

	err := e.SyncPath(context.Background(), path)
	if err == nil || !strings.Contains(err.Error(), "unknown deck") {
		t.Fatalf("err = %v, want unknown deck", err)
	}
	if n := len(fs.addedNotes()); n != 0 {
		t.Errorf("addNote calls = %d, want 0", n)
	}
	if _, ok := e.LastSummary(); ok {
		t.Error("aborted pass must not record a summary")
	}
}

func TestEngine_UnknownModelAbortsPass(t *testing.T) {
	fs := newFakeStore()
	e := newTestEngine(fs, Options{})
	path := writeDoc(t, `\deck{Math} \model{Nope} \fields{Front}{x} \next`)

	err := e.SyncPath(context.Background(), path)
	if err == nil || !strings.Contains(err.Error(), "unknown model") {
		t.Fatalf("err = %v, want unknown model", err)
	}
}

func TestEngine_UnknownFieldAbortsPass(t *testing.T) {
	fs := newFakeStore()
	e := newTestEngine(fs, Options{})
	path := writeDoc(t, `\deck{Math} \model{Basic} \fields{Bogus}{x} \next`)

	err := e.SyncPath(context.Background(), path)
	if err == nil || !strings.Contains(err.Error(), "no field") {
		t.Fatalf("err = %v, want schema error", err)
	}
	if n := len(fs.addedNotes()); n != 0 {
		t.Errorf("addNote calls = %d, want 0", n)
	}
}

func TestEngine_FingerprintShortCircuit(t *testing.T) {
	fs := newFakeStore()
	e := newTestEngine(fs, Options{})
	path := writeDoc(t, `\deck{Math} \model{Basic} \fields{Front}{x} \next`)

	if err := e.SyncPath(context.Background(), path); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	before := fs.callCount("deckNames")

	if err := e.SyncPath(context.Background(), path); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if after := fs.callCount("deckNames"); after != before {
		t.Errorf("unchanged file must not hit the store: %d -> %d", before, after)
	}
	if n := len(fs.addedNotes()); n != 1 {
		t.Errorf("addNote calls = %d, want 1", n)
	}
}

func TestEngine_FailedPassIsRetried(t *testing.T) {
	fs := newFakeStore()
	fs.failAdd = errors.New("connection refused")
	e := newTestEngine(fs, Options{})
	path := writeDoc(t, `\deck{Math} \model{Basic} \fields{Front}{x} \next`)

	if err := e.SyncPath(context.Background(), path); err == nil {
		t.Fatal("expected failure")
	}

	// Same content again: the fingerprint must not have been recorded.
	fs.mu.Lock()
	fs.failAdd = nil
	fs.mu.Unlock()
	if err := e.SyncPath(context.Background(), path); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if n := len(fs.addedNotes()); n != 1 {
		t.Errorf("addNote calls = %d, want 1 after retry", n)
	}
}

func TestEngine_IntraDocumentDuplicate(t *testing.T) {
	fs := newFakeStore()
	e := newTestEngine(fs, Options{})
	body := `\deck{Math} \model{Basic} \fields{Front}{same} \next
\deck{Math} \model{Basic} \fields{Front}{same} \next`
	path := writeDoc(t, body)

	if err := e.SyncPath(context.Background(), path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(fs.addedNotes()); n != 1 {
		t.Errorf("addNote calls = %d, want 1 (second is an in-cycle duplicate)", n)
	}
	summary, _ := e.LastSummary()
	if summary.Created != 1 || summary.Duplicates != 1 || summary.Candidates != 2 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestEngine_ExtraTags(t *testing.T) {
	fs := newFakeStore()
	e := newTestEngine(fs, Options{ExtraTags: []string{"generated", "2026-08-30"}})
	path := writeDoc(t, `\deck{Math} \model{Basic} \tag{algebra} \fields{Front}{x} \next`)

	if err := e.SyncPath(context.Background(), path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	added := fs.addedNotes()
	if len(added) != 1 {
		t.Fatalf("addNote calls = %d, want 1", len(added))
	}
	want := []string{"algebra", "generated", "2026-08-30"}
	if strings.Join(added[0].Tags, ",") != strings.Join(want, ",") {
		t.Errorf("tags = %v, want %v", added[0].Tags, want)
	}
}

func TestEngine_ExcludeRuleSkipsPath(t *testing.T) {
	fs := newFakeStore()
	e := newTestEngine(fs, Options{Exclude: []*regexp.Regexp{regexp.MustCompile(`\.tex$`)}})
	path := writeDoc(t, `\deck{Math} \model{Basic} \fields{Front}{x} \next`)

	if err := e.SyncPath(context.Background(), path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fs.callCount("deckNames") != 0 || len(fs.addedNotes()) != 0 {
		t.Error("excluded path must not be synced")
	}
}

func TestEngine_DirectoryRecursion(t *testing.T) {
	fs := newFakeStore()
	e := newTestEngine(fs, Options{})

	dir := t.TempDir()
	content := testHeader + "\n" + `\deck{Math} \model{Basic} \fields{Front}{%s} \next` + "\n" + testFooter
	if err := os.WriteFile(filepath.Join(dir, "a.tex"), []byte(fmt.Sprintf(content, "a")), 0o644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "b.tex"), []byte(fmt.Sprintf(content, "b")), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := e.SyncPath(context.Background(), dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(fs.addedNotes()); n != 2 {
		t.Errorf("addNote calls = %d, want 2", n)
	}
}

func TestEngine_CachePersistsFingerprints(t *testing.T) {
	fs := newFakeStore()
	db := testutil.TestCache(t)
	logger := testutil.Logger()
	path := writeDoc(t, `\deck{Math} \model{Basic} \fields{Front}{x} \next`)

	e1 := New(fs, parser.New(testHeader, testFooter, logger), db, logger, Options{})
	if err := e1.SyncPath(context.Background(), path); err != nil {
		t.Fatalf("first engine: %v", err)
	}
	if n := len(fs.addedNotes()); n != 1 {
		t.Fatalf("addNote calls = %d, want 1", n)
	}

	// A fresh engine over the same cache must skip the unchanged file.
	e2 := New(fs, parser.New(testHeader, testFooter, logger), db, logger, Options{})
	if err := e2.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if err := e2.SyncPath(context.Background(), path); err != nil {
		t.Fatalf("second engine: %v", err)
	}
	if n := len(fs.addedNotes()); n != 1 {
		t.Errorf("addNote calls = %d, want still 1", n)
	}
}

func TestFetchNotes(t *testing.T) {
	fs := newFakeStore()
	fs.seedRemote("Math", "Basic", map[string]string{"Front": "x"}, "t1")

	notes, err := FetchNotes(context.Background(), fs, testutil.Logger(), "*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("len(notes) = %d, want 1", len(notes))
	}
	n := notes[0]
	if n.ID == nil || n.Deck != "Math" || n.Model != "Basic" {
		t.Errorf("note = %+v", n)
	}
	if n.Question == "" {
		t.Error("expected preview question from card info")
	}
	if len(n.Tags) != 1 || n.Tags[0] != "t1" {
		t.Errorf("tags = %v", n.Tags)
	}
}

func TestWrapStripLatex(t *testing.T) {
	if got := WrapLatex("x"); got != "[latex]x[/latex]" {
		t.Errorf("WrapLatex = %q", got)
	}
	if got := StripLatex("[latex]x[/latex]"); got != "x" {
		t.Errorf("StripLatex = %q", got)
	}
}
