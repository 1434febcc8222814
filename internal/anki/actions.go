package anki

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// NoteParams is the addNote payload.
type NoteParams struct {
	DeckName  string            `json:"deckName"`
	ModelName string            `json:"modelName"`
	Fields    map[string]string `json:"fields"`
	Tags      []string          `json:"tags"`
}

// NoteInfoField is one field of a stored note, with its display order.
type NoteInfoField struct {
	Value string `json:"value"`
	Order int    `json:"order"`
}

// NoteInfo is the notesInfo result for one note.
type NoteInfo struct {
	NoteID    int64                    `json:"noteId"`
	ModelName string                   `json:"modelName"`
	Fields    map[string]NoteInfoField `json:"fields"`
	Tags      []string                 `json:"tags"`
	Cards     []int64                  `json:"cards"`
}

// CardInfo is the subset of the cardsInfo result the syncer consumes.
type CardInfo struct {
	CardID    int64  `json:"cardId"`
	Note      int64  `json:"note"`
	DeckName  string `json:"deckName"`
	ModelName string `json:"modelName"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
}

// DeckNames returns all deck names known to the store.
func (c *Client) DeckNames(ctx context.Context) ([]string, error) {
	return call[[]string](ctx, c, "deckNames", nil)
}

// ModelNames returns all model names known to the store.
func (c *Client) ModelNames(ctx context.Context) ([]string, error) {
	return call[[]string](ctx, c, "modelNames", nil)
}

// ModelFieldNames returns the field schema of one model.
func (c *Client) ModelFieldNames(ctx context.Context, model string) ([]string, error) {
	return call[[]string](ctx, c, "modelFieldNames", map[string]string{"modelName": model})
}

// ModelFieldNamesMulti returns the field schema of each named model in one
// batched round-trip, in input order.
func (c *Client) ModelFieldNamesMulti(ctx context.Context, models []string) ([][]string, error) {
	params := make([]any, len(models))
	for i, name := range models {
		params[i] = map[string]string{"modelName": name}
	}
	return callMulti[[]string](ctx, c, "modelFieldNames", params)
}

// FindNotes returns the ids of notes matching an Anki search query.
// See https://docs.ankiweb.net/searching.html
func (c *Client) FindNotes(ctx context.Context, query string) ([]int64, error) {
	return call[[]int64](ctx, c, "findNotes", map[string]string{"query": query})
}

// NotesInfo returns model, fields, tags, and card ids for each note id.
func (c *Client) NotesInfo(ctx context.Context, ids []int64) ([]NoteInfo, error) {
	return call[[]NoteInfo](ctx, c, "notesInfo", map[string]any{"notes": ids})
}

// CardsInfo returns card details (including the owning deck and rendered
// question) for each card id.
func (c *Client) CardsInfo(ctx context.Context, ids []int64) ([]CardInfo, error) {
	return call[[]CardInfo](ctx, c, "cardsInfo", map[string]any{"cards": ids})
}

// AddNote creates one note. A nil id with a nil error means the remote
// store rejected the note as a duplicate of one it already holds.
func (c *Client) AddNote(ctx context.Context, note NoteParams) (*int64, error) {
	id, err := call[*int64](ctx, c, "addNote", map[string]any{"note": note})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && strings.HasSuffix(apiErr.Message, "cannot create note because it is a duplicate") {
			return nil, nil
		}
		return nil, err
	}
	return id, nil
}

// CreateDeck creates a deck, including any missing parents of a
// hierarchical name. A nil id means the deck already existed.
func (c *Client) CreateDeck(ctx context.Context, name string) (*int64, error) {
	return call[*int64](ctx, c, "createDeck", map[string]string{"deck": name})
}

// RenderAllLatex asks the store to render LaTeX in every note.
func (c *Client) RenderAllLatex(ctx context.Context) (bool, error) {
	return call[bool](ctx, c, "renderAllLatex", nil)
}

// SyncCollection triggers a collection sync with the remote sync server.
func (c *Client) SyncCollection(ctx context.Context) error {
	_, err := call[json.RawMessage](ctx, c, "sync", nil)
	return err
}
