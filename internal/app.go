package internal

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/akida/ankitex/internal/anki"
	"github.com/akida/ankitex/internal/syncer"
	"github.com/akida/ankitex/internal/template"
)

// CreateOnce runs a single pass over the configured document.
func CreateOnce(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config
	logger := newLogger(cfg)

	engine, db, err := buildEngine(cfg, app.store, logger, nil)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	if err := engine.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	return engine.SyncPath(ctx, cfg.Document.Path)
}

// CreateTemplate writes a fresh document scaffold at the configured path.
func CreateTemplate(cfg *Config, force bool) error {
	header, footer, err := template.HeaderFooter(cfg.Document.HeaderFile, cfg.Document.FooterFile)
	if err != nil {
		return err
	}

	include, exclude, err := cfg.Document.CompileRules()
	if err != nil {
		return err
	}
	for _, re := range include {
		if !re.MatchString(cfg.Document.Path) {
			return fmt.Errorf("template path %s is not included by the configured rules", cfg.Document.Path)
		}
	}
	for _, re := range exclude {
		if re.MatchString(cfg.Document.Path) {
			return fmt.Errorf("template path %s is excluded by the configured rules", cfg.Document.Path)
		}
	}

	return template.Create(cfg.Document.Path, header, footer, force)
}

// SaveTemplate writes the current header and footer to their override
// files so they can be customized.
func SaveTemplate(cfg *Config) error {
	header, footer, err := template.HeaderFooter(cfg.Document.HeaderFile, cfg.Document.FooterFile)
	if err != nil {
		return err
	}
	return template.Save(cfg.Document.HeaderFile, cfg.Document.FooterFile, header, footer)
}

// GetDecks prints all deck names known to the remote store.
func GetDecks(ctx context.Context, cfg *Config, w io.Writer) error {
	client := anki.NewClient(cfg.Anki.URL, newLogger(cfg))
	names, err := client.DeckNames(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "All deck names:\n %s\n", strings.Join(names, "\n "))
	return nil
}

// GetModels prints all model names known to the remote store.
func GetModels(ctx context.Context, cfg *Config, w io.Writer) error {
	client := anki.NewClient(cfg.Anki.URL, newLogger(cfg))
	names, err := client.ModelNames(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "All model names:\n %s\n", strings.Join(names, "\n "))
	return nil
}

// GetNotes prints every note matching an Anki search query.
func GetNotes(ctx context.Context, cfg *Config, w io.Writer, query string) error {
	logger := newLogger(cfg)
	client := anki.NewClient(cfg.Anki.URL, logger)

	notes, err := syncer.FetchNotes(ctx, client, logger, query)
	if err != nil {
		return err
	}

	for _, note := range notes {
		fmt.Fprintf(w, "In deck %s with model %s\n", note.Deck, note.Model)
		for name, value := range note.Fields {
			fmt.Fprintf(w, "[%s] %s\n", name, syncer.StripLatex(value))
		}
		if len(note.Tags) > 0 {
			fmt.Fprintf(w, "Tags: %s\n", strings.Join(note.Tags, ", "))
		}
		fmt.Fprintln(w, strings.Repeat("-", 80))
	}

	fmt.Fprintf(w, "fetched %d notes in total\n", len(notes))
	return nil
}

// RenderAll asks the remote store to render LaTeX in every note.
func RenderAll(ctx context.Context, cfg *Config, w io.Writer) error {
	client := anki.NewClient(cfg.Anki.URL, newLogger(cfg))
	ok, err := client.RenderAllLatex(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("remote store reported a render failure")
	}
	fmt.Fprintln(w, "Success")
	return nil
}

// SyncCollection triggers a collection sync with the remote sync server.
func SyncCollection(ctx context.Context, cfg *Config, w io.Writer) error {
	client := anki.NewClient(cfg.Anki.URL, newLogger(cfg))
	if err := client.SyncCollection(ctx); err != nil {
		return err
	}
	fmt.Fprintln(w, "Success")
	return nil
}

// CreateRenderSync runs a create pass, renders LaTeX, and syncs the
// collection, in that order.
func CreateRenderSync(ctx context.Context, cfg *Config, w io.Writer, opts ...Option) error {
	if err := CreateOnce(ctx, append(opts, WithConfig(cfg))...); err != nil {
		return err
	}
	if err := RenderAll(ctx, cfg, w); err != nil {
		return err
	}
	return SyncCollection(ctx, cfg, w)
}
