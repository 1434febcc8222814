// Package template manages the document scaffold: the required header and
// footer strings and the creation of fresh documents from them.
package template

import (
	"errors"
	"fmt"
	"os"
)

// DefaultHeader is the required document prelude when no override file is
// configured.
const DefaultHeader = `\documentclass{article}
\usepackage{ankitex}
\usepackage{custom}

\begin{document}
`

// DefaultFooter is the required document close.
const DefaultFooter = `\end{document}`

// HeaderFooter resolves the framing strings, preferring override files
// when they exist. A configured but missing override file falls back to
// the default; any other read failure is an error.
func HeaderFooter(headerPath, footerPath string) (string, string, error) {
	header, err := readOr(headerPath, DefaultHeader)
	if err != nil {
		return "", "", fmt.Errorf("read header template %s: %w", headerPath, err)
	}
	footer, err := readOr(footerPath, DefaultFooter)
	if err != nil {
		return "", "", fmt.Errorf("read footer template %s: %w", footerPath, err)
	}
	return header, footer, nil
}

func readOr(path, fallback string) (string, error) {
	if path == "" {
		return fallback, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fallback, nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Create writes a fresh document scaffold at path. An existing file is
// only overwritten when force is set; an existing directory is never
// touched.
func Create(path, header, footer string, force bool) error {
	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		return fmt.Errorf("cannot create %s: a directory with that name exists", path)
	case err == nil && !force:
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("stat %s: %w", path, err)
	}

	content := header + "\n% Add your content here\n\n" + footer + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Save writes the framing strings to their override file paths so they
// can be customized.
func Save(headerPath, footerPath, header, footer string) error {
	if headerPath == "" || footerPath == "" {
		return fmt.Errorf("header and footer template paths must be configured")
	}
	if err := os.WriteFile(headerPath, []byte(header), 0o644); err != nil {
		return fmt.Errorf("write header template %s: %w", headerPath, err)
	}
	if err := os.WriteFile(footerPath, []byte(footer), 0o644); err != nil {
		return fmt.Errorf("write footer template %s: %w", footerPath, err)
	}
	return nil
}
