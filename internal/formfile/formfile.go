// Package formfile exports form definitions as JSON documents on disk and
// watches them for external edits, so a form can be tweaked in a text editor
// and picked back up by the builder.
package formfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"formbuilder/internal/domain"
)

// Document is the on-disk shape of a form definition. Selection, zoom, and
// other session state never leave the builder.
type Document struct {
	FormID      string               `json:"formId"`
	Title       string               `json:"title"`
	Description string               `json:"description,omitempty"`
	Canvas      domain.CanvasSize    `json:"canvas"`
	Elements    []domain.FormElement `json:"elements"`
	ExportedAt  time.Time            `json:"exportedAt"`
}

// FromState builds a Document from a builder state.
func FromState(st *domain.FormBuilderState) *Document {
	c := st.Clone()
	return &Document{
		FormID:      c.FormID,
		Title:       c.Title,
		Description: c.Description,
		Canvas:      c.Canvas,
		Elements:    c.Elements,
		ExportedAt:  time.Now(),
	}
}

// ToState converts a Document back into a builder state.
func (d *Document) ToState() *domain.FormBuilderState {
	st := domain.NewFormBuilderState(d.FormID, d.Title)
	st.Description = d.Description
	if d.Canvas.Width > 0 && d.Canvas.Height > 0 {
		st.Canvas = d.Canvas
	}
	st.Elements = make([]domain.FormElement, len(d.Elements))
	for i, e := range d.Elements {
		st.Elements[i] = e.Clone()
	}
	return st
}

// Path returns the export path of a form inside dir.
func Path(dir, formID string) string {
	return filepath.Join(dir, formID+".json")
}

// Export writes the document to dir as <formID>.json. The write goes through
// a temp file and rename so a watcher never sees a half-written document.
func Export(dir string, st *domain.FormBuilderState) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	doc := FromState(st)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode form document: %w", err)
	}

	path := Path(dir, st.FormID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("write form document: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("finalize form document: %w", err)
	}
	return path, nil
}

// Load reads a form document from disk.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read form document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse form document %s: %w", filepath.Base(path), err)
	}
	if doc.FormID == "" {
		return nil, fmt.Errorf("form document %s has no formId", filepath.Base(path))
	}
	return &doc, nil
}
