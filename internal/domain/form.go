package domain

import (
	"encoding/json"
	"reflect"
	"time"
)

// CanvasSize is the working area of the form canvas.
type CanvasSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FormBuilderState is the aggregate root for one editing session: the form's
// metadata, its full ordered element collection, and the transient canvas/
// selection state. Exactly one instance is live per session and all mutation
// flows through the command manager that owns it.
type FormBuilderState struct {
	FormID      string        `json:"formId"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Elements    []FormElement `json:"elements"`
	SelectedIDs []string      `json:"selectedIds,omitempty"`
	Canvas      CanvasSize    `json:"canvas"`
	Zoom        float64       `json:"zoom"`
	ShowGrid    bool          `json:"showGrid"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// NewFormBuilderState creates an empty state for a new form.
func NewFormBuilderState(formID, title string) *FormBuilderState {
	return &FormBuilderState{
		FormID:    formID,
		Title:     title,
		Elements:  []FormElement{},
		Canvas:    CanvasSize{Width: 1200, Height: 2000},
		Zoom:      1.0,
		ShowGrid:  true,
		UpdatedAt: time.Now(),
	}
}

// Clone returns a deep copy. Commands operate on clones so the pre-mutation
// state survives for undo.
func (s *FormBuilderState) Clone() *FormBuilderState {
	c := *s
	c.Elements = make([]FormElement, len(s.Elements))
	for i, e := range s.Elements {
		c.Elements[i] = e.Clone()
	}
	if s.SelectedIDs != nil {
		c.SelectedIDs = make([]string, len(s.SelectedIDs))
		copy(c.SelectedIDs, s.SelectedIDs)
	}
	return &c
}

// ElementIndex returns the index of the element with the given id, or -1.
func (s *FormBuilderState) ElementIndex(id string) int {
	for i := range s.Elements {
		if s.Elements[i].ID == id {
			return i
		}
	}
	return -1
}

// ElementByID returns a copy of the element with the given id.
func (s *FormBuilderState) ElementByID(id string) (FormElement, bool) {
	i := s.ElementIndex(id)
	if i < 0 {
		return FormElement{}, false
	}
	return s.Elements[i].Clone(), true
}

// Select replaces the selection with a single element id.
func (s *FormBuilderState) Select(id string) {
	s.SelectedIDs = []string{id}
}

// ClearSelection empties the selection set.
func (s *FormBuilderState) ClearSelection() {
	s.SelectedIDs = nil
}

// IsSelected reports whether id is in the selection set.
func (s *FormBuilderState) IsSelected(id string) bool {
	for _, sel := range s.SelectedIDs {
		if sel == id {
			return true
		}
	}
	return false
}

// ContentEqual compares two states on their durable content: title,
// description, and the full element collection. Transient fields (selection,
// zoom, timestamps) are exempt — undo restores content, not UI state.
func ContentEqual(a, b *FormBuilderState) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Title != b.Title || a.Description != b.Description {
		return false
	}
	if len(a.Elements) != len(b.Elements) {
		return false
	}
	for i := range a.Elements {
		ae, be := a.Elements[i], b.Elements[i]
		ae.CreatedAt, be.CreatedAt = time.Time{}, time.Time{}
		ae.UpdatedAt, be.UpdatedAt = time.Time{}, time.Time{}
		if !reflect.DeepEqual(ae, be) {
			return false
		}
	}
	return true
}

// FormSummary is a lightweight listing row for saved forms.
type FormSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	ElementCount int       `json:"elementCount"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// CommandRecord is the serialized shape of one command: everything needed to
// replay its execute/undo without closures, including explicitly captured
// previous values inside Data.
type CommandRecord struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Timestamp   int64           `json:"timestamp"` // epoch milliseconds
	Description string          `json:"description"`
	Data        json.RawMessage `json:"data"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// FormStore persists and restores full form states.
type FormStore interface {
	SaveForm(s *FormBuilderState) error
	LoadForm(formID string) (*FormBuilderState, error)
	DeleteForm(formID string) error
	ListForms() ([]FormSummary, error)
}

// HistoryStore persists serialized command history per form. Load returns the
// entries oldest-first plus the cursor: the number of entries currently on the
// undo side (entries past the cursor are redoable).
type HistoryStore interface {
	Append(formID string, rec CommandRecord) error
	// Replace atomically syncs the stored history with an in-memory snapshot.
	// Needed after merges and trims, which an append-only log cannot express.
	Replace(formID string, recs []CommandRecord, cursor int) error
	Load(formID string) ([]CommandRecord, int, error)
	SetCursor(formID string, cursor int) error
	Clear(formID string) error
}
