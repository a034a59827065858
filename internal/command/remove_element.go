package command

import (
	"encoding/json"
	"fmt"

	"formbuilder/internal/domain"
)

// RemoveElement deletes an element by id, snapshotting it fully — including
// its validation and style records and its slice index — so undo restores the
// identical element, not just one of the same type.
type RemoveElement struct {
	base
	elementID    string
	removed      *domain.FormElement
	removedIndex int
	wasSelected  bool
}

// NewRemoveElement creates a remove command for the given element id.
func NewRemoveElement(id string) *RemoveElement {
	return &RemoveElement{
		base:      newBase("Remove element"),
		elementID: id,
	}
}

func (c *RemoveElement) Type() Type { return TypeRemoveElement }

func (c *RemoveElement) Execute(s *domain.FormBuilderState) (*domain.FormBuilderState, error) {
	idx := s.ElementIndex(c.elementID)
	if idx < 0 {
		// Removing a nonexistent element is a caller bug, not a user error.
		return nil, fmt.Errorf("remove element: element %s not found", c.elementID)
	}

	snapshot := s.Elements[idx].Clone()
	c.removed = &snapshot
	c.removedIndex = idx
	c.wasSelected = s.IsSelected(c.elementID)
	c.desc = fmt.Sprintf("Remove %s element", snapshot.Type)

	next := s.Clone()
	next.Elements = append(next.Elements[:idx], next.Elements[idx+1:]...)
	if c.wasSelected {
		next.ClearSelection()
	}
	return next, nil
}

func (c *RemoveElement) Undo(s *domain.FormBuilderState) (*domain.FormBuilderState, error) {
	if c.removed == nil {
		return nil, fmt.Errorf("remove element: %w", ErrNotExecuted)
	}
	next := s.Clone()
	idx := c.removedIndex
	if idx > len(next.Elements) {
		idx = len(next.Elements)
	}
	restored := c.removed.Clone()
	next.Elements = append(next.Elements[:idx],
		append([]domain.FormElement{restored}, next.Elements[idx:]...)...)
	next.Select(c.elementID)
	return next, nil
}

// Each delete is a discrete, user-visible event; it never merges.
func (c *RemoveElement) CanMergeWith(Command) bool { return false }

func (c *RemoveElement) MergeWith(Command) (Command, error) { return nil, ErrNotMergeable }

type removeElementData struct {
	ElementID    string              `json:"elementId"`
	Removed      *domain.FormElement `json:"removed,omitempty"`
	RemovedIndex int                 `json:"removedIndex"`
	WasSelected  bool                `json:"wasSelected"`
}

func (c *RemoveElement) Serialize() (domain.CommandRecord, error) {
	return c.record(TypeRemoveElement, removeElementData{
		ElementID:    c.elementID,
		Removed:      c.removed,
		RemovedIndex: c.removedIndex,
		WasSelected:  c.wasSelected,
	})
}

func deserializeRemoveElement(rec domain.CommandRecord) (Command, error) {
	var d removeElementData
	if err := json.Unmarshal(rec.Data, &d); err != nil {
		return nil, fmt.Errorf("deserialize remove element: %w", err)
	}
	return &RemoveElement{
		base:         restoredBase(rec),
		elementID:    d.ElementID,
		removed:      d.Removed,
		removedIndex: d.RemovedIndex,
		wasSelected:  d.WasSelected,
	}, nil
}
