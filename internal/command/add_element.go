package command

import (
	"encoding/json"
	"fmt"

	"formbuilder/internal/domain"
)

// AddElement appends a newly constructed element of the given type and
// selects it. The element id is generated during the first Execute (callers
// rarely supply one) and captured so undo and redo stay pinned to it.
type AddElement struct {
	base
	elementType domain.ElementType
	position    domain.ElementPosition
	elementID   string
	added       *domain.FormElement
}

// NewAddElement creates an add command; the element id is generated at
// execute time.
func NewAddElement(t domain.ElementType, pos domain.ElementPosition) *AddElement {
	return &AddElement{
		base:        newBase(fmt.Sprintf("Add %s element", t)),
		elementType: t,
		position:    pos,
	}
}

// NewAddElementWithID creates an add command with a caller-supplied id.
func NewAddElementWithID(t domain.ElementType, pos domain.ElementPosition, id string) *AddElement {
	c := NewAddElement(t, pos)
	c.elementID = id
	return c
}

// ElementID returns the id of the added element; empty until first Execute
// unless supplied upfront.
func (c *AddElement) ElementID() string { return c.elementID }

func (c *AddElement) Type() Type { return TypeAddElement }

func (c *AddElement) Execute(s *domain.FormBuilderState) (*domain.FormBuilderState, error) {
	if !domain.KnownElementType(c.elementType) {
		return nil, fmt.Errorf("add element: unknown type %q", c.elementType)
	}
	if c.added == nil {
		el := domain.NewElement(s.FormID, c.elementType, c.position)
		if c.elementID != "" {
			el.ID = c.elementID
		}
		c.elementID = el.ID
		c.added = &el
	}

	next := s.Clone()
	next.Elements = append(next.Elements, c.added.Clone())
	next.Select(c.elementID)
	return next, nil
}

func (c *AddElement) Undo(s *domain.FormBuilderState) (*domain.FormBuilderState, error) {
	if c.added == nil {
		return nil, fmt.Errorf("add element: %w", ErrNotExecuted)
	}
	idx := s.ElementIndex(c.elementID)
	if idx < 0 {
		return nil, fmt.Errorf("undo add element: element %s not found", c.elementID)
	}
	next := s.Clone()
	next.Elements = append(next.Elements[:idx], next.Elements[idx+1:]...)
	if next.IsSelected(c.elementID) {
		next.ClearSelection()
	}
	return next, nil
}

// Adding is always a discrete user action; it never merges.
func (c *AddElement) CanMergeWith(Command) bool { return false }

func (c *AddElement) MergeWith(Command) (Command, error) { return nil, ErrNotMergeable }

type addElementData struct {
	ElementType domain.ElementType      `json:"elementType"`
	Position    domain.ElementPosition  `json:"position"`
	ElementID   string                  `json:"elementId,omitempty"`
	Added       *domain.FormElement     `json:"added,omitempty"`
}

func (c *AddElement) Serialize() (domain.CommandRecord, error) {
	return c.record(TypeAddElement, addElementData{
		ElementType: c.elementType,
		Position:    c.position,
		ElementID:   c.elementID,
		Added:       c.added,
	})
}

func deserializeAddElement(rec domain.CommandRecord) (Command, error) {
	var d addElementData
	if err := json.Unmarshal(rec.Data, &d); err != nil {
		return nil, fmt.Errorf("deserialize add element: %w", err)
	}
	return &AddElement{
		base:        restoredBase(rec),
		elementType: d.ElementType,
		position:    d.Position,
		elementID:   d.ElementID,
		added:       d.Added,
	}, nil
}
