package command

import (
	"encoding/json"
	"fmt"
	"time"

	"formbuilder/internal/domain"
)

// MoveElement repositions one element. The pre-move position is captured on
// first Execute. Successive moves of the same element merge, so a continuous
// drag collapses into a single undo step that restores the position from
// before the drag started.
type MoveElement struct {
	base
	elementID    string
	newPosition  domain.ElementPosition
	prevPosition *domain.ElementPosition
}

// NewMoveElement creates a move command.
func NewMoveElement(id string, pos domain.ElementPosition) *MoveElement {
	return &MoveElement{
		base:        newBase("Move element"),
		elementID:   id,
		newPosition: pos,
	}
}

func (c *MoveElement) Type() Type { return TypeMoveElement }

func (c *MoveElement) Execute(s *domain.FormBuilderState) (*domain.FormBuilderState, error) {
	idx := s.ElementIndex(c.elementID)
	if idx < 0 {
		return nil, fmt.Errorf("move element: element %s not found", c.elementID)
	}
	if c.prevPosition == nil {
		prev := s.Elements[idx].Position
		c.prevPosition = &prev
	}
	next := s.Clone()
	next.Elements[idx].Position = c.newPosition
	next.Elements[idx].UpdatedAt = time.Now()
	return next, nil
}

func (c *MoveElement) Undo(s *domain.FormBuilderState) (*domain.FormBuilderState, error) {
	if c.prevPosition == nil {
		return nil, fmt.Errorf("move element: %w", ErrNotExecuted)
	}
	idx := s.ElementIndex(c.elementID)
	if idx < 0 {
		return nil, fmt.Errorf("undo move element: element %s not found", c.elementID)
	}
	next := s.Clone()
	next.Elements[idx].Position = *c.prevPosition
	next.Elements[idx].UpdatedAt = time.Now()
	return next, nil
}

func (c *MoveElement) CanMergeWith(other Command) bool {
	o, ok := other.(*MoveElement)
	return ok && o.elementID == c.elementID
}

// MergeWith keeps this command's captured pre-drag position — the earliest
// one — and adopts the newer command's destination, so undoing the merged
// command restores the true original position.
func (c *MoveElement) MergeWith(other Command) (Command, error) {
	o, ok := other.(*MoveElement)
	if !ok || o.elementID != c.elementID {
		return nil, ErrNotMergeable
	}
	merged := &MoveElement{
		base:         c.base,
		elementID:    c.elementID,
		newPosition:  o.newPosition,
		prevPosition: c.prevPosition,
	}
	if merged.prevPosition == nil {
		merged.prevPosition = o.prevPosition
	}
	return merged, nil
}

type moveElementData struct {
	ElementID    string                  `json:"elementId"`
	NewPosition  domain.ElementPosition  `json:"newPosition"`
	PrevPosition *domain.ElementPosition `json:"prevPosition,omitempty"`
}

func (c *MoveElement) Serialize() (domain.CommandRecord, error) {
	return c.record(TypeMoveElement, moveElementData{
		ElementID:    c.elementID,
		NewPosition:  c.newPosition,
		PrevPosition: c.prevPosition,
	})
}

func deserializeMoveElement(rec domain.CommandRecord) (Command, error) {
	var d moveElementData
	if err := json.Unmarshal(rec.Data, &d); err != nil {
		return nil, fmt.Errorf("deserialize move element: %w", err)
	}
	return &MoveElement{
		base:         restoredBase(rec),
		elementID:    d.ElementID,
		newPosition:  d.NewPosition,
		prevPosition: d.PrevPosition,
	}, nil
}
