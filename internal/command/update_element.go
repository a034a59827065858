package command

import (
	"encoding/json"
	"fmt"
	"time"

	"formbuilder/internal/domain"
)

// ElementPatch is the typed update payload for one element. Nil fields are
// untouched; Properties is shallow-merged into the element's free-form map.
type ElementPatch struct {
	Label       *string                  `json:"label,omitempty"`
	Placeholder *string                  `json:"placeholder,omitempty"`
	Required    *bool                    `json:"required,omitempty"`
	Validation  *[]domain.ValidationRule `json:"validation,omitempty"`
	Style       *domain.ElementStyle     `json:"style,omitempty"`
	Properties  map[string]any           `json:"properties,omitempty"`
}

// UpdateElementProperties applies an ElementPatch to one element. The full
// pre-update element is captured on first Execute so undo restores every
// affected field exactly. Rapid successive updates to the same element merge
// into one history entry within PropertyMergeWindow.
type UpdateElementProperties struct {
	base
	elementID string
	patch     ElementPatch
	prev      *domain.FormElement
}

// NewUpdateElementProperties creates a property-update command.
func NewUpdateElementProperties(id string, patch ElementPatch) *UpdateElementProperties {
	return &UpdateElementProperties{
		base:      newBase("Update element properties"),
		elementID: id,
		patch:     patch,
	}
}

func (c *UpdateElementProperties) Type() Type { return TypeUpdateElement }

func (c *UpdateElementProperties) Execute(s *domain.FormBuilderState) (*domain.FormBuilderState, error) {
	idx := s.ElementIndex(c.elementID)
	if idx < 0 {
		return nil, fmt.Errorf("update element: element %s not found", c.elementID)
	}
	if c.prev == nil {
		snapshot := s.Elements[idx].Clone()
		c.prev = &snapshot
	}

	next := s.Clone()
	el := &next.Elements[idx]
	if c.patch.Label != nil {
		el.Label = *c.patch.Label
	}
	if c.patch.Placeholder != nil {
		el.Placeholder = *c.patch.Placeholder
	}
	if c.patch.Required != nil {
		el.Required = *c.patch.Required
	}
	if c.patch.Validation != nil {
		rules := make([]domain.ValidationRule, len(*c.patch.Validation))
		copy(rules, *c.patch.Validation)
		el.Validation = rules
	}
	if c.patch.Style != nil {
		el.Style = *c.patch.Style
	}
	if len(c.patch.Properties) > 0 {
		if el.Properties == nil {
			el.Properties = map[string]any{}
		}
		for k, v := range c.patch.Properties {
			el.Properties[k] = v
		}
	}
	el.UpdatedAt = time.Now()
	return next, nil
}

func (c *UpdateElementProperties) Undo(s *domain.FormBuilderState) (*domain.FormBuilderState, error) {
	if c.prev == nil {
		return nil, fmt.Errorf("update element: %w", ErrNotExecuted)
	}
	idx := s.ElementIndex(c.elementID)
	if idx < 0 {
		return nil, fmt.Errorf("undo update element: element %s not found", c.elementID)
	}
	next := s.Clone()
	restored := c.prev.Clone()
	// Position is owned by move commands; keep whatever is current.
	restored.Position = next.Elements[idx].Position
	next.Elements[idx] = restored
	return next, nil
}

func (c *UpdateElementProperties) CanMergeWith(other Command) bool {
	o, ok := other.(*UpdateElementProperties)
	return ok && o.elementID == c.elementID && withinMergeWindow(c, o)
}

func (c *UpdateElementProperties) MergeWith(other Command) (Command, error) {
	o, ok := other.(*UpdateElementProperties)
	if !ok || o.elementID != c.elementID {
		return nil, ErrNotMergeable
	}

	merged := &UpdateElementProperties{
		base:      c.base,
		elementID: c.elementID,
		patch:     c.patch,
		prev:      c.prev,
	}
	if o.patch.Label != nil {
		merged.patch.Label = o.patch.Label
	}
	if o.patch.Placeholder != nil {
		merged.patch.Placeholder = o.patch.Placeholder
	}
	if o.patch.Required != nil {
		merged.patch.Required = o.patch.Required
	}
	if o.patch.Validation != nil {
		merged.patch.Validation = o.patch.Validation
	}
	if o.patch.Style != nil {
		merged.patch.Style = o.patch.Style
	}
	if len(o.patch.Properties) > 0 {
		props := make(map[string]any, len(c.patch.Properties)+len(o.patch.Properties))
		for k, v := range c.patch.Properties {
			props[k] = v
		}
		for k, v := range o.patch.Properties {
			props[k] = v
		}
		merged.patch.Properties = props
	}
	if merged.prev == nil {
		merged.prev = o.prev
	}
	return merged, nil
}

type updateElementData struct {
	ElementID string              `json:"elementId"`
	Patch     ElementPatch        `json:"patch"`
	Prev      *domain.FormElement `json:"prev,omitempty"`
}

func (c *UpdateElementProperties) Serialize() (domain.CommandRecord, error) {
	return c.record(TypeUpdateElement, updateElementData{
		ElementID: c.elementID,
		Patch:     c.patch,
		Prev:      c.prev,
	})
}

func deserializeUpdateElement(rec domain.CommandRecord) (Command, error) {
	var d updateElementData
	if err := json.Unmarshal(rec.Data, &d); err != nil {
		return nil, fmt.Errorf("deserialize update element: %w", err)
	}
	return &UpdateElementProperties{
		base:      restoredBase(rec),
		elementID: d.ElementID,
		patch:     d.Patch,
		prev:      d.Prev,
	}, nil
}
