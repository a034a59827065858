package command

import (
	"encoding/json"
	"fmt"

	"formbuilder/internal/domain"
)

// UpdateFormProperties updates the form's title and/or description. Previous
// values are captured per changed field on first Execute. Rapid successive
// edits merge within PropertyMergeWindow.
type UpdateFormProperties struct {
	base
	newTitle        *string
	newDescription  *string
	prevTitle       *string
	prevDescription *string
	executed        bool
}

// NewUpdateFormProperties creates a form-metadata update; nil arguments leave
// the corresponding field untouched.
func NewUpdateFormProperties(title, description *string) *UpdateFormProperties {
	return &UpdateFormProperties{
		base:           newBase("Update form properties"),
		newTitle:       title,
		newDescription: description,
	}
}

func (c *UpdateFormProperties) Type() Type { return TypeUpdateForm }

func (c *UpdateFormProperties) Execute(s *domain.FormBuilderState) (*domain.FormBuilderState, error) {
	if c.newTitle == nil && c.newDescription == nil {
		return nil, fmt.Errorf("update form: nothing to update")
	}
	if !c.executed {
		if c.newTitle != nil {
			prev := s.Title
			c.prevTitle = &prev
		}
		if c.newDescription != nil {
			prev := s.Description
			c.prevDescription = &prev
		}
		c.executed = true
	}
	next := s.Clone()
	if c.newTitle != nil {
		next.Title = *c.newTitle
	}
	if c.newDescription != nil {
		next.Description = *c.newDescription
	}
	return next, nil
}

func (c *UpdateFormProperties) Undo(s *domain.FormBuilderState) (*domain.FormBuilderState, error) {
	if !c.executed {
		return nil, fmt.Errorf("update form: %w", ErrNotExecuted)
	}
	next := s.Clone()
	if c.prevTitle != nil {
		next.Title = *c.prevTitle
	}
	if c.prevDescription != nil {
		next.Description = *c.prevDescription
	}
	return next, nil
}

func (c *UpdateFormProperties) CanMergeWith(other Command) bool {
	o, ok := other.(*UpdateFormProperties)
	return ok && withinMergeWindow(c, o)
}

// MergeWith lets the newer command's fields win while keeping, per field, the
// earliest captured previous value so undo restores the original form.
func (c *UpdateFormProperties) MergeWith(other Command) (Command, error) {
	o, ok := other.(*UpdateFormProperties)
	if !ok {
		return nil, ErrNotMergeable
	}
	merged := &UpdateFormProperties{
		base:            c.base,
		newTitle:        c.newTitle,
		newDescription:  c.newDescription,
		prevTitle:       c.prevTitle,
		prevDescription: c.prevDescription,
		executed:        c.executed || o.executed,
	}
	if o.newTitle != nil {
		merged.newTitle = o.newTitle
		if merged.prevTitle == nil {
			merged.prevTitle = o.prevTitle
		}
	}
	if o.newDescription != nil {
		merged.newDescription = o.newDescription
		if merged.prevDescription == nil {
			merged.prevDescription = o.prevDescription
		}
	}
	return merged, nil
}

type updateFormData struct {
	NewTitle        *string `json:"newTitle,omitempty"`
	NewDescription  *string `json:"newDescription,omitempty"`
	PrevTitle       *string `json:"prevTitle,omitempty"`
	PrevDescription *string `json:"prevDescription,omitempty"`
	Executed        bool    `json:"executed"`
}

func (c *UpdateFormProperties) Serialize() (domain.CommandRecord, error) {
	return c.record(TypeUpdateForm, updateFormData{
		NewTitle:        c.newTitle,
		NewDescription:  c.newDescription,
		PrevTitle:       c.prevTitle,
		PrevDescription: c.prevDescription,
		Executed:        c.executed,
	})
}

func deserializeUpdateForm(rec domain.CommandRecord) (Command, error) {
	var d updateFormData
	if err := json.Unmarshal(rec.Data, &d); err != nil {
		return nil, fmt.Errorf("deserialize update form: %w", err)
	}
	return &UpdateFormProperties{
		base:            restoredBase(rec),
		newTitle:        d.NewTitle,
		newDescription:  d.NewDescription,
		prevTitle:       d.PrevTitle,
		prevDescription: d.PrevDescription,
		executed:        d.Executed,
	}, nil
}
