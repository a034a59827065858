package domain

import (
	"time"

	"github.com/google/uuid"
)

type ElementType string

const (
	ElementTypeText     ElementType = "text"
	ElementTypeEmail    ElementType = "email"
	ElementTypePhone    ElementType = "phone"
	ElementTypeNumber   ElementType = "number"
	ElementTypeDate     ElementType = "date"
	ElementTypeTextarea ElementType = "textarea"
	ElementTypeDropdown ElementType = "dropdown"
	ElementTypeRadio    ElementType = "radio"
	ElementTypeCheckbox ElementType = "checkbox"
	ElementTypeSection  ElementType = "section"
	ElementTypeHeading  ElementType = "heading"
	ElementTypeDivider  ElementType = "divider"
	ElementTypeFile     ElementType = "file"
)

// ElementPosition places an element on the canvas. Order is the authoritative
// sequencing key when two elements sit at nearly the same Y; X/Y are free-form
// coordinates used for drag feedback and alignment.
type ElementPosition struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Order int     `json:"order"`
}

// ValidationRule is one entry of an element's ordered validation list.
type ValidationRule struct {
	Type    string `json:"type"`
	Value   any    `json:"value,omitempty"`
	Message string `json:"message,omitempty"`
}

// ElementStyle holds per-element presentation values. The builder core treats
// this as an opaque record: it is snapshotted and restored, never interpreted.
type ElementStyle struct {
	BackgroundColor string  `json:"backgroundColor,omitempty"`
	TextColor       string  `json:"textColor,omitempty"`
	BorderColor     string  `json:"borderColor,omitempty"`
	BorderWidth     float64 `json:"borderWidth,omitempty"`
	BorderRadius    float64 `json:"borderRadius,omitempty"`
	Padding         float64 `json:"padding,omitempty"`
	FontSize        float64 `json:"fontSize,omitempty"`
	FontWeight      string  `json:"fontWeight,omitempty"`
}

// FormElement is a single placed field on the form canvas.
type FormElement struct {
	ID          string           `json:"id"`
	FormID      string           `json:"formId"`
	Type        ElementType      `json:"type"`
	Label       string           `json:"label"`
	Placeholder string           `json:"placeholder,omitempty"`
	Required    bool             `json:"required"`
	Validation  []ValidationRule `json:"validation,omitempty"`
	Style       ElementStyle     `json:"style"`
	Position    ElementPosition  `json:"position"`
	Properties  map[string]any   `json:"properties,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// Clone returns a deep copy of the element, including its validation list
// and properties map.
func (e FormElement) Clone() FormElement {
	c := e
	if e.Validation != nil {
		c.Validation = make([]ValidationRule, len(e.Validation))
		copy(c.Validation, e.Validation)
	}
	if e.Properties != nil {
		c.Properties = make(map[string]any, len(e.Properties))
		for k, v := range e.Properties {
			c.Properties[k] = v
		}
	}
	return c
}

// elementDefaults carries the type-specific defaults applied when an element
// is first dropped on the canvas.
type elementDefaults struct {
	Label       string
	Placeholder string
	Width       float64
	Height      float64
}

var defaultsByType = map[ElementType]elementDefaults{
	ElementTypeText:     {"Text Field", "Enter text", 280, 72},
	ElementTypeEmail:    {"Email", "name@example.com", 280, 72},
	ElementTypePhone:    {"Phone", "(555) 000-0000", 280, 72},
	ElementTypeNumber:   {"Number", "0", 280, 72},
	ElementTypeDate:     {"Date", "", 280, 72},
	ElementTypeTextarea: {"Long Answer", "Type your answer", 280, 120},
	ElementTypeDropdown: {"Dropdown", "Select an option", 280, 72},
	ElementTypeRadio:    {"Multiple Choice", "", 280, 120},
	ElementTypeCheckbox: {"Checkboxes", "", 280, 120},
	ElementTypeSection:  {"Section", "", 560, 240},
	ElementTypeHeading:  {"Heading", "", 280, 48},
	ElementTypeDivider:  {"", "", 280, 16},
	ElementTypeFile:     {"File Upload", "", 280, 96},
}

// KnownElementType reports whether t is one of the supported element types.
func KnownElementType(t ElementType) bool {
	_, ok := defaultsByType[t]
	return ok
}

// DefaultElementSize returns the default canvas footprint for an element type.
func DefaultElementSize(t ElementType) (w, h float64) {
	d, ok := defaultsByType[t]
	if !ok {
		return 280, 72
	}
	return d.Width, d.Height
}

// NewElement constructs an element of the given type at pos with its
// type-specific default label and placeholder. The id is generated here so
// callers that don't care about ids never have to supply one.
func NewElement(formID string, t ElementType, pos ElementPosition) FormElement {
	d := defaultsByType[t]
	now := time.Now()
	return FormElement{
		ID:          uuid.NewString(),
		FormID:      formID,
		Type:        t,
		Label:       d.Label,
		Placeholder: d.Placeholder,
		Position:    pos,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
