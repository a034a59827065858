// Package command implements the invertible mutation descriptors and the
// manager that owns the authoritative form state plus undo/redo history.
package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"formbuilder/internal/domain"
)

// Type tags the five mutation kinds plus the derived rollback wrapper.
type Type string

const (
	TypeAddElement    Type = "add_element"
	TypeRemoveElement Type = "remove_element"
	TypeMoveElement   Type = "move_element"
	TypeUpdateElement Type = "update_element_properties"
	TypeUpdateForm    Type = "update_form_properties"
	TypeRollback      Type = "rollback"
)

var (
	// ErrNotExecuted signals an undo on a command whose captured previous
	// values were never set. This is a lifecycle contract violation, not a
	// recoverable user condition.
	ErrNotExecuted = errors.New("command has not been executed")

	// ErrNotMergeable signals a merge attempt between incompatible commands.
	ErrNotMergeable = errors.New("commands cannot be merged")
)

// PropertyMergeWindow is how close in time two property-update commands must
// be to collapse into one history entry (rapid typing in a property field).
const PropertyMergeWindow = time.Second

// Command is a self-contained, invertible description of one state mutation.
// Execute and Undo never mutate their input; the returned state is a new tree.
// For any executed command, Undo(Execute(s)) equals s on durable content.
type Command interface {
	ID() string
	Type() Type
	Timestamp() time.Time
	Description() string

	Execute(s *domain.FormBuilderState) (*domain.FormBuilderState, error)
	Undo(s *domain.FormBuilderState) (*domain.FormBuilderState, error)

	// CanMergeWith reports whether other (the more recent command) can fold
	// into this one as a single history entry.
	CanMergeWith(other Command) bool
	// MergeWith folds other into this command. The merged command's Undo
	// restores the state from before this command, never an intermediate.
	MergeWith(other Command) (Command, error)

	// Serialize captures the command — including any previous values captured
	// during Execute — as a plain record that survives persistence.
	Serialize() (domain.CommandRecord, error)
}

// base carries the identity fields shared by all commands.
type base struct {
	id      string
	created time.Time
	desc    string
}

func newBase(desc string) base {
	return base{id: uuid.NewString(), created: time.Now(), desc: desc}
}

func restoredBase(rec domain.CommandRecord) base {
	return base{id: rec.ID, created: time.UnixMilli(rec.Timestamp), desc: rec.Description}
}

func (b base) ID() string           { return b.id }
func (b base) Timestamp() time.Time { return b.created }
func (b base) Description() string  { return b.desc }

func (b base) record(t Type, payload any) (domain.CommandRecord, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return domain.CommandRecord{}, fmt.Errorf("serialize %s: %w", t, err)
	}
	return domain.CommandRecord{
		ID:          b.id,
		Type:        string(t),
		Timestamp:   b.created.UnixMilli(),
		Description: b.desc,
		Data:        data,
	}, nil
}

// withinMergeWindow reports whether two commands happened close enough in
// time to model as one user action.
func withinMergeWindow(a, b Command) bool {
	d := b.Timestamp().Sub(a.Timestamp())
	if d < 0 {
		d = -d
	}
	return d <= PropertyMergeWindow
}

// Deserialize reconstructs a concrete command from its serialized record.
// Captured previous-value fields come back with it, so the command can
// replay both execute and undo.
func Deserialize(rec domain.CommandRecord) (Command, error) {
	switch Type(rec.Type) {
	case TypeAddElement:
		return deserializeAddElement(rec)
	case TypeRemoveElement:
		return deserializeRemoveElement(rec)
	case TypeMoveElement:
		return deserializeMoveElement(rec)
	case TypeUpdateElement:
		return deserializeUpdateElement(rec)
	case TypeUpdateForm:
		return deserializeUpdateForm(rec)
	case TypeRollback:
		return deserializeRollback(rec)
	default:
		return nil, fmt.Errorf("deserialize command: unknown type %q", rec.Type)
	}
}

// RollbackFor builds the inverse of an executed command: executing the
// rollback runs the original command's Undo. This is what optimistic-update
// failure recovery applies when a persisted mutation is rejected upstream.
func RollbackFor(cmd Command) Command {
	return &rollback{
		base:   newBase("Rollback: " + cmd.Description()),
		target: cmd,
	}
}

type rollback struct {
	base
	target Command
}

func (c *rollback) Type() Type { return TypeRollback }

func (c *rollback) Execute(s *domain.FormBuilderState) (*domain.FormBuilderState, error) {
	return c.target.Undo(s)
}

func (c *rollback) Undo(s *domain.FormBuilderState) (*domain.FormBuilderState, error) {
	return c.target.Execute(s)
}

func (c *rollback) CanMergeWith(Command) bool { return false }

func (c *rollback) MergeWith(Command) (Command, error) { return nil, ErrNotMergeable }

func (c *rollback) Serialize() (domain.CommandRecord, error) {
	inner, err := c.target.Serialize()
	if err != nil {
		return domain.CommandRecord{}, err
	}
	return c.base.record(TypeRollback, inner)
}

func deserializeRollback(rec domain.CommandRecord) (Command, error) {
	var inner domain.CommandRecord
	if err := json.Unmarshal(rec.Data, &inner); err != nil {
		return nil, fmt.Errorf("deserialize rollback: %w", err)
	}
	target, err := Deserialize(inner)
	if err != nil {
		return nil, err
	}
	return &rollback{base: restoredBase(rec), target: target}, nil
}
