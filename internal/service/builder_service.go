package service

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"formbuilder/internal/canvas"
	"formbuilder/internal/command"
	"formbuilder/internal/domain"
	"formbuilder/internal/geometry"
)

// ─────────────────────────────────────────────────────────────
// Builder Service — one editing session over the command manager
// ─────────────────────────────────────────────────────────────

// Event names pushed through the emitter.
const (
	EventStateChanged   = "builder:state-changed"
	EventHistoryChanged = "builder:history-changed"
	EventCommandFailed  = "builder:command-failed"
	EventFormSaved      = "builder:form-saved"
)

// HistoryFlags is the payload of EventHistoryChanged.
type HistoryFlags struct {
	CanUndo   bool `json:"canUndo"`
	CanRedo   bool `json:"canRedo"`
	UndoCount int  `json:"undoCount"`
	RedoCount int  `json:"redoCount"`
}

// BuilderService drives one form editing session: every mutation goes
// through the command manager, every committed change is pushed out via the
// emitter, and Save syncs state plus history to the stores.
type BuilderService struct {
	forms   domain.FormStore
	history domain.HistoryStore
	emitter EventEmitter
	layout  *canvas.Layout

	mu      sync.Mutex
	manager *command.Manager
	formID  string
}

// NewBuilderService creates a BuilderService with no form open.
func NewBuilderService(forms domain.FormStore, history domain.HistoryStore, emitter EventEmitter) *BuilderService {
	return &BuilderService{
		forms:   forms,
		history: history,
		emitter: emitter,
		layout:  canvas.NewLayout(),
	}
}

// NewForm starts a fresh editing session and persists the empty form.
func (s *BuilderService) NewForm(ctx context.Context, title string) (*domain.FormBuilderState, error) {
	st := domain.NewFormBuilderState(uuid.NewString(), title)
	if err := s.forms.SaveForm(st); err != nil {
		return nil, fmt.Errorf("create form: %w", err)
	}
	s.attach(ctx, st)
	return st.Clone(), nil
}

// OpenForm loads a saved form and its command history into a new session.
func (s *BuilderService) OpenForm(ctx context.Context, formID string) (*domain.FormBuilderState, error) {
	st, err := s.forms.LoadForm(formID)
	if err != nil {
		return nil, fmt.Errorf("open form: %w", err)
	}
	s.attach(ctx, st)

	records, cursor, err := s.history.Load(formID)
	if err != nil {
		// A form without readable history is still editable.
		log.Printf("builder: load history for %s: %v", formID, err)
		return st.Clone(), nil
	}
	if len(records) > 0 {
		if err := s.mgr().RestoreHistory(records, cursor); err != nil {
			log.Printf("builder: restore history for %s: %v", formID, err)
		}
	}
	s.emitFlags(ctx)
	return st.Clone(), nil
}

// attach replaces the active session with a manager owning st.
func (s *BuilderService) attach(ctx context.Context, st *domain.FormBuilderState) {
	mgr := command.NewManager(st, command.Config{
		Batching: true,
		OnStateChange: func(next *domain.FormBuilderState) {
			s.emitter.Emit(ctx, EventStateChanged, next)
		},
		OnError: func(err error) {
			log.Printf("builder: command failed: %v", err)
			s.emitter.Emit(ctx, EventCommandFailed, err.Error())
		},
	})

	s.mu.Lock()
	s.manager = mgr
	s.formID = st.FormID
	s.mu.Unlock()
}

func (s *BuilderService) mgr() *command.Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manager
}

// State returns a copy of the current form state.
func (s *BuilderService) State() (*domain.FormBuilderState, error) {
	mgr := s.mgr()
	if mgr == nil {
		return nil, fmt.Errorf("no form open")
	}
	return mgr.State(), nil
}

// Flags reports the current undo/redo availability.
func (s *BuilderService) Flags() HistoryFlags {
	mgr := s.mgr()
	if mgr == nil {
		return HistoryFlags{}
	}
	return HistoryFlags{
		CanUndo:   mgr.CanUndo(),
		CanRedo:   mgr.CanRedo(),
		UndoCount: mgr.UndoCount(),
		RedoCount: mgr.RedoCount(),
	}
}

// dispatch runs one command through the manager and pushes updated flags.
func (s *BuilderService) dispatch(ctx context.Context, cmd command.Command) command.Result {
	mgr := s.mgr()
	if mgr == nil {
		return command.Result{Success: false, Err: "no form open"}
	}
	res := mgr.ExecuteCommand(cmd)
	if res.Success {
		s.persistCommand(cmd)
	}
	s.emitFlags(ctx)
	return res
}

// persistCommand appends a committed command to the stored history log so a
// crash between saves loses at most the in-flight batch. The log can drift
// from memory once pending commands merge at flush time; Save re-syncs it
// with Replace.
func (s *BuilderService) persistCommand(cmd command.Command) {
	rec, err := cmd.Serialize()
	if err != nil {
		log.Printf("serialize command for history log: %v", err)
		return
	}
	s.mu.Lock()
	formID := s.formID
	s.mu.Unlock()
	if err := s.history.Append(formID, rec); err != nil {
		log.Printf("append history log: %v", err)
	}
}

// persistCursor records the undo position after an undo or redo.
func (s *BuilderService) persistCursor(cursor int) {
	s.mu.Lock()
	formID := s.formID
	s.mu.Unlock()
	if err := s.history.SetCursor(formID, cursor); err != nil {
		log.Printf("set history cursor: %v", err)
	}
}

func (s *BuilderService) emitFlags(ctx context.Context) {
	s.emitter.Emit(ctx, EventHistoryChanged, s.Flags())
}

// AddElement drops a new element of the given type. Negative coordinates ask
// for auto-placement in the first free slot; otherwise the drop point snaps
// to the grid.
func (s *BuilderService) AddElement(ctx context.Context, elementType string, x, y float64) command.Result {
	mgr := s.mgr()
	if mgr == nil {
		return command.Result{Success: false, Err: "no form open"}
	}
	st := mgr.State()

	t := domain.ElementType(elementType)
	pos := domain.ElementPosition{Order: len(st.Elements)}
	if x < 0 || y < 0 {
		w, h := domain.DefaultElementSize(t)
		p := s.layout.NextPosition(st.Elements, w, h)
		pos.X, pos.Y = p.X, p.Y
	} else {
		p := geometry.SnapToGrid(geometry.Point{X: x, Y: y}, geometry.DefaultGridSize)
		pos.X, pos.Y = p.X, p.Y
	}
	return s.dispatch(ctx, command.NewAddElement(t, pos))
}

// RemoveElement deletes an element by id.
func (s *BuilderService) RemoveElement(ctx context.Context, id string) command.Result {
	return s.dispatch(ctx, command.NewRemoveElement(id))
}

// MoveElement repositions an element, snapping to the grid when the form has
// it enabled and clamping to the canvas.
func (s *BuilderService) MoveElement(ctx context.Context, id string, x, y float64, order int) command.Result {
	mgr := s.mgr()
	if mgr == nil {
		return command.Result{Success: false, Err: "no form open"}
	}
	st := mgr.State()

	p := geometry.Point{X: x, Y: y}
	if st.ShowGrid {
		p = geometry.SnapToGrid(p, geometry.DefaultGridSize)
	}
	if el, ok := st.ElementByID(id); ok {
		w, h := domain.DefaultElementSize(el.Type)
		p = geometry.ConstrainToCanvas(p, geometry.Size{Width: st.Canvas.Width, Height: st.Canvas.Height}, geometry.Size{Width: w, Height: h})
	}
	return s.dispatch(ctx, command.NewMoveElement(id, domain.ElementPosition{X: p.X, Y: p.Y, Order: order}))
}

// UpdateElement patches an element's editable properties.
func (s *BuilderService) UpdateElement(ctx context.Context, id string, patch command.ElementPatch) command.Result {
	return s.dispatch(ctx, command.NewUpdateElementProperties(id, patch))
}

// UpdateForm changes the form title and/or description; nil leaves a field
// untouched.
func (s *BuilderService) UpdateForm(ctx context.Context, title, description *string) command.Result {
	return s.dispatch(ctx, command.NewUpdateFormProperties(title, description))
}

// Undo reverses the last committed command.
func (s *BuilderService) Undo(ctx context.Context) command.Result {
	mgr := s.mgr()
	if mgr == nil {
		return command.Result{Success: false, Err: "no form open"}
	}
	res := mgr.Undo()
	if res.Success {
		s.persistCursor(mgr.UndoCount())
	}
	s.emitFlags(ctx)
	return res
}

// Redo re-applies the last undone command.
func (s *BuilderService) Redo(ctx context.Context) command.Result {
	mgr := s.mgr()
	if mgr == nil {
		return command.Result{Success: false, Err: "no form open"}
	}
	res := mgr.Redo()
	if res.Success {
		s.persistCursor(mgr.UndoCount())
	}
	s.emitFlags(ctx)
	return res
}

// SelectElements replaces the selection. Not an undoable action.
func (s *BuilderService) SelectElements(ctx context.Context, ids []string) (*domain.FormBuilderState, error) {
	mgr := s.mgr()
	if mgr == nil {
		return nil, fmt.Errorf("no form open")
	}
	return mgr.SetSelection(ids), nil
}

// AlignSelected aligns the selected elements along the given edge or axis.
// Each moved element becomes its own history entry.
func (s *BuilderService) AlignSelected(ctx context.Context, alignment geometry.Alignment) error {
	return s.applyPositions(ctx, func(st *domain.FormBuilderState, sel *canvas.Selection) map[string]domain.ElementPosition {
		return canvas.AlignSelected(st.Elements, sel, alignment)
	})
}

// DistributeSelected spreads the selected elements evenly between the two
// outermost ones.
func (s *BuilderService) DistributeSelected(ctx context.Context, direction geometry.Direction) error {
	return s.applyPositions(ctx, func(st *domain.FormBuilderState, sel *canvas.Selection) map[string]domain.ElementPosition {
		return canvas.DistributeSelected(st.Elements, sel, direction)
	})
}

// ArrangeAll lays every element out on a wrapping grid.
func (s *BuilderService) ArrangeAll(ctx context.Context) error {
	return s.applyPositions(ctx, func(st *domain.FormBuilderState, _ *canvas.Selection) map[string]domain.ElementPosition {
		return s.layout.Arrange(st.Elements, 0, 0)
	})
}

func (s *BuilderService) applyPositions(ctx context.Context, plan func(*domain.FormBuilderState, *canvas.Selection) map[string]domain.ElementPosition) error {
	mgr := s.mgr()
	if mgr == nil {
		return fmt.Errorf("no form open")
	}
	st := mgr.State()

	sel := canvas.NewSelection()
	for _, id := range st.SelectedIDs {
		sel.Add(id)
	}
	moves := plan(st, sel)

	for id, pos := range moves {
		if cur, ok := st.ElementByID(id); ok && cur.Position == pos {
			continue
		}
		if res := s.dispatch(ctx, command.NewMoveElement(id, pos)); !res.Success {
			return fmt.Errorf("apply position for %s: %s", id, res.Err)
		}
	}
	return nil
}

// ImportState replaces a form with externally edited content (a reloaded
// form document). If that form is the open session it is re-attached with a
// fresh, empty history; the old history no longer matches the content.
func (s *BuilderService) ImportState(ctx context.Context, st *domain.FormBuilderState) error {
	// An export of the open form echoes back through the file watcher. When
	// the document matches what is already in memory, keep the history.
	if mgr := s.mgr(); mgr != nil {
		s.mu.Lock()
		open := s.formID == st.FormID
		s.mu.Unlock()
		if open && domain.ContentEqual(mgr.State(), st) {
			return nil
		}
	}

	if err := s.forms.SaveForm(st); err != nil {
		return fmt.Errorf("import form: %w", err)
	}
	if err := s.history.Clear(st.FormID); err != nil {
		return fmt.Errorf("clear history on import: %w", err)
	}

	s.mu.Lock()
	open := s.formID == st.FormID
	s.mu.Unlock()
	if open {
		s.attach(ctx, st)
		s.emitter.Emit(ctx, EventStateChanged, st.Clone())
		s.emitFlags(ctx)
	}
	return nil
}

// Save flushes any pending batch, persists the form, and syncs the stored
// command history with what is in memory.
func (s *BuilderService) Save(ctx context.Context) error {
	mgr := s.mgr()
	if mgr == nil {
		return fmt.Errorf("no form open")
	}
	mgr.Flush()

	st := mgr.State()
	if err := s.forms.SaveForm(st); err != nil {
		return fmt.Errorf("save form: %w", err)
	}

	records, cursor, err := mgr.HistoryRecords()
	if err != nil {
		return fmt.Errorf("serialize history: %w", err)
	}
	if err := s.history.Replace(st.FormID, records, cursor); err != nil {
		return fmt.Errorf("save history: %w", err)
	}

	s.emitter.Emit(ctx, EventFormSaved, domain.FormSummary{
		ID:           st.FormID,
		Title:        st.Title,
		ElementCount: len(st.Elements),
		UpdatedAt:    st.UpdatedAt,
	})
	return nil
}

// ListForms returns summaries of all saved forms.
func (s *BuilderService) ListForms() ([]domain.FormSummary, error) {
	return s.forms.ListForms()
}

// DeleteForm removes a saved form. Deleting the open form closes the session.
func (s *BuilderService) DeleteForm(formID string) error {
	if err := s.forms.DeleteForm(formID); err != nil {
		return fmt.Errorf("delete form: %w", err)
	}
	s.mu.Lock()
	if s.formID == formID {
		s.manager = nil
		s.formID = ""
	}
	s.mu.Unlock()
	return nil
}

// ClearHistory drops the session's undo/redo stacks and the persisted log.
func (s *BuilderService) ClearHistory(ctx context.Context) error {
	mgr := s.mgr()
	if mgr == nil {
		return fmt.Errorf("no form open")
	}
	if err := mgr.RestoreHistory(nil, 0); err != nil {
		return err
	}
	s.mu.Lock()
	formID := s.formID
	s.mu.Unlock()
	if err := s.history.Clear(formID); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	s.emitFlags(ctx)
	return nil
}
