package service_test

import (
	"context"
	"testing"

	"formbuilder/internal/domain"
	"formbuilder/internal/geometry"
	"formbuilder/internal/service"
)

// ─────────────────────────────────────────────────────────────
// In-memory stores for session tests
// ─────────────────────────────────────────────────────────────

type memFormStore struct {
	forms map[string]*domain.FormBuilderState
}

func newMemFormStore() *memFormStore {
	return &memFormStore{forms: map[string]*domain.FormBuilderState{}}
}

func (s *memFormStore) SaveForm(st *domain.FormBuilderState) error {
	s.forms[st.FormID] = st.Clone()
	return nil
}

func (s *memFormStore) LoadForm(formID string) (*domain.FormBuilderState, error) {
	st, ok := s.forms[formID]
	if !ok {
		return nil, domainNotFound(formID)
	}
	return st.Clone(), nil
}

func (s *memFormStore) DeleteForm(formID string) error {
	delete(s.forms, formID)
	return nil
}

func (s *memFormStore) ListForms() ([]domain.FormSummary, error) {
	var out []domain.FormSummary
	for _, st := range s.forms {
		out = append(out, domain.FormSummary{ID: st.FormID, Title: st.Title, ElementCount: len(st.Elements)})
	}
	return out, nil
}

type memHistoryStore struct {
	recs    map[string][]domain.CommandRecord
	cursors map[string]int
}

func newMemHistoryStore() *memHistoryStore {
	return &memHistoryStore{recs: map[string][]domain.CommandRecord{}, cursors: map[string]int{}}
}

func (s *memHistoryStore) Append(formID string, rec domain.CommandRecord) error {
	cur := s.cursors[formID]
	s.recs[formID] = append(s.recs[formID][:cur], rec)
	s.cursors[formID] = cur + 1
	return nil
}

func (s *memHistoryStore) Replace(formID string, recs []domain.CommandRecord, cursor int) error {
	s.recs[formID] = append([]domain.CommandRecord(nil), recs...)
	s.cursors[formID] = cursor
	return nil
}

func (s *memHistoryStore) Load(formID string) ([]domain.CommandRecord, int, error) {
	return s.recs[formID], s.cursors[formID], nil
}

func (s *memHistoryStore) SetCursor(formID string, cursor int) error {
	s.cursors[formID] = cursor
	return nil
}

func (s *memHistoryStore) Clear(formID string) error {
	delete(s.recs, formID)
	delete(s.cursors, formID)
	return nil
}

type notFoundErr string

func (e notFoundErr) Error() string { return "form not found: " + string(e) }

func domainNotFound(id string) error { return notFoundErr(id) }

func newSession(t *testing.T) (*service.BuilderService, *service.MockEmitter, *memFormStore, *memHistoryStore) {
	t.Helper()
	forms := newMemFormStore()
	history := newMemHistoryStore()
	emitter := &service.MockEmitter{}
	return service.NewBuilderService(forms, history, emitter), emitter, forms, history
}

func lastEventNamed(m *service.MockEmitter, name string) (any, bool) {
	for i := len(m.Events) - 1; i >= 0; i-- {
		if m.Events[i].Event == name {
			return m.Events[i].Data, true
		}
	}
	return nil, false
}

// ─────────────────────────────────────────────────────────────
// BuilderService tests
// ─────────────────────────────────────────────────────────────

func TestBuilderService_RequiresOpenForm(t *testing.T) {
	svc, _, _, _ := newSession(t)
	ctx := context.Background()

	if res := svc.AddElement(ctx, "text", 0, 0); res.Success {
		t.Error("add without an open form should fail")
	}
	if res := svc.Undo(ctx); res.Success {
		t.Error("undo without an open form should fail")
	}
	if err := svc.Save(ctx); err == nil {
		t.Error("save without an open form should fail")
	}
}

func TestBuilderService_AddUndoRedoEmitsEvents(t *testing.T) {
	svc, emitter, _, _ := newSession(t)
	ctx := context.Background()

	if _, err := svc.NewForm(ctx, "Survey"); err != nil {
		t.Fatalf("new form: %v", err)
	}

	res := svc.AddElement(ctx, "email", 33, 47)
	if !res.Success {
		t.Fatalf("add element: %s", res.Err)
	}
	// Drop position snaps to the grid.
	el := res.NewState.Elements[0]
	if el.Position.X != 40 || el.Position.Y != 40 {
		t.Errorf("drop at (33, 47) landed at (%v, %v), want (40, 40)", el.Position.X, el.Position.Y)
	}

	if _, ok := lastEventNamed(emitter, service.EventStateChanged); !ok {
		t.Error("no state-changed event emitted")
	}
	data, ok := lastEventNamed(emitter, service.EventHistoryChanged)
	if !ok {
		t.Fatal("no history-changed event emitted")
	}
	flags := data.(service.HistoryFlags)
	if !flags.CanUndo || flags.CanRedo {
		t.Errorf("flags after add: %+v", flags)
	}

	if res := svc.Undo(ctx); !res.Success {
		t.Fatalf("undo: %s", res.Err)
	}
	if res := svc.Redo(ctx); !res.Success {
		t.Fatalf("redo: %s", res.Err)
	}
	st, err := svc.State()
	if err != nil || len(st.Elements) != 1 {
		t.Fatalf("state after redo: %v, %d elements", err, len(st.Elements))
	}
}

func TestBuilderService_AutoPlacementAvoidsOverlap(t *testing.T) {
	svc, _, _, _ := newSession(t)
	ctx := context.Background()
	svc.NewForm(ctx, "Survey")

	if res := svc.AddElement(ctx, "text", -1, -1); !res.Success {
		t.Fatalf("add: %s", res.Err)
	}
	res := svc.AddElement(ctx, "text", -1, -1)
	if !res.Success {
		t.Fatalf("add: %s", res.Err)
	}
	a, b := res.NewState.Elements[0].Position, res.NewState.Elements[1].Position
	if a.X == b.X && a.Y == b.Y {
		t.Errorf("auto-placed elements overlap at (%v, %v)", a.X, a.Y)
	}
}

func TestBuilderService_SaveAndReopenRestoresHistory(t *testing.T) {
	svc, _, forms, history := newSession(t)
	ctx := context.Background()

	st, err := svc.NewForm(ctx, "Survey")
	if err != nil {
		t.Fatalf("new form: %v", err)
	}
	formID := st.FormID

	svc.AddElement(ctx, "text", 0, 0)
	svc.AddElement(ctx, "dropdown", 0, 100)
	if err := svc.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}

	saved := forms.forms[formID]
	if len(saved.Elements) != 2 {
		t.Fatalf("saved form has %d elements, want 2", len(saved.Elements))
	}
	if recs := history.recs[formID]; len(recs) != 2 {
		t.Fatalf("saved history has %d records, want 2", len(recs))
	}

	// A fresh service over the same stores picks the session back up.
	svc2 := service.NewBuilderService(forms, history, &service.MockEmitter{})
	if _, err := svc2.OpenForm(ctx, formID); err != nil {
		t.Fatalf("open form: %v", err)
	}
	flags := svc2.Flags()
	if flags.UndoCount != 2 || flags.CanRedo {
		t.Fatalf("restored flags: %+v", flags)
	}
	if res := svc2.Undo(ctx); !res.Success {
		t.Fatalf("undo after reopen: %s", res.Err)
	}
	st2, _ := svc2.State()
	if len(st2.Elements) != 1 {
		t.Errorf("undo after reopen left %d elements, want 1", len(st2.Elements))
	}
}

func TestBuilderService_HistoryLogTracksCommandsAndCursor(t *testing.T) {
	svc, _, _, history := newSession(t)
	ctx := context.Background()

	st, err := svc.NewForm(ctx, "Survey")
	if err != nil {
		t.Fatalf("new form: %v", err)
	}
	formID := st.FormID

	svc.AddElement(ctx, "text", 0, 0)
	svc.AddElement(ctx, "dropdown", 0, 100)

	// Committed commands land in the store without an explicit Save.
	if recs := history.recs[formID]; len(recs) != 2 {
		t.Fatalf("history log has %d records, want 2", len(recs))
	}
	if cur := history.cursors[formID]; cur != 2 {
		t.Fatalf("cursor %d after two commands, want 2", cur)
	}

	if res := svc.Undo(ctx); !res.Success {
		t.Fatalf("undo: %s", res.Err)
	}
	if cur := history.cursors[formID]; cur != 1 {
		t.Errorf("cursor %d after undo, want 1", cur)
	}
	if res := svc.Redo(ctx); !res.Success {
		t.Fatalf("redo: %s", res.Err)
	}
	if cur := history.cursors[formID]; cur != 2 {
		t.Errorf("cursor %d after redo, want 2", cur)
	}
}

func TestBuilderService_AlignSelected(t *testing.T) {
	svc, _, _, _ := newSession(t)
	ctx := context.Background()
	svc.NewForm(ctx, "Survey")

	svc.AddElement(ctx, "text", 40, 0)
	svc.AddElement(ctx, "text", 120, 100)
	st, _ := svc.State()
	ids := []string{st.Elements[0].ID, st.Elements[1].ID}
	if _, err := svc.SelectElements(ctx, ids); err != nil {
		t.Fatalf("select: %v", err)
	}

	if err := svc.AlignSelected(ctx, geometry.AlignLeft); err != nil {
		t.Fatalf("align: %v", err)
	}
	st, _ = svc.State()
	if st.Elements[0].Position.X != st.Elements[1].Position.X {
		t.Errorf("left align left x at %v and %v", st.Elements[0].Position.X, st.Elements[1].Position.X)
	}
}

func TestBuilderService_HandleKey(t *testing.T) {
	svc, _, _, _ := newSession(t)
	ctx := context.Background()
	svc.NewForm(ctx, "Survey")
	svc.AddElement(ctx, "text", 0, 0)

	res, handled := svc.HandleKey(ctx, service.KeyEvent{Key: "z", Ctrl: true})
	if !handled || !res.Success {
		t.Fatalf("ctrl+z: handled=%v err=%s", handled, res.Err)
	}
	res, handled = svc.HandleKey(ctx, service.KeyEvent{Key: "Z", Meta: true, Shift: true})
	if !handled || !res.Success {
		t.Fatalf("cmd+shift+z: handled=%v err=%s", handled, res.Err)
	}
	if _, handled := svc.HandleKey(ctx, service.KeyEvent{Key: "k", Ctrl: true}); handled {
		t.Error("unmapped shortcut must not be consumed")
	}

	// Delete removes the selection.
	st, _ := svc.State()
	svc.SelectElements(ctx, []string{st.Elements[0].ID})
	res, handled = svc.HandleKey(ctx, service.KeyEvent{Key: "Delete"})
	if !handled || !res.Success {
		t.Fatalf("delete: handled=%v err=%s", handled, res.Err)
	}
	st, _ = svc.State()
	if len(st.Elements) != 0 {
		t.Errorf("delete left %d elements", len(st.Elements))
	}
}

func TestBuilderService_FailedCommandEmitsFailure(t *testing.T) {
	svc, emitter, _, _ := newSession(t)
	ctx := context.Background()
	svc.NewForm(ctx, "Survey")

	res := svc.RemoveElement(ctx, "ghost")
	if res.Success {
		t.Fatal("removing a nonexistent element should fail")
	}
	if _, ok := lastEventNamed(emitter, service.EventCommandFailed); !ok {
		t.Error("no command-failed event emitted")
	}
}
