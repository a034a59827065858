package command

import (
	"strings"
	"testing"
	"time"

	"formbuilder/internal/domain"
)

func newManager(t *testing.T, cfg Config) (*Manager, *domain.FormBuilderState) {
	t.Helper()
	s := newTestState(t)
	return NewManager(s, cfg), s
}

func TestManager_ExecuteUndoRedo(t *testing.T) {
	m, s0 := newManager(t, Config{})

	res := m.ExecuteCommand(NewAddElement(domain.ElementTypeCheckbox, domain.ElementPosition{Y: 200, Order: 2}))
	if !res.Success {
		t.Fatalf("execute failed: %s", res.Err)
	}
	if res.Rollback == nil {
		t.Error("successful execute should carry a rollback command")
	}
	if len(res.NewState.Elements) != 3 {
		t.Fatalf("expected 3 elements, got %d", len(res.NewState.Elements))
	}
	if !m.CanUndo() || m.CanRedo() {
		t.Errorf("flags after execute: canUndo=%v canRedo=%v", m.CanUndo(), m.CanRedo())
	}

	res = m.Undo()
	if !res.Success {
		t.Fatalf("undo failed: %s", res.Err)
	}
	if !domain.ContentEqual(res.NewState, s0) {
		t.Error("undo did not restore the original content")
	}
	if m.CanUndo() || !m.CanRedo() {
		t.Errorf("flags after undo: canUndo=%v canRedo=%v", m.CanUndo(), m.CanRedo())
	}

	res = m.Redo()
	if !res.Success {
		t.Fatalf("redo failed: %s", res.Err)
	}
	if len(res.NewState.Elements) != 3 {
		t.Error("redo did not re-apply the add")
	}
}

func TestManager_FullUndoRestoresInitialContent(t *testing.T) {
	m, s0 := newManager(t, Config{})
	id := s0.Elements[0].ID

	title := "Renamed"
	label := "New label"
	cmds := []Command{
		NewMoveElement(id, domain.ElementPosition{X: 120, Y: 40}),
		NewUpdateFormProperties(&title, nil),
		NewAddElement(domain.ElementTypeDivider, domain.ElementPosition{Y: 300, Order: 2}),
		NewUpdateElementProperties(id, ElementPatch{Label: &label}),
		NewRemoveElement(s0.Elements[1].ID),
	}
	for _, c := range cmds {
		if res := m.ExecuteCommand(c); !res.Success {
			t.Fatalf("execute %s: %s", c.Type(), res.Err)
		}
	}
	if m.UndoCount() != len(cmds) {
		t.Fatalf("undo count %d, want %d", m.UndoCount(), len(cmds))
	}

	var last Result
	for range cmds {
		if last = m.Undo(); !last.Success {
			t.Fatalf("undo: %s", last.Err)
		}
	}
	if !domain.ContentEqual(last.NewState, s0) {
		t.Error("undoing every command did not restore the initial content")
	}
	if res := m.Undo(); res.Success || res.Err != "nothing to undo" {
		t.Errorf("empty-stack undo: %+v", res)
	}
}

func TestManager_ExecuteClearsRedo(t *testing.T) {
	m, s := newManager(t, Config{})
	m.ExecuteCommand(NewMoveElement(s.Elements[0].ID, domain.ElementPosition{X: 50}))
	m.Undo()
	if !m.CanRedo() {
		t.Fatal("expected a redoable entry")
	}
	m.ExecuteCommand(NewMoveElement(s.Elements[1].ID, domain.ElementPosition{X: 70}))
	if m.CanRedo() {
		t.Error("executing a new command must clear the redo stack")
	}
}

func TestManager_HistoryBound(t *testing.T) {
	m, s := newManager(t, Config{MaxHistory: 5})
	for i := 0; i < 8; i++ {
		res := m.ExecuteCommand(NewAddElement(domain.ElementTypeText, domain.ElementPosition{Y: float64(i) * 50, Order: i + 2}))
		if !res.Success {
			t.Fatalf("execute %d: %s", i, res.Err)
		}
	}
	if m.UndoCount() != 5 {
		t.Fatalf("undo count %d, want the 5 most recent", m.UndoCount())
	}
	for m.CanUndo() {
		if res := m.Undo(); !res.Success {
			t.Fatalf("undo: %s", res.Err)
		}
	}
	// Five undos peel back to the state after the third add.
	if got := len(m.State().Elements); got != len(s.Elements)+3 {
		t.Errorf("after exhausting undo: %d elements, want %d", got, len(s.Elements)+3)
	}
}

func TestManager_FailedCommandLeavesStateAndHistory(t *testing.T) {
	var reported error
	m, s0 := newManager(t, Config{OnError: func(err error) { reported = err }})

	res := m.ExecuteCommand(NewRemoveElement("ghost"))
	if res.Success {
		t.Fatal("removing a nonexistent element should fail")
	}
	if !strings.Contains(res.Err, "not found") {
		t.Errorf("unexpected error text %q", res.Err)
	}
	if reported == nil {
		t.Error("error callback not invoked")
	}
	if m.CanUndo() {
		t.Error("failed command must not enter history")
	}
	if !domain.ContentEqual(m.State(), s0) {
		t.Error("failed command must not change state")
	}
}

type panicky struct{ base }

func (panicky) Type() Type { return Type("panicky") }
func (panicky) Execute(*domain.FormBuilderState) (*domain.FormBuilderState, error) {
	panic("boom")
}
func (panicky) Undo(*domain.FormBuilderState) (*domain.FormBuilderState, error) { panic("boom") }
func (panicky) CanMergeWith(Command) bool { return false }
func (panicky) MergeWith(Command) (Command, error) { return nil, ErrNotMergeable }
func (panicky) Serialize() (domain.CommandRecord, error) { return domain.CommandRecord{}, nil }

func TestManager_PanicBecomesFailedResult(t *testing.T) {
	m, _ := newManager(t, Config{})
	res := m.ExecuteCommand(panicky{base: newBase("Panicky")})
	if res.Success {
		t.Fatal("a panicking command must report failure")
	}
	if !strings.Contains(res.Err, "panicked") {
		t.Errorf("unexpected error text %q", res.Err)
	}
	if m.IsExecuting() {
		t.Error("executing guard not released after panic")
	}
}

func TestManager_RejectsReentrantExecute(t *testing.T) {
	var m *Manager
	var nested Result
	m = NewManager(newTestState(t), Config{
		OnStateChange: func(*domain.FormBuilderState) {
			nested = m.ExecuteCommand(NewAddElement(domain.ElementTypeText, domain.ElementPosition{}))
		},
	})
	res := m.ExecuteCommand(NewAddElement(domain.ElementTypeHeading, domain.ElementPosition{Order: 2}))
	if !res.Success {
		t.Fatalf("execute: %s", res.Err)
	}
	if nested.Success {
		t.Error("a dispatch during an in-flight command must be rejected")
	}
}

func TestManager_BatchCollapsesDragIntoOneEntry(t *testing.T) {
	m, s0 := newManager(t, Config{Batching: true, BatchDelay: 20 * time.Millisecond})
	id := s0.Elements[0].ID

	for _, p := range []domain.ElementPosition{{X: 10, Y: 10}, {X: 25, Y: 5}, {X: 40, Y: 20}} {
		if res := m.ExecuteCommand(NewMoveElement(id, p)); !res.Success {
			t.Fatalf("execute: %s", res.Err)
		}
	}
	if m.UndoCount() != 1 {
		t.Fatalf("undo count %d, want the drag collapsed to 1", m.UndoCount())
	}

	time.Sleep(50 * time.Millisecond)
	if m.UndoCount() != 1 {
		t.Fatalf("undo count %d after flush, want 1", m.UndoCount())
	}

	res := m.Undo()
	if !res.Success {
		t.Fatalf("undo: %s", res.Err)
	}
	got, _ := res.NewState.ElementByID(id)
	if got.Position.X != 0 || got.Position.Y != 0 {
		t.Errorf("undo restored (%v, %v), want pre-drag (0, 0)", got.Position.X, got.Position.Y)
	}
}

func TestManager_UndoFlushesPendingBatch(t *testing.T) {
	m, s0 := newManager(t, Config{Batching: true, BatchDelay: time.Hour})
	id := s0.Elements[0].ID
	m.ExecuteCommand(NewMoveElement(id, domain.ElementPosition{X: 10}))
	m.ExecuteCommand(NewMoveElement(id, domain.ElementPosition{X: 30}))

	// No timer has fired; undo must still see the pending drag.
	res := m.Undo()
	if !res.Success {
		t.Fatalf("undo: %s", res.Err)
	}
	got, _ := res.NewState.ElementByID(id)
	if got.Position.X != 0 {
		t.Errorf("undo restored x=%v, want 0", got.Position.X)
	}
}

func TestManager_BatchBreaksOnUnmergeableCommand(t *testing.T) {
	m, s0 := newManager(t, Config{Batching: true, BatchDelay: time.Hour})
	m.ExecuteCommand(NewMoveElement(s0.Elements[0].ID, domain.ElementPosition{X: 10}))
	m.ExecuteCommand(NewMoveElement(s0.Elements[1].ID, domain.ElementPosition{X: 20}))
	if m.UndoCount() != 2 {
		t.Errorf("undo count %d, want 2 separate entries", m.UndoCount())
	}
}

func TestManager_BatchTimerRearmsWhileBusy(t *testing.T) {
	m, s0 := newManager(t, Config{Batching: true, BatchDelay: 10 * time.Millisecond})
	m.ExecuteCommand(NewMoveElement(s0.Elements[0].ID, domain.ElementPosition{X: 10}))

	// Hold the executing guard across the timer firing, as a slow or failing
	// operation would.
	m.mu.Lock()
	m.executing = true
	m.mu.Unlock()
	time.Sleep(30 * time.Millisecond)
	m.mu.Lock()
	m.executing = false
	m.mu.Unlock()

	time.Sleep(30 * time.Millisecond)
	m.mu.Lock()
	pending := len(m.pending)
	committed := len(m.undoStack)
	m.mu.Unlock()
	if pending != 0 || committed != 1 {
		t.Errorf("pending=%d committed=%d after quiet period, want the batch flushed", pending, committed)
	}
}

func TestManager_SetSelectionKeepsAllIDs(t *testing.T) {
	m, s0 := newManager(t, Config{})
	a, b := s0.Elements[0].ID, s0.Elements[1].ID

	st := m.SetSelection([]string{a, b, a})
	want := []string{a, b}
	if len(st.SelectedIDs) != len(want) {
		t.Fatalf("selected %v, want %v", st.SelectedIDs, want)
	}
	for i, id := range want {
		if st.SelectedIDs[i] != id {
			t.Fatalf("selected %v, want %v", st.SelectedIDs, want)
		}
	}
	if m.CanUndo() {
		t.Error("selection change must not create a history entry")
	}
}

func TestManager_ConfirmMode(t *testing.T) {
	m, s0 := newManager(t, Config{RequireConfirm: true})

	res := m.ExecuteCommand(NewAddElement(domain.ElementTypeFile, domain.ElementPosition{Order: 2}))
	if !res.Success {
		t.Fatalf("execute: %s", res.Err)
	}
	if len(m.State().Elements) != len(s0.Elements) {
		t.Error("unconfirmed command must not commit to state")
	}
	if m.CanUndo() {
		t.Error("unconfirmed command must not enter history")
	}
	if res := m.ExecuteCommand(NewRemoveElement(s0.Elements[0].ID)); res.Success {
		t.Error("a second command must wait for confirmation")
	}

	res = m.Confirm()
	if !res.Success {
		t.Fatalf("confirm: %s", res.Err)
	}
	if len(m.State().Elements) != len(s0.Elements)+1 {
		t.Error("confirm did not commit the state")
	}
	if !m.CanUndo() {
		t.Error("confirmed command missing from history")
	}

	// Reject path.
	res = m.ExecuteCommand(NewRemoveElement(s0.Elements[0].ID))
	if !res.Success {
		t.Fatalf("execute: %s", res.Err)
	}
	if res := m.Reject(); !res.Success {
		t.Fatalf("reject: %s", res.Err)
	}
	if len(m.State().Elements) != len(s0.Elements)+1 {
		t.Error("rejected command must leave state untouched")
	}
	if res := m.Confirm(); res.Success {
		t.Error("confirm with nothing pending should fail")
	}
}

func TestManager_HistoryRecordsRoundTrip(t *testing.T) {
	m, s0 := newManager(t, Config{})
	id := s0.Elements[0].ID

	m.ExecuteCommand(NewMoveElement(id, domain.ElementPosition{X: 60}))
	m.ExecuteCommand(NewRemoveElement(s0.Elements[1].ID))
	m.ExecuteCommand(NewAddElement(domain.ElementTypeSection, domain.ElementPosition{Y: 500, Order: 5}))
	m.Undo()

	records, cursor, err := m.HistoryRecords()
	if err != nil {
		t.Fatalf("history records: %v", err)
	}
	if len(records) != 3 || cursor != 2 {
		t.Fatalf("got %d records cursor %d, want 3 records cursor 2", len(records), cursor)
	}

	// A fresh manager at the same state picks the history back up.
	m2 := NewManager(m.State(), Config{})
	if err := m2.RestoreHistory(records, cursor); err != nil {
		t.Fatalf("restore history: %v", err)
	}
	if m2.UndoCount() != 2 || m2.RedoCount() != 1 {
		t.Fatalf("restored counts undo=%d redo=%d", m2.UndoCount(), m2.RedoCount())
	}

	res := m2.Redo()
	if !res.Success {
		t.Fatalf("redo after restore: %s", res.Err)
	}
	if got := len(res.NewState.Elements); got != 2 {
		t.Errorf("redo after restore left %d elements, want 2", got)
	}

	if err := m2.RestoreHistory(records, 7); err == nil {
		t.Error("expected error for out-of-range cursor")
	}
}

func TestManager_RollbackResultInvertsExecute(t *testing.T) {
	m, s0 := newManager(t, Config{})
	res := m.ExecuteCommand(NewAddElement(domain.ElementTypeRadio, domain.ElementPosition{Order: 2}))
	if !res.Success {
		t.Fatalf("execute: %s", res.Err)
	}
	rolledBack, err := res.Rollback.Execute(res.NewState)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if !domain.ContentEqual(rolledBack, s0) {
		t.Error("rollback did not restore the pre-command content")
	}
}
