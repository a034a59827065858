package command

import (
	"fmt"
	"sync"
	"time"

	"formbuilder/internal/domain"
)

const (
	// DefaultMaxHistory bounds each undo/redo stack; oldest entries drop
	// silently past the bound.
	DefaultMaxHistory = 100

	// DefaultBatchDelay is the debounce quiet period before a run of pending
	// mergeable commands commits as one history entry.
	DefaultBatchDelay = 300 * time.Millisecond
)

// Result is the outcome of one manager operation. Expected empty-operation
// conditions (empty stack, incompatible merge) come back as Success=false
// with a reason — never an error. Rollback is set on successful executes and
// inverts the command if an upstream save is later rejected.
type Result struct {
	Success  bool                     `json:"success"`
	NewState *domain.FormBuilderState `json:"newState,omitempty"`
	Err      string                   `json:"error,omitempty"`
	Rollback Command                  `json:"-"`
}

func failure(reason string) Result {
	return Result{Success: false, Err: reason}
}

// Config tunes a Manager. Zero values get defaults; Batching and
// RequireConfirm default off.
type Config struct {
	MaxHistory int
	Batching   bool
	BatchDelay time.Duration

	// RequireConfirm holds each executed command out of state and history
	// until Confirm (non-optimistic commit). Default is optimistic: commit
	// immediately.
	RequireConfirm bool

	// OnStateChange fires after every committed transition (execute, undo,
	// redo, confirm) with the new state. Replaces polling for canUndo/canRedo
	// flag updates.
	OnStateChange func(*domain.FormBuilderState)

	// OnError receives every command failure for telemetry/logging.
	OnError func(error)
}

// Manager owns the authoritative FormBuilderState and its undo/redo history.
// All mutation flows through it; no other component touches the state.
// Operations are synchronous; a second dispatch while one is in flight is
// rejected, not queued.
type Manager struct {
	mu  sync.Mutex
	cfg Config

	state     *domain.FormBuilderState
	undoStack []Command
	redoStack []Command
	executing bool

	// debounced batch of chain-mergeable commands not yet in the undo stack
	pending    []Command
	batchTimer *time.Timer

	// non-optimistic mode: executed but unconfirmed
	awaitCmd   Command
	awaitState *domain.FormBuilderState
}

// NewManager creates a manager owning a deep copy of initial.
func NewManager(initial *domain.FormBuilderState, cfg Config) *Manager {
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultMaxHistory
	}
	if cfg.BatchDelay <= 0 {
		cfg.BatchDelay = DefaultBatchDelay
	}
	return &Manager{cfg: cfg, state: initial.Clone()}
}

// State returns a deep copy of the current state.
func (m *Manager) State() *domain.FormBuilderState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// SetSelection replaces the selection without touching history. Selection is
// transient UI state: commands carry it along, but a plain click-select is
// not an undoable action.
func (m *Manager) SetSelection(ids []string) *domain.FormBuilderState {
	m.mu.Lock()
	next := m.state.Clone()
	next.ClearSelection()
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		next.SelectedIDs = append(next.SelectedIDs, id)
	}
	m.state = next
	m.mu.Unlock()

	m.notify()
	return next.Clone()
}

// IsExecuting reports whether an operation is currently in flight.
func (m *Manager) IsExecuting() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.executing
}

// begin claims the executing guard; false means another operation is in
// flight and the caller's dispatch must be rejected.
func (m *Manager) begin() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.executing {
		return false
	}
	m.executing = true
	return true
}

func (m *Manager) end() {
	m.mu.Lock()
	m.executing = false
	m.mu.Unlock()
}

// ExecuteCommand applies cmd to the current state. On success the redo stack
// clears and the command enters history — directly, or via the debounced
// batch when batching is on and the command chains onto the pending run.
func (m *Manager) ExecuteCommand(cmd Command) Result {
	if !m.begin() {
		return failure("a command is already executing")
	}
	defer m.end()

	m.mu.Lock()
	if m.awaitCmd != nil {
		m.mu.Unlock()
		return failure("previous command awaiting confirmation")
	}
	st := m.state
	m.mu.Unlock()

	newState, err := applyExecute(cmd, st)
	if err != nil {
		m.reportError(err)
		return failure(err.Error())
	}

	if m.cfg.RequireConfirm {
		m.mu.Lock()
		m.awaitCmd, m.awaitState = cmd, newState
		m.mu.Unlock()
		return Result{Success: true, NewState: newState.Clone(), Rollback: RollbackFor(cmd)}
	}

	m.mu.Lock()
	m.redoStack = nil
	if m.cfg.Batching {
		if n := len(m.pending); n > 0 && m.pending[n-1].CanMergeWith(cmd) {
			m.pending = append(m.pending, cmd)
		} else {
			m.flushPendingLocked()
			m.pending = []Command{cmd}
		}
		m.resetBatchTimerLocked()
	} else {
		m.pushUndoLocked(cmd)
	}
	m.state = newState
	m.mu.Unlock()

	m.notify()
	return Result{Success: true, NewState: newState.Clone(), Rollback: RollbackFor(cmd)}
}

// Confirm commits the pending command in non-optimistic mode.
func (m *Manager) Confirm() Result {
	if !m.begin() {
		return failure("a command is already executing")
	}
	defer m.end()

	m.mu.Lock()
	if m.awaitCmd == nil {
		m.mu.Unlock()
		return failure("no command awaiting confirmation")
	}
	m.redoStack = nil
	m.pushUndoLocked(m.awaitCmd)
	m.state = m.awaitState
	m.awaitCmd, m.awaitState = nil, nil
	newState := m.state.Clone()
	m.mu.Unlock()

	m.notify()
	return Result{Success: true, NewState: newState}
}

// Reject discards the pending command in non-optimistic mode; the current
// state is untouched.
func (m *Manager) Reject() Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.awaitCmd == nil {
		return failure("no command awaiting confirmation")
	}
	m.awaitCmd, m.awaitState = nil, nil
	return Result{Success: true, NewState: m.state.Clone()}
}

// Undo reverses the most recent history entry. An empty stack is a routine
// no-op reported via Success=false.
func (m *Manager) Undo() Result {
	if !m.begin() {
		return failure("a command is already executing")
	}
	defer m.end()

	m.mu.Lock()
	m.flushPendingLocked()
	n := len(m.undoStack)
	if n == 0 {
		m.mu.Unlock()
		return failure("nothing to undo")
	}
	cmd := m.undoStack[n-1]
	st := m.state
	m.mu.Unlock()

	newState, err := applyUndo(cmd, st)
	if err != nil {
		// Stack untouched: the entry stays so the caller can inspect it.
		m.reportError(err)
		return failure(err.Error())
	}

	m.mu.Lock()
	m.undoStack = m.undoStack[:n-1]
	m.redoStack = append(m.redoStack, cmd)
	m.state = newState
	m.mu.Unlock()

	m.notify()
	return Result{Success: true, NewState: newState.Clone()}
}

// Redo re-applies the most recently undone command.
func (m *Manager) Redo() Result {
	if !m.begin() {
		return failure("a command is already executing")
	}
	defer m.end()

	m.mu.Lock()
	n := len(m.redoStack)
	if n == 0 {
		m.mu.Unlock()
		return failure("nothing to redo")
	}
	cmd := m.redoStack[n-1]
	st := m.state
	m.mu.Unlock()

	newState, err := applyExecute(cmd, st)
	if err != nil {
		m.reportError(err)
		return failure(err.Error())
	}

	m.mu.Lock()
	m.redoStack = m.redoStack[:n-1]
	m.pushUndoLocked(cmd)
	m.state = newState
	m.mu.Unlock()

	m.notify()
	return Result{Success: true, NewState: newState.Clone()}
}

// Flush commits any pending batch immediately instead of waiting out the
// debounce. Called before persistence and by Undo.
func (m *Manager) Flush() {
	m.mu.Lock()
	m.flushPendingLocked()
	m.mu.Unlock()
}

// CanUndo reports whether an undo would succeed.
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undoStack) > 0 || len(m.pending) > 0
}

// CanRedo reports whether a redo would succeed.
func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redoStack) > 0
}

// UndoCount is the number of undoable history entries. A pending batch
// counts as one entry — that is what it flushes to, since only
// chain-mergeable commands accumulate.
func (m *Manager) UndoCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.undoStack)
	if len(m.pending) > 0 {
		n++
	}
	return n
}

// RedoCount is the number of redoable history entries.
func (m *Manager) RedoCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redoStack)
}

// HistoryRecords serializes the full history oldest-first and returns the
// cursor: how many entries sit on the undo side.
func (m *Manager) HistoryRecords() ([]domain.CommandRecord, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushPendingLocked()

	records := make([]domain.CommandRecord, 0, len(m.undoStack)+len(m.redoStack))
	for _, cmd := range m.undoStack {
		rec, err := cmd.Serialize()
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	for i := len(m.redoStack) - 1; i >= 0; i-- {
		rec, err := m.redoStack[i].Serialize()
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	return records, len(m.undoStack), nil
}

// RestoreHistory rebuilds the undo/redo stacks from serialized records
// without re-applying anything; the current state is assumed to already
// match the cursor position.
func (m *Manager) RestoreHistory(records []domain.CommandRecord, cursor int) error {
	if cursor < 0 || cursor > len(records) {
		return fmt.Errorf("restore history: cursor %d out of range", cursor)
	}
	undo := make([]Command, 0, cursor)
	for _, rec := range records[:cursor] {
		cmd, err := Deserialize(rec)
		if err != nil {
			return err
		}
		undo = append(undo, cmd)
	}
	redo := make([]Command, 0, len(records)-cursor)
	for i := len(records) - 1; i >= cursor; i-- {
		cmd, err := Deserialize(records[i])
		if err != nil {
			return err
		}
		redo = append(redo, cmd)
	}

	m.mu.Lock()
	m.pending = nil
	m.undoStack = undo
	m.redoStack = redo
	m.mu.Unlock()
	return nil
}

// ── internals ──────────────────────────────────────────────

func (m *Manager) pushUndoLocked(cmd Command) {
	m.undoStack = append(m.undoStack, cmd)
	if over := len(m.undoStack) - m.cfg.MaxHistory; over > 0 {
		// Drop the oldest entries silently; expected memory policy.
		m.undoStack = append([]Command(nil), m.undoStack[over:]...)
	}
}

// flushPendingLocked folds the pending run pairwise left-to-right and pushes
// the result(s) as history entries.
func (m *Manager) flushPendingLocked() {
	if m.batchTimer != nil {
		m.batchTimer.Stop()
		m.batchTimer = nil
	}
	if len(m.pending) == 0 {
		return
	}
	acc := m.pending[0]
	for _, next := range m.pending[1:] {
		if acc.CanMergeWith(next) {
			merged, err := acc.MergeWith(next)
			if err == nil {
				acc = merged
				continue
			}
		}
		m.pushUndoLocked(acc)
		acc = next
	}
	m.pushUndoLocked(acc)
	m.pending = nil
}

// resetBatchTimerLocked restarts the debounce: each new mergeable command
// postpones the flush until a quiet period passes.
func (m *Manager) resetBatchTimerLocked() {
	if m.batchTimer != nil {
		m.batchTimer.Stop()
	}
	m.batchTimer = time.AfterFunc(m.cfg.BatchDelay, m.onBatchTimer)
}

func (m *Manager) onBatchTimer() {
	m.mu.Lock()
	if m.executing {
		// An operation is mid-flight; a failed one never touches the batch,
		// so wait out another quiet period rather than dropping the flush.
		m.resetBatchTimerLocked()
		m.mu.Unlock()
		return
	}
	m.flushPendingLocked()
	m.mu.Unlock()
}

func (m *Manager) notify() {
	if m.cfg.OnStateChange == nil {
		return
	}
	m.mu.Lock()
	snapshot := m.state.Clone()
	m.mu.Unlock()
	m.cfg.OnStateChange(snapshot)
}

func (m *Manager) reportError(err error) {
	if m.cfg.OnError != nil {
		m.cfg.OnError(err)
	}
}

// applyExecute runs cmd.Execute, converting a panic into an error so a buggy
// command cannot take down the editing session.
func applyExecute(cmd Command, s *domain.FormBuilderState) (out *domain.FormBuilderState, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("command %s panicked: %v", cmd.Type(), r)
		}
	}()
	return cmd.Execute(s)
}

func applyUndo(cmd Command, s *domain.FormBuilderState) (out *domain.FormBuilderState, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("undo %s panicked: %v", cmd.Type(), r)
		}
	}()
	return cmd.Undo(s)
}
