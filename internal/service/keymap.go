package service

import (
	"context"
	"strings"

	"formbuilder/internal/command"
)

// ─────────────────────────────────────────────────────────────
// Keymap — editor shortcuts routed to the builder service
// ─────────────────────────────────────────────────────────────

// KeyEvent is a normalized keyboard event from the frontend. Meta stands in
// for the command key on macOS; Ctrl for control elsewhere.
type KeyEvent struct {
	Key   string `json:"key"`
	Ctrl  bool   `json:"ctrl"`
	Meta  bool   `json:"meta"`
	Shift bool   `json:"shift"`
}

// HandleKey dispatches editor shortcuts: ctrl/cmd+z undoes, ctrl/cmd+y and
// ctrl/cmd+shift+z redo, delete/backspace removes the selection. The second
// return value reports whether the event was consumed.
func (s *BuilderService) HandleKey(ctx context.Context, ev KeyEvent) (command.Result, bool) {
	mod := ev.Ctrl || ev.Meta
	key := strings.ToLower(ev.Key)

	switch {
	case mod && key == "z" && ev.Shift:
		return s.Redo(ctx), true
	case mod && key == "z":
		return s.Undo(ctx), true
	case mod && key == "y":
		return s.Redo(ctx), true
	case key == "delete" || key == "backspace":
		return s.removeSelected(ctx)
	}
	return command.Result{}, false
}

// removeSelected deletes every selected element, one command each.
func (s *BuilderService) removeSelected(ctx context.Context) (command.Result, bool) {
	st, err := s.State()
	if err != nil || len(st.SelectedIDs) == 0 {
		return command.Result{}, false
	}
	var last command.Result
	for _, id := range st.SelectedIDs {
		if last = s.RemoveElement(ctx, id); !last.Success {
			return last, true
		}
	}
	return last, true
}
