package service

import (
	"context"
	"log"
	"sync"

	"github.com/robfig/cron/v3"

	"formbuilder/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Autosave — periodic background save of the open form
// ─────────────────────────────────────────────────────────────

// Autosave persists the open form on a cron schedule. A save is skipped when
// the form content has not changed since the previous run.
type Autosave struct {
	builder *BuilderService

	mu        sync.Mutex
	sched     *cron.Cron
	lastSaved *domain.FormBuilderState
}

// NewAutosave creates an Autosave for the given session.
func NewAutosave(builder *BuilderService) *Autosave {
	return &Autosave{builder: builder}
}

// Start tears down any running schedule and begins a new one. The expression
// uses the standard five-field cron syntax, e.g. "* * * * *" for every
// minute.
func (a *Autosave) Start(ctx context.Context, expr string) error {
	a.Stop()

	c := cron.New()
	_, err := c.AddFunc(expr, func() {
		a.run(ctx)
	})
	if err != nil {
		return err
	}
	c.Start()

	a.mu.Lock()
	a.sched = c
	a.mu.Unlock()
	log.Printf("autosave: scheduled with %q", expr)
	return nil
}

// Stop halts the schedule; a save already in flight finishes.
func (a *Autosave) Stop() {
	a.mu.Lock()
	sched := a.sched
	a.sched = nil
	a.mu.Unlock()
	if sched != nil {
		sched.Stop()
	}
}

func (a *Autosave) run(ctx context.Context) {
	st, err := a.builder.State()
	if err != nil {
		return // no form open
	}

	a.mu.Lock()
	unchanged := domain.ContentEqual(st, a.lastSaved)
	a.mu.Unlock()
	if unchanged {
		return
	}

	if err := a.builder.Save(ctx); err != nil {
		log.Printf("autosave: %v", err)
		return
	}
	a.mu.Lock()
	a.lastSaved = st
	a.mu.Unlock()
}
