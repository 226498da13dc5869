package foreman

import (
	"context"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"
)

// stageWrites gathers the columns written by the systems of one stage.
type stageWrites struct {
	mu   sync.Mutex
	sets []writeSet
}

func (sw *stageWrites) add(set writeSet) {
	if len(set) == 0 {
		return
	}
	sw.mu.Lock()
	sw.sets = append(sw.sets, set)
	sw.mu.Unlock()
}

// runStage runs the groups of the stage in order and returns the first failure.
func (w *World) runStage(stage Stage) (*stageWrites, error) {
	writes := &stageWrites{}
	for _, group := range stage.Groups {
		if err := w.runGroup(group, writes); err != nil {
			return writes, err
		}
	}
	return writes, nil
}

// runGroup runs conflict-free systems concurrently, bounded by the thread count.
// With one thread or less the systems run on the calling goroutine.
func (w *World) runGroup(group []SystemIndex, writes *stageWrites) error {
	if w.config.ThreadCount <= 1 || len(group) == 1 {
		for _, idx := range group {
			if err := w.runSystem(idx, writes); err != nil {
				return err
			}
		}
		return nil
	}

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(w.config.ThreadCount)
	for _, idx := range group {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			return w.runSystem(idx, writes)
		})
	}
	return g.Wait()
}

func (w *World) runSystem(idx SystemIndex, writes *stageWrites) error {
	rec := w.scheduler.systems[idx]
	if rec.run == nil {
		return nil
	}
	if missing, found := w.missingGlobal(rec); found {
		w.logger.Trace().
			Str("system", rec.label).
			Str("global", missing.String()).
			Msg("system skipped")
		return nil
	}
	w.scheduler.acquire(rec)
	defer w.scheduler.release(rec)

	ctx := newSystemContext(w, rec, w.tracker.begin(idx))
	if err := callSystem(rec, ctx); err != nil {
		return err
	}
	writes.add(ctx.written)
	return nil
}

func callSystem(rec *systemRecord, ctx *SystemContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &SystemError{
				System: rec.label,
				Index:  rec.index,
				Panic:  r,
				Stack:  debug.Stack(),
			}
		}
	}()
	if runErr := rec.run(ctx); runErr != nil {
		return &SystemError{System: rec.label, Index: rec.index, Err: runErr}
	}
	return nil
}
