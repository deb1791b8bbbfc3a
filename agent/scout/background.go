package scout

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	datasourcex "github.com/tanpawarit/parcel-scout/agent/datasource"
)

var (
	ErrAlreadyRunning = errors.New("scout run already in progress")
	ErrShutdown       = errors.New("scout is shutting down")
)

// Background runs at most one batch at a time, detached from the caller's
// cancellation. Shutdown cancels the run in progress.
type Background struct {
	scout   *Scout
	filters datasourcex.SearchFilters

	base context.Context
	stop context.CancelFunc

	running atomic.Bool
	wg      sync.WaitGroup

	mu   sync.Mutex
	last *Report
}

func NewBackground(s *Scout, filters datasourcex.SearchFilters) *Background {
	base, stop := context.WithCancel(context.Background())
	return &Background{scout: s, filters: filters, base: base, stop: stop}
}

func (b *Background) Trigger(ctx context.Context) error {
	if err := b.base.Err(); err != nil {
		return ErrShutdown
	}
	if !b.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stopOnShutdown := context.AfterFunc(b.base, cancel)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer b.running.Store(false)
		defer stopOnShutdown()
		defer cancel()

		report, err := b.scout.Run(runCtx, b.filters)
		if err != nil {
			log.Error().Err(err).Msg("background scout run failed")
		}
		b.mu.Lock()
		b.last = &report
		b.mu.Unlock()
	}()
	return nil
}

// Wait blocks until the current run, if any, has finished.
func (b *Background) Wait() {
	b.wg.Wait()
}

// Shutdown cancels the current run and waits for it to return, or for ctx
// to expire. No run starts after Shutdown.
func (b *Background) Shutdown(ctx context.Context) error {
	b.stop()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LastReport returns the report of the most recent finished run.
func (b *Background) LastReport() (Report, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.last == nil {
		return Report{}, false
	}
	return *b.last, true
}
