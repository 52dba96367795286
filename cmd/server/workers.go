package main

import (
	"context"
	"errors"
	"sync"

	"github.com/iliyamo/seatsync/pkg/logger"
)

// workerGroup runs the background loops (journal, publisher, consumer,
// sweeper) on a context of their own.  It is cancelled only by Stop, after
// the HTTP server has drained, so events from in-flight requests still reach
// the journal and the broker.
type workerGroup struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    *logger.Logger
	wg     sync.WaitGroup
}

func newWorkerGroup(log *logger.Logger) *workerGroup {
	ctx, cancel := context.WithCancel(context.Background())
	return &workerGroup{ctx: ctx, cancel: cancel, log: log}
}

// Go starts run in its own goroutine.
func (g *workerGroup) Go(name string, run func(context.Context) error) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if err := run(g.ctx); err != nil && !errors.Is(err, context.Canceled) {
			g.log.Error("worker stopped", "worker", name, "error", err)
		}
	}()
}

// Stop cancels every worker and waits for them to return.
func (g *workerGroup) Stop() {
	g.cancel()
	g.wg.Wait()
}
