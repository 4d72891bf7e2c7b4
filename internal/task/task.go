// Package task runs fire-and-forget side effects. A task's failure is logged
// and never reaches the code that spawned it.
package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type Group struct {
	base context.Context
	wg   sync.WaitGroup
}

// NewGroup returns a group whose tasks are cancelled when base is done.
// Tasks are deliberately not tied to the context of the request that
// spawned them.
func NewGroup(base context.Context) *Group {
	return &Group{base: base}
}

// Go runs fn in its own goroutine with the given timeout.
func (g *Group) Go(name string, timeout time.Duration, fn func(ctx context.Context) error) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()

		ctx, cancel := context.WithTimeout(g.base, timeout)
		defer cancel()

		start := time.Now()
		err := g.run(ctx, fn)
		if err != nil {
			log.Warn().Err(err).Str("task", name).Dur("took", time.Since(start)).Msg("detached task failed")
			return
		}
		log.Debug().Str("task", name).Dur("took", time.Since(start)).Msg("detached task done")
	}()
}

func (g *Group) run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

// Wait blocks until every spawned task has returned.
func (g *Group) Wait() {
	g.wg.Wait()
}
