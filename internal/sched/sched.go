// internal/sched/sched.go
package sched

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

// Role is one polling context. Poll must not block except inside a
// bounded bus transaction.
type Role interface {
	Poll()
}

// Strategy runs the bus role and the host role until ctx is done.
type Strategy interface {
	Run(ctx context.Context, bus, host Role)
}

// Strategy names accepted by ByName.
const (
	NameSingle = "single"
	NameDual   = "dual"
)

// ByName returns the strategy for a config value.
func ByName(name string) (Strategy, error) {
	switch name {
	case NameSingle:
		return Single{}, nil
	case NameDual, "":
		return Dual{}, nil
	default:
		return nil, fmt.Errorf("sched: unknown strategy %q", name)
	}
}

// Single interleaves both roles on the calling goroutine, bus first.
type Single struct{}

func (Single) Run(ctx context.Context, bus, host Role) {
	for ctx.Err() == nil {
		bus.Poll()
		host.Poll()
	}
}

// Dual runs each role on its own goroutine and returns when both stop.
// The bus role is pinned to an OS thread.
type Dual struct{}

func (Dual) Run(ctx context.Context, bus, host Role) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		spin(ctx, bus)
	}()

	go func() {
		defer wg.Done()
		spin(ctx, host)
	}()

	wg.Wait()
}

func spin(ctx context.Context, r Role) {
	for ctx.Err() == nil {
		r.Poll()
		runtime.Gosched()
	}
}
