package services

import (
	"context"
	"sync"
)

// backgroundTasks runs the after-commit work of the quiz services and lets
// shutdown wait for it before the publisher and database are closed.
type backgroundTasks struct {
	wg sync.WaitGroup
}

func (b *backgroundTasks) Go(fn func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn()
	}()
}

// Wait blocks until every started task returned or ctx is done.
func (b *backgroundTasks) Wait(ctx context.Context) error {
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
