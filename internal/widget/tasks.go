package widget

import (
	"context"
	"log/slog"
	"sync"
)

// tasks runs fire-and-forget work. Failures are logged and go no
// further; a task started before unlayout still runs to completion.
type tasks struct {
	wg     sync.WaitGroup
	logger *slog.Logger
}

func (t *tasks) Go(ctx context.Context, name string, fn func(context.Context) error) {
	ctx = context.WithoutCancel(ctx)

	t.wg.Add(1)

	go func() {
		defer t.wg.Done()

		if err := fn(ctx); err != nil {
			t.logger.Warn("widget task failed",
				slog.String("task", name),
				slog.String("error", err.Error()),
			)
		}
	}()
}

func (t *tasks) Wait() {
	t.wg.Wait()
}
