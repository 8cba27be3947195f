package bot

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"runtime/debug"
	"strconv"

	"golang.org/x/sync/errgroup"
)

type Handler interface {
	Handle(ctx context.Context, u Update)
}

// Dispatcher fans updates out to a fixed set of workers. All updates of one
// sender land on the same worker, so a user's messages are handled one at a
// time in arrival order while different users proceed in parallel.
type Dispatcher struct {
	handler Handler
	workers int
	logger  *slog.Logger
}

func NewDispatcher(h Handler, workers int, logger *slog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{handler: h, workers: workers, logger: logger}
}

// Run consumes updates until the channel closes or ctx is done, then waits
// for in-flight updates to finish.
func (d *Dispatcher) Run(ctx context.Context, updates <-chan Update) error {
	queues := make([]chan Update, d.workers)
	g, gctx := errgroup.WithContext(ctx)
	for i := range queues {
		q := make(chan Update, 16)
		queues[i] = q
		g.Go(func() error {
			for u := range q {
				d.safeHandle(gctx, u)
			}
			return nil
		})
	}

	d.feed(ctx, updates, queues)
	for _, q := range queues {
		close(q)
	}
	return g.Wait()
}

func (d *Dispatcher) feed(ctx context.Context, updates <-chan Update, queues []chan Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			select {
			case queues[shard(u.Sender.ID, len(queues))] <- u:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (d *Dispatcher) safeHandle(ctx context.Context, u Update) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Update handler panicked",
				"update", u.ID, "user", u.Sender.ID, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()
	d.handler.Handle(ctx, u)
}

func shard(userID int64, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strconv.FormatInt(userID, 10)))
	return int(h.Sum32() % uint32(n))
}
