package runtime

import (
	"context"
	"fmt"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	cmap "github.com/orcaman/concurrent-map"
	log "github.com/sirupsen/logrus"
)

const DefaultTaskTimeout = 30 * time.Second

// Tasks runs detached units of work. The caller never waits for a result;
// errors and panics are logged. Wait blocks until in-flight work is done and
// is meant for shutdown.
type Tasks struct {
	wg      sync.WaitGroup
	running cmap.ConcurrentMap
	seq     uint64
	logger  log.FieldLogger
	// parent is cancelled when Wait gives up on the running tasks.
	parent context.Context
	cancel context.CancelFunc
}

func NewTasks(logger log.FieldLogger) *Tasks {
	if logger == nil {
		logger = log.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Tasks{running: cmap.New(), logger: logger, parent: ctx, cancel: cancel}
}

// Go spawns f with its own timeout budget. The context handed to f is not
// derived from any request context.
func (t *Tasks) Go(name string, timeout time.Duration, f func(ctx context.Context) error) {
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}
	id := name + "#" + strconv.FormatUint(atomic.AddUint64(&t.seq, 1), 10)
	t.running.Set(id, time.Now())
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer t.running.Remove(id)
		defer func() {
			if r := recover(); r != nil {
				t.logger.Errorf("[Task] %s panicked: %v\n%s", id, r, debug.Stack())
			}
		}()
		ctx, cancel := context.WithTimeout(t.parent, timeout)
		defer cancel()
		start := time.Now()
		if err := f(ctx); err != nil {
			t.logger.Warnf("[Task] %s failed after %s: %v", id, time.Since(start), err)
			return
		}
		t.logger.Debugf("[Task] %s done in %s", id, time.Since(start))
	}()
}

// Running returns the number of tasks that have not finished yet.
func (t *Tasks) Running() int {
	return t.running.Count()
}

// Wait blocks until every task finished or ctx is done. In the latter case
// the remaining tasks are cancelled.
func (t *Tasks) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		pending := t.running.Keys()
		t.cancel()
		return fmt.Errorf("abandoned %d running tasks %v: %w", len(pending), pending, ctx.Err())
	}
}

func IgnoreError(err error) {
	if err != nil {
		log.Tracef("[runtime] ignored error: %v", err)
	}
}
