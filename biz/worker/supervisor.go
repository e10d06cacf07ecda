package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/yi-nology/photo_vault/pkg/logger"
)

// RestartPolicy controls how Supervise restarts a crashed task.
type RestartPolicy struct {
	// Delay is the wait before the first restart. It doubles on every
	// consecutive crash up to MaxDelay.
	Delay    time.Duration
	MaxDelay time.Duration
}

const (
	DefaultRestartDelay    = 30 * time.Second
	DefaultRestartMaxDelay = 10 * time.Minute
)

// Supervise runs task until ctx is cancelled, restarting it whenever it
// panics or returns. A run that lasted longer than MaxDelay resets the
// backoff.
func Supervise(ctx context.Context, name string, policy RestartPolicy, log *zap.Logger, task func(ctx context.Context) error) {
	log = logger.OrNop(log)
	if policy.Delay <= 0 {
		policy.Delay = DefaultRestartDelay
	}
	if policy.MaxDelay < policy.Delay {
		policy.MaxDelay = max(policy.Delay, DefaultRestartMaxDelay)
	}

	delay := policy.Delay
	for {
		started := time.Now()
		err := runProtected(ctx, task)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = errors.New("task returned")
		}
		if time.Since(started) > policy.MaxDelay {
			delay = policy.Delay
		}

		log.Error("supervised task crashed, restarting",
			zap.String("task", name),
			zap.Duration("restart_in", delay),
			zap.Error(err),
		)
		if sleep(ctx, delay) != nil {
			return
		}
		delay = min(delay*2, policy.MaxDelay)
	}
}

func runProtected(ctx context.Context, task func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return task(ctx)
}
