package h2h

import (
	"context"
	"errors"
	log "log/slog"
	"os"
	"time"

	"github.com/sethvargo/go-retry"
)

// Retry executes task with Fibonacci backoff up to 5 retries. If retries are
// exhausted, gaveUpTask is invoked (when not nil) and the final error is
// returned. DHT-facing steps (dht.Client put/get/remove) use this so a
// transient backend hiccup does not fail an otherwise-healthy pipeline step.
func Retry(ctx context.Context, task func(ctx context.Context) error, gaveUpTask func(ctx context.Context)) error {
	b := retry.NewFibonacci(100 * time.Millisecond)
	if err := retry.Do(ctx, retry.WithMaxRetries(5, b), task); err != nil {
		log.Warn(err.Error() + ", gave up")
		if gaveUpTask != nil {
			gaveUpTask(ctx)
		}
		return err
	}
	return nil
}

// ShouldRetry reports whether err is transient and worth retrying. A
// deterministic rejection (wrong owner, bad signature, not found, an
// already-terminal process transition) will fail again on every retry, so
// it is classified permanent rather than burning the backoff budget.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, os.ErrExist) {
		return false
	}
	var ce CodedError
	if errors.As(err, &ce) {
		switch ce.ErrCode() {
		case IllegalArgument, IllegalFileLocation, FileNotFound, NoSession, InvalidState:
			return false
		}
	}
	return true
}
