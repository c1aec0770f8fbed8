// internal/usecase/tasks.go
package usecase

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"donation-service/internal/domain"
	"donation-service/internal/metrics"

	"go.uber.org/zap"
)

// task is a best-effort side effect. Its error is recorded, never returned.
type task struct {
	name    string
	timeout time.Duration
	run     func(ctx context.Context) error
}

// runTask detaches from the caller's cancellation so a gateway hanging up
// mid-request does not abort the side effect; the task's own timeout still applies.
func runTask(parent context.Context, t task, logger *zap.Logger, fields ...zap.Field) (res domain.TaskResult) {
	ctx := context.WithoutCancel(parent)
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	start := time.Now()
	res.Name = t.name
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("panic in %s task: %v", t.name, r)
			logger.Error("best-effort task panicked",
				append(fields,
					zap.String("task", t.name),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()))...)
		}
		res.Elapsed = time.Since(start)

		status := "ok"
		if res.Err != nil {
			status = "failed"
			logger.Warn("best-effort task failed",
				append(fields,
					zap.String("task", t.name),
					zap.Duration("elapsed", res.Elapsed),
					zap.Error(res.Err))...)
		} else {
			logger.Info("best-effort task completed",
				append(fields,
					zap.String("task", t.name),
					zap.Duration("elapsed", res.Elapsed))...)
		}
		metrics.SideEffects.WithLabelValues(t.name, status).Inc()
	}()

	res.Err = t.run(ctx)
	return res
}
