package health

import (
	"context"
	"fmt"
	"sync"
)

// StateCheck is healthy while state() returns want and unhealthy otherwise.
func StateCheck(state func() string, want string) Check {
	return func(ctx context.Context) CheckResult {
		got := state()
		if got != want {
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: fmt.Sprintf("state is %s, want %s", got, want),
				Details: map[string]any{"state": got},
			}
		}
		return CheckResult{Status: StatusHealthy, Details: map[string]any{"state": got}}
	}
}

// PingCheck is healthy while ping succeeds.
func PingCheck(ping func(ctx context.Context) error) Check {
	return func(ctx context.Context) CheckResult {
		if err := ping(ctx); err != nil {
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: "ping failed",
				Error:   err.Error(),
			}
		}
		return CheckResult{Status: StatusHealthy}
	}
}

// LossCheck watches a writer's counters. It reports degraded when strokes
// were dropped or failed since the previous check.
func LossCheck(stats func() (written, dropped, failed uint64)) Check {
	var (
		mu                   sync.Mutex
		lastDropped, lastErr uint64
	)
	return func(ctx context.Context) CheckResult {
		written, dropped, failed := stats()

		mu.Lock()
		newDropped, newFailed := dropped-lastDropped, failed-lastErr
		lastDropped, lastErr = dropped, failed
		mu.Unlock()

		result := CheckResult{
			Status: StatusHealthy,
			Details: map[string]any{
				"written": written,
				"dropped": dropped,
				"failed":  failed,
			},
		}
		if newDropped > 0 || newFailed > 0 {
			result.Status = StatusDegraded
			result.Message = fmt.Sprintf("%d stroke(s) dropped and %d failed since the last check", newDropped, newFailed)
		}
		return result
	}
}
