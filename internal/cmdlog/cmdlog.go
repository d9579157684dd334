// Package cmdlog wraps CLI commands with a log line and a metric.
package cmdlog

import (
	"time"

	"xetl/internal/jobs"
	"xetl/internal/logging"
	"xetl/internal/metrics"
)

// Run executes f and reports its outcome as <cmd>_ok or <cmd>_error.
func Run(cmd string, f func() error) error {
	start := time.Now()
	err := f()
	fields := map[string]any{"elapsed_ms": time.Since(start).Milliseconds()}
	if err != nil {
		metrics.IncCommandRun(cmd, "error")
		fields["error"] = err.Error()
		fields["kind"] = jobs.Kind(err)
		logging.Error(cmd+"_error", fields)
	} else {
		metrics.IncCommandRun(cmd, "ok")
		logging.Info(cmd+"_ok", fields)
	}
	return err
}
