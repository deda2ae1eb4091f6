// Package metrics emits the structured datapoints named in spec.md §7
// (retransmit-stage, accounts_hash_verifier, snapshot-package) via the
// teacher's slog-based structured logging idiom rather than a dedicated
// metrics client: the teacher's own code never imports one directly, only
// transitively through libp2p, so there is no teacher precedent to imitate
// for a metrics client library (see DESIGN.md).
package metrics

import "log/slog"

// Recorder emits named datapoints and counters as structured log lines at
// INFO level, matching the original Rust `datapoint_info!`/
// `inc_new_counter_info!` macros' "user-visible failure/observability
// surface" role (spec.md §7) without requiring a metrics backend.
type Recorder struct {
	logger *slog.Logger
}

// New creates a Recorder. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{logger: logger}
}

// Counter records a monotonically-accumulating counter value, mirroring
// `inc_new_counter_info!(name, value)`.
func (r *Recorder) Counter(name string, value int) {
	r.logger.Info("counter", "metric", name, "value", value)
}

// Datapoint records a named event with attached fields, mirroring
// `datapoint_info!(name, (field, value, type), ...)`.
func (r *Recorder) Datapoint(name string, args ...any) {
	r.logger.Info("datapoint", append([]any{"metric", name}, args...)...)
}

// Error records a transient, swallowed error (spec.md §7 error kind 1:
// UDP send failure, gossip push failure, archival forward failure) as a
// WARN log line plus an error counter under name.
func (r *Recorder) Error(name string, err error) {
	r.logger.Warn("transient error", "metric", name, "error", err)
	r.Counter(name+"-errors", 1)
}
