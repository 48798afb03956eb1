// Package logging assembles structured slog loggers and the per-identity
// log sink used by the daemon runner.
//
// New builds console or JSON handlers from Options and resolves "auto" by
// checking whether stdout is a terminal. The attr helpers (String, Error,
// WarnWithContext, ...) keep field names consistent across packages, and
// NewNop gives tests and optional wiring a logger that cannot fail.
//
// Sink is the narrow interface the runner writes lifecycle milestones to.
// FileSink keeps one text file per log name and prunes entries by age after
// every write; MemorySink records messages for tests. CleanupOldLogs prunes
// whole files (rotated operational logs) by modification time.
package logging
