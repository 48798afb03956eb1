// Package daemon implements the self-governing tick loop.
//
// A Runner is bound to one identity. New claims the identity's liveness
// flag and fails fast when another instance holds it. Run then repeats a
// fixed sequence per tick: check that the flag is still present, check the
// lifetime cap, drain pending SIGINT/SIGTERM, clear object caches, call the
// unit of work, sleep. Signals and external flag removal are polled, so
// shutdown latency is at most one tick interval.
//
// Shutdown is a single routine guarded by the lifecycle state: whichever
// trigger fires first releases the flag, writes "shutdown" to the sink and
// exits the process; later triggers do nothing. A deferred safety net covers
// callback errors and panics so the flag is never left behind by a faulty
// unit of work.
package daemon
