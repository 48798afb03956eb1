package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"tickd/internal/liveness"
	"tickd/internal/logging"
)

// Callback is the unit of work run once per tick. It receives the Runner so
// it can log through the sink or adjust the cadence.
type Callback func(ctx context.Context, r *Runner) error

// Runner owns one identity's liveness flag and drives the tick loop until a
// shutdown condition fires: the flag is removed externally, the maximum
// lifetime elapses, SIGINT or SIGTERM arrives, the context ends, or the
// callback fails. Every path funnels into a single shutdown that runs once.
type Runner struct {
	identity string
	key      string
	guard    *liveness.Guard
	holder   liveness.Holder
	logger   *slog.Logger

	mu        sync.Mutex
	opts      options
	state     State
	startedAt time.Time
	ticks     int64

	sigCh chan os.Signal
}

// New acquires the liveness flag for identity and returns a Runner in
// StateCreated. If another instance holds the flag it returns an error
// matching liveness.ErrAlreadyRunning, leaves the flag untouched and writes
// nothing to the sink.
func New(ctx context.Context, identity string, guard *liveness.Guard, opts ...Option) (*Runner, error) {
	if guard == nil {
		return nil, errors.New("runner requires a liveness guard")
	}
	id, err := liveness.NormalizeIdentity(identity)
	if err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if strings.TrimSpace(o.logName) == "" {
		o.logName = id
	}
	logger := logging.NewComponentLogger(o.logger, "daemon").With(logging.String(logging.FieldIdentity, id))

	holder, err := guard.Acquire(ctx, id)
	if err != nil {
		if errors.Is(err, liveness.ErrAlreadyRunning) {
			attrs := []logging.Attr{logging.String(logging.FieldEventType, "already_running")}
			if holder.InstanceID != "" {
				attrs = append(attrs,
					logging.String(logging.FieldInstanceID, holder.InstanceID),
					logging.Int("pid", holder.PID),
					logging.String("host", holder.Host),
				)
			}
			logger.Info("already running", logging.Args(attrs...)...)
		}
		return nil, err
	}

	return &Runner{
		identity: id,
		key:      liveness.Key(id),
		guard:    guard,
		holder:   holder,
		logger:   logger.With(logging.String(logging.FieldInstanceID, holder.InstanceID)),
		opts:     o,
		state:    StateCreated,
		sigCh:    make(chan os.Signal, len(shutdownSignals)),
	}, nil
}

// Run drives the tick loop. With the default exit function it never returns
// on a graceful shutdown. When the callback returns an error Run releases
// the flag, logs "shutdown" and returns a *CallbackError without calling the
// exit function; a callback panic gets the same cleanup and is re-raised.
func (r *Runner) Run(ctx context.Context, cb Callback) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	r.mu.Lock()
	if r.state != StateCreated {
		r.mu.Unlock()
		return ErrNotRunnable
	}
	if cb == nil {
		cb = r.opts.callback
	}
	signals := r.opts.signals
	r.mu.Unlock()

	signals.Notify(r.sigCh, shutdownSignals...)
	defer r.safetyNet(&err)

	for {
		if cause, message, stop := r.tick(ctx); stop {
			r.shutdown(cause, message, true)
			return nil
		}
		if cb != nil {
			if cbErr := cb(ctx, r); cbErr != nil {
				return &CallbackError{Identity: r.identity, Tick: r.Ticks(), Err: cbErr}
			}
		}
		interval := r.TickInterval()
		r.echo("sleeping for " + interval.String())
		r.opts.clock.Sleep(interval)
	}
}

// tick runs the checks that precede the callback and reports whether the
// loop must stop.
func (r *Runner) tick(ctx context.Context) (Cause, string, bool) {
	now := r.opts.clock.Now()

	r.mu.Lock()
	first := r.state == StateCreated
	if first {
		r.state = StateRunning
		r.startedAt = now
	}
	startedAt := r.startedAt
	maxLifetime := r.opts.maxLifetime
	r.mu.Unlock()

	if first {
		r.echo(echoSeparator)
		r.record(msgStarted)
		r.logger.Info("daemon started",
			logging.String(logging.FieldEventType, "daemon_started"),
			logging.Duration("tick_interval", r.TickInterval()),
			logging.Duration("max_lifetime", maxLifetime),
		)
		if m := r.opts.metrics; m != nil {
			m.SetRunning(r.identity, true)
		}
	} else {
		elapsed := now.Sub(startedAt)
		r.echo("running for " + elapsed.String())
		if m := r.opts.metrics; m != nil {
			m.SetElapsed(r.identity, elapsed.Seconds())
		}

		held, err := r.guard.Held(ctx, r.identity)
		if err != nil {
			logging.WarnWithContext(r.logger, "liveness check failed", "liveness_check_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "verify the flag store is reachable"),
				logging.String(logging.FieldImpact, "external stop requests are not observed this tick"),
			)
			held = true
		}
		if !held {
			return CauseExternalStop, msgFlagRemoved, true
		}
		if elapsed >= maxLifetime {
			return CauseTimeout, msgMaxDuration, true
		}
	}

	select {
	case sig := <-r.sigCh:
		r.logger.Info("signal received", logging.String("signal", signalName(sig)))
		return CauseSignal, signalMessage(sig), true
	default:
	}
	if ctx.Err() != nil {
		return CauseContextDone, msgContextDone, true
	}

	if inv := r.opts.invalidator; inv != nil {
		inv.InvalidateAll()
	}
	r.mu.Lock()
	r.ticks++
	r.mu.Unlock()
	if m := r.opts.metrics; m != nil {
		m.Tick(r.identity)
	}
	return "", "", false
}

// safetyNet runs when Run unwinds. If no shutdown has happened yet (callback
// error, panic, runtime.Goexit) it releases the flag and logs "shutdown"
// without exiting, then lets the fault continue.
func (r *Runner) safetyNet(errp *error) {
	recovered := recover()
	if r.State() != StateTerminated {
		message := ""
		var cbErr *CallbackError
		switch {
		case recovered != nil:
			message = fmt.Sprintf("%s%v", msgCallbackPanic, recovered)
		case errp != nil && errors.As(*errp, &cbErr):
			message = msgCallbackFail + cbErr.Err.Error()
		}
		if message != "" {
			if m := r.opts.metrics; m != nil {
				m.CallbackError(r.identity)
			}
			logging.ErrorWithContext(r.logger, "callback fault", "callback_fault",
				logging.String("detail", message),
				logging.String(logging.FieldErrorHint, "fix the unit of work; the next launch retries it"),
			)
		}
		r.shutdown(CauseCallbackFault, message, false)
	}
	if recovered != nil {
		panic(recovered)
	}
}

// shutdown releases the flag and records the cause exactly once. Later
// calls return false without side effects.
func (r *Runner) shutdown(cause Cause, message string, exit bool) bool {
	r.mu.Lock()
	if r.state == StateShuttingDown || r.state == StateTerminated {
		r.mu.Unlock()
		return false
	}
	r.state = StateShuttingDown
	signals := r.opts.signals
	exitFn := r.opts.exitFn
	r.mu.Unlock()

	signals.Stop(r.sigCh)
	if message != "" {
		r.record(message)
	}
	if err := r.guard.Release(context.Background(), r.identity); err != nil {
		logging.WarnWithContext(r.logger, "liveness release failed", "liveness_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run `tickd stop "+r.identity+"` to clear the flag"),
			logging.String(logging.FieldImpact, "new instances for this identity will not start"),
		)
	}
	r.record(msgShutdown)
	r.logger.Info("daemon shutdown",
		logging.String(logging.FieldEventType, "daemon_shutdown"),
		logging.String(logging.FieldCause, string(cause)),
		logging.Int64("ticks", r.Ticks()),
		logging.Duration("elapsed", r.Elapsed()),
	)
	if m := r.opts.metrics; m != nil {
		m.Shutdown(r.identity, string(cause))
		m.SetRunning(r.identity, false)
	}

	r.mu.Lock()
	r.state = StateTerminated
	r.mu.Unlock()

	if exit {
		exitFn(0)
	}
	return true
}

// Close releases the flag if the Runner has not shut down yet. It never
// calls the exit function and is safe to call more than once.
func (r *Runner) Close() {
	r.shutdown(CauseClosed, "", false)
}

// Log appends message to the runner's sink, echoing it when debug is on.
func (r *Runner) Log(message string) {
	r.record(message)
}

func (r *Runner) record(message string) {
	r.echo(message)

	r.mu.Lock()
	sink := r.opts.sink
	logName := r.opts.logName
	retention := r.opts.retentionDays
	entry := r.opts.entryOptions
	r.mu.Unlock()
	if sink == nil {
		return
	}
	if err := sink.Append(logName, message, entry); err != nil {
		logging.WarnWithContext(r.logger, "sink append failed", "sink_append_failed",
			logging.Error(err),
			logging.String("message", message),
			logging.String(logging.FieldImpact, "lifecycle entry missing from the daemon log"),
		)
		return
	}
	if err := sink.Prune(logName, retention); err != nil {
		logging.WarnWithContext(r.logger, "sink prune failed", "sink_prune_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "old daemon log entries are kept"),
		)
	}
}

func (r *Runner) echo(line string) {
	r.mu.Lock()
	debug := r.opts.debug
	w := r.opts.echo
	r.mu.Unlock()
	if debug && w != nil {
		fmt.Fprintln(w, line)
	}
}

// SetTickInterval changes the sleep between ticks. Non-positive values are ignored.
func (r *Runner) SetTickInterval(d time.Duration) *Runner {
	if d <= 0 {
		return r
	}
	r.mu.Lock()
	r.opts.tickInterval = d
	r.mu.Unlock()
	r.record("tick_interval=" + d.String())
	return r
}

// SetMaxLifetime changes the runtime cap. Non-positive values are ignored.
func (r *Runner) SetMaxLifetime(d time.Duration) *Runner {
	if d <= 0 {
		return r
	}
	r.mu.Lock()
	r.opts.maxLifetime = d
	r.mu.Unlock()
	r.record("max_lifetime=" + d.String())
	return r
}

// SetRetentionDays changes sink pruning; zero disables it.
func (r *Runner) SetRetentionDays(days int) *Runner {
	if days < 0 {
		days = 0
	}
	r.mu.Lock()
	r.opts.retentionDays = days
	r.mu.Unlock()
	r.record(fmt.Sprintf("retention_days=%d", days))
	return r
}

// SetLogName redirects sink writes. An empty name restores the identity.
func (r *Runner) SetLogName(name string) *Runner {
	name = strings.TrimSpace(name)
	if name == "" {
		name = r.identity
	}
	r.mu.Lock()
	r.opts.logName = name
	r.mu.Unlock()
	r.echo("log_name=" + name)
	return r
}

// SetDebug toggles the console echo.
func (r *Runner) SetDebug(debug bool) *Runner {
	r.mu.Lock()
	r.opts.debug = debug
	if r.opts.echo == nil {
		r.opts.echo = os.Stdout
	}
	r.mu.Unlock()
	if debug {
		r.echo("debug=TRUE")
	}
	return r
}

// Identity returns the normalized identity.
func (r *Runner) Identity() string { return r.identity }

// LivenessKey returns the flag key guarding this identity.
func (r *Runner) LivenessKey() string { return r.key }

// Holder returns the record written to the liveness flag.
func (r *Runner) Holder() liveness.Holder { return r.holder }

func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// StartedAt returns when the first tick ran; zero before that.
func (r *Runner) StartedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startedAt
}

// Elapsed returns the runtime since the first tick.
func (r *Runner) Elapsed() time.Duration {
	r.mu.Lock()
	started := r.startedAt
	r.mu.Unlock()
	if started.IsZero() {
		return 0
	}
	return r.opts.clock.Now().Sub(started)
}

// Ticks returns how many ticks reached the callback step.
func (r *Runner) Ticks() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ticks
}

func (r *Runner) TickInterval() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opts.tickInterval
}

func (r *Runner) MaxLifetime() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opts.maxLifetime
}

func (r *Runner) RetentionDays() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opts.retentionDays
}

func (r *Runner) LogName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opts.logName
}
