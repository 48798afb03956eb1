package daemon

import (
	"io"
	"log/slog"
	"os"
	"time"

	"tickd/internal/clock"
	"tickd/internal/logging"
	"tickd/internal/objcache"
)

const (
	DefaultTickInterval  = time.Second
	DefaultMaxLifetime   = time.Hour - 10*time.Second
	DefaultRetentionDays = 1
)

// Metrics receives run loop activity. *metrics.Collectors satisfies it.
type Metrics interface {
	Tick(identity string)
	CallbackError(identity string)
	Shutdown(identity, cause string)
	SetRunning(identity string, running bool)
	SetElapsed(identity string, seconds float64)
}

type options struct {
	tickInterval  time.Duration
	maxLifetime   time.Duration
	sink          logging.Sink
	logName       string
	retentionDays int
	entryOptions  logging.EntryOptions
	logger        *slog.Logger
	echo          io.Writer
	debug         bool
	clock         clock.Clock
	invalidator   objcache.Invalidator
	signals       SignalNotifier
	exitFn        func(code int)
	metrics       Metrics
	callback      Callback
}

func defaultOptions() options {
	return options{
		tickInterval:  DefaultTickInterval,
		maxLifetime:   DefaultMaxLifetime,
		retentionDays: DefaultRetentionDays,
		echo:          os.Stdout,
		clock:         clock.Real(),
		signals:       osSignals{},
		exitFn:        os.Exit,
	}
}

// Option configures a Runner at construction.
type Option func(*options)

// WithTickInterval sets the sleep between ticks.
func WithTickInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.tickInterval = d
		}
	}
}

// WithMaxLifetime sets the runtime after which the runner shuts itself down.
func WithMaxLifetime(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.maxLifetime = d
		}
	}
}

// WithSink routes lifecycle messages to sink under logName, pruning entries
// older than retentionDays after every write. An empty logName uses the
// identity.
func WithSink(sink logging.Sink, logName string, retentionDays int, entry logging.EntryOptions) Option {
	return func(o *options) {
		o.sink = sink
		o.logName = logName
		o.retentionDays = retentionDays
		o.entryOptions = entry
	}
}

// WithLogger sets the operational logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithDebugEcho mirrors every lifecycle message, plus loop narration, to w.
func WithDebugEcho(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.echo = w
			o.debug = true
		}
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithInvalidator clears inv before every callback.
func WithInvalidator(inv objcache.Invalidator) Option {
	return func(o *options) { o.invalidator = inv }
}

// WithSignals replaces os/signal registration.
func WithSignals(n SignalNotifier) Option {
	return func(o *options) {
		if n != nil {
			o.signals = n
		}
	}
}

// WithExitFunc replaces os.Exit as the final step of shutdown.
func WithExitFunc(fn func(code int)) Option {
	return func(o *options) {
		if fn != nil {
			o.exitFn = fn
		}
	}
}

// WithMetrics reports loop activity to m.
func WithMetrics(m Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithCallback sets the unit of work used when Run is given a nil callback.
func WithCallback(cb Callback) Option {
	return func(o *options) { o.callback = cb }
}
