package daemon

// State is a Runner lifecycle state. States only move forward.
type State int

const (
	StateCreated State = iota
	StateRunning
	StateShuttingDown
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Cause names the trigger that started a shutdown.
type Cause string

const (
	CauseExternalStop  Cause = "external_stop"
	CauseTimeout       Cause = "timeout"
	CauseSignal        Cause = "signal"
	CauseContextDone   Cause = "context_done"
	CauseCallbackFault Cause = "callback_fault"
	CauseClosed        Cause = "closed"
)

// Sink messages for lifecycle milestones.
const (
	msgStarted       = "started"
	msgFlagRemoved   = "running flag removed"
	msgMaxDuration   = "max duration reached"
	msgContextDone   = "context canceled"
	msgShutdown      = "shutdown"
	msgCallbackFail  = "callback failed: "
	msgCallbackPanic = "callback panicked: "
	echoSeparator    = "----------"
)
