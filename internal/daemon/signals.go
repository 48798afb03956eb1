package daemon

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
)

// SignalNotifier registers a channel for OS signal delivery. The default
// implementation wraps os/signal; tests supply their own to inject signals.
type SignalNotifier interface {
	Notify(c chan<- os.Signal, sig ...os.Signal)
	Stop(c chan<- os.Signal)
}

type osSignals struct{}

func (osSignals) Notify(c chan<- os.Signal, sig ...os.Signal) { signal.Notify(c, sig...) }

func (osSignals) Stop(c chan<- os.Signal) { signal.Stop(c) }

var shutdownSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}

// signalName returns the conventional name ("SIGTERM") for sig.
func signalName(sig os.Signal) string {
	if s, ok := sig.(syscall.Signal); ok {
		if name := unix.SignalName(s); name != "" {
			return name
		}
	}
	return sig.String()
}

func signalMessage(sig os.Signal) string {
	if s, ok := sig.(syscall.Signal); ok && s == syscall.SIGINT {
		return "Received SIGINT (CTRL-C), shutting down gracefully"
	}
	return fmt.Sprintf("Received %s, shutting down gracefully", signalName(sig))
}
