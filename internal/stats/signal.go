package stats

import (
	"fmt"
	"strings"
)

// Signal is a client lifecycle notification that may trigger a flush.
type Signal string

const (
	SignalHidden   Signal = "hidden"   // tab hidden
	SignalUnload   Signal = "unload"   // page unloading
	SignalOnline   Signal = "online"   // connectivity restored
	SignalPopState Signal = "popstate" // back/forward navigation
)

// ParseSignal validates a lifecycle signal name.
func ParseSignal(name string) (Signal, error) {
	switch sig := Signal(strings.ToLower(strings.TrimSpace(name))); sig {
	case SignalHidden, SignalUnload, SignalOnline, SignalPopState:
		return sig, nil
	default:
		return "", fmt.Errorf("unknown lifecycle signal %q", name)
	}
}

// Signal reacts to a lifecycle notification: hidden and unload flush
// immediately, online and popstate go through the debounce.
func (s *Store) Signal(sig Signal) {
	switch sig {
	case SignalHidden, SignalUnload:
		s.Flush()
	case SignalOnline, SignalPopState:
		s.ScheduleFlush()
	default:
		s.logger.WithField("signal", sig).Warn("Ignoring unknown lifecycle signal")
	}
}
