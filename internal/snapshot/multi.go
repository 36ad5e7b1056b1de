package snapshot

import (
	"errors"

	"github.com/san-kum/dendrite/internal/sim"
)

// Multi hands every snapshot to each sink in order. All sinks are tried;
// the returned error joins every failure.
type Multi []sim.Sink

func NewMulti(sinks ...sim.Sink) Multi {
	m := make(Multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	return m
}

func (m Multi) WriteSnapshot(s sim.Snapshot) error {
	var errs []error
	for _, sink := range m {
		if err := sink.WriteSnapshot(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ sim.Sink = (*Dataset)(nil)
	_ sim.Sink = (*Renderer)(nil)
	_ sim.Sink = Multi(nil)
)
