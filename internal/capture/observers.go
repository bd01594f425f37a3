package capture

import (
	"errors"

	"github.com/banshee-data/pkts2send/internal/dispatch"
	"github.com/banshee-data/pkts2send/internal/monitoring"
)

// Chain fans one packet out to several observers. Every observer runs;
// their errors are joined.
type Chain []dispatch.PacketObserver

var (
	_ dispatch.PacketObserver = Chain(nil)
	_ dispatch.PacketObserver = (*SummaryLogger)(nil)
	_ dispatch.PacketObserver = (*Writer)(nil)
)

// Observe passes hex to each observer in order.
func (c Chain) Observe(hex string) error {
	var errs []error
	for _, o := range c {
		if err := o.Observe(hex); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SummaryLogger logs a decoded one-line summary of every packet.
type SummaryLogger struct {
	n int
}

// Observe logs the summary for hex.
func (s *SummaryLogger) Observe(hex string) error {
	s.n++
	frame, err := Decode(hex)
	if err != nil {
		return err
	}
	monitoring.Logf("packet %d: %s", s.n, Summarize(frame))
	return nil
}
