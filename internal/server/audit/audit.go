// Package audit provides a fire-and-forget audit trail for authentication
// events. Sinks must never fail the operation that produced the event: the
// dispatcher runs them asynchronously and only logs their errors.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/carelink-app/carelink/internal/logging"
)

// Event is one audit record.
type Event struct {
	Actor    string            `json:"actor"`
	Action   string            `json:"action"`
	DeviceID string            `json:"deviceId,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	At       time.Time         `json:"at"`
}

// Sink consumes audit events.
type Sink interface {
	Record(ctx context.Context, ev Event) error
}

const sinkTimeout = 5 * time.Second

// Dispatcher fans events out to its sinks without blocking the caller.
type Dispatcher struct {
	sinks  []Sink
	logger logging.Logger
	wg     sync.WaitGroup
}

func NewDispatcher(logger logging.Logger, sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks, logger: logger.With("module", "audit")}
}

// Dispatch records ev on every sink in the background. It detaches from the
// caller's context so a finished request doesn't cancel the write.
func (d *Dispatcher) Dispatch(ev Event) {
	for _, s := range d.sinks {
		d.wg.Add(1)
		go func(s Sink) {
			defer d.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
			defer cancel()
			if err := s.Record(ctx, ev); err != nil {
				d.logger.Warn(ctx, "audit sink failed", "action", ev.Action, "error", err)
			}
		}(s)
	}
}

// Wait blocks until all in-flight events have been recorded. Called on
// shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// LogSink writes audit events to the structured log.
type LogSink struct {
	logger logging.Logger
}

func NewLogSink(logger logging.Logger) *LogSink {
	return &LogSink{logger: logger.With("module", "audit")}
}

func (s *LogSink) Record(ctx context.Context, ev Event) error {
	s.logger.Info(ctx, "audit event",
		"actor", ev.Actor,
		"action", ev.Action,
		"device_id", ev.DeviceID,
		"metadata", ev.Metadata,
		"at", ev.At,
	)
	return nil
}
