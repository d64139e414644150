package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelink-app/carelink/internal/logging"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (s *captureSink) Record(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *captureSink) recorded() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDispatcher_FansOutToAllSinks(t *testing.T) {
	first := &captureSink{}
	second := &captureSink{}
	d := NewDispatcher(discardLogger(), first, second)

	ev := Event{Actor: "user-1", Action: "auth.login", DeviceID: "device-1", At: time.Now()}
	d.Dispatch(ev)
	d.Wait()

	require.Len(t, first.recorded(), 1)
	require.Len(t, second.recorded(), 1)
	assert.Equal(t, "auth.login", first.recorded()[0].Action)
}

func TestDispatcher_SinkFailureDoesNotBlockOthers(t *testing.T) {
	failing := &captureSink{err: errors.New("bucket gone")}
	working := &captureSink{}
	d := NewDispatcher(discardLogger(), failing, working)

	d.Dispatch(Event{Actor: "user-1", Action: "auth.logout", At: time.Now()})
	d.Wait()

	assert.Len(t, working.recorded(), 1)
}

func TestDispatcher_NoSinks(t *testing.T) {
	d := NewDispatcher(discardLogger())
	d.Dispatch(Event{Action: "auth.login", At: time.Now()})
	d.Wait()
}
