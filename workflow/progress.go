package workflow

import (
	"log/slog"
	"time"
)

const notifierGrace = 250 * time.Millisecond

// Event is a progress notification emitted at stage transitions and
// significant milestones within a stage.
type Event struct {
	Stage   Stage     `json:"stage"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// ProgressSink receives progress events. Emit may be slow; the workflow never
// waits on it beyond a bounded grace period at the end of a run.
type ProgressSink interface {
	Emit(Event)
}

// SinkFunc adapts a function to the ProgressSink interface.
type SinkFunc func(Event)

// Emit calls f.
func (f SinkFunc) Emit(e Event) {
	f(e)
}

// notifier decouples the run from its sink. Events are queued on a buffered
// channel and delivered by a single goroutine; when the buffer is full the
// event is dropped.
type notifier struct {
	events chan Event
	done   chan struct{}
	logger *slog.Logger
}

func newNotifier(sink ProgressSink, buffer int, logger *slog.Logger) *notifier {
	if sink == nil {
		return nil
	}

	n := &notifier{
		events: make(chan Event, max(buffer, 1)),
		done:   make(chan struct{}),
		logger: logger,
	}

	go n.run(sink)
	return n
}

func (n *notifier) run(sink ProgressSink) {
	defer close(n.done)
	for e := range n.events {
		n.deliver(sink, e)
	}
}

func (n *notifier) deliver(sink ProgressSink, e Event) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Warn("progress sink panicked", "stage", e.Stage, "panic", r)
		}
	}()
	sink.Emit(e)
}

func (n *notifier) emit(stage Stage, message string) {
	if n == nil {
		return
	}

	select {
	case n.events <- Event{Stage: stage, Message: message, Time: time.Now()}:
	default:
		n.logger.Debug("progress event dropped", "stage", stage, "message", message)
	}
}

// close stops accepting events and waits up to the grace period for the
// queue to drain.
func (n *notifier) close() {
	if n == nil {
		return
	}

	close(n.events)

	timer := time.NewTimer(notifierGrace)
	defer timer.Stop()

	select {
	case <-n.done:
	case <-timer.C:
	}
}
