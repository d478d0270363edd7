package progress

import "sync/atomic"

type Kind int

const (
	KindStatus Kind = iota
	KindProgress
)

// Event is either a free-text status line or a classification progress tick.
type Event struct {
	Kind     Kind
	Message  string
	Done     int
	Total    int
	Relevant int
}

func Status(msg string) Event {
	return Event{Kind: KindStatus, Message: msg}
}

func Progress(done, total, relevant int) Event {
	return Event{Kind: KindProgress, Done: done, Total: total, Relevant: relevant}
}

// Sink receives pipeline events. Emit must not block the pipeline.
type Sink interface {
	Emit(Event)
}

type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// ChannelSink forwards events onto a buffered channel. When the consumer falls
// behind, events are dropped and counted instead of stalling the pipeline.
type ChannelSink struct {
	ch      chan Event
	dropped atomic.Int64
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan Event, buffer)}
}

func (s *ChannelSink) Emit(e Event) {
	select {
	case s.ch <- e:
	default:
		s.dropped.Add(1)
	}
}

// Events is the receive side for the consumer.
func (s *ChannelSink) Events() <-chan Event { return s.ch }

// Close ends the stream. Emit must not be called afterwards.
func (s *ChannelSink) Close() { close(s.ch) }

func (s *ChannelSink) Dropped() int64 { return s.dropped.Load() }

// Recorder keeps every event in memory.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Emit(e Event) { r.Events = append(r.Events, e) }

// Progress returns only the progress ticks, in order.
func (r *Recorder) Progress() []Event {
	var out []Event
	for _, e := range r.Events {
		if e.Kind == KindProgress {
			out = append(out, e)
		}
	}
	return out
}
