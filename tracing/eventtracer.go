package tracing

import (
	"github.com/sarchlab/sparta/datarecording"
	"github.com/sarchlab/sparta/sim"
)

// EventTableName is the table that EventTracer writes.
const EventTableName = "sparta_event"

// An EventRecord is one row of the event table.
type EventRecord struct {
	Tick     uint64
	Phase    string
	Rank     int
	Event    string
	Clock    string
	Location string
}

// EventTracer writes every fired event into a data recorder.
type EventTracer struct {
	backend datarecording.DataRecorder

	startTick, endTick sim.Tick
	numRecorded        uint64
}

// NewEventTracer creates a tracer and its table in the backend. It records
// all ticks until SetWindow narrows the range.
func NewEventTracer(backend datarecording.DataRecorder) *EventTracer {
	t := &EventTracer{
		backend: backend,
		endTick: sim.MaxTick,
	}

	backend.CreateTable(EventTableName, EventRecord{})

	return t
}

// SetWindow limits recording to firings with start <= tick < end.
func (t *EventTracer) SetWindow(start, end sim.Tick) {
	t.startTick = start
	t.endTick = end
}

// NumRecorded returns the number of firings written so far.
func (t *EventTracer) NumRecorded() uint64 {
	return t.numRecorded
}

// BeforeEvent records the firing.
func (t *EventTracer) BeforeEvent(f Firing) {
	if f.Tick < t.startTick || f.Tick >= t.endTick {
		return
	}

	t.backend.InsertData(EventTableName, EventRecord{
		Tick:     uint64(f.Tick),
		Phase:    f.Phase.String(),
		Rank:     f.Rank,
		Event:    f.Event,
		Clock:    f.Clock,
		Location: f.Location,
	})

	t.numRecorded++
}

// AfterEvent does nothing.
func (t *EventTracer) AfterEvent(Firing) {}

// Terminate flushes the recorded firings.
func (t *EventTracer) Terminate() {
	t.backend.Flush()
}
