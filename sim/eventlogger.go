package sim

import (
	"log"
)

// LogHookBase is embedded by hooks that write what they see into a logger.
type LogHookBase struct {
	*log.Logger
}

// EventLogger is a hook that prints the events that the scheduler fires.
type EventLogger struct {
	LogHookBase
}

// NewEventLogger returns a new EventLogger which will write into the logger.
func NewEventLogger(logger *log.Logger) *EventLogger {
	h := new(EventLogger)
	h.Logger = logger

	return h
}

// Func writes one "tick, phase, event" line before each event fires.
func (h *EventLogger) Func(ctx HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	sc, ok := ctx.Item.(*Scheduleable)
	if !ok {
		return
	}

	var now Tick
	if s, ok := ctx.Domain.(*Scheduler); ok {
		now = s.CurrentTick()
	}

	h.Logger.Printf("%d, %s, %s", now, sc.phase, sc.name)
}
