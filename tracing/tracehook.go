package tracing

import (
	"fmt"
	"reflect"

	"github.com/sarchlab/sparta/sim"
)

// CollectTrace lets the tracer see every event that the scheduler fires.
func CollectTrace(s *sim.Scheduler, tracer Tracer) {
	for _, hook := range s.Hooks() {
		hook, ok := hook.(*traceHook)
		if ok && hook.t == tracer {
			panic(fmt.Sprintf(
				"scheduler already has tracer %s", reflect.TypeOf(tracer)))
		}
	}

	h := traceHook{t: tracer, s: s}
	s.AcceptHook(&h)
}

// A traceHook turns scheduler hook calls into tracer calls.
type traceHook struct {
	t Tracer
	s *sim.Scheduler
}

// Func calls the tracer interfaces when the hook is triggered
func (h *traceHook) Func(ctx sim.HookCtx) {
	sc, ok := ctx.Item.(*sim.Scheduleable)
	if !ok {
		return
	}

	f := Firing{
		Tick:     h.s.CurrentTick(),
		Phase:    sc.Phase(),
		Rank:     sc.Vertex().Rank(),
		Event:    sc.Name(),
		Clock:    sc.Clock().Name(),
		Location: locationOf(sc.Name()),
	}

	switch ctx.Pos {
	case sim.HookPosBeforeEvent:
		h.t.BeforeEvent(f)
	case sim.HookPosAfterEvent:
		h.t.AfterEvent(f)
	}
}
