package tracing

import (
	"context"
	"strings"

	"github.com/sarchlab/sparta/datarecording"
	"github.com/sarchlab/sparta/sim"
)

// An EventQuery selects recorded firings. Event and Location are glob
// patterns where * matches any run of characters. Empty fields do not
// filter; a zero To means no upper bound.
type EventQuery struct {
	Event    string
	Location string
	Phase    string
	From, To sim.Tick
	Limit    int
	Offset   int
}

func (q EventQuery) conditions() ([]datarecording.Condition, error) {
	var conds []datarecording.Condition

	if q.Event != "" {
		conds = append(conds, datarecording.Like("Event", globToLike(q.Event)))
	}

	if q.Location != "" {
		conds = append(conds,
			datarecording.Like("Location", globToLike(q.Location)))
	}

	if q.Phase != "" {
		p, err := sim.ParsePhase(q.Phase)
		if err != nil {
			return nil, err
		}

		conds = append(conds, datarecording.Eq("Phase", p.String()))
	}

	if q.From > 0 {
		conds = append(conds, datarecording.Ge("Tick", uint64(q.From)))
	}

	if q.To > 0 {
		conds = append(conds, datarecording.Lt("Tick", uint64(q.To)))
	}

	return conds, nil
}

func globToLike(glob string) string {
	return strings.NewReplacer("*", "%", "?", "_").Replace(glob)
}

// ReadEvents reads the firings an EventTracer recorded, in firing order. It
// also returns how many firings match before Limit and Offset apply.
func ReadEvents(
	ctx context.Context,
	r *datarecording.Reader,
	q EventQuery,
) ([]EventRecord, int, error) {
	conds, err := q.conditions()
	if err != nil {
		return nil, 0, err
	}

	return datarecording.Select[EventRecord](ctx, r, EventTableName,
		datarecording.Query{Where: conds, Limit: q.Limit, Offset: q.Offset})
}

// Firing converts the record back into the firing it was made from.
func (e EventRecord) Firing() (Firing, error) {
	p, err := sim.ParsePhase(e.Phase)
	if err != nil {
		return Firing{}, err
	}

	return Firing{
		Tick:     sim.Tick(e.Tick),
		Phase:    p,
		Rank:     e.Rank,
		Event:    e.Event,
		Clock:    e.Clock,
		Location: e.Location,
	}, nil
}

// Replay feeds recorded firings to tracers as if the scheduler fired them.
func Replay(records []EventRecord, tracers ...Tracer) error {
	for _, rec := range records {
		f, err := rec.Firing()
		if err != nil {
			return err
		}

		for _, t := range tracers {
			t.BeforeEvent(f)
			t.AfterEvent(f)
		}
	}

	return nil
}
