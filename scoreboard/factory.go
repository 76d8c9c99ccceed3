package scoreboard

import (
	"github.com/sarchlab/sparta/param"
	"github.com/sarchlab/sparta/tree"
)

// Factory builds a Scoreboard from the latency_matrix parameter, a table in
// the layout that ParseTable reads. Consumer units create their views when
// binding.
var Factory = &tree.Factory{
	TypeName: "scoreboard",
	ParamsFunc: func(location string) *param.Set {
		s := param.NewSet(location)

		param.New(s, "latency_matrix", [][]string{},
			"forwarding latency from each producer row to each consumer column").
			AddValidator(func(t [][]string) (bool, string) {
				if len(t) == 0 {
					return true, ""
				}

				if _, err := ParseTable(t); err != nil {
					return false, err.Error()
				}

				return true, ""
			})

		return s
	},
	CreateFunc: func(n *tree.Node) (any, error) {
		p, _ := param.Lookup[[][]string](n.Params(), "latency_matrix")

		m, err := ParseTable(p.Get())
		if err != nil {
			return nil, err
		}

		return New(n.Location(), m), nil
	},
}
