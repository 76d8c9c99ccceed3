package scoreboard

import (
	"math/bits"
	"strconv"
	"strings"
)

// NumRegisters is the number of registers a BitMask can hold.
const NumRegisters = 512

// A BitMask is a set of register indices.
type BitMask [NumRegisters / 64]uint64

// MaskOf returns a mask holding the given registers.
func MaskOf(regs ...int) BitMask {
	var m BitMask
	for _, r := range regs {
		m = m.With(r)
	}

	return m
}

// With returns the mask with register r added.
func (m BitMask) With(r int) BitMask {
	if r < 0 || r >= NumRegisters {
		panic("scoreboard: register " + strconv.Itoa(r) + " out of range")
	}

	m[r/64] |= 1 << (r % 64)

	return m
}

// Has tells if register r is in the mask.
func (m BitMask) Has(r int) bool {
	return r >= 0 && r < NumRegisters && m[r/64]&(1<<(r%64)) != 0
}

// Or returns the union.
func (m BitMask) Or(o BitMask) BitMask {
	for i := range m {
		m[i] |= o[i]
	}

	return m
}

// AndNot returns m without the registers of o.
func (m BitMask) AndNot(o BitMask) BitMask {
	for i := range m {
		m[i] &^= o[i]
	}

	return m
}

// Contains tells if every register of o is in m.
func (m BitMask) Contains(o BitMask) bool {
	for i := range m {
		if m[i]&o[i] != o[i] {
			return false
		}
	}

	return true
}

// IsZero tells if the mask is empty.
func (m BitMask) IsZero() bool {
	return m == BitMask{}
}

// Count returns the number of registers in the mask.
func (m BitMask) Count() int {
	n := 0
	for _, w := range m {
		n += bits.OnesCount64(w)
	}

	return n
}

// Registers returns the registers in increasing order.
func (m BitMask) Registers() []int {
	regs := make([]int, 0, m.Count())

	for i, w := range m {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			regs = append(regs, i*64+b)
			w &= w - 1
		}
	}

	return regs
}

func (m BitMask) String() string {
	parts := make([]string, 0, m.Count())
	for _, r := range m.Registers() {
		parts = append(parts, "r"+strconv.Itoa(r))
	}

	return "{" + strings.Join(parts, ",") + "}"
}
