package qsim

import (
	"sort"
	"strconv"
	"strings"
)

// MemoryFormat selects how register values are rendered.
type MemoryFormat string

const (
	FormatBinary MemoryFormat = "bin"
	FormatHex    MemoryFormat = "hex"
)

// Bitstring renders value as width bits, most significant classical bit first.
func Bitstring(value uint64, width int) string {
	if width <= 0 {
		return ""
	}

	s := strconv.FormatUint(value, 2)
	if len(s) >= width {
		return s[len(s)-width:]
	}
	return strings.Repeat("0", width-len(s)) + s
}

// Hexstring renders value as "0x" followed by ceil(width/4) hex digits, at
// least one.
func Hexstring(value uint64, width int) string {
	if width < 64 {
		value &= 1<<uint(max(width, 0)) - 1
	}

	digits := max((width+3)/4, 1)
	s := strconv.FormatUint(value, 16)
	if len(s) < digits {
		s = strings.Repeat("0", digits-len(s)) + s
	}
	return "0x" + s
}

/*
GroupRegisters splits a bitstring at classical register boundaries, highest
register first, separated by spaces. With fewer than two registers the
bitstring is returned unchanged.
*/
func GroupRegisters(bitstring string, registers []Register) string {
	if len(registers) < 2 {
		return bitstring
	}

	layout := append([]Register(nil), registers...)
	sort.Slice(layout, func(i, j int) bool {
		return layout[i].Start > layout[j].Start
	})

	width := len(bitstring)
	groups := make([]string, 0, len(layout))

	for _, reg := range layout {
		hi := width - reg.Start
		lo := hi - reg.Width
		if lo < 0 || hi > width {
			return bitstring
		}
		groups = append(groups, bitstring[lo:hi])
	}

	return strings.Join(groups, " ")
}

// Formatter renders register values for one experiment.
type Formatter struct {
	Format    MemoryFormat
	Width     int
	Registers []Register
}

// Render renders a single register value.
func (f Formatter) Render(value uint64) string {
	if f.Format == FormatHex {
		return Hexstring(value, f.Width)
	}
	return GroupRegisters(Bitstring(value, f.Width), f.Registers)
}

// RenderAll renders every value in order.
func (f Formatter) RenderAll(values []uint64) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = f.Render(v)
	}
	return out
}

// Histogram counts the occurrences of each rendered value.
func Histogram(memory []string) map[string]int {
	counts := make(map[string]int)
	for _, m := range memory {
		counts[m]++
	}
	return counts
}
