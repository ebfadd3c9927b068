package access

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Delay is one selectable expiry window.
type Delay struct {
	Minutes int    `json:"minutes"`
	Label   string `json:"label"`
}

// DelayLabel renders a window the way the picker shows it: "15min", "2h".
func DelayLabel(minutes int) string {
	if minutes >= 60 && minutes%60 == 0 {
		return fmt.Sprintf("%dh", minutes/60)
	}
	return fmt.Sprintf("%dmin", minutes)
}

// Delays lists the configured windows in ascending order.
func (e *Engine) Delays() []Delay {
	minutes := slices.Clone(e.delays)
	slices.Sort(minutes)

	out := make([]Delay, 0, len(minutes))
	for _, m := range minutes {
		out = append(out, Delay{Minutes: m, Label: DelayLabel(m)})
	}
	return out
}

// ResolveDelay maps a selector to a configured window in minutes. Anything
// that is not exactly one of the configured values yields the default.
func (e *Engine) ResolveDelay(selector string) int {
	n, err := strconv.Atoi(strings.TrimSpace(selector))
	if err != nil || !slices.Contains(e.delays, n) {
		return e.defaultDelay
	}
	return n
}
