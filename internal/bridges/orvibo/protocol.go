package orvibo

import (
	"strings"

	"github.com/rhx/orvibo-udp-hap/internal/accessory"
)

// Wire lines. Every line is ASCII and terminated by a single LF.
const (
	LineOn    = "on\n"
	LineOff   = "off\n"
	LineProbe = "p\n"
	LineQuery = "q\n"
)

// ParseLine maps one received line to a status. Matching is a
// case-insensitive prefix test, so "ON", "on " and "off\r" are all
// recognised. Anything else reports false.
func ParseLine(line string) (accessory.Status, bool) {
	l := strings.ToLower(line)
	switch {
	case strings.HasPrefix(l, "off"):
		return accessory.StatusOff, true
	case strings.HasPrefix(l, "on"):
		return accessory.StatusOn, true
	default:
		return accessory.StatusUnknown, false
	}
}

// ParseLines splits a datagram on LF and returns the recognised statuses
// in order, along with the number of non-empty lines that were ignored.
func ParseLines(text string) (statuses []accessory.Status, ignored int) {
	for line := range strings.SplitSeq(text, "\n") {
		if line == "" {
			continue
		}
		s, ok := ParseLine(line)
		if !ok {
			ignored++
			continue
		}
		statuses = append(statuses, s)
	}
	return statuses, ignored
}

// EncodeStatus returns the line announcing s: on or off for a known
// status, and a probe for Unknown, which is never sent as such.
func EncodeStatus(s accessory.Status) string {
	switch s {
	case accessory.StatusOn:
		return LineOn
	case accessory.StatusOff:
		return LineOff
	default:
		return LineProbe
	}
}
