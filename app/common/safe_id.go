package common

import (
	"regexp"
	"strconv"
)

var (
	whitespaceRun = regexp.MustCompile(`[\s\v\p{Z}\x{FEFF}]+`)
	unsafeIDChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)
)

// SafeID turns an arbitrary string into something usable as an HTML id or
// attribute value. Runs of Unicode whitespace (no-break spaces included)
// become a single "_" and everything outside [A-Za-z0-9_-] is dropped.
// Distinct inputs may collide ("a b" and "a_b"); use IDAllocator when
// uniqueness matters.
func SafeID(s string) string {
	s = whitespaceRun.ReplaceAllString(s, "_")
	return unsafeIDChars.ReplaceAllString(s, "")
}

// IDAllocator hands out DOM ids that are unique within one rendering.
// The first occurrence of a sanitized form is returned as is, later ones get
// "-2", "-3", ... appended.
type IDAllocator struct {
	seen map[string]int
}

func NewIDAllocator() *IDAllocator {
	return &IDAllocator{seen: make(map[string]int)}
}

func (a *IDAllocator) Allocate(prefix string, parts ...string) string {
	id := prefix
	for _, p := range parts {
		id += "_" + SafeID(p)
	}
	n := a.seen[id]
	a.seen[id] = n + 1
	if n == 0 {
		return id
	}
	for {
		candidate := id + "-" + strconv.Itoa(n+1)
		if a.seen[candidate] == 0 {
			a.seen[candidate] = 1
			return candidate
		}
		n++
	}
}
