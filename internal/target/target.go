// Package target parses capture target selectors.
package target

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind says what a Target names.
type Kind int

const (
	Primary Kind = iota
	Monitor
	Window
)

// Target selects the capture item: the primary monitor, a monitor by
// enumeration index, or a top-level window by handle.
type Target struct {
	Kind    Kind
	Monitor int
	Window  uintptr
}

func (t Target) String() string {
	switch t.Kind {
	case Monitor:
		return "monitor:" + strconv.Itoa(t.Monitor)
	case Window:
		return fmt.Sprintf("window:0x%X", t.Window)
	default:
		return "primary"
	}
}

// Parse parses "primary" (or ""), "monitor:<index>" and
// "window:<hwnd>", where hwnd is decimal or 0x-prefixed hex.
func Parse(s string) (Target, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "primary" {
		return Target{Kind: Primary}, nil
	}

	kind, value, ok := strings.Cut(s, ":")
	if !ok || value == "" {
		return Target{}, fmt.Errorf("invalid capture target %q", s)
	}

	switch kind {
	case "monitor":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return Target{}, fmt.Errorf("invalid monitor index %q", value)
		}
		return Target{Kind: Monitor, Monitor: n}, nil
	case "window":
		h, err := strconv.ParseUint(value, 0, 64)
		if err != nil || h == 0 {
			return Target{}, fmt.Errorf("invalid window handle %q", value)
		}
		return Target{Kind: Window, Window: uintptr(h)}, nil
	}
	return Target{}, fmt.Errorf("unknown capture target kind %q", kind)
}
