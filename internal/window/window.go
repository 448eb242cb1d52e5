// Package window decides how much of a conversation to show.
//
// The visible slice is always the tail of the sorted message list: a few
// legacy messages for context plus every live one, so live traffic is never
// cut off. Loading older history grows the tail in fixed steps.
package window

import "pairchat/internal/domain"

const (
	// LegacyContext is how many legacy messages are shown above live traffic.
	LegacyContext = 5
	// LoadOlderStep is how many extra messages each "load older" reveals.
	LoadOlderStep = 25
	// DefaultBottomThreshold is how close to the bottom, in pixels, still
	// counts as "at the bottom" for auto-scroll.
	DefaultBottomThreshold = 48.0
)

// VisibleCount is min(total, LegacyContext + nonLegacy + extra).
func VisibleCount(total, nonLegacy, extra int) int {
	if total < 0 {
		total = 0
	}
	n := LegacyContext + nonLegacy + extra
	if n > total {
		return total
	}
	if n < 0 {
		return 0
	}
	return n
}

// Window is the view state of one conversation.
type Window struct {
	Extra       int
	LoadedOlder bool
}

// LoadOlder extends the window by one step.
func (w Window) LoadOlder() Window {
	return Window{Extra: w.Extra + LoadOlderStep, LoadedOlder: true}
}

// Count applies VisibleCount to msgs.
func (w Window) Count(msgs []domain.Message) int {
	live := 0
	for _, m := range msgs {
		if !m.IsLegacy {
			live++
		}
	}
	return VisibleCount(len(msgs), live, w.Extra)
}

// Visible returns the tail of msgs that should be shown.
func (w Window) Visible(msgs []domain.Message) []domain.Message {
	n := w.Count(msgs)
	return msgs[len(msgs)-n:]
}

// HasOlder reports whether messages exist above the window.
func (w Window) HasOlder(msgs []domain.Message) bool {
	return w.Count(msgs) < len(msgs)
}

// ShouldAutoScroll reports whether new messages should scroll the view to the
// bottom. Once older history was loaded by hand the view stays put unless
// the reader is already within threshold pixels of the bottom.
func (w Window) ShouldAutoScroll(distanceFromBottom, threshold float64) bool {
	if !w.LoadedOlder {
		return true
	}
	return distanceFromBottom <= threshold
}
