package ui

import "sync/atomic"

// ScrollSignal bridges the store's ScrollTop hook to a BrowserModel. The
// store raises it from whichever goroutine applied the page; the model
// consumes it on its next snapshot refresh.
type ScrollSignal struct {
	raised atomic.Bool
}

// ScrollTop marks the list for a cursor reset. It matches store.Hooks.ScrollTop.
func (s *ScrollSignal) ScrollTop() {
	s.raised.Store(true)
}

func (s *ScrollSignal) take() bool {
	if s == nil {
		return false
	}
	return s.raised.Swap(false)
}
