package session

import "time"

// ScrollKind tells the viewport what to do after a message-list change.
type ScrollKind int

const (
	// ScrollNone preserves the reader's position.
	ScrollNone ScrollKind = iota
	// ScrollInstant jumps to the bottom with no animation (first load).
	ScrollInstant
	// ScrollSmooth animates to the bottom after Delay.
	ScrollSmooth
)

// ScrollDirective is the engine's verdict for one list change. Delay gives
// freshly rendered content (wrapped text, images) time to settle before the
// smooth scroll fires.
type ScrollDirective struct {
	Kind  ScrollKind    `json:"kind"`
	Delay time.Duration `json:"delay"`
}

const (
	// nearBottomThreshold is how close (viewport units, px in practice) the
	// reader must be to the newest content to be auto-followed.
	nearBottomThreshold = 150.0
	// settleDelay is the layout-settling pause before a smooth scroll.
	settleDelay = 100 * time.Millisecond
)

// scrollKeeper remembers the reader's intent across list changes. It is
// deliberately dumb: two fields, updated in message arrival order, guarded
// by the owning session's lock.
type scrollKeeper struct {
	wasNearBottom bool
	prevCount     int
}

func (k *scrollKeeper) reset() {
	k.wasNearBottom = true
	k.prevCount = 0
}

// observe records a viewport scroll report. distance is how far the reader
// sits above the newest content; it captures intent before the next change.
func (k *scrollKeeper) observe(distance float64) {
	k.wasNearBottom = distance < nearBottomThreshold
}

// onMessagesChanged decides the directive for a list now holding count
// messages and rolls prevCount forward.
func (k *scrollKeeper) onMessagesChanged(count int) ScrollDirective {
	defer func() { k.prevCount = count }()
	if k.prevCount == 0 && count > 0 {
		return ScrollDirective{Kind: ScrollInstant}
	}
	if count > k.prevCount && k.wasNearBottom {
		return ScrollDirective{Kind: ScrollSmooth, Delay: settleDelay}
	}
	return ScrollDirective{Kind: ScrollNone}
}

// forcedScroll overrides wasNearBottom entirely; the send pipeline raises it
// so the sender always sees their own message land.
func forcedScroll() ScrollDirective {
	return ScrollDirective{Kind: ScrollSmooth, Delay: settleDelay}
}
