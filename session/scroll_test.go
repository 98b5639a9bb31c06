package session

import "testing"

func TestScrollKeeperFirstLoad(t *testing.T) {
	var k scrollKeeper
	k.reset()
	if dir := k.onMessagesChanged(5); dir.Kind != ScrollInstant {
		t.Fatalf("first load = %+v, want instant", dir)
	}
	// Same count afterwards must not scroll again.
	if dir := k.onMessagesChanged(5); dir.Kind != ScrollNone {
		t.Fatalf("repeat = %+v, want none", dir)
	}
}

func TestScrollKeeperGrowth(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		want     ScrollKind
	}{
		{"reader at bottom", 0, ScrollSmooth},
		{"reader near bottom", 149.9, ScrollSmooth},
		{"reader exactly at threshold", 150, ScrollNone},
		{"reader scrolled up", 600, ScrollNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var k scrollKeeper
			k.reset()
			k.onMessagesChanged(3) // initial load
			k.observe(tt.distance)
			dir := k.onMessagesChanged(4)
			if dir.Kind != tt.want {
				t.Errorf("directive = %+v, want kind %v", dir, tt.want)
			}
			if tt.want == ScrollSmooth && dir.Delay != settleDelay {
				t.Errorf("delay = %v, want %v", dir.Delay, settleDelay)
			}
		})
	}
}

func TestScrollKeeperShrinkAndEmpty(t *testing.T) {
	var k scrollKeeper
	k.reset()
	k.onMessagesChanged(4)
	if dir := k.onMessagesChanged(2); dir.Kind != ScrollNone {
		t.Errorf("shrink = %+v, want none", dir)
	}
	if dir := k.onMessagesChanged(0); dir.Kind != ScrollNone {
		t.Errorf("empty = %+v, want none", dir)
	}
	// After going back to zero the next non-empty list is a fresh first load.
	if dir := k.onMessagesChanged(1); dir.Kind != ScrollInstant {
		t.Errorf("reload = %+v, want instant", dir)
	}
}

func TestScrollKeeperResetRestoresFollow(t *testing.T) {
	var k scrollKeeper
	k.reset()
	k.onMessagesChanged(3)
	k.observe(999) // reader wandered off
	k.reset()      // room switch
	if dir := k.onMessagesChanged(2); dir.Kind != ScrollInstant {
		t.Errorf("post-switch load = %+v, want instant", dir)
	}
	if dir := k.onMessagesChanged(3); dir.Kind != ScrollSmooth {
		t.Errorf("post-switch growth = %+v, want smooth (reset restores follow)", dir)
	}
}
