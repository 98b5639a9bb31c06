package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gosuda/edgechat/gateway"
)

func TestSameSnapshot(t *testing.T) {
	m := func(ids ...int) []gateway.Message {
		out := make([]gateway.Message, len(ids))
		for i, id := range ids {
			out[i] = gateway.Message{ID: id}
		}
		return out
	}
	tests := []struct {
		name      string
		cur, next []gateway.Message
		want      bool
	}{
		{"both empty", nil, nil, true},
		{"grew", m(1), m(1, 2), false},
		{"shrunk", m(1, 2), m(1), false},
		{"same length same last", m(1, 2), m(1, 2), true},
		{"same length different last", m(1, 2), m(1, 3), false},
		{"first fetch into empty", nil, m(1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sameSnapshot(tt.cur, tt.next); got != tt.want {
				t.Errorf("sameSnapshot = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApplyKeepsInstanceWhenUnchanged(t *testing.T) {
	s := New(&fakeGateway{}, 1, time.Hour)
	s.activeRoom = 1
	s.epoch = 1

	first := []gateway.Message{{ID: 1}, {ID: 2}}
	s.apply(1, 1, first, false)

	refetch := []gateway.Message{{ID: 1, Content: "edited in place"}, {ID: 2}}
	s.apply(1, 1, refetch, false)

	got := s.Messages()
	if len(got) != 2 || &got[0] != &first[0] {
		t.Fatal("unchanged snapshot replaced the displayed instance")
	}

	grown := []gateway.Message{{ID: 1}, {ID: 2}, {ID: 3}}
	s.apply(1, 1, grown, false)
	got = s.Messages()
	if len(got) != 3 || &got[0] != &grown[0] {
		t.Fatal("grown snapshot did not replace the displayed instance")
	}
}

func TestApplyDiscardsStaleEpoch(t *testing.T) {
	s := New(&fakeGateway{}, 1, time.Hour)
	s.activeRoom = 2
	s.epoch = 5

	s.apply(1, 4, []gateway.Message{{ID: 99, Room: 1}}, false)
	if len(s.Messages()) != 0 {
		t.Fatal("stale fetch leaked into the display")
	}
}

func TestSelectRoomClearsBeforeFirstFetch(t *testing.T) {
	gate := make(chan struct{})
	fake := &fakeGateway{
		msgs: map[int][]gateway.Message{
			2: {{ID: 7, Room: 2}, {ID: 8, Room: 2}},
		},
		listGate: gate,
	}
	s := New(fake, 1, time.Hour)
	defer s.Close()
	s.messages = []gateway.Message{{ID: 1, Room: 1}} // leftovers from a previous room

	s.SelectRoom(2)
	if got := s.Messages(); len(got) != 0 {
		t.Fatalf("old room messages still visible: %+v", got)
	}

	close(gate)
	waitFor(t, func() bool { return len(s.Messages()) == 2 })
	if got := s.Messages(); got[1].ID != 8 {
		t.Fatalf("messages = %+v", got)
	}
}

func TestRapidSwitchDropsSupersededResult(t *testing.T) {
	fake := &fakeGateway{msgs: map[int][]gateway.Message{}}
	s := New(fake, 1, time.Hour)
	defer s.Close()

	s.SelectRoom(1)
	staleEpoch := 0
	s.mu.Lock()
	staleEpoch = s.epoch
	s.mu.Unlock()
	s.SelectRoom(2)

	// A slow fetch for room 1 lands after the switch to room 2.
	s.apply(1, staleEpoch, []gateway.Message{{ID: 1, Room: 1}}, false)
	if got := s.Messages(); len(got) != 0 {
		t.Fatalf("superseded fetch applied: %+v", got)
	}
	if s.ActiveRoom() != 2 {
		t.Fatalf("active room = %d", s.ActiveRoom())
	}
}

func TestRefreshErrorSkipsCycle(t *testing.T) {
	fake := &fakeGateway{listErr: errors.New("backend flaked")}
	s := New(fake, 1, time.Hour)
	s.activeRoom = 1
	s.epoch = 1
	s.messages = []gateway.Message{{ID: 1}}

	s.refresh(context.Background(), 1, 1, false)
	if got := s.Messages(); len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("failed cycle touched the display: %+v", got)
	}
}

func TestApplyFeedsMessageSink(t *testing.T) {
	s := New(&fakeGateway{}, 1, time.Hour)
	s.activeRoom = 3
	s.epoch = 1

	var sinkRoom int
	var sinkMsgs []gateway.Message
	s.SetMessageHandler(func(roomID int, msgs []gateway.Message) {
		sinkRoom = roomID
		sinkMsgs = msgs
	})

	msgs := []gateway.Message{{ID: 1, Room: 3}, {ID: 2, Room: 3}}
	s.apply(3, 1, msgs, false)
	if sinkRoom != 3 || len(sinkMsgs) != 2 {
		t.Fatalf("sink got room=%d msgs=%+v", sinkRoom, sinkMsgs)
	}
}
