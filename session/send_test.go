package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gosuda/edgechat/gateway"
)

// activeSession returns a session with room 1 selected, bypassing the poll
// loop entirely.
func activeSession(fake *fakeGateway) *Session {
	s := New(fake, 1, time.Hour)
	s.activeRoom = 1
	s.activeLabel = "Room #1"
	s.epoch = 1
	return s
}

func TestSendValidation(t *testing.T) {
	fake := &fakeGateway{msgs: map[int][]gateway.Message{}}

	idle := New(fake, 1, time.Hour)
	if err := idle.Send(context.Background(), "hi", nil); !errors.Is(err, ErrNoActiveRoom) {
		t.Errorf("idle send = %v, want ErrNoActiveRoom", err)
	}

	s := activeSession(fake)
	if err := s.Send(context.Background(), "   \n ", nil); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("blank send = %v, want ErrEmptyMessage", err)
	}
	if n := fake.count("SendMessage"); n != 0 {
		t.Errorf("SendMessage called %d times for rejected input", n)
	}
}

func TestSendAttachmentOnlyIsValid(t *testing.T) {
	fake := &fakeGateway{msgs: map[int][]gateway.Message{1: {{ID: 1, Room: 1}}}}
	s := activeSession(fake)

	att := &gateway.Attachment{Name: "cat.png", ContentType: "image/png", Data: []byte{1}}
	if err := s.Send(context.Background(), "", att); err != nil {
		t.Fatalf("attachment-only send: %v", err)
	}
	if fake.sentAttach != att || fake.sentContent != "" {
		t.Errorf("sent content=%q attach=%+v", fake.sentContent, fake.sentAttach)
	}
}

func TestSendDeliversThenRefreshesOnce(t *testing.T) {
	fake := &fakeGateway{msgs: map[int][]gateway.Message{
		1: {{ID: 1, Room: 1}, {ID: 2, Room: 1, Content: "hi", IsMe: true}},
	}}
	s := activeSession(fake)

	var mu sync.Mutex
	var snaps []Snapshot
	s.SetUpdateHandler(func(snap Snapshot) {
		mu.Lock()
		snaps = append(snaps, snap)
		mu.Unlock()
	})

	if err := s.Send(context.Background(), "  hi  ", nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if fake.sentRoom != 1 || fake.sentContent != "hi" {
		t.Errorf("sent room=%d content=%q", fake.sentRoom, fake.sentContent)
	}
	if got := fake.calls; len(got) != 2 || got[0] != "SendMessage" || got[1] != "ListMessages" {
		t.Errorf("call sequence = %v", got)
	}
	if got := s.Messages(); len(got) != 2 || got[1].Content != "hi" {
		t.Errorf("messages after send = %+v", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(snaps) == 0 {
		t.Fatal("no snapshots published")
	}
	// First snapshot announces the in-flight send (the UI disables its send
	// control off this); the last one re-enables it.
	if !snaps[0].Sending {
		t.Error("in-flight send was never published")
	}
	if tail := snaps[len(snaps)-1]; tail.Sending {
		t.Error("final snapshot still marked sending")
	}
	forced := false
	for _, snap := range snaps {
		if snap.Scroll.Kind == ScrollSmooth && snap.Scroll.Delay == settleDelay {
			forced = true
		}
	}
	if !forced {
		t.Error("no forced smooth scroll published after send")
	}
	if s.Sending() {
		t.Error("sending flag stuck")
	}
}

func TestSendForcesScrollEvenWhenUnchanged(t *testing.T) {
	existing := []gateway.Message{{ID: 1, Room: 1}}
	fake := &fakeGateway{msgs: map[int][]gateway.Message{1: existing}}
	s := activeSession(fake)
	s.messages = existing
	s.scroll.prevCount = 1
	s.scroll.wasNearBottom = false // reader scrolled up; forced send overrides

	var snaps []Snapshot
	s.SetUpdateHandler(func(snap Snapshot) { snaps = append(snaps, snap) })

	if err := s.Send(context.Background(), "hi", nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	smooth := false
	for _, snap := range snaps {
		if snap.Scroll.Kind == ScrollSmooth {
			smooth = true
		}
	}
	if !smooth {
		t.Errorf("snapshots = %+v, want a smooth scroll despite identical snapshot", snaps)
	}
}

func TestSendSingleFlight(t *testing.T) {
	fake := &fakeGateway{
		msgs:        map[int][]gateway.Message{1: {{ID: 1, Room: 1}}},
		sendStarted: make(chan struct{}),
		sendGate:    make(chan struct{}),
	}
	s := activeSession(fake)

	done := make(chan error, 1)
	go func() { done <- s.Send(context.Background(), "first", nil) }()
	<-fake.sendStarted

	if err := s.Send(context.Background(), "second", nil); !errors.Is(err, ErrSendInFlight) {
		t.Fatalf("concurrent send = %v, want ErrSendInFlight", err)
	}

	close(fake.sendGate)
	if err := <-done; err != nil {
		t.Fatalf("first send: %v", err)
	}
	if n := fake.count("SendMessage"); n != 1 {
		t.Errorf("SendMessage called %d times, want 1", n)
	}
	if s.Sending() {
		t.Error("sending flag stuck")
	}
}

func TestSendDeliveryFailure(t *testing.T) {
	down := errors.New("backend down")
	fake := &fakeGateway{sendErr: down, msgs: map[int][]gateway.Message{}}
	s := activeSession(fake)
	s.messages = []gateway.Message{{ID: 1, Room: 1}}

	err := s.Send(context.Background(), "hi", nil)
	if !errors.Is(err, down) {
		t.Fatalf("err = %v, want wrapped delivery error", err)
	}
	if n := fake.count("ListMessages"); n != 0 {
		t.Errorf("refresh ran %d times after failed delivery", n)
	}
	if len(s.Messages()) != 1 {
		t.Error("display changed after failed delivery")
	}
	if s.Sending() {
		t.Error("sending flag stuck after failure")
	}
}

func TestSendRefreshFailureStillScrolls(t *testing.T) {
	fake := &fakeGateway{
		listErr: errors.New("poll path down"),
		msgs:    map[int][]gateway.Message{},
	}
	s := activeSession(fake)
	s.messages = []gateway.Message{{ID: 1, Room: 1}}

	var snaps []Snapshot
	s.SetUpdateHandler(func(snap Snapshot) { snaps = append(snaps, snap) })

	if err := s.Send(context.Background(), "hi", nil); err != nil {
		t.Fatalf("Send: %v (delivery succeeded, refresh failure is not the caller's problem)", err)
	}
	if len(s.Messages()) != 1 {
		t.Error("display changed despite failed refresh")
	}
	smooth := false
	for _, snap := range snaps {
		if snap.Scroll.Kind == ScrollSmooth {
			smooth = true
		}
	}
	if !smooth {
		t.Errorf("snapshots = %+v, want a forced smooth scroll", snaps)
	}
}
