package session

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/edgechat/gateway"
)

// poll is the synchronizer loop for one room selection. It fetches the full
// history immediately, then on every tick until its context is cancelled by
// the next room switch. At most one loop is alive at a time; the epoch taken
// at start guards against a fetch landing after the user has moved on.
func (s *Session) poll(ctx context.Context, roomID, epoch int) {
	s.refresh(ctx, roomID, epoch, false)
	t := time.NewTicker(s.pollEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.refresh(ctx, roomID, epoch, false)
		}
	}
}

// refresh fetches one snapshot and applies it. Fetch failures skip the cycle
// silently; the next tick retries naturally.
func (s *Session) refresh(ctx context.Context, roomID, epoch int, forced bool) {
	msgs, err := s.gw.ListMessages(ctx, roomID)
	if err != nil {
		log.Debug().Int("room", roomID).Err(err).Msg("[session] poll failed; retrying next tick")
		return
	}
	s.apply(roomID, epoch, msgs, forced)
}

// apply reconciles a fetched snapshot against the displayed list. A result
// from a superseded epoch is discarded outright. Unless forced, the list is
// replaced only when the replace heuristic sees a change; otherwise the
// in-memory instance is kept so observers get no gratuitous update.
func (s *Session) apply(roomID, epoch int, msgs []gateway.Message, forced bool) {
	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return
	}
	if !forced && sameSnapshot(s.messages, msgs) {
		s.mu.Unlock()
		return
	}
	s.messages = msgs
	dir := s.scroll.onMessagesChanged(len(msgs))
	if forced {
		dir = forcedScroll()
	}
	snap := s.snapshotLocked()
	snap.Scroll = dir
	sink := s.onApplied
	s.mu.Unlock()

	if sink != nil && len(msgs) > 0 {
		sink(roomID, msgs)
	}
	s.publish(snap)
}

// sameSnapshot is the replace decision: equal length and equal last id means
// keep what we have. It is a heuristic, not a diff — an in-place edit that
// changes neither is invisible to it, which is the accepted trade-off for
// skipping a content comparison every 3 seconds.
func sameSnapshot(cur, next []gateway.Message) bool {
	if len(next) != len(cur) {
		return false
	}
	if len(next) == 0 {
		return true
	}
	return next[len(next)-1].ID == cur[len(cur)-1].ID
}
