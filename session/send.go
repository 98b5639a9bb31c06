package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/edgechat/gateway"
)

// Send submits a message to the active room: validate, deliver, then one
// unconditional refresh (the just-sent message must show up even when the
// replace heuristic would have kept the old list) and a forced scroll.
// Single-flight: a second submit while one is pending is rejected, not
// queued. On a delivery error nothing is refreshed or scrolled and the error
// goes back to the caller, which keeps the typed input intact for a retry.
func (s *Session) Send(ctx context.Context, text string, att *gateway.Attachment) error {
	text = strings.TrimSpace(text)

	s.mu.Lock()
	if s.activeRoom == 0 {
		s.mu.Unlock()
		return ErrNoActiveRoom
	}
	if text == "" && att == nil {
		s.mu.Unlock()
		return ErrEmptyMessage
	}
	if s.sending {
		s.mu.Unlock()
		return ErrSendInFlight
	}
	s.sending = true
	roomID := s.activeRoom
	epoch := s.epoch
	snap := s.snapshotLocked()
	s.mu.Unlock()
	// Both flips of the flag are published so the UI can disable and
	// re-enable its send control.
	s.publish(snap)

	defer func() {
		s.mu.Lock()
		s.sending = false
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.publish(snap)
	}()

	if err := s.gw.SendMessage(ctx, roomID, text, att); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	msgs, err := s.gw.ListMessages(ctx, roomID)
	if err != nil {
		// Delivery already succeeded; the next poll tick will pick the
		// message up. Still scroll so the sender lands at the bottom.
		log.Warn().Int("room", roomID).Err(err).Msg("[session] post-send refresh failed")
		s.publishForcedScroll()
		return nil
	}
	s.apply(roomID, epoch, msgs, true)
	return nil
}

// Sending reports whether a send is currently in flight (the UI disables the
// send control off this).
func (s *Session) Sending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sending
}

func (s *Session) publishForcedScroll() {
	s.mu.Lock()
	snap := s.snapshotLocked()
	snap.Scroll = forcedScroll()
	s.mu.Unlock()
	s.publish(snap)
}
