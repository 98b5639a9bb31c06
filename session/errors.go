package session

import "errors"

var (
	// ErrEmptyMessage rejects a send with no trimmed text and no attachment.
	ErrEmptyMessage = errors.New("nothing to send")
	// ErrSendInFlight rejects a second submit while one is still pending.
	ErrSendInFlight = errors.New("send already in flight")
	// ErrNoActiveRoom rejects operations that need a selected room.
	ErrNoActiveRoom = errors.New("no active room")
	// ErrNoPendingDraft rejects a creation confirm without a picked user.
	ErrNoPendingDraft = errors.New("no pending room draft")
)
