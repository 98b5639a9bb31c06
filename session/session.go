// Package session owns all client-side chat state: the room list, the
// active room and its message snapshot, the room-creation draft, the scroll
// policy and the send pipeline. Every mutation goes through the operations
// on Session; nothing else may write this state. Delivery from the backend
// is pure polling — the synchronizer in poller.go re-fetches the active
// room's history and reconciles it against what is displayed.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gosuda/edgechat/gateway"
)

// Gateway is the slice of the backend client the engine needs. *gateway.Client
// satisfies it; tests inject fakes.
type Gateway interface {
	ListRooms(ctx context.Context) ([]gateway.Room, error)
	ListUsers(ctx context.Context) ([]gateway.User, error)
	CreateRoom(ctx context.Context, userID int, name string) (int, error)
	RenameRoom(ctx context.Context, roomID int, name string) error
	ListMessages(ctx context.Context, roomID int) ([]gateway.Message, error)
	SendMessage(ctx context.Context, roomID int, content string, att *gateway.Attachment) error
}

// CreationStep is the room-creation workflow state. One draft value moves
// through it; cancelling at any step discards everything.
type CreationStep int

const (
	CreationClosed CreationStep = iota
	CreationPickingUser
	CreationNaming
)

// Snapshot is the read-only view handed to observers after each change.
type Snapshot struct {
	Rooms       []gateway.Room
	Users       []gateway.User
	ActiveRoom  int
	ActiveLabel string
	Messages    []gateway.Message
	Creation    CreationStep
	DraftUser   *gateway.User
	Scroll      ScrollDirective
	Sending     bool
}

// Session is the single owner of client chat state. All exported methods are
// safe for concurrent use; observers are invoked outside the lock.
type Session struct {
	gw        Gateway
	selfID    int
	pollEvery time.Duration

	mu          sync.Mutex
	rooms       []gateway.Room
	users       []gateway.User
	activeRoom  int // 0 means no room selected
	activeLabel string
	messages    []gateway.Message
	epoch       int // bumped on every room switch; stale fetches check it
	cancelPoll  context.CancelFunc
	creation    CreationStep
	draftUserID int
	draftUser   *gateway.User
	sending     bool
	scroll      scrollKeeper

	onUpdate  func(Snapshot)
	onApplied func(roomID int, msgs []gateway.Message)
}

// New builds an idle session for the given account id. pollEvery <= 0 falls
// back to the 3s default.
func New(gw Gateway, selfID int, pollEvery time.Duration) *Session {
	if pollEvery <= 0 {
		pollEvery = 3 * time.Second
	}
	s := &Session{gw: gw, selfID: selfID, pollEvery: pollEvery}
	s.scroll.reset()
	return s
}

// SetUpdateHandler registers the observer notified after every state change.
func (s *Session) SetUpdateHandler(fn func(Snapshot)) {
	s.mu.Lock()
	s.onUpdate = fn
	s.mu.Unlock()
}

// SetMessageHandler registers a sink fed each message snapshot the
// synchronizer applies (the archive hooks in here). The sink must tolerate
// seeing the same messages more than once.
func (s *Session) SetMessageHandler(fn func(roomID int, msgs []gateway.Message)) {
	s.mu.Lock()
	s.onApplied = fn
	s.mu.Unlock()
}

// LoadInitial fetches the room and user lists once. The caller's own account
// is filtered out of the user list; self is never a chat target.
func (s *Session) LoadInitial(ctx context.Context) error {
	rooms, err := s.gw.ListRooms(ctx)
	if err != nil {
		return fmt.Errorf("load rooms: %w", err)
	}
	users, err := s.gw.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}
	others := make([]gateway.User, 0, len(users))
	for _, u := range users {
		if u.ID != s.selfID {
			others = append(others, u)
		}
	}
	s.mu.Lock()
	s.rooms = rooms
	s.users = others
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)
	return nil
}

// SelectRoom makes roomID the active room: the displayed messages are
// cleared immediately (no cross-room flash while the first fetch runs),
// scroll anchoring resets, the previous poll loop is cancelled and a new one
// starts.
func (s *Session) SelectRoom(roomID int) {
	s.mu.Lock()
	s.activeRoom = roomID
	s.activeLabel = displayLabel(s.rooms, roomID)
	s.messages = nil
	s.scroll.reset()
	s.epoch++
	epoch := s.epoch
	if s.cancelPoll != nil {
		s.cancelPoll()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelPoll = cancel
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)
	go s.poll(ctx, roomID, epoch)
}

// ClearRoom returns the session to the idle state: polling stops and the
// message pane empties.
func (s *Session) ClearRoom() {
	s.mu.Lock()
	s.activeRoom = 0
	s.activeLabel = ""
	s.messages = nil
	s.scroll.reset()
	s.epoch++
	if s.cancelPoll != nil {
		s.cancelPoll()
		s.cancelPoll = nil
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)
}

// Close stops any polling. The session is not reusable afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	s.epoch++
	if s.cancelPoll != nil {
		s.cancelPoll()
		s.cancelPoll = nil
	}
	s.mu.Unlock()
}

// BeginCreation opens the room-creation workflow at the user-picking step.
func (s *Session) BeginCreation() {
	s.mu.Lock()
	s.creation = CreationPickingUser
	s.draftUserID = 0
	s.draftUser = nil
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)
}

// PickUser chooses the chat target and moves the workflow to the naming
// step. Tapping a user in the sidebar jumps straight here from Closed.
func (s *Session) PickUser(userID int) {
	s.mu.Lock()
	s.draftUserID = userID
	s.draftUser = nil
	for i := range s.users {
		if s.users[i].ID == userID {
			u := s.users[i]
			s.draftUser = &u
			break
		}
	}
	s.creation = CreationNaming
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)
}

// ConfirmCreation resolves the final room name (proposed name, else the
// target user's username, else none), creates the room, refreshes the room
// list and selects the new room. On any error the workflow stays open and
// the previous selection is untouched.
func (s *Session) ConfirmCreation(ctx context.Context, proposedName string) error {
	s.mu.Lock()
	if s.creation != CreationNaming || s.draftUserID == 0 {
		s.mu.Unlock()
		return ErrNoPendingDraft
	}
	userID := s.draftUserID
	name := strings.TrimSpace(proposedName)
	if name == "" && s.draftUser != nil {
		name = s.draftUser.Username
	}
	s.mu.Unlock()

	roomID, err := s.gw.CreateRoom(ctx, userID, name)
	if err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	rooms, err := s.gw.ListRooms(ctx)
	if err != nil {
		return fmt.Errorf("refresh rooms: %w", err)
	}
	s.mu.Lock()
	s.rooms = rooms
	s.creation = CreationClosed
	s.draftUserID = 0
	s.draftUser = nil
	s.mu.Unlock()
	s.SelectRoom(roomID)
	return nil
}

// CancelCreation discards the draft entirely, from any step.
func (s *Session) CancelCreation() {
	s.mu.Lock()
	s.creation = CreationClosed
	s.draftUserID = 0
	s.draftUser = nil
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)
}

// RenameRoom renames any room and refreshes the room list. The active label
// is recomputed only when the renamed room is the active one. The error is
// returned to the caller so the UI can keep its edit mode open for a retry.
func (s *Session) RenameRoom(ctx context.Context, roomID int, name string) error {
	if err := s.gw.RenameRoom(ctx, roomID, name); err != nil {
		return fmt.Errorf("rename room: %w", err)
	}
	rooms, err := s.gw.ListRooms(ctx)
	if err != nil {
		return fmt.Errorf("refresh rooms: %w", err)
	}
	s.mu.Lock()
	s.rooms = rooms
	if s.activeRoom == roomID {
		s.activeLabel = displayLabel(s.rooms, roomID)
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)
	return nil
}

// ObserveScroll records a viewport scroll report (distance above the newest
// content). It changes no visible state, only the keeper's memory.
func (s *Session) ObserveScroll(distance float64) {
	s.mu.Lock()
	s.scroll.observe(distance)
	s.mu.Unlock()
}

// Rooms returns the current room list.
func (s *Session) Rooms() []gateway.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms
}

// Users returns the chat targets (everyone but self).
func (s *Session) Users() []gateway.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users
}

// ActiveRoom returns the selected room id, 0 when idle.
func (s *Session) ActiveRoom() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeRoom
}

// ActiveLabel returns the display label of the selected room.
func (s *Session) ActiveLabel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLabel
}

// Messages returns the displayed message list. The slice itself is the
// identity the replace heuristic preserves: an unchanged poll cycle hands
// back the very same instance.
func (s *Session) Messages() []gateway.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages
}

// Creation returns the workflow step and the drafted target user, if any.
func (s *Session) Creation() (CreationStep, *gateway.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creation, s.draftUser
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		Rooms:       s.rooms,
		Users:       s.users,
		ActiveRoom:  s.activeRoom,
		ActiveLabel: s.activeLabel,
		Messages:    s.messages,
		Creation:    s.creation,
		DraftUser:   s.draftUser,
		Sending:     s.sending,
	}
}

func (s *Session) publish(snap Snapshot) {
	s.mu.Lock()
	fn := s.onUpdate
	s.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

// displayLabel renders a room for the header: its name, or "Room #<id>",
// with the participant usernames in parentheses when the room has users.
func displayLabel(rooms []gateway.Room, roomID int) string {
	label := fmt.Sprintf("Room #%d", roomID)
	for i := range rooms {
		if rooms[i].ID != roomID {
			continue
		}
		if rooms[i].Name != "" {
			label = rooms[i].Name
		}
		if len(rooms[i].Users) > 0 {
			names := make([]string, 0, len(rooms[i].Users))
			for _, u := range rooms[i].Users {
				names = append(names, u.Username)
			}
			label = fmt.Sprintf("%s (%s)", label, strings.Join(names, ", "))
		}
		break
	}
	return label
}
