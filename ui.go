package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/edgechat/archive"
	"github.com/gosuda/edgechat/gateway"
	"github.com/gosuda/edgechat/session"
)

// app ties the engine to the served browser UI. The browser talks to it over
// one websocket: gestures in, state snapshots out. The backend side stays
// pure polling; this socket is only the local bridge between the page and
// the engine, the moral equivalent of view-layer state propagation.
type app struct {
	gw        *gateway.Client
	store     *archive.Store
	name      string
	pollEvery time.Duration

	// ctx outlives any single HTTP request: gesture-driven gateway calls
	// run on it, not on the upgrade request's context (which net/http
	// cancels as soon as the handler returns). closeAll cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	sess  *session.Session
	self  gateway.User
	conns map[*uiConn]struct{}
	wg    sync.WaitGroup
}

// uiConn serializes writes; snapshots are broadcast from poll goroutines
// while gesture replies come from the read loop.
type uiConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (u *uiConn) writeJSON(v any) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.c.WriteJSON(v)
}

func newApp(gw *gateway.Client, store *archive.Store, name string, pollEvery time.Duration) *app {
	ctx, cancel := context.WithCancel(context.Background())
	return &app{
		gw:        gw,
		store:     store,
		name:      name,
		pollEvery: pollEvery,
		ctx:       ctx,
		cancel:    cancel,
		conns:     map[*uiConn]struct{}{},
	}
}

// startSession builds the engine for an authenticated user and performs the
// initial room/user load.
func (a *app) startSession(ctx context.Context, self gateway.User) error {
	sess := session.New(a.gw, self.ID, a.pollEvery)
	sess.SetUpdateHandler(a.broadcastState)
	sess.SetMessageHandler(func(roomID int, msgs []gateway.Message) {
		if err := a.store.Append(roomID, msgs); err != nil {
			log.Warn().Int("room", roomID).Err(err).Msg("[ui] archive append failed")
		}
	})
	if err := sess.LoadInitial(ctx); err != nil {
		sess.Close()
		return err
	}
	a.mu.Lock()
	if a.sess != nil {
		a.sess.Close()
	}
	a.sess = sess
	a.self = self
	a.mu.Unlock()
	return nil
}

func (a *app) session() *session.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sess
}

// gesture is one command from the page. Exactly one op per frame.
type gesture struct {
	Op       string  `json:"op"`
	Room     int     `json:"room,omitempty"`
	User     int     `json:"user,omitempty"`
	Name     string  `json:"name,omitempty"`
	Text     string  `json:"text,omitempty"`
	Distance float64 `json:"distance,omitempty"`
	Attach   *struct {
		Name        string `json:"name"`
		ContentType string `json:"content_type"`
		Data        string `json:"data"` // base64
	} `json:"attach,omitempty"`
}

type uiMessage struct {
	ID        int    `json:"id"`
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Image     string `json:"image,omitempty"`
	File      string `json:"file,omitempty"`
	Timestamp string `json:"timestamp"`
	IsMe      bool   `json:"is_me"`
}

type uiRoom struct {
	ID    int      `json:"id"`
	Label string   `json:"label"`
	Users []string `json:"users"`
}

type uiUser struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}

type uiState struct {
	Type        string      `json:"type"` // always "state"
	Self        uiUser      `json:"self"`
	Rooms       []uiRoom    `json:"rooms"`
	Users       []uiUser    `json:"users"`
	ActiveRoom  int         `json:"active_room"`
	ActiveLabel string      `json:"active_label"`
	Messages    []uiMessage `json:"messages"`
	Creation    string      `json:"creation"` // closed | picking | naming
	DraftUser   *uiUser     `json:"draft_user,omitempty"`
	Scroll      string      `json:"scroll"` // none | instant | smooth
	ScrollDelay int64       `json:"scroll_delay_ms"`
	Sending     bool        `json:"sending"`
}

type uiError struct {
	Type    string `json:"type"` // always "error"
	Op      string `json:"op"`
	Message string `json:"message"`
}

// uiAck confirms a workflow op so the page can commit its local side effect,
// e.g. clearing the composer only once the send actually went through.
type uiAck struct {
	Type string `json:"type"` // always "ok"
	Op   string `json:"op"`
}

func creationName(step session.CreationStep) string {
	switch step {
	case session.CreationPickingUser:
		return "picking"
	case session.CreationNaming:
		return "naming"
	default:
		return "closed"
	}
}

func scrollName(k session.ScrollKind) string {
	switch k {
	case session.ScrollInstant:
		return "instant"
	case session.ScrollSmooth:
		return "smooth"
	default:
		return "none"
	}
}

// renderState converts an engine snapshot into the wire shape the page
// renders. All backend-originated text passes the sanitizer on the way out.
func (a *app) renderState(snap session.Snapshot) uiState {
	a.mu.Lock()
	self := a.self
	a.mu.Unlock()

	st := uiState{
		Type:        "state",
		Self:        uiUser{ID: self.ID, Username: sanitizeText(self.Username)},
		Rooms:       make([]uiRoom, 0, len(snap.Rooms)),
		Users:       make([]uiUser, 0, len(snap.Users)),
		ActiveRoom:  snap.ActiveRoom,
		ActiveLabel: sanitizeText(snap.ActiveLabel),
		Messages:    make([]uiMessage, 0, len(snap.Messages)),
		Creation:    creationName(snap.Creation),
		Scroll:      scrollName(snap.Scroll.Kind),
		ScrollDelay: snap.Scroll.Delay.Milliseconds(),
		Sending:     snap.Sending,
	}
	if snap.DraftUser != nil {
		st.DraftUser = &uiUser{ID: snap.DraftUser.ID, Username: sanitizeText(snap.DraftUser.Username)}
	}
	for _, r := range snap.Rooms {
		ur := uiRoom{ID: r.ID, Label: sanitizeText(roomLabel(r))}
		for _, u := range r.Users {
			ur.Users = append(ur.Users, sanitizeText(u.Username))
		}
		st.Rooms = append(st.Rooms, ur)
	}
	for _, u := range snap.Users {
		st.Users = append(st.Users, uiUser{ID: u.ID, Username: sanitizeText(u.Username)})
	}
	for _, m := range snap.Messages {
		um := uiMessage{
			ID:        m.ID,
			Content:   sanitizeText(m.Content),
			Image:     m.Image,
			File:      m.File,
			Timestamp: m.Timestamp.Format(time.RFC3339),
			IsMe:      m.IsMe,
		}
		if m.Sender != nil {
			um.Sender = sanitizeText(m.Sender.Username)
		}
		st.Messages = append(st.Messages, um)
	}
	return st
}

func roomLabel(r gateway.Room) string {
	if r.Name != "" {
		return r.Name
	}
	return "Room #" + strconv.Itoa(r.ID)
}

// broadcastState pushes a snapshot to every connected page.
func (a *app) broadcastState(snap session.Snapshot) {
	st := a.renderState(snap)
	a.mu.Lock()
	conns := make([]*uiConn, 0, len(a.conns))
	for c := range a.conns {
		conns = append(conns, c)
	}
	a.mu.Unlock()
	for _, c := range conns {
		_ = c.writeJSON(st)
	}
}

func (a *app) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	uc := &uiConn{c: conn}
	a.mu.Lock()
	a.conns[uc] = struct{}{}
	a.mu.Unlock()

	// Hand the page the current state right away.
	if sess := a.session(); sess != nil {
		creation, draft := sess.Creation()
		_ = uc.writeJSON(a.renderState(session.Snapshot{
			Rooms:       sess.Rooms(),
			Users:       sess.Users(),
			ActiveRoom:  sess.ActiveRoom(),
			ActiveLabel: sess.ActiveLabel(),
			Messages:    sess.Messages(),
			Creation:    creation,
			DraftUser:   draft,
			Sending:     sess.Sending(),
		}))
	}

	a.wg.Add(1)
	go func() {
		defer func() {
			a.mu.Lock()
			delete(a.conns, uc)
			a.mu.Unlock()
			_ = conn.Close()
			a.wg.Done()
		}()
		for {
			var g gesture
			if err := conn.ReadJSON(&g); err != nil {
				return
			}
			a.handleGesture(a.ctx, uc, g)
		}
	}()
}

// handleGesture dispatches one page command into the engine. Errors from
// workflow operations are surfaced back to the issuing page; poll-cycle
// failures never reach here by design.
func (a *app) handleGesture(ctx context.Context, uc *uiConn, g gesture) {
	sess := a.session()
	if sess == nil {
		_ = uc.writeJSON(uiError{Type: "error", Op: g.Op, Message: "not logged in"})
		return
	}
	var err error
	switch g.Op {
	case "select_room":
		sess.SelectRoom(g.Room)
	case "clear_room":
		sess.ClearRoom()
	case "begin_create":
		sess.BeginCreation()
	case "pick_user":
		sess.PickUser(g.User)
	case "confirm_create":
		err = sess.ConfirmCreation(ctx, g.Name)
	case "cancel_create":
		sess.CancelCreation()
	case "rename":
		err = sess.RenameRoom(ctx, g.Room, g.Name)
	case "scroll":
		sess.ObserveScroll(g.Distance)
	case "send":
		var att *gateway.Attachment
		if g.Attach != nil {
			data, decErr := base64.StdEncoding.DecodeString(g.Attach.Data)
			if decErr != nil {
				_ = uc.writeJSON(uiError{Type: "error", Op: g.Op, Message: "bad attachment encoding"})
				return
			}
			att = &gateway.Attachment{Name: g.Attach.Name, ContentType: g.Attach.ContentType, Data: data}
		}
		err = sess.Send(ctx, g.Text, att)
	default:
		log.Debug().Str("op", g.Op).Msg("[ui] unknown gesture")
		return
	}
	if err != nil {
		_ = uc.writeJSON(uiError{Type: "error", Op: g.Op, Message: err.Error()})
		return
	}
	switch g.Op {
	case "send", "rename", "confirm_create":
		_ = uc.writeJSON(uiAck{Type: "ok", Op: g.Op})
	}
}

func (a *app) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	creds, err := a.gw.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		log.Warn().Err(err).Msg("[ui] login failed")
		http.Error(w, "login failed", http.StatusUnauthorized)
		return
	}
	self := gateway.User{ID: creds.UserID, Username: creds.Username, Email: creds.Email}
	if err := a.startSession(r.Context(), self); err != nil {
		log.Warn().Err(err).Msg("[ui] initial load failed")
		http.Error(w, "initial load failed", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":       true,
		"user_id":  creds.UserID,
		"username": creds.Username,
	})
}

func (a *app) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Confirm  string `json:"confirm_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if err := a.gw.Register(r.Context(), req.Username, req.Email, req.Password, req.Confirm); err != nil {
		log.Warn().Err(err).Msg("[ui] register failed")
		http.Error(w, "register failed", http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (a *app) handleExport(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="edgechat-archive.json"`)
	if err := a.store.WriteDump(w); err != nil {
		log.Warn().Err(err).Msg("[ui] export failed")
	}
}

// closeAll force-closes the UI sockets during shutdown and cancels any
// in-flight gesture calls.
func (a *app) closeAll() {
	a.cancel()
	a.mu.Lock()
	conns := make([]*uiConn, 0, len(a.conns))
	for c := range a.conns {
		conns = append(conns, c)
	}
	sess := a.sess
	a.mu.Unlock()
	for _, c := range conns {
		c.mu.Lock()
		_ = c.c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "client shutdown"))
		c.mu.Unlock()
		_ = c.c.Close()
	}
	if sess != nil {
		sess.Close()
	}
}

// wait blocks until all websocket read loops have finished.
func (a *app) wait() { a.wg.Wait() }

// NewHandler builds the local UI router: page, websocket bridge, login and
// archive export.
func NewHandler(a *app) http.Handler {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) { serveIndex(w, a.name, a.session() != nil) })
	r.Get("/ws", a.handleWS)
	r.Post("/login", a.handleLogin)
	r.Post("/register", a.handleRegister)
	r.Get("/export", a.handleExport)
	return r
}
