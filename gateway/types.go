package gateway

import "time"

// User is a registered account as the backend reports it.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// Room is a conversation between two or more users. Name is empty when the
// room was created without one; display naming is the session's concern.
type Room struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Users       []User    `json:"users"`
	CreatedAt   time.Time `json:"created_at"`
	LastMessage *Message  `json:"last_message,omitempty"`
}

// Message is one entry of a room's history. At most one of Image/File is
// set; both are URLs resolved by the backend. Sender is nil when the
// backend attributes the message to the requesting account itself.
type Message struct {
	ID        int       `json:"id"`
	Room      int       `json:"room"`
	Sender    *User     `json:"sender"`
	Content   string    `json:"content"`
	Image     string    `json:"image,omitempty"`
	File      string    `json:"file,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	IsMe      bool      `json:"is_me"`
}

// Attachment is an outgoing file for SendMessage. ContentType decides the
// multipart field: image/* goes out as "image", everything else as "file".
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Credentials is the result of a successful login exchange. The token is
// opaque; the client only ever forwards it verbatim.
type Credentials struct {
	Token    string `json:"token"`
	UserID   int    `json:"user_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}
