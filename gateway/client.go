// Package gateway is the typed HTTP client for the chat backend. It owns no
// state beyond the base URL and auth token; every call is a plain
// request/response exchange and every failure comes back as a
// *TransportError.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Client talks to one backend. Safe for concurrent use once configured;
// SetToken is expected to be called before any authenticated traffic starts.
type Client struct {
	baseURL string
	token   string
	hc      *http.Client
}

// NewClient builds a gateway client for the API root, e.g.
// "http://localhost:8000/api/v1". An empty token is fine for Login/Register.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		hc:      &http.Client{Timeout: 15 * time.Second},
	}
}

// SetToken installs the opaque auth token used on all subsequent calls.
func (c *Client) SetToken(token string) { c.token = token }

// Token reports the currently installed token (empty when logged out).
func (c *Client) Token() string { return c.token }

func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return transportErr(op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)

	resp, err := c.hc.Do(req)
	if err != nil {
		log.Debug().Str("op", op).Str("request_id", reqID).Err(err).Msg("[gateway] request failed")
		return transportErr(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Debug().Str("op", op).Str("request_id", reqID).Int("status", resp.StatusCode).Msg("[gateway] backend error")
		return statusErr(op, resp.StatusCode)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return transportErr(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, op, path string, payload, out any) error {
	buf, err := json.Marshal(payload)
	if err != nil {
		return transportErr(op, err)
	}
	return c.do(ctx, op, http.MethodPost, path, bytes.NewReader(buf), "application/json", out)
}

// ListRooms fetches every room the authenticated user belongs to.
func (c *Client) ListRooms(ctx context.Context) ([]Room, error) {
	var rooms []Room
	if err := c.do(ctx, "list rooms", http.MethodGet, "/chat/rooms/", nil, "", &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// ListUsers fetches all registered users, the caller included.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.do(ctx, "list users", http.MethodGet, "/chat/users/", nil, "", &users); err != nil {
		return nil, err
	}
	return users, nil
}

// CreateRoom opens (or reuses, backend's choice) a direct room with the
// given user and returns its id. The name key is left out of the payload
// entirely when empty so the backend stores a null name.
func (c *Client) CreateRoom(ctx context.Context, userID int, name string) (int, error) {
	payload := map[string]any{"user_id": userID}
	if name != "" {
		payload["name"] = name
	}
	var res struct {
		RoomID int `json:"room_id"`
	}
	if err := c.postJSON(ctx, "create room", "/chat/rooms/create/", payload, &res); err != nil {
		return 0, err
	}
	return res.RoomID, nil
}

// RenameRoom sets (or clears, with an empty name) a room's display name.
func (c *Client) RenameRoom(ctx context.Context, roomID int, name string) error {
	buf, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return transportErr("rename room", err)
	}
	path := fmt.Sprintf("/chat/rooms/%d/update_name/", roomID)
	return c.do(ctx, "rename room", http.MethodPatch, path, bytes.NewReader(buf), "application/json", nil)
}

// ListMessages fetches the full message history of one room. Always a
// complete snapshot, never a delta.
func (c *Client) ListMessages(ctx context.Context, roomID int) ([]Message, error) {
	var msgs []Message
	path := fmt.Sprintf("/chat/rooms/%d/messages/", roomID)
	if err := c.do(ctx, "list messages", http.MethodGet, path, nil, "", &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// SendMessage posts a message as a multipart form. An attachment with an
// image/* content type goes into the "image" field, anything else into
// "file"; the two are mutually exclusive on the wire.
func (c *Client) SendMessage(ctx context.Context, roomID int, content string, att *Attachment) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("room", strconv.Itoa(roomID)); err != nil {
		return transportErr("send message", err)
	}
	if err := mw.WriteField("content", content); err != nil {
		return transportErr("send message", err)
	}
	if att != nil {
		field := "file"
		if strings.HasPrefix(att.ContentType, "image/") {
			field = "image"
		}
		fw, err := mw.CreateFormFile(field, att.Name)
		if err != nil {
			return transportErr("send message", err)
		}
		if _, err := fw.Write(att.Data); err != nil {
			return transportErr("send message", err)
		}
	}
	if err := mw.Close(); err != nil {
		return transportErr("send message", err)
	}
	return c.do(ctx, "send message", http.MethodPost, "/chat/messages/", &body, mw.FormDataContentType(), nil)
}

// Login exchanges credentials for an opaque token and installs it on the
// client. Token issuance itself is entirely the backend's business.
func (c *Client) Login(ctx context.Context, username, password string) (Credentials, error) {
	var creds Credentials
	payload := map[string]string{"username": username, "password": password}
	if err := c.postJSON(ctx, "login", "/auth/login/", payload, &creds); err != nil {
		return Credentials{}, err
	}
	c.token = creds.Token
	return creds, nil
}

// Register creates a new account. The caller still has to log in afterwards.
func (c *Client) Register(ctx context.Context, username, email, password, confirm string) error {
	payload := map[string]string{
		"username":         username,
		"email":            email,
		"password":         password,
		"confirm_password": confirm,
	}
	return c.postJSON(ctx, "register", "/chat/register/", payload, nil)
}
