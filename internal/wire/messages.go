// Package wire defines the WebSocket protocol that drives console screens.
package wire

import (
	"encoding/json"

	"github.com/matthewbaird/collegeadmin/internal/console"
	"github.com/matthewbaird/collegeadmin/internal/notify"
)

// ── Client → Server messages ────────────────────────────────────────────────

// Client message types.
const (
	TypeOpen    = "open"    // load a screen
	TypeReload  = "reload"  // re-fetch a screen's collections
	TypeSearch  = "search"  // set query/status and list matching rows
	TypeAdd     = "add"     // open the add form
	TypeEdit    = "edit"    // open the edit form on a record
	TypeSet     = "set"     // assign a draft field
	TypeToggle  = "toggle"  // toggle an id in a multi-reference field
	TypeCancel  = "cancel"  // discard the draft
	TypeSubmit  = "submit"  // submit the draft
	TypeDelete  = "delete"  // delete a record
	TypeChoices = "choices" // list targets for a reference field
	TypeCounts  = "counts"  // record counts per entity
	TypePing    = "ping"
)

// ClientMessage is the envelope for all client-to-server WebSocket messages.
type ClientMessage struct {
	Type string          `json:"type"`
	ID   string          `json:"id"` // Client-assigned request ID
	Data json.RawMessage `json:"data,omitempty"`
}

// ScreenData is the payload of every screen-scoped message. Unused fields
// are left empty.
type ScreenData struct {
	Entity string          `json:"entity"`
	ID     string          `json:"id,omitempty"`
	Field  string          `json:"field,omitempty"`
	Value  json.RawMessage `json:"value,omitempty"`
	Query  string          `json:"query,omitempty"`
	Status string          `json:"status,omitempty"`
}

// ── Server → Client messages ────────────────────────────────────────────────

// Server message types.
const (
	TypeSession      = "session"
	TypeMeta         = "meta"
	TypeRows         = "rows"
	TypeDone         = "done"
	TypeForm         = "form"
	TypeNotification = "notification"
	TypeError        = "error"
	TypePong         = "pong"
	// TypeChoices and TypeCounts reply with the same type they were asked with.
)

// ServerMessage is the envelope for all server-to-client WebSocket messages.
type ServerMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"` // Echoes client ID
	Data      any    `json:"data,omitempty"`
}

// MetaData is sent before rows to describe the screen.
type MetaData struct {
	Entity string   `json:"entity"`
	Title  string   `json:"title"`
	Fields []string `json:"fields"`
	Total  int      `json:"total"`
	Loaded bool     `json:"loaded"`
}

// Row is one resolved record as display strings.
type Row struct {
	ID      string            `json:"id"`
	Columns map[string]string `json:"columns"`
}

// RowsData carries a batch of rows.
type RowsData struct {
	Rows []Row `json:"rows"`
}

// DoneData closes a row stream.
type DoneData struct {
	Total   int    `json:"total"`
	Elapsed string `json:"elapsed"`
}

// FormData is the state of a screen's form.
type FormData struct {
	Entity string            `json:"entity"`
	Mode   string            `json:"mode"`
	ID     string            `json:"id,omitempty"`
	Draft  map[string]any    `json:"draft,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
	// Locked lists fields that cannot be edited in the current mode.
	Locked []string `json:"locked,omitempty"`
}

// ChoicesData lists reference targets.
type ChoicesData struct {
	Entity  string           `json:"entity"`
	Field   string           `json:"field"`
	Choices []console.Choice `json:"choices"`
}

// CountsData carries per-entity record counts.
type CountsData struct {
	Counts map[string]int `json:"counts"`
}

// NotificationData wraps a notification.
type NotificationData = notify.Notification

// ErrorData carries an error message.
type ErrorData struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// SessionData carries session information.
type SessionData struct {
	SessionID string   `json:"session_id"`
	Operator  string   `json:"operator,omitempty"`
	Entities  []string `json:"entities"`
	Resumed   bool     `json:"resumed"`
}
