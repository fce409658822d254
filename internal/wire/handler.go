package wire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/matthewbaird/collegeadmin/internal/console"
	"github.com/matthewbaird/collegeadmin/internal/form"
	"github.com/matthewbaird/collegeadmin/internal/notify"
	"github.com/matthewbaird/collegeadmin/internal/schema"
	"github.com/matthewbaird/collegeadmin/internal/session"
)

// rowBatchSize controls how many rows are sent per "rows" message.
const rowBatchSize = 50

// Handler manages WebSocket connections for the console.
type Handler struct {
	reg      *schema.Registry
	sessions *session.Manager
	inbox    *notify.Inbox
	operator func() string
	logger   zerolog.Logger
}

// NewHandler creates a WebSocket handler. operator names the logged-in
// user for new sessions and may be nil.
func NewHandler(reg *schema.Registry, sessions *session.Manager, inbox *notify.Inbox, operator func() string, logger zerolog.Logger) *Handler {
	if operator == nil {
		operator = func() string { return "" }
	}
	return &Handler{
		reg:      reg,
		sessions: sessions,
		inbox:    inbox,
		operator: operator,
		logger:   logger,
	}
}

// ServeHTTP upgrades to WebSocket and runs the message loop. A "session"
// query parameter naming a live session resumes it.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("console: websocket accept")
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	resumed := false
	sess := h.sessions.Get(r.URL.Query().Get("session"))
	if sess != nil {
		resumed = true
	} else {
		sess = h.sessions.Create(h.operator())
	}
	log := h.logger.With().Str("session", sess.ID).Logger()

	notes, stop := h.inbox.Listen(sess.ID)
	defer stop()
	go func() {
		for n := range notes {
			h.send(ctx, conn, ServerMessage{Type: TypeNotification, Data: n})
		}
	}()

	h.send(ctx, conn, ServerMessage{
		Type: TypeSession,
		Data: SessionData{
			SessionID: sess.ID,
			Operator:  sess.Operator,
			Entities:  h.reg.EntityNames(),
			Resumed:   resumed,
		},
	})

	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if websocket.CloseStatus(err) != -1 {
				log.Debug().Int("status", int(websocket.CloseStatus(err))).Msg("console: connection closed")
			}
			return
		}
		sess.Touch()
		h.dispatch(ctx, conn, sess, msg)
	}
}

func (h *Handler) dispatch(ctx context.Context, conn *websocket.Conn, sess *session.Session, msg ClientMessage) {
	switch msg.Type {
	case TypePing:
		h.send(ctx, conn, ServerMessage{Type: TypePong, RequestID: msg.ID})
		return
	case TypeCounts:
		counts, err := sess.Workspace.Counts(ctx)
		if err != nil {
			h.sendError(ctx, conn, msg.ID, "fetch_error", err.Error(), nil)
		}
		h.send(ctx, conn, ServerMessage{Type: TypeCounts, RequestID: msg.ID, Data: CountsData{Counts: counts}})
		return
	}

	if !isScreenMessage(msg.Type) {
		h.sendError(ctx, conn, msg.ID, "unknown_type", fmt.Sprintf("unknown message type: %s", msg.Type), nil)
		return
	}
	var data ScreenData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		h.sendError(ctx, conn, msg.ID, "invalid_data", "invalid "+msg.Type+" data", nil)
		return
	}
	screen, err := sess.Workspace.Screen(data.Entity)
	if err != nil {
		h.sendError(ctx, conn, msg.ID, "unknown_entity", err.Error(), nil)
		return
	}

	switch msg.Type {
	case TypeOpen, TypeReload:
		if err := screen.Load(ctx); err != nil {
			h.sendError(ctx, conn, msg.ID, "fetch_error", err.Error(), nil)
		}
		h.sendRows(ctx, conn, msg.ID, screen)
		h.sendForm(ctx, conn, msg.ID, screen)

	case TypeSearch:
		screen.Search(data.Query, data.Status)
		h.sendRows(ctx, conn, msg.ID, screen)

	case TypeAdd:
		screen.OpenAdd()
		h.sendForm(ctx, conn, msg.ID, screen)

	case TypeEdit:
		if err := screen.OpenEdit(data.ID); err != nil {
			h.sendError(ctx, conn, msg.ID, "not_found", err.Error(), nil)
			return
		}
		h.sendForm(ctx, conn, msg.ID, screen)

	case TypeSet:
		var value any
		if len(data.Value) > 0 {
			if err := json.Unmarshal(data.Value, &value); err != nil {
				h.sendError(ctx, conn, msg.ID, "invalid_data", "invalid value", nil)
				return
			}
		}
		if err := screen.Form().Set(data.Field, value); err != nil {
			h.sendError(ctx, conn, msg.ID, formErrorCode(err), err.Error(), nil)
			return
		}
		h.sendForm(ctx, conn, msg.ID, screen)

	case TypeToggle:
		if err := screen.Form().Toggle(data.Field, data.ID); err != nil {
			h.sendError(ctx, conn, msg.ID, formErrorCode(err), err.Error(), nil)
			return
		}
		h.sendForm(ctx, conn, msg.ID, screen)

	case TypeCancel:
		screen.Form().Cancel()
		h.sendForm(ctx, conn, msg.ID, screen)

	case TypeSubmit:
		if _, err := screen.Submit(ctx); err != nil {
			var verr *form.ValidationError
			if errors.As(err, &verr) {
				h.sendError(ctx, conn, msg.ID, "validation_failed", err.Error(), verr.Fields)
			} else {
				h.sendError(ctx, conn, msg.ID, formErrorCode(err), err.Error(), nil)
			}
			h.sendForm(ctx, conn, msg.ID, screen)
			return
		}
		h.sendRows(ctx, conn, msg.ID, screen)
		h.sendForm(ctx, conn, msg.ID, screen)

	case TypeDelete:
		if err := screen.Delete(ctx, data.ID); err != nil {
			h.sendError(ctx, conn, msg.ID, "mutation_failed", err.Error(), nil)
			return
		}
		h.sendRows(ctx, conn, msg.ID, screen)

	case TypeChoices:
		choices, err := screen.Choices(data.Field)
		if err != nil {
			h.sendError(ctx, conn, msg.ID, "invalid_field", err.Error(), nil)
			return
		}
		h.send(ctx, conn, ServerMessage{
			Type:      TypeChoices,
			RequestID: msg.ID,
			Data:      ChoicesData{Entity: data.Entity, Field: data.Field, Choices: choices},
		})
	}
}

func isScreenMessage(t string) bool {
	switch t {
	case TypeOpen, TypeReload, TypeSearch, TypeAdd, TypeEdit, TypeSet,
		TypeToggle, TypeCancel, TypeSubmit, TypeDelete, TypeChoices:
		return true
	}
	return false
}

func formErrorCode(err error) string {
	switch {
	case errors.Is(err, form.ErrClosed):
		return "form_closed"
	case errors.Is(err, form.ErrImmutableField):
		return "immutable_field"
	case errors.Is(err, form.ErrUnknownField):
		return "invalid_field"
	default:
		return "mutation_failed"
	}
}

// sendRows streams the screen's visible rows as meta, rows batches, done.
func (h *Handler) sendRows(ctx context.Context, conn *websocket.Conn, requestID string, screen *console.Screen) {
	start := time.Now()
	es := screen.Entity()
	visible := screen.Visible()

	var fields []string
	for _, name := range es.FieldOrder {
		if !es.Fields[name].WriteOnly {
			fields = append(fields, name)
		}
	}
	h.send(ctx, conn, ServerMessage{
		Type:      TypeMeta,
		RequestID: requestID,
		Data: MetaData{
			Entity: es.Name,
			Title:  es.Title,
			Fields: fields,
			Total:  len(visible),
			Loaded: screen.Loaded(),
		},
	})

	for i := 0; i < len(visible); i += rowBatchSize {
		end := min(i+rowBatchSize, len(visible))
		batch := make([]Row, 0, end-i)
		for _, r := range visible[i:end] {
			batch = append(batch, Row{ID: r.ID(), Columns: r.Columns()})
		}
		h.send(ctx, conn, ServerMessage{Type: TypeRows, RequestID: requestID, Data: RowsData{Rows: batch}})
	}

	h.send(ctx, conn, ServerMessage{
		Type:      TypeDone,
		RequestID: requestID,
		Data:      DoneData{Total: len(visible), Elapsed: time.Since(start).String()},
	})
}

func (h *Handler) sendForm(ctx context.Context, conn *websocket.Conn, requestID string, screen *console.Screen) {
	fc := screen.Form()
	mode := fc.Mode()
	data := FormData{
		Entity: screen.Entity().Name,
		Mode:   mode.String(),
		ID:     fc.ID(),
		Draft:  fc.Draft(),
		Errors: fc.Errors(),
	}
	if mode == form.ModeEdit {
		es := screen.Entity()
		for _, name := range es.FieldOrder {
			if es.Fields[name].Immutable {
				data.Locked = append(data.Locked, name)
			}
		}
	}
	h.send(ctx, conn, ServerMessage{Type: TypeForm, RequestID: requestID, Data: data})
}

func (h *Handler) send(ctx context.Context, conn *websocket.Conn, msg ServerMessage) {
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		h.logger.Debug().Err(err).Str("type", msg.Type).Msg("console: write error")
	}
}

func (h *Handler) sendError(ctx context.Context, conn *websocket.Conn, requestID, code, message string, fields map[string]string) {
	h.send(ctx, conn, ServerMessage{
		Type:      TypeError,
		RequestID: requestID,
		Data: ErrorData{
			Code:    code,
			Message: message,
			Fields:  fields,
		},
	})
}
