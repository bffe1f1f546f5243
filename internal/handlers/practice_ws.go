package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"grammartutor/internal/practice"
)

const (
	wsWriteWait    = 10 * time.Second
	wsMaxMessage   = 4096
	wsOutboxBuffer = 16
)

// Upgrader uses gorilla's default same-origin check.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// wsMessage is what a client sends: select, jump, restart, continue or ping.
type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// wsEvent is what the server pushes: state, navigate, pong or error.
type wsEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Socket streams a session's state to the browser and applies its actions.
// State changes from the advance and shake timers arrive without a request.
func (h *PracticeHandler) Socket(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.fail(w, err)
		return
	}

	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "session", s.ID, "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsMaxMessage)

	snaps, unsubscribe := s.Subscribe()
	defer unsubscribe()

	outbox := make(chan wsEvent, wsOutboxBuffer)
	writerDone := make(chan struct{})
	readerDone := make(chan struct{})
	go h.writeLoop(conn, s, snaps, outbox, readerDone, writerDone)

	send := func(ev wsEvent) {
		select {
		case outbox <- ev:
		case <-writerDone:
		}
	}
	send(wsEvent{Type: "state", Data: newPracticeView(s)})

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("websocket read failed", "session", s.ID, "error", err)
			}
			break
		}
		if ev, ok := h.handleMessage(s, msg); ok {
			send(ev)
		}
	}
	close(readerDone)
	<-writerDone
}

// handleMessage applies one client action. State changes reach the client
// through the subscription, so only replies and errors are returned here.
func (h *PracticeHandler) handleMessage(s *practice.Session, msg wsMessage) (wsEvent, bool) {
	switch msg.Type {
	case "select":
		a := practice.Answer{Choice: -1}
		if err := json.Unmarshal(msg.Data, &a); err != nil {
			return wsError(practice.ErrInvalidAnswer), true
		}
		if _, err := s.Select(a); err != nil {
			return wsError(err), true
		}
	case "jump":
		var req struct {
			Index int `json:"index"`
		}
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return wsError(practice.ErrOutOfRange), true
		}
		if err := s.JumpTo(req.Index); err != nil {
			return wsError(err), true
		}
	case "restart":
		s.Restart()
	case "continue":
		dest, err := s.Continue()
		if err != nil {
			return wsError(err), true
		}
		return wsEvent{Type: "navigate", Data: continueResponse{
			LessonID:   dest.LessonID,
			PracticeID: dest.PracticeID,
			Menu:       dest.IsMenu(),
			Location:   dest.Path(),
		}}, true
	case "ping":
		return wsEvent{Type: "pong", Data: time.Now()}, true
	default:
		return wsEvent{Type: "error", Data: map[string]string{"error": "unknown message type: " + msg.Type}}, true
	}
	return wsEvent{}, false
}

func wsError(err error) wsEvent {
	return wsEvent{Type: "error", Data: map[string]interface{}{
		"error":  err.Error(),
		"status": statusFor(err),
	}}
}

// writeLoop is the connection's only writer.
func (h *PracticeHandler) writeLoop(conn *websocket.Conn, s *practice.Session, snaps <-chan practice.Snapshot,
	outbox <-chan wsEvent, readerDone <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	write := func(ev wsEvent) bool {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(ev); err != nil {
			h.log.Debug("websocket write failed", "session", s.ID, "error", err)
			conn.Close()
			return false
		}
		return true
	}

	for {
		select {
		case snap, ok := <-snaps:
			if !ok {
				// Session evicted or server shutting down.
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"))
				conn.Close()
				return
			}
			if !write(wsEvent{Type: "state", Data: viewOf(s, snap)}) {
				return
			}
		case ev := <-outbox:
			if !write(ev) {
				return
			}
		case <-readerDone:
			return
		}
	}
}
