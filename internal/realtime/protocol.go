package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	apperrors "project_portal/pkg/errors"
)

// Client to server events.
const (
	EventJoinProject  = "joinProject"
	EventLeaveProject = "leaveProject"
	EventSendMessage  = "sendMessage"
)

// Server to client events.
const (
	EventConnected      = "connected"
	EventMessage        = "message"
	EventOnlineUsers    = "onlineUsers"
	EventUserJoined     = "userJoined"
	EventUserLeft       = "userLeft"
	EventProjectCreated = "projectCreated"
	EventTaskCreated    = "taskCreated"
	EventTaskUpdated    = "taskUpdated"
	EventTaskDeleted    = "taskDeleted"
	EventAccessRevoked  = "accessRevoked"
	EventProjectDeleted = "projectDeleted"
	EventError          = "error"
)

// Frame is the envelope of every websocket message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outboundFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type ConnectedPayload struct {
	ConnectionID string    `json:"connectionId"`
	UserID       uuid.UUID `json:"userId"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Request string `json:"request,omitempty"`
}

type SendMessagePayload struct {
	Content   string `json:"content"`
	ProjectID string `json:"projectId"`
	// Sender is advisory; the author is always the session's user.
	Sender string `json:"sender,omitempty"`
}

type userJoinedPayload struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type userLeftPayload struct {
	ID uuid.UUID `json:"id"`
}

type projectRefPayload struct {
	ProjectID uuid.UUID `json:"projectId"`
}

func encodeFrame(event string, payload any) ([]byte, error) {
	return json.Marshal(outboundFrame{Event: event, Data: payload})
}

func decodeFrame(raw []byte) (*Frame, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("%w: malformed frame", apperrors.ErrValidation)
	}
	if frame.Event == "" {
		return nil, fmt.Errorf("%w: missing event name", apperrors.ErrValidation)
	}
	return &frame, nil
}

// parseProjectRef accepts either "<id>" or {"projectId": "<id>"}.
func parseProjectRef(data json.RawMessage) (uuid.UUID, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return uuid.Nil, fmt.Errorf("%w: projectId is required", apperrors.ErrValidation)
	}

	var raw string
	if data[0] == '{' {
		var ref struct {
			ProjectID string `json:"projectId"`
		}
		if err := json.Unmarshal(data, &ref); err != nil {
			return uuid.Nil, fmt.Errorf("%w: malformed project reference", apperrors.ErrValidation)
		}
		raw = ref.ProjectID
	} else if err := json.Unmarshal(data, &raw); err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed project reference", apperrors.ErrValidation)
	}

	return parseProjectID(raw)
}

func parseProjectID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: invalid projectId", apperrors.ErrValidation)
	}
	return id, nil
}

func errorPayload(request string, err error) ErrorPayload {
	return ErrorPayload{
		Code:    apperrors.Code(err),
		Message: apperrors.PublicMessage(err),
		Request: request,
	}
}
