package domain

import (
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID          int64                  `json:"id"`
	EventTime   time.Time              `json:"event_time"`
	ActorUserID *uuid.UUID             `json:"actor_user_id,omitempty"`
	ActorRole   string                 `json:"actor_role"`
	ProjectID   *uuid.UUID             `json:"project_id,omitempty"`
	EventType   string                 `json:"event_type"`
	Payload     map[string]interface{} `json:"payload"`
}

const (
	ActorRoleSystem = "system"
	// ActorRoleMember marks writes where only project membership was checked.
	ActorRoleMember = "member"
)

const (
	EventTypeProjectCreated = "PROJECT_CREATED"
	EventTypeProjectUpdated = "PROJECT_UPDATED"
	EventTypeProjectDeleted = "PROJECT_DELETED"
	EventTypeTaskCreated    = "TASK_CREATED"
	EventTypeTaskUpdated    = "TASK_UPDATED"
	EventTypeTaskDeleted    = "TASK_DELETED"
	EventTypeMessageSent    = "MESSAGE_SENT"
	EventTypeUserRegistered = "USER_REGISTERED"
)
