package service

import (
	"github.com/google/uuid"

	"project_portal/internal/domain"
)

// Notifier pushes domain events to connected clients. The realtime hub implements it.
type Notifier interface {
	BroadcastRoom(projectID uuid.UUID, event string, payload any) int
	SendToUsers(userIDs []uuid.UUID, event string, payload any) int
	// RevokeAccess removes the users' live sessions from the project's room.
	RevokeAccess(projectID uuid.UUID, userIDs []uuid.UUID) int
	// CloseRoom evicts every session from the project's room.
	CloseRoom(projectID uuid.UUID) int
}

// PresenceReader reports who is connected to a project's room.
type PresenceReader interface {
	Online(projectID uuid.UUID) []domain.PresenceUser
}

type nopNotifier struct{}

func (nopNotifier) BroadcastRoom(uuid.UUID, string, any) int { return 0 }

func (nopNotifier) SendToUsers([]uuid.UUID, string, any) int { return 0 }

func (nopNotifier) RevokeAccess(uuid.UUID, []uuid.UUID) int { return 0 }

func (nopNotifier) CloseRoom(uuid.UUID) int { return 0 }
