package domain

import (
	"time"

	"github.com/google/uuid"
)

type Project struct {
	ID          uuid.UUID   `json:"_id"`
	Name        string      `json:"name"`
	Description *string     `json:"description,omitempty"`
	Deadline    *time.Time  `json:"deadline,omitempty"`
	Members     []uuid.UUID `json:"members"`
	CreatedBy   uuid.UUID   `json:"createdBy"`
	CreatedAt   time.Time   `json:"createdAt"`
}

func (p *Project) HasMember(userID uuid.UUID) bool {
	for _, m := range p.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// CanAccess reports whether the identity may read the project and join its room.
func (p *Project) CanAccess(id Identity) bool {
	return id.IsAdmin() || p.CreatedBy == id.UserID || p.HasMember(id.UserID)
}

// CanModify reports whether the identity may update or delete the project.
func (p *Project) CanModify(id Identity) bool {
	return id.IsAdmin() || p.CreatedBy == id.UserID
}

type CreateProjectInput struct {
	Name        string      `json:"name" binding:"required"`
	Description *string     `json:"description"`
	Deadline    *time.Time  `json:"deadline"`
	Members     []uuid.UUID `json:"members"`
}

type UpdateProjectInput struct {
	Name        *string      `json:"name"`
	Description *string      `json:"description"`
	Deadline    *time.Time   `json:"deadline"`
	Members     *[]uuid.UUID `json:"members"`
}
