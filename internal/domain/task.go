package domain

import (
	"time"

	"github.com/google/uuid"
)

type Task struct {
	ID          uuid.UUID   `json:"_id"`
	ProjectID   uuid.UUID   `json:"project"`
	Title       string      `json:"title"`
	Description *string     `json:"description,omitempty"`
	Assignees   []uuid.UUID `json:"assignees"`
	Priority    string      `json:"priority"`
	Status      string      `json:"status"`
	StartDate   *time.Time  `json:"startDate,omitempty"`
	Deadline    *time.Time  `json:"deadline,omitempty"`
	Progress    int         `json:"progress"`
	CreatedBy   uuid.UUID   `json:"createdBy"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

func (t *Task) IsAssignedTo(userID uuid.UUID) bool {
	for _, a := range t.Assignees {
		if a == userID {
			return true
		}
	}
	return false
}

func (t *Task) IsOverdue(now time.Time) bool {
	return t.Deadline != nil && t.Status != TaskStatusDone && t.Deadline.Before(now)
}

const (
	PriorityLow      = "Low"
	PriorityMedium   = "Medium"
	PriorityHigh     = "High"
	PriorityCritical = "Critical"
)

const (
	TaskStatusTodo       = "To-Do"
	TaskStatusInProgress = "In Progress"
	TaskStatusDone       = "Done"
)

func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

func ValidTaskStatus(s string) bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	}
	return false
}

type TaskFilter struct {
	ProjectID  *uuid.UUID
	Status     string
	AssigneeID *uuid.UUID
}

type CreateTaskInput struct {
	ProjectID   uuid.UUID   `json:"project" binding:"required"`
	Title       string      `json:"title" binding:"required"`
	Description *string     `json:"description"`
	Assignees   []uuid.UUID `json:"assignees"`
	Priority    string      `json:"priority"`
	Status      string      `json:"status"`
	StartDate   *time.Time  `json:"startDate"`
	Deadline    *time.Time  `json:"deadline"`
	Progress    *int        `json:"progress"`
}

type UpdateTaskInput struct {
	Title       *string      `json:"title"`
	Description *string      `json:"description"`
	Assignees   *[]uuid.UUID `json:"assignees"`
	Priority    *string      `json:"priority"`
	Status      *string      `json:"status"`
	StartDate   *time.Time   `json:"startDate"`
	Deadline    *time.Time   `json:"deadline"`
	Progress    *int         `json:"progress"`
}
