package domain

import "github.com/google/uuid"

// DashboardSummary combines persisted counts with live activity from the realtime hub.
type DashboardSummary struct {
	Projects     int               `json:"projects"`
	TasksByState map[string]int    `json:"tasksByStatus"`
	OverdueTasks int               `json:"overdueTasks"`
	Activity     []ProjectActivity `json:"activity"`
}

type ProjectActivity struct {
	ProjectID   uuid.UUID `json:"projectId"`
	Messages    int64     `json:"messages"`
	TaskEvents  int64     `json:"taskEvents"`
	OnlineUsers int       `json:"onlineUsers"`
}

type TaskCounts struct {
	ByStatus map[string]int
	Overdue  int
}
