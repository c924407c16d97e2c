package repository

import (
	"github.com/redis/go-redis/v9"

	"project_portal/pkg/logger"
)

type Repositories struct {
	User      UserRepository
	Project   ProjectRepository
	Task      TaskRepository
	Message   MessageRepository
	Stats     StatsRepository
	Audit     AuditRepository
	RateLimit RateLimitRepository
}

func NewRepositories(db DB, redis *redis.Client, log logger.Logger) *Repositories {
	return &Repositories{
		User:      NewUserRepository(db, log),
		Project:   NewProjectRepository(db, log),
		Task:      NewTaskRepository(db, log),
		Message:   NewMessageRepository(db, log),
		Stats:     NewStatsRepository(db, log),
		Audit:     NewAuditRepository(db, log),
		RateLimit: NewRateLimitRepository(redis, log),
	}
}
