package service

import (
	"project_portal/internal/config"
	"project_portal/internal/repository"
	"project_portal/pkg/logger"
)

type Services struct {
	Auth      AuthService
	User      UserService
	Project   ProjectService
	Task      TaskService
	Chat      ChatService
	Dashboard DashboardService
	RateLimit RateLimitService
	Audit     AuditService
}

// NewServices wires the business layer. notifier and presence are normally the
// realtime hub; nil values disable live fan-out.
func NewServices(repos *repository.Repositories, cfg *config.Config, notifier Notifier, presence PresenceReader, log logger.Logger) *Services {
	audit := NewAuditService(repos.Audit, log)

	services := &Services{
		Auth:      NewAuthService(repos.User, audit, cfg.JWT, log),
		User:      NewUserService(repos.User, log),
		Project:   NewProjectService(repos.Project, audit, notifier, presence, log),
		Task:      NewTaskService(repos.Task, repos.Project, audit, notifier, log),
		Chat:      NewChatService(repos.Message, repos.Project, audit, cfg.Chat.MaxMessageLength, log),
		Dashboard: NewDashboardService(repos.Stats, repos.Project, log),
		RateLimit: NewRateLimitService(repos.RateLimit, log),
		Audit:     audit,
	}

	log.Info("Services initialized")
	return services
}
