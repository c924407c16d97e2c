package service

import (
	"context"
	"fmt"

	"project_portal/internal/domain"
	"project_portal/internal/repository"
	"project_portal/pkg/logger"
)

type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
}

type RateLimitService interface {
	// Allow counts one request for key under policy.
	Allow(ctx context.Context, policy domain.RateLimitPolicy, key string) (*RateLimitDecision, error)
}

type rateLimitService struct {
	rateLimitRepo repository.RateLimitRepository
	log           logger.Logger
}

func NewRateLimitService(rateLimitRepo repository.RateLimitRepository, log logger.Logger) RateLimitService {
	return &rateLimitService{
		rateLimitRepo: rateLimitRepo,
		log:           log,
	}
}

func (s *rateLimitService) Allow(ctx context.Context, policy domain.RateLimitPolicy, key string) (*RateLimitDecision, error) {
	count, err := s.rateLimitRepo.Increment(ctx, fmt.Sprintf("ratelimit:%s:%s", policy.Scope, key), policy.Window)
	if err != nil {
		return nil, err
	}

	remaining := policy.Requests - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return &RateLimitDecision{
		Allowed:   int(count) <= policy.Requests,
		Limit:     policy.Requests,
		Remaining: remaining,
	}, nil
}
