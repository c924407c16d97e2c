package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"project_portal/internal/config"
	"project_portal/internal/domain"
	"project_portal/internal/repository"
	apperrors "project_portal/pkg/errors"
	"project_portal/pkg/jwt"
	"project_portal/pkg/logger"
)

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*AuthResponse, error)
	Login(ctx context.Context, email, password string) (*AuthResponse, error)
	ValidateToken(ctx context.Context, tokenString string) (*domain.User, error)
	// Verify resolves a bearer credential to the identity bound to a socket session.
	Verify(ctx context.Context, credential string) (domain.Identity, error)
}

type RegisterInput struct {
	Name     string  `json:"name" binding:"required"`
	Email    string  `json:"email" binding:"required"`
	Password string  `json:"password" binding:"required"`
	Role     string  `json:"role"`
	Avatar   *string `json:"avatarUrl"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

type authService struct {
	userRepo repository.UserRepository
	audit    AuditService
	jwtCfg   config.JWTConfig
	log      logger.Logger
}

func NewAuthService(userRepo repository.UserRepository, audit AuditService, jwtCfg config.JWTConfig, log logger.Logger) AuthService {
	return &authService{
		userRepo: userRepo,
		audit:    audit,
		jwtCfg:   jwtCfg,
		log:      log,
	}
}

func (s *authService) Register(ctx context.Context, input RegisterInput) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	name := strings.TrimSpace(input.Name)
	role := strings.TrimSpace(input.Role)
	if role == "" {
		role = domain.RoleEmployee
	}

	switch {
	case name == "":
		return nil, fmt.Errorf("%w: name is required", apperrors.ErrValidation)
	case len(name) > 120:
		return nil, fmt.Errorf("%w: name is too long (max 120 characters)", apperrors.ErrValidation)
	case email == "" || len(email) > 255:
		return nil, fmt.Errorf("%w: a valid email is required", apperrors.ErrValidation)
	case len(input.Password) < 6:
		return nil, fmt.Errorf("%w: password must be at least 6 characters", apperrors.ErrValidation)
	case !domain.ValidRole(role):
		return nil, fmt.Errorf("%w: role must be admin or employee", apperrors.ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email format", apperrors.ErrValidation)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		s.log.Error("Failed to hash password", "error", err)
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(passwordHash),
		Role:         role,
		AvatarURL:    input.Avatar,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, &user.ID, user.Role, nil, domain.EventTypeUserRegistered, map[string]interface{}{
		"email": user.Email,
	})
	s.log.Info("User registered", "user_id", user.ID, "role", user.Role)

	return s.issue(user)
}

func (s *authService) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", apperrors.ErrValidation)
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.ErrInvalidCredentials
	}

	return s.issue(user)
}

func (s *authService) issue(user *domain.User) (*AuthResponse, error) {
	token, err := jwt.GenerateAccessToken(user.ID, user.Email, user.Role, s.jwtCfg.Secret, s.jwtCfg.Issuer, s.jwtCfg.TTL)
	if err != nil {
		s.log.Error("Failed to generate access token", "error", err)
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	user.PasswordHash = ""
	return &AuthResponse{Token: token, User: user}, nil
}

func (s *authService) ValidateToken(ctx context.Context, tokenString string) (*domain.User, error) {
	claims, err := jwt.ValidateToken(tokenString, s.jwtCfg.Secret)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: user no longer exists", apperrors.ErrUnauthorized)
		}
		return nil, err
	}

	user.PasswordHash = ""
	return user, nil
}

func (s *authService) Verify(ctx context.Context, credential string) (domain.Identity, error) {
	credential = strings.TrimSpace(strings.TrimPrefix(credential, "Bearer "))
	user, err := s.ValidateToken(ctx, credential)
	if err != nil {
		return domain.Identity{}, err
	}
	return user.Identity(), nil
}
