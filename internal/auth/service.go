package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Service provides admin account operations
type Service struct {
	repo       Repository
	tokens     *TokenManager
	bcryptCost int
	logger     *zap.Logger
}

func NewService(repo Repository, tokens *TokenManager, bcryptCost int, logger *zap.Logger) *Service {
	if bcryptCost < bcrypt.MinCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		repo:       repo,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// Register creates an admin account
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*Admin, error) {
	email := normalizeEmail(req.Email)

	if _, err := s.repo.GetAdminByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("lookup admin: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	admin := &Admin{
		ID:           primitive.NewObjectID(),
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.CreateAdmin(ctx, admin); err != nil {
		return nil, err
	}

	s.logger.Info("Admin registered", zap.String("admin_id", admin.ID.Hex()), zap.String("email", email))
	return admin, nil
}

// Login verifies credentials and issues an access token
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	admin, err := s.repo.GetAdminByEmail(ctx, normalizeEmail(req.Email))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup admin: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, expires, err := s.tokens.Issue(admin)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateLastLogin(ctx, admin.ID, now); err != nil {
		s.logger.Warn("Failed to record last login", zap.String("admin_id", admin.ID.Hex()), zap.Error(err))
	} else {
		admin.LastLoginAt = &now
	}

	return &AuthResponse{Token: token, ExpiresAt: expires, Admin: admin}, nil
}

func (s *Service) GetAdmin(ctx context.Context, id primitive.ObjectID) (*Admin, error) {
	return s.repo.GetAdminByID(ctx, id)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
