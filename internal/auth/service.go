// Package auth checks subscriber and admin credentials and issues access
// tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgAuth "github.com/angelmondragon/mealbox-backend/pkg/auth"
	"github.com/angelmondragon/mealbox-backend/pkg/config"
	"github.com/angelmondragon/mealbox-backend/pkg/db/models"
	"github.com/angelmondragon/mealbox-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mealbox-backend/pkg/errors"
	"github.com/angelmondragon/mealbox-backend/pkg/logger"
	"github.com/angelmondragon/mealbox-backend/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

// Service defines the behavior needed by the auth controllers.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	AdminLogin(ctx context.Context, req LoginRequest) (*LoginResponse, error)
}

type subscriberFinder interface {
	FindByEmail(ctx context.Context, email string) (*models.Subscriber, error)
}

type adminFinder interface {
	FindByEmail(ctx context.Context, email string) (*models.Admin, error)
}

type ServiceParams struct {
	Subscribers subscriberFinder
	Admins      adminFinder
	JWTConfig   config.JWTConfig
	Logger      *logger.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

type service struct {
	subscribers subscriberFinder
	admins      adminFinder
	jwtCfg      config.JWTConfig
	logg        *logger.Logger
	now         func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Subscribers == nil {
		return nil, fmt.Errorf("subscriber repository is required")
	}
	if params.Admins == nil {
		return nil, fmt.Errorf("admin repository is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		subscribers: params.Subscribers,
		admins:      params.Admins,
		jwtCfg:      params.JWTConfig,
		logg:        params.Logger,
		now:         now,
	}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	email, err := normalizedEmail(req.Email)
	if err != nil {
		return nil, err
	}
	sub, err := s.subscribers.FindByEmail(ctx, email)
	if err != nil {
		return nil, lookupError(err, "lookup subscriber")
	}
	if sub.PasswordHash == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	if err := checkPassword(req.Password, *sub.PasswordHash); err != nil {
		return nil, err
	}
	return s.issue(ctx, sub.ID, enums.RoleSubscriber)
}

func (s *service) AdminLogin(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	email, err := normalizedEmail(req.Email)
	if err != nil {
		return nil, err
	}
	admin, err := s.admins.FindByEmail(ctx, email)
	if err != nil {
		return nil, lookupError(err, "lookup admin")
	}
	if err := checkPassword(req.Password, admin.PasswordHash); err != nil {
		return nil, err
	}
	return s.issue(ctx, admin.ID, enums.RoleAdmin)
}

func (s *service) issue(ctx context.Context, id uuid.UUID, role enums.Role) (*LoginResponse, error) {
	now := s.now().UTC()
	token, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{UserID: id, Role: role})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"user_id": id.String(), "actor_role": string(role)}), "login succeeded")
	return &LoginResponse{
		AccessToken: token,
		ExpiresAt:   now.Add(s.jwtCfg.AccessTTL()),
		UserID:      id,
		Role:        role,
	}, nil
}

func normalizedEmail(email string) (string, error) {
	input := strings.ToLower(strings.TrimSpace(email))
	if input == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return input, nil
}

func lookupError(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}

func checkPassword(password, hash string) error {
	valid, err := security.VerifyPassword(password, hash)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return nil
}
