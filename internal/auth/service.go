package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/bookmarket-io/bookmarket-backend/internal/users"
	pkgauth "github.com/bookmarket-io/bookmarket-backend/pkg/auth"
	"github.com/bookmarket-io/bookmarket-backend/pkg/config"
	dbpkg "github.com/bookmarket-io/bookmarket-backend/pkg/db"
	"github.com/bookmarket-io/bookmarket-backend/pkg/db/models"
	"github.com/bookmarket-io/bookmarket-backend/pkg/enums"
	pkgerrors "github.com/bookmarket-io/bookmarket-backend/pkg/errors"
)

type userStore interface {
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// Service mints access tokens for registered identities. Credentials are
// not verified here; identity is trusted once the account exists.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*Session, error)
	Login(ctx context.Context, email string) (*Session, error)
}

// RegisterInput carries the fields for a new account.
type RegisterInput struct {
	Email       string
	DisplayName string
}

// Session bundles the minted token with the account it represents.
type Session struct {
	Token string         `json:"token"`
	User  *users.UserDTO `json:"user"`
}

type service struct {
	users  userStore
	jwtCfg config.JWTConfig
	now    func() time.Time
}

// NewService builds the auth service.
func NewService(store userStore, jwtCfg config.JWTConfig) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if jwtCfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret required")
	}
	return &service{users: store, jwtCfg: jwtCfg, now: time.Now}, nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "valid email required")
	}
	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "display name required")
	}

	user, err := s.users.Create(ctx, users.CreateUserDTO{
		Email:       email,
		DisplayName: displayName,
		Role:        enums.UserRoleUser,
	})
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}
	return s.mintSession(user)
}

func (s *service) Login(ctx context.Context, email string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "unknown account")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "account disabled")
	}
	return s.mintSession(user)
}

func (s *service) mintSession(user *models.User) (*Session, error) {
	token, err := pkgauth.MintAccessToken(s.jwtCfg, s.now(), pkgauth.AccessTokenPayload{
		UserID: user.ID,
		Role:   user.Role,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}
	return &Session{Token: token, User: users.FromModel(user)}, nil
}
