package internal

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/gamemixer/gamemixer-api/internal/auth"
	"github.com/gamemixer/gamemixer-api/internal/log"
	"github.com/gamemixer/gamemixer-api/internal/models"
	"github.com/gamemixer/gamemixer-api/internal/repos"
)

// SessionService provides functions for logging in administrators and checking their access tokens
type SessionService interface {
	// Login tries to log-in the user with the given credentials and returns a new access token if login was successful
	Login(ctx context.Context, user string, password string) (*SessionInfo, error)
	// Logout revokes the given access token
	Logout(ctx context.Context, claims *auth.Claims) error
	// Authenticate checks the given access token and returns the user it belongs to.
	// This service function will be used internally and does not have an endpoint
	Authenticate(ctx context.Context, token string) (*models.User, *auth.Claims, error)
	// CreateAdmin creates another administrator account
	CreateAdmin(ctx context.Context, req models.CreateUserRequest) (*models.User, error)
}

// -- Session service implementation -----------------------------------------------------------------------------------

// SessionInfo is returned upon login. It contains the access token and the name of the user logged in
type SessionInfo struct {
	Token string `json:"token"`
	// Lifetime of the token in seconds
	ExpiresIn int64  `json:"expiresIn"`
	UserName  string `json:"userName"`
}

type sessionService struct {
	logger  *logrus.Entry
	tokens  *auth.Tokens
	revoked repos.RevocationRepo
	users   repos.UserRepo
	now     func() time.Time
}

// NewSessionService creates a new session service instance with the provided repositories
func NewSessionService(
	tokens *auth.Tokens,
	rr repos.RevocationRepo,
	ur repos.UserRepo,
	logger *logrus.Entry,
) SessionService {
	return &sessionService{
		logger:  logger,
		tokens:  tokens,
		revoked: rr,
		users:   ur,
		now:     time.Now,
	}
}

// Login tries to log-in the user with the given credentials
func (s *sessionService) Login(ctx context.Context, user string, password string) (*SessionInfo, error) {
	user = strings.ToLower(strings.TrimSpace(user))
	u, err := s.users.GetByCredentials(ctx, user, password)
	if err == repos.ErrEntityNotExisting {
		s.logger.WithField(log.FldUser, user).Warn("Login failed")
		return nil, MakeError(http.StatusUnauthorized, ErrCodeLoginFailed, "Invalid username or password")
	}
	if err != nil {
		s.logger.WithError(err).Error("Failed to load user data for auth")
		return nil, makeRepoError("Failed to authenticate user", err)
	}
	token, claims, err := s.tokens.Issue(u)
	if err != nil {
		s.logger.WithError(err).Error("Failed to issue access token")
		return nil, MakeError(http.StatusInternalServerError, ErrCodeUnknown, "Failed to create session").WithCause(err)
	}
	s.logger.WithField(log.FldUser, u.Name).Info("User logged in")
	return &SessionInfo{
		Token:     token,
		ExpiresIn: int64(claims.ExpiresAt.Time.Sub(s.now()).Seconds()),
		UserName:  u.Name,
	}, nil
}

// Logout revokes the access token until it would have expired anyway
func (s *sessionService) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil {
		return ErrNotLoggedIn
	}
	if err := s.revoked.Revoke(claims.ID, claims.ExpiresAt.Time); err != nil {
		s.logger.WithError(err).Error("Failed to revoke access token")
		return makeRepoError("Failed to logout. Error in the data store", err)
	}
	s.logger.WithField(log.FldUser, claims.UserName).Info("User logged out")
	return nil
}

// Authenticate checks the token and loads its user
func (s *sessionService) Authenticate(ctx context.Context, token string) (*models.User, *auth.Claims, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		s.logger.WithError(err).Debug("Rejected access token")
		return nil, nil, ErrInvalidToken
	}
	if s.revoked.IsRevoked(claims.ID) {
		return nil, nil, ErrInvalidToken
	}
	u, err := s.users.GetByID(ctx, claims.Subject)
	if err == repos.ErrEntityNotExisting {
		return nil, nil, ErrForbidden
	}
	if err != nil {
		s.logger.WithError(err).Error("Failed to retrieve user data from repo")
		return nil, nil, makeRepoError("Failed to retrieve user information from storage", err)
	}
	return u, claims, nil
}

// CreateAdmin creates another administrator. The password is meant to be changed by the new user
func (s *sessionService) CreateAdmin(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	req.Name = strings.ToLower(strings.TrimSpace(req.Name))
	if err := validateRequest(&req); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	u := &models.User{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Email:     req.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := u.SetPassword(req.Password); err != nil {
		return nil, MakeError(http.StatusInternalServerError, ErrCodeUnknown, "Failed to hash password").WithCause(err)
	}
	if err := s.users.Create(ctx, u); err != nil {
		if err == repos.ErrEntityExists {
			return nil, MakeError(http.StatusConflict, ErrCodeUserExists, "A user with this name already exists")
		}
		s.logger.WithError(err).Error("Failed to create user")
		return nil, makeRepoError("Failed to create user", err)
	}
	s.logger.WithField(log.FldUser, u.Name).Info("Administrator created")
	return u, nil
}

// EnsureDefaultAdmin creates the configured default administrator unless a user with that name exists already.
// Without a configured password, nothing is created
func EnsureDefaultAdmin(ctx context.Context, users repos.UserRepo, cfg models.DefaultUserConfig, logger *logrus.Entry) error {
	name := strings.ToLower(strings.TrimSpace(cfg.Name))
	if name == "" {
		return nil
	}
	if _, err := users.GetByName(ctx, name); err == nil {
		return nil
	} else if err != repos.ErrEntityNotExisting {
		return err
	}
	if cfg.Password == "" {
		logger.WithField(log.FldUser, name).Warn(
			"No password configured for the default administrator (auth.default_user.password) - not creating it",
		)
		return nil
	}
	now := time.Now().UTC()
	u := models.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     cfg.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := u.SetPassword(cfg.Password); err != nil {
		return err
	}
	if err := users.Create(ctx, &u); err != nil {
		return err
	}
	logger.WithField(log.FldUser, u.Name).Info("Created default administrator")
	return nil
}
