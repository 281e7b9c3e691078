package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"qkart-storefront/internal/domain"
	"qkart-storefront/pkg/logger"
	"qkart-storefront/pkg/utils"
)

type RegisterInput struct {
	Username        string `json:"username" validate:"required,min=6"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"eqfield=Password"`
}

type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// validationMessages maps "Field.tag" to the text shown to the user.
var validationMessages = map[string]string{
	"Username.required":       domain.MsgUsernameRequired,
	"Username.min":            domain.MsgUsernameTooShort,
	"Password.required":       domain.MsgPasswordRequired,
	"Password.min":            domain.MsgPasswordTooShort,
	"ConfirmPassword.eqfield": domain.MsgPasswordsMismatch,
}

// LogoutHook drops per-session state held elsewhere when a session ends.
type LogoutHook func(ctx context.Context, sessionID string)

type AuthUsecase struct {
	authRepo   domain.AuthRepository
	sessions   domain.SessionRepository
	validate   *validator.Validate
	sessionTTL time.Duration
	now        func() time.Time

	mu    sync.RWMutex
	hooks []LogoutHook
}

func NewAuthUsecase(authRepo domain.AuthRepository, sessions domain.SessionRepository, sessionTTL time.Duration) *AuthUsecase {
	return &AuthUsecase{
		authRepo:   authRepo,
		sessions:   sessions,
		validate:   validator.New(),
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

// OnLogout registers a hook run whenever a session is logged out or found expired.
func (u *AuthUsecase) OnLogout(hook LogoutHook) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.hooks = append(u.hooks, hook)
}

func (u *AuthUsecase) Register(ctx context.Context, in RegisterInput) error {
	if err := u.check(in); err != nil {
		return err
	}
	if err := u.authRepo.Register(ctx, domain.Credentials{Username: in.Username, Password: in.Password}); err != nil {
		return err
	}
	logger.WithContext(ctx).Info().Str("username", in.Username).Msg("User registered")
	return nil
}

// Login authenticates against the backend and opens a storefront session holding its token.
func (u *AuthUsecase) Login(ctx context.Context, in LoginInput) (*domain.Session, error) {
	if err := u.check(in); err != nil {
		return nil, err
	}

	res, err := u.authRepo.Login(ctx, domain.Credentials{Username: in.Username, Password: in.Password})
	if err != nil {
		return nil, err
	}

	now := u.now()
	expiresAt := now.Add(u.sessionTTL)
	if exp, ok := utils.TokenExpiry(res.Token); ok {
		expiresAt = exp
	}

	session := &domain.Session{
		ID:        utils.NewSessionID(),
		Token:     res.Token,
		Username:  res.Username,
		Balance:   res.Balance,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}
	if err := u.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	logger.WithContext(ctx).Info().
		Str("session_id", session.ID).
		Str("username", session.Username).
		Time("expires_at", session.ExpiresAt).
		Msg("Session opened")
	return session, nil
}

func (u *AuthUsecase) Logout(ctx context.Context, sessionID string) error {
	if err := u.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	u.runHooks(ctx, sessionID)
	logger.WithContext(ctx).Info().Str("session_id", sessionID).Msg("Session closed")
	return nil
}

// Authenticate resolves a session id. Unknown and expired sessions are ErrUnauthorized.
func (u *AuthUsecase) Authenticate(ctx context.Context, sessionID string) (*domain.Session, error) {
	if sessionID == "" {
		return nil, domain.NewError(domain.ErrUnauthorized, domain.MsgSessionExpired)
	}

	session, err := u.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, domain.NewError(domain.ErrUnauthorized, domain.MsgSessionExpired)
	}

	if session.Expired(u.now()) {
		if err := u.Logout(ctx, sessionID); err != nil {
			logger.WithContext(ctx).Warn().Err(err).Str("session_id", sessionID).Msg("Failed to drop expired session")
		}
		return nil, domain.NewError(domain.ErrUnauthorized, domain.MsgSessionExpired)
	}
	return session, nil
}

func (u *AuthUsecase) runHooks(ctx context.Context, sessionID string) {
	u.mu.RLock()
	hooks := append([]LogoutHook(nil), u.hooks...)
	u.mu.RUnlock()

	for _, hook := range hooks {
		hook(ctx, sessionID)
	}
}

// check validates in and converts the first failure into a user-facing ErrValidation.
func (u *AuthUsecase) check(in interface{}) error {
	err := u.validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		first := fieldErrs[0]
		if msg, ok := validationMessages[first.Field()+"."+first.Tag()]; ok {
			return domain.WrapError(domain.ErrValidation, msg, err)
		}
		return domain.WrapError(domain.ErrValidation, first.Error(), err)
	}
	return domain.WrapError(domain.ErrValidation, err.Error(), err)
}
