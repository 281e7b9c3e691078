package rest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"qkart-storefront/internal/domain"
	"qkart-storefront/internal/infrastructure/backend"
)

type loginResponse struct {
	Success  bool            `json:"success"`
	Token    string          `json:"token"`
	Username string          `json:"username"`
	Balance  decimal.Decimal `json:"balance"`
}

// Auth failures are shown to the user exactly as the backend words them.
var authErrorKinds = map[int]error{
	http.StatusBadRequest:   domain.ErrAuth,
	http.StatusUnauthorized: domain.ErrAuth,
}

type authRepository struct {
	client *backend.Client
}

func NewAuthRepository(client *backend.Client) domain.AuthRepository {
	return &authRepository{client: client}
}

func (r *authRepository) Login(ctx context.Context, creds domain.Credentials) (*domain.LoginResult, error) {
	var resp loginResponse
	err := r.client.Do(ctx, backend.Request{
		Method: http.MethodPost,
		Path:   "auth/login",
		Body:   creds,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("login %s: %w", creds.Username, mapError(err, authErrorKinds))
	}
	if resp.Token == "" {
		return nil, domain.WrapError(domain.ErrNetwork, domain.MsgBackendUnreachable, fmt.Errorf("login %s: response carries no token", creds.Username))
	}

	username := resp.Username
	if username == "" {
		username = creds.Username
	}
	return &domain.LoginResult{Token: resp.Token, Username: username, Balance: resp.Balance}, nil
}

func (r *authRepository) Register(ctx context.Context, creds domain.Credentials) error {
	err := r.client.Do(ctx, backend.Request{
		Method: http.MethodPost,
		Path:   "auth/register",
		Body:   creds,
	}, nil)
	if err != nil {
		return fmt.Errorf("register %s: %w", creds.Username, mapError(err, authErrorKinds))
	}
	return nil
}
