package v1

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"qkart-storefront/internal/domain"
	"qkart-storefront/internal/usecase"
	"qkart-storefront/pkg/utils"
)

type AuthHandler struct {
	authUC       *usecase.AuthUsecase
	cookieSecure bool
}

func NewAuthHandler(authUC *usecase.AuthUsecase, cookieSecure bool) *AuthHandler {
	return &AuthHandler{authUC: authUC, cookieSecure: cookieSecure}
}

type sessionResponse struct {
	SessionID string          `json:"sessionId,omitempty"`
	Username  string          `json:"username"`
	Balance   decimal.Decimal `json:"balance"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in usecase.RegisterInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		writeBadBody(w)
		return
	}

	if err := h.authUC.Register(r.Context(), in); err != nil {
		writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, domain.Response{Success: true, Message: domain.MsgRegistered})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in usecase.LoginInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		writeBadBody(w)
		return
	}

	session, err := h.authUC.Login(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     domain.SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	utils.WriteJSON(w, http.StatusCreated, domain.Response{
		Success: true,
		Message: domain.MsgLoggedIn,
		Data: sessionResponse{
			SessionID: session.ID,
			Username:  session.Username,
			Balance:   session.Balance,
			ExpiresAt: session.ExpiresAt,
		},
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session, _ := domain.SessionFromContext(r.Context())
	if err := h.authUC.Logout(r.Context(), session.ID); err != nil {
		writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     domain.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	utils.WriteJSON(w, http.StatusOK, domain.Response{Success: true})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session, _ := domain.SessionFromContext(r.Context())
	utils.WriteJSON(w, http.StatusOK, domain.Response{
		Success: true,
		Data: sessionResponse{
			Username:  session.Username,
			Balance:   session.Balance,
			ExpiresAt: session.ExpiresAt,
		},
	})
}
