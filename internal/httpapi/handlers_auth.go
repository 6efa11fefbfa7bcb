package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"ShifaPortalwebserver/internal/domain"
)

type accountResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Role          string    `json:"role"`
	Status        string    `json:"status"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

func toAccountResponse(a domain.Account) accountResponse {
	return accountResponse{
		ID:            a.ID,
		Name:          a.Name,
		Email:         a.Email,
		Role:          string(a.Role),
		Status:        string(a.Status),
		EmailVerified: a.EmailVerified,
		CreatedAt:     a.CreatedAt,
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (a *api) handleAuthRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	fields := map[string]string{}
	req.Email = normalizeEmail(req.Email)
	role := domain.Role(req.Role)
	if !validName(req.Name) {
		fields["name"] = "required, at most 100 characters"
	}
	if !validEmail(req.Email) {
		fields["email"] = "must be a valid email"
	}
	if !validPassword(req.Password) {
		fields["password"] = "must be at least 8 characters"
	}
	// Admin accounts only come from bootstrap, never self-registration.
	if role != domain.RolePatient && role != domain.RoleDoctor {
		fields["role"] = "must be patient or doctor"
	}
	if len(fields) > 0 {
		WriteDomainError(w, domain.NewValidationError(fields))
		return
	}

	account, err := a.accountSvc.Register(r.Context(), req.Name, req.Email, req.Password, role)
	if err != nil {
		a.logServiceError(r, "register", err)
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]string{"id": account.ID})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token   string          `json:"token"`
	Account accountResponse `json:"account"`
}

func (a *api) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	req.Email = normalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"email": "required", "password": "required"}))
		return
	}

	now := time.Now()
	ip := clientIP(r)
	if !a.limiter.Allow("login:ip:"+ip, now) || !a.limiter.Allow("login:email:"+req.Email, now) {
		WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
		return
	}

	account, token, err := a.accountSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.logServiceError(r, "login", err)
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, loginResponse{Token: token, Account: toAccountResponse(account)})
}

func (a *api) handleAuthMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := CurrentClaims(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	account, err := a.accountSvc.GetAccount(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			WriteDomainError(w, domain.ErrUnauthorized)
			return
		}
		a.logServiceError(r, "me", err)
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, toAccountResponse(account))
}

type verifyEmailRequest struct {
	Token string `json:"token"`
}

func (a *api) handleAuthVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	token := strings.TrimSpace(req.Token)
	if token == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"token": "required"}))
		return
	}

	if err := a.accountSvc.VerifyEmail(r.Context(), token); err != nil {
		a.logServiceError(r, "verify email", err)
		WriteDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// forgotPasswordMessage is returned for every forgot-password request,
// whether or not the address exists.
const forgotPasswordMessage = "If an account exists with this email, you will receive password reset instructions."

func (a *api) handleAuthForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	email := normalizeEmail(req.Email)
	if !validEmail(email) {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"email": "must be a valid email"}))
		return
	}

	now := time.Now()
	ip := clientIP(r)
	if !a.limiter.Allow("forgot:ip:"+ip, now) || !a.limiter.Allow("forgot:email:"+email, now) {
		WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
		return
	}

	if err := a.accountSvc.RequestPasswordReset(r.Context(), email); err != nil {
		a.logServiceError(r, "forgot password", err)
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{"message": forgotPasswordMessage})
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (a *api) handleAuthResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	token := strings.TrimSpace(req.Token)
	fields := map[string]string{}
	if token == "" {
		fields["token"] = "required"
	}
	if !validPassword(req.Password) {
		fields["password"] = "must be at least 8 characters"
	}
	if len(fields) > 0 {
		WriteDomainError(w, domain.NewValidationError(fields))
		return
	}

	if err := a.accountSvc.CompletePasswordReset(r.Context(), token, req.Password); err != nil {
		a.logServiceError(r, "reset password", err)
		WriteDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if ip, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(ip)
		}
		return strings.TrimSpace(fwd)
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return host
}
