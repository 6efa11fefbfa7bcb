package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"ShifaPortalwebserver/internal/auth"
	"ShifaPortalwebserver/internal/domain"
	"ShifaPortalwebserver/internal/service"
)

type RouterOpts struct {
	Logger *slog.Logger
	IsProd bool

	DBPing func(context.Context) error

	Accounts *service.AccountService
	Admin    *service.AdminService
	Tokens   *auth.TokenManager
}

func NewRouter(opts RouterOpts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	api := &api{
		logger:     logger,
		isProd:     opts.IsProd,
		dbPing:     opts.DBPing,
		accountSvc: opts.Accounts,
		adminSvc:   opts.Admin,
		tokens:     opts.Tokens,
		limiter:    newRateLimiter(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", api.handleHealthz)

	if api.accountSvc == nil || api.tokens == nil {
		mux.HandleFunc("/v1/", handleNotConfigured)
	} else {
		mux.HandleFunc("POST /v1/auth/register", api.handleAuthRegister)
		mux.HandleFunc("POST /v1/auth/login", api.handleAuthLogin)
		mux.HandleFunc("GET /v1/auth/me", api.requireAuth(api.handleAuthMe))
		mux.HandleFunc("POST /v1/auth/verify-email", api.handleAuthVerifyEmail)
		mux.HandleFunc("POST /v1/auth/forgot-password", api.handleAuthForgotPassword)
		mux.HandleFunc("POST /v1/auth/reset-password", api.handleAuthResetPassword)

		if api.adminSvc != nil {
			mux.HandleFunc("GET /v1/admin/accounts", api.requireAdmin(api.handleAdminListAccounts))
		}
		mux.HandleFunc("POST /v1/admin/accounts/{id}/decision", api.requireAdmin(api.handleAdminDecision))
	}

	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, pattern := mux.Handler(r)
		if pattern == "" {
			WriteError(w, http.StatusNotFound, "not_found", "not found")
			return
		}
		h.ServeHTTP(w, r)
	})

	var h http.Handler = root
	h = RequestLogger(logger)(h)
	h = RequestID()(h)
	h = Recoverer(logger, opts.IsProd)(h)
	return h
}

type api struct {
	logger *slog.Logger
	isProd bool

	dbPing func(context.Context) error

	accountSvc *service.AccountService
	adminSvc   *service.AdminService
	tokens     *auth.TokenManager

	limiter *rateLimiter
}

func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if a.dbPing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()
		if err := a.dbPing(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db down"))
			return
		}
	}

	_, _ = w.Write([]byte("ok"))
}

func handleNotConfigured(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusServiceUnavailable, "not_configured", "service not configured")
}

// logServiceError keeps driver/provider detail in server logs; callers only
// ever see the mapped envelope.
func (a *api) logServiceError(r *http.Request, op string, err error) {
	for _, expected := range []error{
		domain.ErrValidation, domain.ErrEmailTaken, domain.ErrTokenInvalid,
		domain.ErrInvalidCredentials, domain.ErrUnauthorized, domain.ErrForbidden,
		domain.ErrEmailNotVerified, domain.ErrAccountPending, domain.ErrAccountRejected,
		domain.ErrDecisionMade, domain.ErrNotFound,
	} {
		if errors.Is(err, expected) {
			return
		}
	}
	fields := []any{"op", op, "err", err}
	if rid, ok := GetRequestID(r.Context()); ok {
		fields = append(fields, "request_id", rid)
	}
	a.logger.Error("request failed", fields...)
}
