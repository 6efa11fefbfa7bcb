package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"ShifaPortalwebserver/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: message}})
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		WriteError(w, http.StatusBadRequest, "validation_error", "invalid request")
	case errors.Is(err, domain.ErrEmailTaken):
		WriteError(w, http.StatusConflict, "email_taken", "an account with this email already exists")
	case errors.Is(err, domain.ErrTokenInvalid):
		WriteError(w, http.StatusBadRequest, "invalid_token", "invalid or expired token")
	case errors.Is(err, domain.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
	case errors.Is(err, domain.ErrUnauthorized):
		WriteError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		WriteError(w, http.StatusForbidden, "forbidden", "forbidden")
	case errors.Is(err, domain.ErrEmailNotVerified):
		WriteError(w, http.StatusForbidden, "email_not_verified", "verify your email before logging in")
	case errors.Is(err, domain.ErrAccountPending):
		WriteError(w, http.StatusForbidden, "account_pending", "account is awaiting admin approval")
	case errors.Is(err, domain.ErrAccountRejected):
		WriteError(w, http.StatusForbidden, "account_rejected", "account has been rejected")
	case errors.Is(err, domain.ErrDecisionMade):
		WriteError(w, http.StatusConflict, "decision_made", "account has already been decided")
	case errors.Is(err, domain.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, domain.ErrStoreUnavailable):
		WriteError(w, http.StatusServiceUnavailable, "store_unavailable", "service temporarily unavailable")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
