package httpapi

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"ShifaPortalwebserver/internal/domain"
)

type listAccountsResponse struct {
	Accounts []accountResponse `json:"accounts"`
}

func (a *api) handleAdminListAccounts(w http.ResponseWriter, r *http.Request) {
	status := domain.AccountStatus(r.URL.Query().Get("status"))
	switch status {
	case "", domain.StatusPending, domain.StatusApproved, domain.StatusRejected:
	default:
		WriteDomainError(w, domain.NewValidationError(map[string]string{"status": "must be pending, approved or rejected"}))
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	if limit < 1 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	accounts, err := a.adminSvc.ListAccounts(r.Context(), status, limit, offset)
	if err != nil {
		a.logServiceError(r, "list accounts", err)
		WriteDomainError(w, err)
		return
	}

	resp := listAccountsResponse{Accounts: make([]accountResponse, 0, len(accounts))}
	for _, acc := range accounts {
		resp.Accounts = append(resp.Accounts, toAccountResponse(acc))
	}
	WriteJSON(w, http.StatusOK, resp)
}

type decisionRequest struct {
	Decision string `json:"decision"`
}

func (a *api) handleAdminDecision(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("id")
	if _, err := uuid.Parse(accountID); err != nil {
		WriteDomainError(w, domain.ErrNotFound)
		return
	}

	var req decisionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	decision := domain.AccountStatus(req.Decision)
	if !domain.ValidDecision(decision) {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"decision": "must be approved or rejected"}))
		return
	}

	claims, ok := CurrentClaims(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	if err := a.accountSvc.DecideApproval(r.Context(), accountID, decision, claims.Role); err != nil {
		a.logServiceError(r, "decide approval", err)
		WriteDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
