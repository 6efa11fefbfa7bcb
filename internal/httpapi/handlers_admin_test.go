package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"ShifaPortalwebserver/internal/domain"
)

func (ts *testServer) registerPending(t *testing.T, email string) domain.Account {
	t.Helper()
	account, err := ts.svc.Register(context.Background(), "Pat", email, "pw123456", domain.RoleDoctor)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return account
}

func (ts *testServer) bearerFor(t *testing.T, accountID string, role domain.Role) map[string]string {
	t.Helper()
	token, err := ts.tokens.Sign(accountID, role)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestAdminListAccounts(t *testing.T) {
	ts := newTestServer(t)
	ts.registerPending(t, "a@x.com")
	ts.registerPending(t, "b@x.com")
	admin := ts.bearerFor(t, "00000000-0000-0000-0000-000000000001", domain.RoleAdmin)

	rec := ts.do(t, http.MethodGet, "/v1/admin/accounts", "", admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp listAccountsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Accounts) != 2 {
		t.Fatalf("accounts = %d, want 2", len(resp.Accounts))
	}
	for _, acc := range resp.Accounts {
		if acc.Status != string(domain.StatusPending) {
			t.Errorf("account %s status = %q", acc.Email, acc.Status)
		}
	}

	rec = ts.do(t, http.MethodGet, "/v1/admin/accounts?status=approved", "", admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("filtered status = %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode filtered response: %v", err)
	}
	if len(resp.Accounts) != 0 {
		t.Errorf("approved accounts = %d, want 0", len(resp.Accounts))
	}

	rec = ts.do(t, http.MethodGet, "/v1/admin/accounts?status=bogus", "", admin)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bogus status filter = %d, want 400", rec.Code)
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	ts := newTestServer(t)
	account := ts.registerPending(t, "a@x.com")

	rec := ts.do(t, http.MethodGet, "/v1/admin/accounts", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	patient := ts.bearerFor(t, account.ID, domain.RolePatient)
	rec = ts.do(t, http.MethodGet, "/v1/admin/accounts", "", patient)
	if rec.Code != http.StatusForbidden {
		t.Errorf("patient token: status = %d, want 403", rec.Code)
	}
	rec = ts.do(t, http.MethodPost, "/v1/admin/accounts/"+account.ID+"/decision", `{"decision":"approved"}`, patient)
	if rec.Code != http.StatusForbidden {
		t.Errorf("patient decision: status = %d, want 403", rec.Code)
	}
}

func TestAdminDecision(t *testing.T) {
	ts := newTestServer(t)
	account := ts.registerPending(t, "a@x.com")
	admin := ts.bearerFor(t, "00000000-0000-0000-0000-000000000001", domain.RoleAdmin)

	rec := ts.do(t, http.MethodPost, "/v1/admin/accounts/"+account.ID+"/decision", `{"decision":"approved"}`, admin)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(ts.notifier.decisions) != 1 || ts.notifier.decisions[0] != domain.StatusApproved {
		t.Errorf("decisions = %v", ts.notifier.decisions)
	}

	got, err := ts.store.GetAccountByID(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("GetAccountByID: %v", err)
	}
	if got.Status != domain.StatusApproved {
		t.Errorf("status = %q, want approved", got.Status)
	}

	// Decisions are one-shot.
	rec = ts.do(t, http.MethodPost, "/v1/admin/accounts/"+account.ID+"/decision", `{"decision":"rejected"}`, admin)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second decision status = %d, want 409", rec.Code)
	}
	if code := errorCode(t, rec); code != "decision_made" {
		t.Errorf("code = %q", code)
	}
	if got, _ := ts.store.GetAccountByID(context.Background(), account.ID); got.Status != domain.StatusApproved {
		t.Errorf("status flipped to %q", got.Status)
	}
}

func TestAdminDecisionValidation(t *testing.T) {
	ts := newTestServer(t)
	account := ts.registerPending(t, "a@x.com")
	admin := ts.bearerFor(t, "00000000-0000-0000-0000-000000000001", domain.RoleAdmin)

	rec := ts.do(t, http.MethodPost, "/v1/admin/accounts/"+account.ID+"/decision", `{"decision":"maybe"}`, admin)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad decision: status = %d, want 400", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/v1/admin/accounts/not-a-uuid/decision", `{"decision":"approved"}`, admin)
	if rec.Code != http.StatusNotFound {
		t.Errorf("malformed id: status = %d, want 404", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/v1/admin/accounts/00000000-0000-0000-0000-0000000000aa/decision", `{"decision":"approved"}`, admin)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown id: status = %d, want 404", rec.Code)
	}
}
