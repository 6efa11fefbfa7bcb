package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ShifaPortalwebserver/internal/auth"
	"ShifaPortalwebserver/internal/domain"
	"ShifaPortalwebserver/internal/service"
	"ShifaPortalwebserver/internal/store/memory"
)

type recordingNotifier struct {
	verifyTokens []string
	resetTokens  []string
	decisions    []domain.AccountStatus
}

func (n *recordingNotifier) SendVerification(_ context.Context, _, _, token string) error {
	n.verifyTokens = append(n.verifyTokens, token)
	return nil
}

func (n *recordingNotifier) SendPasswordReset(_ context.Context, _, _, token string) error {
	n.resetTokens = append(n.resetTokens, token)
	return nil
}

func (n *recordingNotifier) SendDecision(_ context.Context, _, _ string, decision domain.AccountStatus) error {
	n.decisions = append(n.decisions, decision)
	return nil
}

type testServer struct {
	handler  http.Handler
	store    *memory.AccountsStore
	notifier *recordingNotifier
	svc      *service.AccountService
	tokens   *auth.TokenManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := memory.NewAccountsStore()
	notifier := &recordingNotifier{}
	tokens := auth.NewTokenManager([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := &service.AccountService{
		Accounts:       store,
		Notifier:       notifier,
		Tokens:         tokens,
		Hasher:         auth.NewHasher(auth.HashParams{MemoryKB: 8 * 1024, Iterations: 1, Parallelism: 1}),
		Logger:         logger,
		VerifyTokenTTL: 24 * time.Hour,
		ResetTokenTTL:  time.Hour,
	}

	handler := NewRouter(RouterOpts{
		Logger:   logger,
		Accounts: svc,
		Admin:    &service.AdminService{Accounts: store},
		Tokens:   tokens,
	})

	return &testServer{handler: handler, store: store, notifier: notifier, svc: svc, tokens: tokens}
}

func (ts *testServer) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v (body %q)", err, rec.Body.String())
	}
	return envelope.Error.Code
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestRegisterHandler(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/auth/register",
		`{"name":"Jane","email":"jane@x.com","password":"pw123456","role":"patient"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["id"] == "" {
		t.Error("response missing id")
	}
	if len(ts.notifier.verifyTokens) != 1 {
		t.Errorf("verification emails = %d, want 1", len(ts.notifier.verifyTokens))
	}

	// Duplicate address is the one intentional enumeration exception.
	rec = ts.do(t, http.MethodPost, "/v1/auth/register",
		`{"name":"Other","email":"jane@x.com","password":"pw123456","role":"doctor"}`, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "email_taken" {
		t.Errorf("code = %q", code)
	}
}

func TestRegisterHandlerValidation(t *testing.T) {
	ts := newTestServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"bad json", `{"name":`},
		{"missing name", `{"name":"","email":"a@x.com","password":"pw123456","role":"patient"}`},
		{"bad email", `{"name":"A","email":"not-an-email","password":"pw123456","role":"patient"}`},
		{"short password", `{"name":"A","email":"a@x.com","password":"short","role":"patient"}`},
		{"admin role", `{"name":"A","email":"a@x.com","password":"pw123456","role":"admin"}`},
		{"unknown role", `{"name":"A","email":"a@x.com","password":"pw123456","role":"wizard"}`},
	}
	for _, tc := range cases {
		rec := ts.do(t, http.MethodPost, "/v1/auth/register", tc.body, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tc.name, rec.Code)
		}
	}
}

func TestVerifyEmailHandler(t *testing.T) {
	ts := newTestServer(t)

	ts.do(t, http.MethodPost, "/v1/auth/register",
		`{"name":"Jane","email":"jane@x.com","password":"pw123456","role":"patient"}`, nil)
	token := ts.notifier.verifyTokens[0]

	body, _ := json.Marshal(map[string]string{"token": token})
	rec := ts.do(t, http.MethodPost, "/v1/auth/verify-email", string(body), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	// Same token again: opaque invalid-token error.
	rec = ts.do(t, http.MethodPost, "/v1/auth/verify-email", string(body), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("second verify status = %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "invalid_token" {
		t.Errorf("code = %q", code)
	}
}

func TestForgotPasswordAntiEnumeration(t *testing.T) {
	ts := newTestServer(t)

	ts.do(t, http.MethodPost, "/v1/auth/register",
		`{"name":"Jane","email":"jane@x.com","password":"pw123456","role":"patient"}`, nil)

	known := ts.do(t, http.MethodPost, "/v1/auth/forgot-password", `{"email":"jane@x.com"}`, nil)
	unknown := ts.do(t, http.MethodPost, "/v1/auth/forgot-password", `{"email":"ghost@x.com"}`, nil)

	if known.Code != http.StatusAccepted || unknown.Code != http.StatusAccepted {
		t.Fatalf("status = %d / %d, want 202 both", known.Code, unknown.Code)
	}
	if known.Body.String() != unknown.Body.String() {
		t.Errorf("responses differ:\n  known:   %q\n  unknown: %q", known.Body.String(), unknown.Body.String())
	}
	if len(ts.notifier.resetTokens) != 1 {
		t.Errorf("reset emails = %d, want 1", len(ts.notifier.resetTokens))
	}
}

func TestResetPasswordHandler(t *testing.T) {
	ts := newTestServer(t)

	ts.do(t, http.MethodPost, "/v1/auth/register",
		`{"name":"Jane","email":"jane@x.com","password":"pw123456","role":"patient"}`, nil)
	ts.do(t, http.MethodPost, "/v1/auth/forgot-password", `{"email":"jane@x.com"}`, nil)
	token := ts.notifier.resetTokens[0]

	body, _ := json.Marshal(map[string]string{"token": token, "password": "newpw12345"})
	rec := ts.do(t, http.MethodPost, "/v1/auth/reset-password", string(body), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodPost, "/v1/auth/reset-password", string(body), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("reused token status = %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "invalid_token" {
		t.Errorf("code = %q", code)
	}
}

func registerApprovedAccount(t *testing.T, ts *testServer, email string) domain.Account {
	t.Helper()
	ctx := context.Background()

	account, err := ts.svc.Register(ctx, "Jane", email, "pw123456", domain.RolePatient)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	token := ts.notifier.verifyTokens[len(ts.notifier.verifyTokens)-1]
	if err := ts.svc.VerifyEmail(ctx, token); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	if err := ts.svc.DecideApproval(ctx, account.ID, domain.StatusApproved, domain.RoleAdmin); err != nil {
		t.Fatalf("DecideApproval: %v", err)
	}
	return account
}

func TestLoginAndMe(t *testing.T) {
	ts := newTestServer(t)
	account := registerApprovedAccount(t, ts, "jane@x.com")

	rec := ts.do(t, http.MethodPost, "/v1/auth/login", `{"email":"jane@x.com","password":"pw123456"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token   string          `json:"token"`
		Account accountResponse `json:"account"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("login returned empty token")
	}
	if resp.Account.ID != account.ID {
		t.Errorf("account id = %q, want %q", resp.Account.ID, account.ID)
	}

	rec = ts.do(t, http.MethodGet, "/v1/auth/me", "", map[string]string{"Authorization": "Bearer " + resp.Token})
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d, body %s", rec.Code, rec.Body.String())
	}
	var me accountResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode me response: %v", err)
	}
	if me.Email != "jane@x.com" || !me.EmailVerified {
		t.Errorf("me = %+v", me)
	}
}

func TestMeRequiresBearer(t *testing.T) {
	ts := newTestServer(t)

	for _, header := range []string{"", "Bearer ", "Basic abc", "Bearer not-a-jwt"} {
		headers := map[string]string{}
		if header != "" {
			headers["Authorization"] = header
		}
		rec := ts.do(t, http.MethodGet, "/v1/auth/me", "", headers)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, rec.Code)
		}
	}
}

func TestLoginPendingAccount(t *testing.T) {
	ts := newTestServer(t)

	ts.do(t, http.MethodPost, "/v1/auth/register",
		`{"name":"Jane","email":"jane@x.com","password":"pw123456","role":"patient"}`, nil)
	body, _ := json.Marshal(map[string]string{"token": ts.notifier.verifyTokens[0]})
	ts.do(t, http.MethodPost, "/v1/auth/verify-email", string(body), nil)

	rec := ts.do(t, http.MethodPost, "/v1/auth/login", `{"email":"jane@x.com","password":"pw123456"}`, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if code := errorCode(t, rec); code != "account_pending" {
		t.Errorf("code = %q", code)
	}
}

func TestLoginRateLimited(t *testing.T) {
	ts := newTestServer(t)

	var last *httptest.ResponseRecorder
	for i := 0; i < 12; i++ {
		last = ts.do(t, http.MethodPost, "/v1/auth/login", `{"email":"jane@x.com","password":"wrong"}`, nil)
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", last.Code)
	}
}

var errStoreDown = errors.New("connection refused")

type downStore struct{}

func (downStore) CreateAccount(context.Context, domain.NewAccount) (domain.Account, error) {
	return domain.Account{}, wrapUnavailable()
}
func (downStore) GetAccountByID(context.Context, string) (domain.Account, error) {
	return domain.Account{}, wrapUnavailable()
}
func (downStore) GetAccountByEmail(context.Context, string) (domain.AccountWithPassword, error) {
	return domain.AccountWithPassword{}, wrapUnavailable()
}
func (downStore) ConsumeVerificationToken(context.Context, string, time.Time) (domain.Account, error) {
	return domain.Account{}, wrapUnavailable()
}
func (downStore) SetResetToken(context.Context, string, string, time.Time) error {
	return wrapUnavailable()
}
func (downStore) ConsumeResetToken(context.Context, string, string, time.Time) (domain.Account, error) {
	return domain.Account{}, wrapUnavailable()
}
func (downStore) DecideAccount(context.Context, string, domain.AccountStatus) (domain.Account, error) {
	return domain.Account{}, wrapUnavailable()
}

func wrapUnavailable() error {
	return errors.Join(domain.ErrStoreUnavailable, errStoreDown)
}

func TestStoreUnavailableMapsTo503(t *testing.T) {
	ts := newTestServer(t)
	ts.svc.Accounts = downStore{}

	rec := ts.do(t, http.MethodPost, "/v1/auth/register",
		`{"name":"Jane","email":"jane@x.com","password":"pw123456","role":"patient"}`, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if code := errorCode(t, rec); code != "store_unavailable" {
		t.Errorf("code = %q", code)
	}
	if strings.Contains(rec.Body.String(), "connection refused") {
		t.Error("response leaks store detail")
	}
}
