package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"ShifaPortalwebserver/internal/auth"
	"ShifaPortalwebserver/internal/config"
	"ShifaPortalwebserver/internal/domain"
	"ShifaPortalwebserver/internal/email"
	"ShifaPortalwebserver/internal/httpapi"
	"ShifaPortalwebserver/internal/service"
	"ShifaPortalwebserver/internal/store/memory"
	"ShifaPortalwebserver/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)

	var (
		accounts service.AccountsStore
		admin    service.AdminAccountsStore
		dbPing   func(context.Context) error
	)

	if cfg.DBDSN != "" {
		pgPool, err := postgres.Open(context.Background(), cfg.DBDSN)
		if err != nil {
			logger.Error("db open failed", "err", err)
			os.Exit(1)
		}
		defer pgPool.Close()

		store := postgres.NewAccountsStore(pgPool)
		accounts = store
		admin = store
		dbPing = pgPool.Ping
	} else {
		logger.Warn("APP_DB_DSN not set, using in-memory store; all accounts are lost on restart")
		store := memory.NewAccountsStore()
		accounts = store
		admin = store
	}

	hasher := auth.NewHasher(auth.HashParams{
		MemoryKB:   cfg.HashMemoryKB,
		Iterations: cfg.HashIterations,
	})
	tokens := auth.NewTokenManager([]byte(cfg.JWTSecret), cfg.JWTTTL)

	var notifier service.Notifier
	if cfg.SMTPConfigured() {
		notifier = &service.MailService{
			Relay: email.Settings{
				Host:     cfg.SMTP.Host,
				Port:     cfg.SMTP.Port,
				Username: cfg.SMTP.Username,
				Password: cfg.SMTP.Password,
				TLSMode:  cfg.SMTP.TLSMode,
			},
			FromEmail: cfg.SMTP.FromEmail,
			FromName:  cfg.SMTP.FromName,
			PublicURL: cfg.PublicURL,
		}
	} else {
		logger.Warn("smtp not configured, lifecycle emails will be dropped")
	}

	if err := bootstrapAdmin(context.Background(), logger, accounts, hasher, cfg); err != nil {
		logger.Error("bootstrap admin failed", "err", err)
		os.Exit(1)
	}

	accountSvc := &service.AccountService{
		Accounts:       accounts,
		Notifier:       notifier,
		Tokens:         tokens,
		Hasher:         hasher,
		Logger:         logger,
		VerifyTokenTTL: cfg.VerifyTokenTTL,
		ResetTokenTTL:  cfg.ResetTokenTTL,
	}
	adminSvc := &service.AdminService{Accounts: admin}

	router := httpapi.NewRouter(httpapi.RouterOpts{
		Logger:   logger,
		IsProd:   cfg.IsProd(),
		DBPing:   dbPing,
		Accounts: accountSvc,
		Admin:    adminSvc,
		Tokens:   tokens,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "env", cfg.Env, "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}
}

// bootstrapAdmin creates the first admin account from the environment. The
// account is created verified and approved so it can log in immediately;
// there is no other path to an admin role.
func bootstrapAdmin(ctx context.Context, logger *slog.Logger, accounts service.AccountsStore, hasher auth.Hasher, cfg config.Config) error {
	if cfg.AdminBootstrapPassword == "" {
		return nil
	}
	if len(cfg.AdminBootstrapPassword) < 12 {
		return errors.New("APP_ADMIN_BOOTSTRAP_PASSWORD: must be at least 12 characters")
	}

	_, err := accounts.GetAccountByEmail(ctx, cfg.AdminBootstrapEmail)
	if err == nil {
		logger.Info("admin bootstrap: account already exists", "email", cfg.AdminBootstrapEmail)
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("admin bootstrap: lookup account: %w", err)
	}

	hash, err := hasher.Hash(cfg.AdminBootstrapPassword)
	if err != nil {
		return fmt.Errorf("admin bootstrap: hash password: %w", err)
	}

	now := time.Now().UTC()
	token, err := auth.IssueToken(now, time.Minute)
	if err != nil {
		return fmt.Errorf("admin bootstrap: issue token: %w", err)
	}

	account, err := accounts.CreateAccount(ctx, domain.NewAccount{
		Name:                  cfg.AdminBootstrapName,
		Email:                 cfg.AdminBootstrapEmail,
		PasswordHash:          hash,
		Role:                  domain.RoleAdmin,
		VerificationTokenHash: token.Hash,
		VerificationExpiresAt: token.ExpiresAt,
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			logger.Info("admin bootstrap: account already exists", "email", cfg.AdminBootstrapEmail)
			return nil
		}
		return fmt.Errorf("admin bootstrap: create account: %w", err)
	}
	if _, err := accounts.ConsumeVerificationToken(ctx, token.Hash, now); err != nil {
		return fmt.Errorf("admin bootstrap: mark verified: %w", err)
	}
	if _, err := accounts.DecideAccount(ctx, account.ID, domain.StatusApproved); err != nil {
		return fmt.Errorf("admin bootstrap: approve account: %w", err)
	}

	logger.Info("admin bootstrap: created admin account", "email", cfg.AdminBootstrapEmail)
	return nil
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
