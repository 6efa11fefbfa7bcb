package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"ShifaPortalwebserver/internal/domain"
	"ShifaPortalwebserver/internal/email"
)

// MailService renders the lifecycle emails and hands them to the SMTP relay.
// It implements Notifier.
type MailService struct {
	Relay     email.Settings
	FromEmail string
	FromName  string
	PublicURL *url.URL
}

func (s *MailService) SendVerification(_ context.Context, toEmail, name, token string) error {
	subject := "Welcome to Shifa Portal - Verify Your Email"
	body := strings.Join([]string{
		fmt.Sprintf("Hello %s,", name),
		"",
		"Welcome to Shifa Portal! Please verify your email by clicking the link below:",
		"",
		s.link("/verify-email", token),
		"",
		"The link is valid for a limited time. If you did not create an account, you can ignore this email.",
	}, "\n")
	return s.send(toEmail, subject, body)
}

func (s *MailService) SendPasswordReset(_ context.Context, toEmail, name, token string) error {
	subject := "Reset your Shifa Portal password"
	body := strings.Join([]string{
		fmt.Sprintf("Hello %s,", name),
		"",
		"You requested a password reset. Reset your password using this link:",
		"",
		s.link("/reset-password", token),
		"",
		"The link expires shortly. If you did not request this, you can ignore this email.",
	}, "\n")
	return s.send(toEmail, subject, body)
}

func (s *MailService) SendDecision(_ context.Context, toEmail, name string, decision domain.AccountStatus) error {
	subject := "Your account has been " + string(decision)
	var line string
	if decision == domain.StatusApproved {
		line = "Your account has been approved. You can now log in to your account."
	} else {
		line = "Your account has been rejected. Please contact support for more information."
	}
	body := strings.Join([]string{
		fmt.Sprintf("Hello %s,", name),
		"",
		line,
	}, "\n")
	return s.send(toEmail, subject, body)
}

func (s *MailService) send(toEmail, subject, body string) error {
	if s.Relay.Host == "" || s.FromEmail == "" {
		return fmt.Errorf("smtp relay not configured")
	}
	return email.Send(s.Relay, email.Message{
		FromName:  s.FromName,
		FromEmail: s.FromEmail,
		ToEmail:   toEmail,
		Subject:   subject,
		TextBody:  body,
	})
}

func (s *MailService) link(path, token string) string {
	if s.PublicURL != nil {
		u := *s.PublicURL
		u.Path = path
		u.RawQuery = "token=" + url.QueryEscape(token)
		return u.String()
	}
	return fmt.Sprintf("http://localhost:8080%s?token=%s", path, url.QueryEscape(token))
}
