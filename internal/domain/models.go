package domain

import "time"

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

func ValidRole(r Role) bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

type AccountStatus string

const (
	StatusPending  AccountStatus = "pending"
	StatusApproved AccountStatus = "approved"
	StatusRejected AccountStatus = "rejected"
)

func ValidDecision(s AccountStatus) bool {
	return s == StatusApproved || s == StatusRejected
}

type Account struct {
	ID            string
	Name          string
	Email         string
	Role          Role
	Status        AccountStatus
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type AccountWithPassword struct {
	Account
	PasswordHash string
}

// NewAccount carries everything the store needs to create one row: the
// account fields plus the verification token digest issued at registration.
// Raw tokens never reach the store.
type NewAccount struct {
	Name                  string
	Email                 string
	PasswordHash          string
	Role                  Role
	VerificationTokenHash string
	VerificationExpiresAt time.Time
}
