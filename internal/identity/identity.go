// Package identity authenticates users and registers new accounts.
package identity

import (
	"fmt"
	"strings"
	"time"

	"openjournal/internal/util"
	"openjournal/pkg/auth"
	"openjournal/pkg/domain"
	"openjournal/pkg/store"
)

// Service exposes account registration and authentication over the store.
type Service struct {
	store store.Store
}

// New constructs the identity service.
func New(st store.Store) *Service {
	return &Service{store: st}
}

// Registration carries the fields collected at sign-up.
type Registration struct {
	Email           string
	Password        string
	ConfirmPassword string
	FirstName       string
	LastName        string
	Affiliation     string
	Country         string
}

// Register creates a new author account. Email matching is case-sensitive
// against the stored value.
func (s *Service) Register(reg Registration) (domain.User, error) {
	email := strings.TrimSpace(reg.Email)
	firstName := strings.TrimSpace(reg.FirstName)
	lastName := strings.TrimSpace(reg.LastName)
	if email == "" || firstName == "" || lastName == "" {
		return domain.User{}, ErrMissingFields
	}
	if reg.Password != reg.ConfirmPassword {
		return domain.User{}, ErrPasswordMismatch
	}
	if err := auth.ValidatePassword(reg.Password); err != nil {
		return domain.User{}, err
	}
	exists, err := s.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, ErrEmailAlreadyExists
	}
	passwordHash, err := auth.HashPassword(reg.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:            util.NewID(),
		Email:         email,
		PasswordHash:  passwordHash,
		FirstName:     firstName,
		LastName:      lastName,
		Role:          domain.RoleAuthor,
		Status:        domain.StatusActive,
		Affiliation:   strings.TrimSpace(reg.Affiliation),
		Country:       strings.TrimSpace(reg.Country),
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateUser(user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

// Authenticate validates credentials. Credentials are checked before the
// account status, so an inactive account with a wrong password still reports
// invalid credentials.
func (s *Service) Authenticate(email, password string) (domain.User, error) {
	user, ok, err := s.store.GetUserByEmail(strings.TrimSpace(email))
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrInvalidCredentials
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, ErrInvalidCredentials
	}
	if user.Status != domain.StatusActive {
		return domain.User{}, ErrInactiveAccount
	}
	return user, nil
}

// UserByID resolves a user record, typically from a session token subject.
// Inactive accounts do not resolve.
func (s *Service) UserByID(id string) (domain.User, bool) {
	user, ok, err := s.store.GetUserByID(id)
	if err != nil || !ok {
		return domain.User{}, false
	}
	if user.Status != domain.StatusActive {
		return domain.User{}, false
	}
	return user, true
}
