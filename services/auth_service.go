// Package services holds the use-case layer between transport and
// repositories.
package services

import (
	"fmt"

	"chatline/domain"
	"chatline/errors"
	"chatline/repositories"

	"github.com/go-playground/validator/v10"
)

type IAuthService interface {
	Register(username, password, email string) (domain.User, error)
	Login(username, password string) (domain.User, error)
}

type AuthService struct {
	users    repositories.IUserRepository
	validate *validator.Validate
}

type registerRequest struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
	Email    string `validate:"required,email"`
}

func NewAuthService(users repositories.IUserRepository) IAuthService {
	return &AuthService{
		users:    users,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *AuthService) Register(username, password, email string) (domain.User, error) {
	request := registerRequest{
		Username: username,
		Password: password,
		Email:    email,
	}
	if err := s.validate.Struct(request); err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", errors.ErrInvalidEnvelope, err)
	}

	// Propagates ErrUsernameTaken when the username index already holds
	// an entry.
	return s.users.CreateUser(username, password, email)
}

// Login checks the stored credential and returns the matching user.
// Unknown usernames and wrong passwords collapse into the same error so
// callers cannot enumerate accounts.
func (s *AuthService) Login(username, password string) (domain.User, error) {
	user, err := s.users.GetUserByUsername(username)
	if err != nil {
		return domain.User{}, errors.ErrInvalidCredentials
	}
	if user.Password != password {
		return domain.User{}, errors.ErrInvalidCredentials
	}
	return user, nil
}
