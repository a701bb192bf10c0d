// Package service implements the application's domain logic on top of the
// persistence facade. Services are backend-agnostic: they receive a
// repository.Store and never know whether documents or flat files sit
// behind it.
package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"bhabo/internal/models"
	"bhabo/internal/observability"
	"bhabo/internal/repository"
	"bhabo/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// One-time code parameters. Verification codes are short-lived on purpose:
// an expired code is regenerated and re-mailed rather than rejected outright.
const (
	verificationCodeLength = 6
	resetCodeLength        = 8
	verificationCodeTTL    = time.Minute
	resetCodeTTL           = 2 * time.Minute
)

// Mailer delivers one-time codes. The SMTP implementation lives in
// internal/email; tests substitute a recorder.
type Mailer interface {
	SendCode(ctx context.Context, to, subject, intro, code string) error
}

// AuthService handles signup, login, verification and password recovery.
type AuthService struct {
	store  *repository.Store
	mailer Mailer
}

// NewAuthService creates an AuthService.
func NewAuthService(store *repository.Store, mailer Mailer) *AuthService {
	return &AuthService{store: store, mailer: mailer}
}

// SignupInput carries the validated signup form.
type SignupInput struct {
	Username    string
	FirstName   string
	LastName    string
	DisplayName string
	Email       string
	Password    string
	Gender      models.Gender
	Birthday    time.Time
}

// generateCode returns a random numeric code of the given length.
func generateCode(length int) (string, error) {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("generating code: %w", err)
		}
		fmt.Fprintf(&b, "%d", n.Int64())
	}
	return b.String(), nil
}

// mailCode sends a one-time code. Delivery failure aborts the enclosing
// flow; the stored code stays valid for a later resend.
func (s *AuthService) mailCode(ctx context.Context, to, subject, intro, code string) error {
	if err := s.mailer.SendCode(ctx, to, subject, intro, code); err != nil {
		observability.GlobalLogger.Error("sending code email", "to", to, "error", err.Error())
		return models.NewInternalError(err)
	}
	return nil
}

// Signup validates the form, creates an unverified account and mails the
// verification code.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateBirthday(in.Birthday, time.Now()); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if !in.Gender.Valid() {
		return nil, models.NewValidationError("gender must be Male, Female or Other")
	}
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return nil, models.NewValidationError("first and last name are required")
	}

	if existing, err := s.store.Users.GetByHandle(ctx, in.Username); err != nil {
		return nil, models.NewInternalError(err)
	} else if existing != nil {
		return nil, models.NewValidationError("username already taken")
	}
	if existing, err := s.store.Users.FindByIdentifier(ctx, in.Email); err != nil {
		return nil, models.NewInternalError(err)
	} else if existing != nil {
		return nil, models.NewValidationError("email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	code, err := generateCode(verificationCodeLength)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	expires := time.Now().Add(verificationCodeTTL)

	user := &models.User{
		Username:                in.Username,
		FirstName:               in.FirstName,
		LastName:                in.LastName,
		DisplayName:             in.DisplayName,
		Email:                   in.Email,
		Birthday:                in.Birthday,
		Gender:                  in.Gender,
		Password:                string(hash),
		VerificationCode:        code,
		VerificationCodeExpires: &expires,
		CreatedAt:               time.Now().UTC(),
	}
	user.Normalize()

	created, err := s.store.Users.Create(ctx, user)
	if err != nil {
		return nil, err
	}
	if err := s.mailCode(ctx, created.Email, "Verify your account",
		"Welcome! Use this code to verify your account. It expires in 1 minute.", code); err != nil {
		return nil, err
	}
	return created, nil
}

// LoginResult is the outcome of a credential check. NeedsVerification means
// the credentials were correct but the account is unverified; a fresh code
// has already been mailed.
type LoginResult struct {
	User              *models.User
	NeedsVerification bool
}

// Login checks credentials. Verified accounts are flipped online.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	user, err := s.store.Users.FindByIdentifier(ctx, identifier)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if user == nil {
		observability.LoginAttempts.WithLabelValues("invalid").Inc()
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		observability.LoginAttempts.WithLabelValues("invalid").Inc()
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}

	if !user.IsVerified {
		if err := s.resendVerification(ctx, user); err != nil {
			return nil, err
		}
		observability.LoginAttempts.WithLabelValues("unverified").Inc()
		return &LoginResult{User: user, NeedsVerification: true}, nil
	}

	if err := s.store.Users.SetOnline(ctx, user.ID, true); err != nil {
		return nil, models.NewInternalError(err)
	}
	user.IsOnline = true
	observability.LoginAttempts.WithLabelValues("success").Inc()
	return &LoginResult{User: user}, nil
}

// resendVerification issues a fresh verification code and mails it.
func (s *AuthService) resendVerification(ctx context.Context, user *models.User) error {
	code, err := generateCode(verificationCodeLength)
	if err != nil {
		return models.NewInternalError(err)
	}
	expires := time.Now().Add(verificationCodeTTL)
	if _, err := s.store.Users.Update(ctx, user.ID, repository.UserUpdate{
		VerificationCode:        &code,
		VerificationCodeExpires: &expires,
	}); err != nil {
		return models.NewInternalError(err)
	}
	return s.mailCode(ctx, user.Email, "Verify your account",
		"Use this code to verify your account. It expires in 1 minute.", code)
}

// Verify checks the emailed code and marks the account verified. An expired
// code is replaced and re-mailed, and the caller gets a retryable error.
func (s *AuthService) Verify(ctx context.Context, identifier, code string) (*models.User, error) {
	user, err := s.store.Users.FindByIdentifier(ctx, identifier)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if user == nil {
		return nil, models.NewNotFoundError("user", identifier)
	}
	if user.IsVerified {
		return user, nil
	}
	if user.VerificationCode == "" || user.VerificationCode != code {
		return nil, models.NewValidationError("Invalid verification code")
	}
	if user.VerificationCodeExpires == nil || time.Now().After(*user.VerificationCodeExpires) {
		if err := s.resendVerification(ctx, user); err != nil {
			return nil, err
		}
		return nil, models.NewCodeExpiredError()
	}

	verified := true
	updated, err := s.store.Users.Update(ctx, user.ID, repository.UserUpdate{
		IsVerified:            &verified,
		ClearVerificationCode: true,
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return updated, nil
}

// RequestPasswordReset issues a reset code and mails it. An unknown
// identifier is indistinguishable from success so the endpoint cannot be
// used to enumerate accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, identifier string) error {
	user, err := s.store.Users.FindByIdentifier(ctx, identifier)
	if err != nil {
		return models.NewInternalError(err)
	}
	if user == nil {
		observability.GlobalLogger.Info("password reset requested for unknown identifier",
			"identifier", identifier)
		return nil
	}
	code, err := generateCode(resetCodeLength)
	if err != nil {
		return models.NewInternalError(err)
	}
	expires := time.Now().Add(resetCodeTTL)
	if _, err := s.store.Users.Update(ctx, user.ID, repository.UserUpdate{
		ResetPasswordCode:        &code,
		ResetPasswordCodeExpires: &expires,
	}); err != nil {
		return models.NewInternalError(err)
	}
	return s.mailCode(ctx, user.Email, "Reset your password",
		"Use this code to reset your password. It expires in 2 minutes.", code)
}

// ResetPassword sets a new password after checking the reset code. Like
// verification, an expired code is replaced and re-mailed.
func (s *AuthService) ResetPassword(ctx context.Context, identifier, code, newPassword string) error {
	user, err := s.store.Users.FindByIdentifier(ctx, identifier)
	if err != nil {
		return models.NewInternalError(err)
	}
	if user == nil {
		return models.NewNotFoundError("user", identifier)
	}
	if user.ResetPasswordCode == "" || user.ResetPasswordCode != code {
		return models.NewValidationError("Invalid reset code")
	}
	if user.ResetPasswordCodeExpires == nil || time.Now().After(*user.ResetPasswordCodeExpires) {
		fresh, err := generateCode(resetCodeLength)
		if err != nil {
			return models.NewInternalError(err)
		}
		expires := time.Now().Add(resetCodeTTL)
		if _, err := s.store.Users.Update(ctx, user.ID, repository.UserUpdate{
			ResetPasswordCode:        &fresh,
			ResetPasswordCodeExpires: &expires,
		}); err != nil {
			return models.NewInternalError(err)
		}
		if err := s.mailCode(ctx, user.Email, "Reset your password",
			"Your previous code expired. Use this new one. It expires in 2 minutes.", fresh); err != nil {
			return err
		}
		return models.NewCodeExpiredError()
	}
	if err := validation.ValidatePassword(newPassword); err != nil {
		return models.NewValidationError(err.Error())
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return models.NewInternalError(err)
	}
	hashStr := string(hash)
	if _, err := s.store.Users.Update(ctx, user.ID, repository.UserUpdate{
		Password:               &hashStr,
		ClearResetPasswordCode: true,
	}); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// ChangePassword rotates the password of an authenticated user.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, newPassword string) error {
	user, err := s.store.Users.GetByID(ctx, userID)
	if err != nil {
		return models.NewInternalError(err)
	}
	if user == nil {
		return models.NewNotFoundError("user", userID)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(current)) != nil {
		return models.NewUnauthorizedError("Current password is incorrect")
	}
	if err := validation.ValidatePassword(newPassword); err != nil {
		return models.NewValidationError(err.Error())
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return models.NewInternalError(err)
	}
	hashStr := string(hash)
	if _, err := s.store.Users.Update(ctx, userID, repository.UserUpdate{Password: &hashStr}); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Logout flips the account offline.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if err := s.store.Users.SetOnline(ctx, userID, false); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
