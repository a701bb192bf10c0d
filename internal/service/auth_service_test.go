package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"bhabo/internal/models"
	"bhabo/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSignup(handle string) SignupInput {
	return SignupInput{
		Username:  handle,
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     handle + "@example.com",
		Password:  "password123",
		Gender:    models.GenderFemale,
		Birthday:  time.Date(1995, 3, 14, 0, 0, 0, 0, time.UTC),
	}
}

func TestSignupValidation(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	svc := NewAuthService(store, &recordingMailer{})
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*SignupInput)
	}{
		{"Short Username", func(in *SignupInput) { in.Username = "ab" }},
		{"Bad Username Chars", func(in *SignupInput) { in.Username = "bad name" }},
		{"Bad Email", func(in *SignupInput) { in.Email = "not-an-email" }},
		{"Short Password", func(in *SignupInput) { in.Password = "short" }},
		{"Too Young", func(in *SignupInput) { in.Birthday = time.Now().AddDate(-10, 0, 0) }},
		{"Future Birthday", func(in *SignupInput) { in.Birthday = time.Now().AddDate(1, 0, 0) }},
		{"Invalid Gender", func(in *SignupInput) { in.Gender = "Robot" }},
		{"Missing Name", func(in *SignupInput) { in.FirstName = "  " }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validSignup("ada")
			tc.mutate(&in)
			_, err := svc.Signup(ctx, in)
			require.Error(t, err)
			assert.Equal(t, models.CodeValidation, models.ErrorCode(err))
		})
	}
}

type failingMailer struct{}

func (failingMailer) SendCode(ctx context.Context, to, subject, intro, code string) error {
	return fmt.Errorf("smtp unreachable")
}

func TestSignupFailsWhenMailUndeliverable(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	svc := NewAuthService(store, failingMailer{})

	_, err := svc.Signup(context.Background(), validSignup("ada"))
	require.Error(t, err)
	assert.Equal(t, models.CodeInternal, models.ErrorCode(err))
}

func TestSignupRejectsDuplicates(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	svc := NewAuthService(store, &recordingMailer{})
	ctx := context.Background()

	_, err := svc.Signup(ctx, validSignup("ada"))
	require.NoError(t, err)

	_, err = svc.Signup(ctx, validSignup("ada"))
	require.Error(t, err)
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))

	taken := validSignup("grace")
	taken.Email = "ada@example.com"
	_, err = svc.Signup(ctx, taken)
	require.Error(t, err)
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))
}

func TestSignupVerifyLoginFlow(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	mailer := &recordingMailer{}
	svc := NewAuthService(store, mailer)
	ctx := context.Background()

	user, err := svc.Signup(ctx, validSignup("ada"))
	require.NoError(t, err)
	assert.False(t, user.IsVerified)
	assert.Equal(t, "Ada Lovelace", user.DisplayName)
	assert.Equal(t, models.DefaultProfilePicture, user.ProfilePicture)
	code := mailer.lastCode(t)
	assert.Len(t, code, 6)

	// Logging in before verifying re-mails a fresh code instead of failing.
	result, err := svc.Login(ctx, "ada", "password123")
	require.NoError(t, err)
	assert.True(t, result.NeedsVerification)
	resent := mailer.lastCode(t)
	assert.Len(t, resent, 6)

	// A wrong code is rejected without consuming the right one.
	_, err = svc.Verify(ctx, "ada", wrongCode(resent))
	require.Error(t, err)
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))

	verified, err := svc.Verify(ctx, "ada", resent)
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)
	assert.Empty(t, verified.VerificationCode)

	// Verifying again is a no-op success.
	again, err := svc.Verify(ctx, "ada", "whatever")
	require.NoError(t, err)
	assert.True(t, again.IsVerified)

	result, err = svc.Login(ctx, "ada@example.com", "password123")
	require.NoError(t, err)
	assert.False(t, result.NeedsVerification)
	assert.True(t, result.User.IsOnline)

	require.NoError(t, svc.Logout(ctx, result.User.ID))
	offline, err := store.Users.GetByID(ctx, result.User.ID)
	require.NoError(t, err)
	assert.False(t, offline.IsOnline)
}

func TestVerifyExpiredCodeRegenerates(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	mailer := &recordingMailer{}
	svc := NewAuthService(store, mailer)
	ctx := context.Background()

	user, err := svc.Signup(ctx, validSignup("ada"))
	require.NoError(t, err)
	code := mailer.lastCode(t)

	past := time.Now().Add(-time.Hour)
	_, err = store.Users.Update(ctx, user.ID, repository.UserUpdate{
		VerificationCodeExpires: &past,
	})
	require.NoError(t, err)

	before := mailer.count()
	_, err = svc.Verify(ctx, "ada", code)
	require.Error(t, err)
	assert.Equal(t, models.CodeExpired, models.ErrorCode(err))
	require.Equal(t, before+1, mailer.count())

	// The replacement code works.
	fresh := mailer.lastCode(t)
	assert.NotEqual(t, code, fresh)
	verified, err := svc.Verify(ctx, "ada", fresh)
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)
}

func TestLoginInvalidCredentials(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	svc := NewAuthService(store, &recordingMailer{})
	ctx := context.Background()

	seedVerifiedUser(t, store, "ada", models.GenderFemale)

	_, err := svc.Login(ctx, "ada", "wrong-password")
	require.Error(t, err)
	assert.Equal(t, models.CodeUnauthorized, models.ErrorCode(err))

	_, err = svc.Login(ctx, "nobody", "password123")
	require.Error(t, err)
	assert.Equal(t, models.CodeUnauthorized, models.ErrorCode(err))
}

func TestPasswordResetFlow(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	mailer := &recordingMailer{}
	svc := NewAuthService(store, mailer)
	ctx := context.Background()

	seedVerifiedUser(t, store, "ada", models.GenderFemale)

	require.NoError(t, svc.RequestPasswordReset(ctx, "ada@example.com"))
	code := mailer.lastCode(t)
	assert.Len(t, code, 8)

	err := svc.ResetPassword(ctx, "ada", wrongCode(code), "newpassword1")
	require.Error(t, err)
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))

	require.NoError(t, svc.ResetPassword(ctx, "ada", code, "newpassword1"))

	result, err := svc.Login(ctx, "ada", "newpassword1")
	require.NoError(t, err)
	assert.False(t, result.NeedsVerification)

	// The code is single-use.
	err = svc.ResetPassword(ctx, "ada", code, "anotherpass1")
	require.Error(t, err)
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))
}

func TestPasswordResetUnknownIdentifierRevealsNothing(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	mailer := &recordingMailer{}
	svc := NewAuthService(store, mailer)
	ctx := context.Background()

	seedVerifiedUser(t, store, "ada", models.GenderFemale)

	// An unknown identifier must look exactly like success and send nothing.
	require.NoError(t, svc.RequestPasswordReset(ctx, "nobody@example.com"))
	require.NoError(t, svc.RequestPasswordReset(ctx, "ghost"))
	assert.Equal(t, 0, mailer.count())

	require.NoError(t, svc.RequestPasswordReset(ctx, "ada"))
	assert.Equal(t, 1, mailer.count())
}

func TestResetPasswordExpiredCodeRegenerates(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	mailer := &recordingMailer{}
	svc := NewAuthService(store, mailer)
	ctx := context.Background()

	user := seedVerifiedUser(t, store, "ada", models.GenderFemale)
	require.NoError(t, svc.RequestPasswordReset(ctx, "ada"))
	code := mailer.lastCode(t)

	past := time.Now().Add(-time.Hour)
	_, err := store.Users.Update(ctx, user.ID, repository.UserUpdate{
		ResetPasswordCodeExpires: &past,
	})
	require.NoError(t, err)

	err = svc.ResetPassword(ctx, "ada", code, "newpassword1")
	require.Error(t, err)
	assert.Equal(t, models.CodeExpired, models.ErrorCode(err))

	fresh := mailer.lastCode(t)
	assert.NotEqual(t, code, fresh)
	require.NoError(t, svc.ResetPassword(ctx, "ada", fresh, "newpassword1"))
}

func TestChangePassword(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	svc := NewAuthService(store, &recordingMailer{})
	ctx := context.Background()

	user := seedVerifiedUser(t, store, "ada", models.GenderFemale)

	err := svc.ChangePassword(ctx, user.ID, "wrong", "newpassword1")
	require.Error(t, err)
	assert.Equal(t, models.CodeUnauthorized, models.ErrorCode(err))

	err = svc.ChangePassword(ctx, user.ID, "password123", "short")
	require.Error(t, err)
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))

	require.NoError(t, svc.ChangePassword(ctx, user.ID, "password123", "newpassword1"))
	_, err = svc.Login(ctx, "ada", "newpassword1")
	require.NoError(t, err)
}
