package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"bhabo/internal/models"
	"bhabo/internal/repository"
	"bhabo/internal/repository/filedb"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// recordingMailer captures every code handed to it instead of sending mail.
type recordingMailer struct {
	mu    sync.Mutex
	sends []sentMail
}

type sentMail struct {
	To      string
	Subject string
	Code    string
}

func (m *recordingMailer) SendCode(ctx context.Context, to, subject, intro, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends = append(m.sends, sentMail{To: to, Subject: subject, Code: code})
	return nil
}

func (m *recordingMailer) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sends, "expected at least one mail to have been sent")
	return m.sends[len(m.sends)-1].Code
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sends)
}

// wrongCode derives a code guaranteed to differ from the right one.
func wrongCode(code string) string {
	if code == "" || code[0] != '1' {
		return "1" + code[1:]
	}
	return "2" + code[1:]
}

func newTestStore(t *testing.T) *repository.Store {
	t.Helper()
	store, err := filedb.Open(afero.NewMemMapFs(), "/data")
	require.NoError(t, err)
	return store
}

var testHashOnce struct {
	sync.Once
	hash string
}

// testHash returns a bcrypt hash of "password123", computed once because
// bcrypt is slow.
func testHash(t *testing.T) string {
	t.Helper()
	testHashOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
		if err == nil {
			testHashOnce.hash = string(h)
		}
	})
	require.NotEmpty(t, testHashOnce.hash)
	return testHashOnce.hash
}

// seedVerifiedUser creates a verified account directly in the store,
// bypassing the signup flow.
func seedVerifiedUser(t *testing.T, store *repository.Store, handle string, gender models.Gender) *models.User {
	t.Helper()
	user, err := store.Users.Create(context.Background(), &models.User{
		Username:   handle,
		FirstName:  "Test",
		LastName:   "User",
		Email:      handle + "@example.com",
		Gender:     gender,
		Password:   testHash(t),
		Birthday:   time.Date(1995, 3, 14, 0, 0, 0, 0, time.UTC),
		IsVerified: true,
	})
	require.NoError(t, err)
	return user
}
