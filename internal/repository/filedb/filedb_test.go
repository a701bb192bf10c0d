package filedb

import (
	"testing"
	"time"

	"bhabo/internal/models"
	"bhabo/internal/repository"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// openTestStore returns a store over an in-memory tree plus the filesystem
// for corruption injection.
func openTestStore(t *testing.T) (*repository.Store, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	store, err := Open(fs, "/data")
	require.NoError(t, err)
	return store, fs
}

func newTestUser(handle string, gender models.Gender) *models.User {
	return &models.User{
		Username:   handle,
		FirstName:  "Test",
		LastName:   "User",
		Email:      handle + "@example.com",
		Gender:     gender,
		Password:   "hashed",
		Birthday:   time.Date(1995, 3, 14, 0, 0, 0, 0, time.UTC),
		IsVerified: true,
	}
}
