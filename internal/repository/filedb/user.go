package filedb

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"bhabo/internal/models"
	"bhabo/internal/observability"
	"bhabo/internal/repository"
)

// userStore keeps one document per account at users/<handle>.json. The
// handle doubles as the backend identifier.
type userStore struct {
	db *db
}

var _ repository.UserRepository = (*userStore)(nil)

func (s *userStore) path(handle string) string {
	return s.db.path("users", handle+".json")
}

// load reads a single user document. A corrupt document is replaced on disk
// by a minimal placeholder carrying only the handle, so one bad file cannot
// take the whole account out of reach.
func (s *userStore) load(handle string) (*models.User, error) {
	var user models.User
	err := s.db.readJSON(s.path(handle), &user)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		return nil, nil
	case errors.Is(err, errMalformed):
		s.db.log.RepairedRecord("user", handle, err)
		user = models.User{Username: handle, Gender: models.GenderOther, CreatedAt: time.Now().UTC()}
		if werr := s.save(&user); werr != nil {
			return nil, werr
		}
	default:
		return nil, err
	}
	user.ID = user.Username
	user.Normalize()
	return &user, nil
}

func (s *userStore) save(user *models.User) error {
	user.Normalize()
	return s.db.writeJSON(s.path(user.Username), user)
}

// each decodes every user document, skipping corrupt ones, and calls fn with
// each user. fn returns false to stop early.
func (s *userStore) each(fn func(*models.User) bool) error {
	handles, err := s.db.listDocs(s.db.path("users"))
	if err != nil {
		return err
	}
	for _, handle := range handles {
		var user models.User
		if err := s.db.readJSON(s.path(handle), &user); err != nil {
			s.db.log.SkippedRecord("user", handle, err)
			continue
		}
		user.ID = user.Username
		user.Normalize()
		if !fn(&user) {
			return nil
		}
	}
	return nil
}

func (s *userStore) GetByHandle(ctx context.Context, handle string) (*models.User, error) {
	defer observability.ObserveStoreOp("file", "user", "get")()
	return s.load(handle)
}

func (s *userStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.GetByHandle(ctx, id)
}

func (s *userStore) FindByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	defer observability.ObserveStoreOp("file", "user", "find_by_identifier")()
	// Handle lookups hit the file directly; only emails need a scan.
	if user, err := s.load(identifier); err != nil || user != nil {
		return user, err
	}
	var found *models.User
	err := s.each(func(u *models.User) bool {
		if strings.EqualFold(u.Email, identifier) {
			found = u
			return false
		}
		return true
	})
	return found, err
}

func (s *userStore) Create(ctx context.Context, user *models.User) (*models.User, error) {
	defer observability.ObserveStoreOp("file", "user", "create")()
	user.ID = user.Username
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if err := s.save(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userStore) Update(ctx context.Context, id string, upd repository.UserUpdate) (*models.User, error) {
	defer observability.ObserveStoreOp("file", "user", "update")()
	user, err := s.load(id)
	if err != nil || user == nil {
		return nil, err
	}
	if upd.Password != nil {
		user.Password = *upd.Password
	}
	if upd.IsVerified != nil {
		user.IsVerified = *upd.IsVerified
	}
	if upd.IsTyping != nil {
		user.IsTyping = *upd.IsTyping
	}
	if upd.VerificationCode != nil {
		user.VerificationCode = *upd.VerificationCode
	}
	if upd.VerificationCodeExpires != nil {
		user.VerificationCodeExpires = upd.VerificationCodeExpires
	}
	if upd.ClearVerificationCode {
		user.VerificationCode = ""
		user.VerificationCodeExpires = nil
	}
	if upd.ResetPasswordCode != nil {
		user.ResetPasswordCode = *upd.ResetPasswordCode
	}
	if upd.ResetPasswordCodeExpires != nil {
		user.ResetPasswordCodeExpires = upd.ResetPasswordCodeExpires
	}
	if upd.ClearResetPasswordCode {
		user.ResetPasswordCode = ""
		user.ResetPasswordCodeExpires = nil
	}
	if err := s.save(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userStore) UpdateProfileFields(ctx context.Context, id string, upd repository.ProfileUpdate) (*models.User, error) {
	defer observability.ObserveStoreOp("file", "user", "update_profile")()
	user, err := s.load(id)
	if err != nil || user == nil {
		return nil, err
	}
	if upd.FirstName != nil {
		user.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		user.LastName = *upd.LastName
	}
	if upd.DisplayName != nil {
		user.DisplayName = *upd.DisplayName
	}
	if upd.Bio != nil {
		user.Bio = *upd.Bio
	}
	if upd.ProfilePicture != nil {
		user.ProfilePicture = *upd.ProfilePicture
	}
	if err := s.save(user); err != nil {
		return nil, err
	}
	return user, nil
}

// mutateSet loads the user, applies fn to one of its ID sets and persists
// the result. Missing users are a no-op.
func (s *userStore) mutateSet(id string, fn func(*models.User)) error {
	user, err := s.load(id)
	if err != nil || user == nil {
		return err
	}
	fn(user)
	return s.save(user)
}

func (s *userStore) AddFollower(ctx context.Context, targetID, followerID string) error {
	defer observability.ObserveStoreOp("file", "user", "add_follower")()
	return s.mutateSet(targetID, func(u *models.User) {
		if !contains(u.Followers, followerID) {
			u.Followers = append(u.Followers, followerID)
		}
	})
}

func (s *userStore) RemoveFollower(ctx context.Context, targetID, followerID string) error {
	defer observability.ObserveStoreOp("file", "user", "remove_follower")()
	return s.mutateSet(targetID, func(u *models.User) {
		u.Followers = without(u.Followers, followerID)
	})
}

func (s *userStore) AddFollowing(ctx context.Context, followerID, targetID string) error {
	defer observability.ObserveStoreOp("file", "user", "add_following")()
	return s.mutateSet(followerID, func(u *models.User) {
		if !contains(u.Following, targetID) {
			u.Following = append(u.Following, targetID)
		}
	})
}

func (s *userStore) RemoveFollowing(ctx context.Context, followerID, targetID string) error {
	defer observability.ObserveStoreOp("file", "user", "remove_following")()
	return s.mutateSet(followerID, func(u *models.User) {
		u.Following = without(u.Following, targetID)
	})
}

func (s *userStore) Search(ctx context.Context, query string) ([]*models.PublicUser, error) {
	defer observability.ObserveStoreOp("file", "user", "search")()
	re := repository.FuzzyRegexp(query)
	results := []*models.PublicUser{}
	err := s.each(func(u *models.User) bool {
		if re.MatchString(u.Username) || re.MatchString(u.DisplayName) {
			results = append(results, u.Public())
		}
		return true
	})
	return results, err
}

func (s *userStore) SetOnline(ctx context.Context, id string, online bool) error {
	defer observability.ObserveStoreOp("file", "user", "set_online")()
	return s.mutateSet(id, func(u *models.User) {
		u.IsOnline = online
	})
}

func (s *userStore) Block(ctx context.Context, blockerID, targetID string) error {
	defer observability.ObserveStoreOp("file", "user", "block")()
	return s.mutateSet(blockerID, func(u *models.User) {
		if !contains(u.BlockedUsers, targetID) {
			u.BlockedUsers = append(u.BlockedUsers, targetID)
		}
	})
}

func (s *userStore) Unblock(ctx context.Context, blockerID, targetID string) error {
	defer observability.ObserveStoreOp("file", "user", "unblock")()
	return s.mutateSet(blockerID, func(u *models.User) {
		u.BlockedUsers = without(u.BlockedUsers, targetID)
	})
}

func (s *userStore) IsBlocked(ctx context.Context, id, targetID string) (bool, error) {
	defer observability.ObserveStoreOp("file", "user", "is_blocked")()
	user, err := s.load(id)
	if err != nil || user == nil {
		return false, err
	}
	return contains(user.BlockedUsers, targetID), nil
}

// listByPresence filters users on the presence flag and the gender rule:
// a Male or Female filter selects users of the opposite gender.
func (s *userStore) listByPresence(online bool, excludeID string, genderFilter models.Gender, limit int) ([]*models.PublicUser, error) {
	want := genderFilter.Opposite()
	results := []*models.PublicUser{}
	err := s.each(func(u *models.User) bool {
		if u.Username == excludeID || u.IsOnline != online {
			return true
		}
		if want != "" && u.Gender != want {
			return true
		}
		results = append(results, u.Public())
		return limit <= 0 || len(results) < limit
	})
	return results, err
}

func (s *userStore) ListOnline(ctx context.Context, excludeID string, genderFilter models.Gender, limit int) ([]*models.PublicUser, error) {
	defer observability.ObserveStoreOp("file", "user", "list_online")()
	return s.listByPresence(true, excludeID, genderFilter, limit)
}

func (s *userStore) ListOffline(ctx context.Context, excludeID string, genderFilter models.Gender, limit int) ([]*models.PublicUser, error) {
	defer observability.ObserveStoreOp("file", "user", "list_offline")()
	return s.listByPresence(false, excludeID, genderFilter, limit)
}
