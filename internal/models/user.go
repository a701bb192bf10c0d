// Package models contains data structures for the application's domain models.
package models

import (
	"strings"
	"time"
)

// DefaultProfilePicture is assigned to users who never uploaded an avatar.
const DefaultProfilePicture = "/images/default_profile.png"

// Gender is the self-reported gender of a user.
type Gender string

// Gender values accepted at signup.
const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

// Valid reports whether g is one of the accepted gender values.
func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// Opposite returns the gender complement used by the "show me the opposite
// gender" listing rule. Other has no complement.
func (g Gender) Opposite() Gender {
	switch g {
	case GenderMale:
		return GenderFemale
	case GenderFemale:
		return GenderMale
	}
	return ""
}

// User is a registered account. The JSON tags define the on-disk document
// format of the file backend, so they include credential and verification
// fields; the HTTP layer never serializes a raw User, only PublicUser or a
// purpose-built response shape.
type User struct {
	ID                       string     `json:"_id,omitempty"`
	Username                 string     `json:"username"`
	FirstName                string     `json:"firstName"`
	LastName                 string     `json:"lastName"`
	DisplayName              string     `json:"displayName"`
	Email                    string     `json:"email"`
	Birthday                 time.Time  `json:"birthday"`
	Gender                   Gender     `json:"gender"`
	Password                 string     `json:"password"`
	ProfilePicture           string     `json:"profilePicture"`
	Bio                      string     `json:"bio"`
	IsVerified               bool       `json:"isVerified"`
	VerificationCode         string     `json:"verificationCode,omitempty"`
	VerificationCodeExpires  *time.Time `json:"verificationCodeExpires,omitempty"`
	ResetPasswordCode        string     `json:"resetPasswordCode,omitempty"`
	ResetPasswordCodeExpires *time.Time `json:"resetPasswordCodeExpires,omitempty"`
	Followers                []string   `json:"followers"`
	Following                []string   `json:"following"`
	IsOnline                 bool       `json:"isOnline"`
	IsTyping                 bool       `json:"isTyping"`
	BlockedUsers             []string   `json:"blockedUsers"`
	CreatedAt                time.Time  `json:"createdAt"`
}

// Normalize fills defaults the same way on every write path: blank display
// names fall back to "First Last", nil sets become empty, missing avatars get
// the stock image.
func (u *User) Normalize() {
	if strings.TrimSpace(u.DisplayName) == "" {
		u.DisplayName = u.FirstName + " " + u.LastName
	}
	if u.ProfilePicture == "" {
		u.ProfilePicture = DefaultProfilePicture
	}
	if u.Followers == nil {
		u.Followers = []string{}
	}
	if u.Following == nil {
		u.Following = []string{}
	}
	if u.BlockedUsers == nil {
		u.BlockedUsers = []string{}
	}
}

// PublicUser is a User with credential, verification and reset secrets
// stripped. This is the only user shape that leaves the service layer.
type PublicUser struct {
	ID             string    `json:"_id"`
	Username       string    `json:"username"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	DisplayName    string    `json:"displayName"`
	ProfilePicture string    `json:"profilePicture"`
	Bio            string    `json:"bio"`
	Gender         Gender    `json:"gender"`
	IsVerified     bool      `json:"isVerified"`
	IsOnline       bool      `json:"isOnline"`
	IsTyping       bool      `json:"isTyping"`
	Followers      []string  `json:"followers"`
	Following      []string  `json:"following"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Public returns the stripped view of the user.
func (u *User) Public() *PublicUser {
	if u == nil {
		return nil
	}
	followers := u.Followers
	if followers == nil {
		followers = []string{}
	}
	following := u.Following
	if following == nil {
		following = []string{}
	}
	return &PublicUser{
		ID:             u.ID,
		Username:       u.Username,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		DisplayName:    u.DisplayName,
		ProfilePicture: u.ProfilePicture,
		Bio:            u.Bio,
		Gender:         u.Gender,
		IsVerified:     u.IsVerified,
		IsOnline:       u.IsOnline,
		IsTyping:       u.IsTyping,
		Followers:      followers,
		Following:      following,
		CreatedAt:      u.CreatedAt,
	}
}

// Summary returns the short author card embedded in posts, comments and chats.
func (u *User) Summary() *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{
		ID:             u.ID,
		Username:       u.Username,
		DisplayName:    u.DisplayName,
		ProfilePicture: u.ProfilePicture,
		Gender:         u.Gender,
	}
}

// UserSummary is the denormalized snapshot of a user that gets attached to
// posts, comments and chat participant lists.
type UserSummary struct {
	ID             string `json:"_id"`
	Username       string `json:"username"`
	DisplayName    string `json:"displayName"`
	ProfilePicture string `json:"profilePicture"`
	Gender         Gender `json:"gender,omitempty"`
}
