package user

import "github.com/google/uuid"

const UnknownUsername = "Unknown User"

// Profile is the display identity of a user. The messaging core only reads it.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
}

// Placeholder stands in for an id the directory does not know.
func Placeholder(id uuid.UUID) Profile {
	return Profile{ID: id, Username: UnknownUsername, FullName: UnknownUsername}
}

func (p Profile) IsPlaceholder() bool {
	return p.Username == UnknownUsername && p.AvatarURL == ""
}

func (Profile) TableName() string {
	return "profiles"
}
