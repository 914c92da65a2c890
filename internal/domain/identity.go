// Package domain contains entities without logic, just meta-data
package domain

import "errors"

const (
	MaxParticipantIDLen = 128
	MaxDisplayNameLen   = 64
)

var (
	ErrParticipantIDEmpty   = errors.New("participant id empty")
	ErrParticipantIDTooLong = errors.New("participant id too long")
)

type (
	UserID        string
	MeetingID     string
	ParticipantID string
)

type Role string

const (
	RoleHost        Role = "host"
	RoleCohost      Role = "cohost"
	RoleParticipant Role = "participant"
	RoleGuest       Role = "guest"
)

// Identity is what the token verifier vouches for.
type Identity struct {
	UserID   UserID `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

func ValidateParticipantID(id ParticipantID) error {
	if len(id) == 0 {
		return ErrParticipantIDEmpty
	}
	if len(id) > MaxParticipantIDLen {
		return ErrParticipantIDTooLong
	}
	return nil
}

// TrimDisplayName caps a client supplied name.
func TrimDisplayName(name string) string {
	r := []rune(name)
	if len(r) > MaxDisplayNameLen {
		return string(r[:MaxDisplayNameLen])
	}
	return name
}
