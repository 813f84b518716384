package models

import (
	"errors"
	"time"
)

var (
	ErrMemberNotFound = errors.New("member not found")
	ErrAlreadyMember  = errors.New("member already exists")
	ErrPermDenied     = errors.New("missing permissions to execute action")
)

type MemberRole string

const (
	RoleAdmin     MemberRole = "ADMIN"
	RoleModerator MemberRole = "MODERATOR"
	RoleGuest     MemberRole = "GUEST"
)

func (r MemberRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleModerator, RoleGuest:
		return true
	}
	return false
}

// Member links a Profile to a Server with a role.
// The (server, profile) pair is unique.
type Member struct {
	ID        int
	ServerID  int
	ProfileID int
	Role      MemberRole
	CreatedAt time.Time
}

type MemberView struct {
	Member
	Profile Profile
}
