package models

import (
	"errors"
	"time"
)

var ErrServerNotFound = errors.New("server not found")

type Server struct {
	ID         int
	Name       string
	ImageURL   string
	InviteCode string
	ProfileID  int
	CreatedAt  time.Time
}

// ServerView is a Server with its members (profiles included) and
// channels loaded, as returned by reads that already proved membership.
type ServerView struct {
	Server
	Members  []MemberView
	Channels []Channel
}
