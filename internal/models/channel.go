package models

import (
	"errors"
	"time"
)

var ErrChannelNotFound = errors.New("channel not found")

// DefaultChannelName is the channel every server is born with.
// It can never be deleted.
const DefaultChannelName = "general"

type ChannelType string

const (
	ChannelTypeText  ChannelType = "TEXT"
	ChannelTypeAudio ChannelType = "AUDIO"
	ChannelTypeVideo ChannelType = "VIDEO"
)

func (t ChannelType) Valid() bool {
	switch t {
	case ChannelTypeText, ChannelTypeAudio, ChannelTypeVideo:
		return true
	}
	return false
}

type Channel struct {
	ID        int
	ServerID  int
	Name      string
	Type      ChannelType
	ProfileID int
	CreatedAt time.Time
}
