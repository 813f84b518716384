package graph

import (
	"gitlab.com/ellera/guildhall/internal/models"
)

// ServerResolver answers field lookups on a Server. Members and
// channels are only present when the operation loaded the full view;
// flat listings leave them null, so no resolver ever fires extra
// queries behind the client's back.
type ServerResolver struct {
	server   models.Server
	members  *[]*MemberResolver
	channels *[]*ChannelResolver
}

func newServerViewResolver(view *models.ServerView) *ServerResolver {
	members := make([]*MemberResolver, len(view.Members))
	for i := range view.Members {
		profile := view.Members[i].Profile
		members[i] = &MemberResolver{
			member:  view.Members[i].Member,
			profile: &profile,
		}
	}
	channels := make([]*ChannelResolver, len(view.Channels))
	for i := range view.Channels {
		channels[i] = &ChannelResolver{channel: view.Channels[i]}
	}
	return &ServerResolver{
		server:   view.Server,
		members:  &members,
		channels: &channels,
	}
}

func (r *ServerResolver) ID() int32 {
	return int32(r.server.ID)
}
func (r *ServerResolver) Name() string {
	return r.server.Name
}
func (r *ServerResolver) ImageURL() string {
	return r.server.ImageURL
}
func (r *ServerResolver) InviteCode() string {
	return r.server.InviteCode
}
func (r *ServerResolver) ProfileID() int32 {
	return int32(r.server.ProfileID)
}
func (r *ServerResolver) Members() *[]*MemberResolver {
	return r.members
}
func (r *ServerResolver) Channels() *[]*ChannelResolver {
	return r.channels
}

type ProfileResolver struct {
	profile models.Profile
}

func (r *ProfileResolver) ID() int32 {
	return int32(r.profile.ID)
}
func (r *ProfileResolver) Name() string {
	return r.profile.Name
}
func (r *ProfileResolver) Email() string {
	return r.profile.Email
}
func (r *ProfileResolver) ImageURL() string {
	return r.profile.ImageURL
}

type MemberResolver struct {
	member  models.Member
	profile *models.Profile
}

func (r *MemberResolver) ID() int32 {
	return int32(r.member.ID)
}
func (r *MemberResolver) ServerID() int32 {
	return int32(r.member.ServerID)
}
func (r *MemberResolver) ProfileID() int32 {
	return int32(r.member.ProfileID)
}
func (r *MemberResolver) Role() string {
	return string(r.member.Role)
}
func (r *MemberResolver) Profile() *ProfileResolver {
	if r.profile == nil {
		return nil
	}
	return &ProfileResolver{profile: *r.profile}
}

type ChannelResolver struct {
	channel models.Channel
}

func (r *ChannelResolver) ID() int32 {
	return int32(r.channel.ID)
}
func (r *ChannelResolver) ServerID() int32 {
	return int32(r.channel.ServerID)
}
func (r *ChannelResolver) ProfileID() int32 {
	return int32(r.channel.ProfileID)
}
func (r *ChannelResolver) Name() string {
	return r.channel.Name
}
func (r *ChannelResolver) Type() string {
	return string(r.channel.Type)
}
