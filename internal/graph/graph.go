// Package graph maps the GraphQL surface onto the db capability
// handles. Resolvers stay thin: pull identity from context, build the
// right handle, translate errors.
package graph

import (
	"context"

	"gitlab.com/ellera/guildhall/internal/db"
	"gitlab.com/ellera/guildhall/internal/models"
)

type Resolver struct {
	DB *db.SharedDB
}

func NewResolver(sdb *db.SharedDB) *Resolver {
	return &Resolver{DB: sdb}
}

// profileH resolves the acting profile for the authenticated caller.
func (r *Resolver) profileH(ctx context.Context) (*db.ProfileH, error) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return nil, errUnauthenticated
	}
	pH, err := r.DB.GetProfileH(ctx, id.Email)
	if err != nil {
		return nil, apiErrorFor(ctx, err)
	}
	return pH, nil
}

func (r *Resolver) serverH(ctx context.Context, serverID int32) (*db.ServerH, error) {
	pH, err := r.profileH(ctx)
	if err != nil {
		return nil, err
	}
	h, err := r.DB.GetServerH(ctx, int(serverID), pH)
	if err != nil {
		return nil, apiErrorFor(ctx, err)
	}
	return h, nil
}

// Queries

func (r *Resolver) GetServers(ctx context.Context) ([]*ServerResolver, error) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return nil, errUnauthenticated
	}
	servers, err := r.DB.ListServersByMember(ctx, id.Email)
	if err != nil {
		return nil, apiErrorFor(ctx, err)
	}
	resolvers := make([]*ServerResolver, len(servers))
	for i := range servers {
		resolvers[i] = &ServerResolver{server: servers[i]}
	}
	return resolvers, nil
}

func (r *Resolver) GetServer(ctx context.Context, args struct{ ID int32 }) (*ServerResolver, error) {
	h, err := r.serverH(ctx, args.ID)
	if err != nil {
		return nil, err
	}
	view, err := h.Read(ctx)
	if err != nil {
		return nil, apiErrorFor(ctx, err)
	}
	return newServerViewResolver(view), nil
}

func (r *Resolver) GetProfileByID(ctx context.Context, args struct{ ProfileID int32 }) (*ProfileResolver, error) {
	profile, err := r.DB.GetProfileByID(ctx, int(args.ProfileID))
	if err != nil {
		return nil, apiErrorFor(ctx, err)
	}
	return &ProfileResolver{profile: *profile}, nil
}

// Mutations

type CreateProfileInput struct {
	Name     string
	Email    string
	ImageURL *string
}

func (r *Resolver) CreateProfile(ctx context.Context, args struct{ Input CreateProfileInput }) (*ProfileResolver, error) {
	if _, ok := IdentityFromContext(ctx); !ok {
		return nil, errUnauthenticated
	}
	profile := &models.Profile{
		Name:     args.Input.Name,
		Email:    args.Input.Email,
		ImageURL: deref(args.Input.ImageURL),
	}
	if _, err := r.DB.CreateProfile(ctx, profile); err != nil {
		return nil, apiErrorFor(ctx, err)
	}
	return &ProfileResolver{profile: *profile}, nil
}

type CreateServerInput struct {
	Name      string
	ProfileID int32
	ImageURL  *string
}

func (r *Resolver) CreateServer(ctx context.Context, args struct{ Input CreateServerInput }) (*ServerResolver, error) {
	if _, ok := IdentityFromContext(ctx); !ok {
		return nil, errUnauthenticated
	}
	imageURL := deref(args.Input.ImageURL)
	if imageURL == "" {
		return nil, errImageRequired
	}
	server, err := r.DB.CreateServer(ctx, args.Input.Name, int(args.Input.ProfileID), imageURL)
	if err != nil {
		return nil, apiErrorFor(ctx, err)
	}
	return &ServerResolver{server: *server}, nil
}

type UpdateServerInput struct {
	ServerID int32
	Name     string
	ImageURL *string
}

func (r *Resolver) UpdateServer(ctx context.Context, args struct{ Input UpdateServerInput }) (*ServerResolver, error) {
	imageURL := deref(args.Input.ImageURL)
	if imageURL == "" {
		return nil, errImageRequired
	}
	h, err := r.serverH(ctx, args.Input.ServerID)
	if err != nil {
		return nil, err
	}
	server, err := h.Update(ctx, args.Input.Name, imageURL)
	if err != nil {
		return nil, apiErrorFor(ctx, err)
	}
	return &ServerResolver{server: *server}, nil
}

func (r *Resolver) UpdateServerWithNewInviteCode(ctx context.Context, args struct{ ServerID int32 }) (*ServerResolver, error) {
	h, err := r.serverH(ctx, args.ServerID)
	if err != nil {
		return nil, err
	}
	server, err := h.RegenerateInviteCode(ctx)
	if err != nil {
		return nil, apiErrorFor(ctx, err)
	}
	return &ServerResolver{server: *server}, nil
}

type CreateChannelInput struct {
	ServerID int32
	Name     string
	Type     string
}

func (r *Resolver) CreateChannel(ctx context.Context, args struct{ Input CreateChannelInput }) (*ServerResolver, error) {
	h, err := r.serverH(ctx, args.Input.ServerID)
	if err != nil {
		return nil, err
	}
	if _, err := h.CreateChannel(ctx, args.Input.Name, models.ChannelType(args.Input.Type)); err != nil {
		return nil, apiErrorFor(ctx, err)
	}
	view, err := h.Read(ctx)
	if err != nil {
		return nil, apiErrorFor(ctx, err)
	}
	return newServerViewResolver(view), nil
}

func (r *Resolver) LeaveServer(ctx context.Context, args struct{ ServerID int32 }) (string, error) {
	h, err := r.serverH(ctx, args.ServerID)
	if err != nil {
		return "", err
	}
	if err := h.Leave(ctx); err != nil {
		return "", apiErrorFor(ctx, err)
	}
	return "Left server successfully!", nil
}

func (r *Resolver) DeleteServer(ctx context.Context, args struct{ ServerID int32 }) (string, error) {
	h, err := r.serverH(ctx, args.ServerID)
	if err != nil {
		return "", err
	}
	if err := h.Delete(ctx); err != nil {
		return "", apiErrorFor(ctx, err)
	}
	return "Server deleted successfully!", nil
}

func (r *Resolver) DeleteChannel(ctx context.Context, args struct{ ChannelID int32 }) (string, error) {
	pH, err := r.profileH(ctx)
	if err != nil {
		return "", err
	}
	channel, err := r.DB.GetChannel(ctx, int(args.ChannelID))
	if err != nil {
		return "", apiErrorFor(ctx, err)
	}
	h, err := r.DB.GetServerH(ctx, channel.ServerID, pH)
	if err != nil {
		return "", apiErrorFor(ctx, err)
	}
	if err := h.DeleteChannel(ctx, channel.ID); err != nil {
		return "", apiErrorFor(ctx, err)
	}
	return "Channel deleted successfully!", nil
}

func (r *Resolver) AddMemberToServer(ctx context.Context, args struct{ InviteCode string }) (*ServerResolver, error) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return nil, errUnauthenticated
	}
	server, err := r.DB.AddMemberByInvite(ctx, args.InviteCode, id.Email)
	if err != nil {
		return nil, apiErrorFor(ctx, err)
	}
	return &ServerResolver{server: *server}, nil
}

func (r *Resolver) ChangeMemberRole(ctx context.Context, args struct {
	MemberID int32
	Role     string
}) (*ServerResolver, error) {
	pH, err := r.profileH(ctx)
	if err != nil {
		return nil, err
	}
	member, err := r.DB.GetMember(ctx, int(args.MemberID))
	if err != nil {
		return nil, apiErrorFor(ctx, err)
	}
	h, err := r.DB.GetServerH(ctx, member.ServerID, pH)
	if err != nil {
		return nil, apiErrorFor(ctx, err)
	}
	if err := h.ChangeMemberRole(ctx, member.ID, models.MemberRole(args.Role)); err != nil {
		return nil, apiErrorFor(ctx, err)
	}
	view, err := h.Read(ctx)
	if err != nil {
		return nil, apiErrorFor(ctx, err)
	}
	return newServerViewResolver(view), nil
}

func (r *Resolver) DeleteMember(ctx context.Context, args struct{ MemberID int32 }) (*ServerResolver, error) {
	pH, err := r.profileH(ctx)
	if err != nil {
		return nil, err
	}
	member, err := r.DB.GetMember(ctx, int(args.MemberID))
	if err != nil {
		return nil, apiErrorFor(ctx, err)
	}
	h, err := r.DB.GetServerH(ctx, member.ServerID, pH)
	if err != nil {
		return nil, apiErrorFor(ctx, err)
	}
	if err := h.DeleteMember(ctx, member.ID); err != nil {
		return nil, apiErrorFor(ctx, err)
	}
	view, err := h.Read(ctx)
	if err != nil {
		return nil, apiErrorFor(ctx, err)
	}
	return newServerViewResolver(view), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
