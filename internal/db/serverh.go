package db

import (
	"context"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/pgxscan"
	"github.com/google/uuid"
	"gitlab.com/ellera/guildhall/internal/models"
)

// ServerH is a capability handle on a single server. Constructing one
// proves the acting profile is a member; the member row (and therefore
// the caller's role) is loaded once and checked at the top of every
// mutating method.
//
// Role-change and member-removal re-read the caller's row inside their
// transaction, so a concurrent demotion can't slip through between the
// handle check and the write.
type ServerH struct {
	sharedDB  DBTX
	rawServer *models.Server
	member    models.Member
}

// GetServerH loads the server and the caller's membership. A server the
// caller doesn't belong to is reported as not found, exactly like one
// that doesn't exist.
func (sdb *SharedDB) GetServerH(ctx context.Context, serverID int, pH *ProfileH) (*ServerH, error) {
	rawServer, err := readServer(ctx, sdb.db, serverID)
	if err != nil {
		return nil, err
	}
	member, err := readMember(ctx, sdb.db, sq.Eq{"server_id": serverID, "profile_id": pH.id})
	if err != nil {
		return nil, models.ErrServerNotFound
	}
	return &ServerH{
		sharedDB:  sdb.db,
		rawServer: rawServer,
		member:    *member,
	}, nil
}

func (h *ServerH) Server() models.Server {
	return *h.rawServer
}
func (h *ServerH) Member() models.Member {
	return h.member
}

func (h *ServerH) requireRole(roles ...models.MemberRole) error {
	for _, r := range roles {
		if h.member.Role == r {
			return nil
		}
	}
	return models.ErrPermDenied
}

// Read returns the server with members (profiles included) and channels.
func (h *ServerH) Read(ctx context.Context) (*models.ServerView, error) {
	view := &models.ServerView{Server: *h.rawServer}

	sql, args, _ := psql.
		Select(
			"members.id", "members.server_id", "members.profile_id",
			"members.role", "members.created_at",
			`profiles.id AS "profile.id"`,
			`profiles.name AS "profile.name"`,
			`profiles.email AS "profile.email"`,
			`profiles.image_url AS "profile.image_url"`,
			`profiles.created_at AS "profile.created_at"`,
		).
		From("members").
		Join("profiles ON profiles.id = members.profile_id").
		Where(sq.Eq{"members.server_id": h.rawServer.ID}).
		OrderBy("members.id").
		ToSql()
	err := pgxscan.Select(ctx, h.sharedDB, &view.Members, sql, args...)
	if err != nil {
		return nil, err
	}

	sql, args, _ = psql.
		Select("id", "server_id", "name", "type", "profile_id", "created_at").
		From("channels").
		Where(sq.Eq{"server_id": h.rawServer.ID}).
		OrderBy("id").
		ToSql()
	err = pgxscan.Select(ctx, h.sharedDB, &view.Channels, sql, args...)
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (h *ServerH) Update(ctx context.Context, name string, imageURL string) (*models.Server, error) {
	if err := h.requireRole(models.RoleAdmin); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, models.ErrInvalidFormat
	}

	sql, args, _ := psql.
		Update("servers").
		Set("name", name).
		Set("image_url", imageURL).
		Where(sq.Eq{"id": h.rawServer.ID}).
		ToSql()
	_, err := h.sharedDB.Exec(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	h.rawServer.Name = name
	h.rawServer.ImageURL = imageURL
	return h.rawServer, nil
}

// RegenerateInviteCode replaces the invite code; the old one stops
// resolving immediately.
func (h *ServerH) RegenerateInviteCode(ctx context.Context) (*models.Server, error) {
	if err := h.requireRole(models.RoleAdmin); err != nil {
		return nil, err
	}

	code := uuid.NewString()
	sql, args, _ := psql.
		Update("servers").
		Set("invite_code", code).
		Where(sq.Eq{"id": h.rawServer.ID}).
		ToSql()
	_, err := h.sharedDB.Exec(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	h.rawServer.InviteCode = code
	return h.rawServer, nil
}

func (h *ServerH) CreateChannel(ctx context.Context, name string, channelType models.ChannelType) (*models.Channel, error) {
	if err := h.requireRole(models.RoleAdmin, models.RoleModerator); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" || !channelType.Valid() {
		return nil, models.ErrInvalidFormat
	}
	return insertChannel(ctx, h.sharedDB, h.rawServer.ID, name, channelType, h.member.ProfileID)
}

// DeleteChannel removes a channel the caller created. The default
// "general" channel is protected for every caller.
func (h *ServerH) DeleteChannel(ctx context.Context, channelID int) error {
	channel, err := readChannel(ctx, h.sharedDB, sq.Eq{"id": channelID, "server_id": h.rawServer.ID})
	if err != nil {
		return err
	}

	if channel.Name == models.DefaultChannelName {
		return models.ErrPermDenied
	}
	if channel.ProfileID != h.member.ProfileID {
		return models.ErrPermDenied
	}

	sql, args, _ := psql.Delete("channels").Where(sq.Eq{"id": channelID}).ToSql()
	_, err = h.sharedDB.Exec(ctx, sql, args...)
	return err
}

// Leave removes the caller's membership. Zero affected rows is fine.
func (h *ServerH) Leave(ctx context.Context) error {
	sql, args, _ := psql.
		Delete("members").
		Where(sq.Eq{"server_id": h.rawServer.ID, "profile_id": h.member.ProfileID}).
		ToSql()
	_, err := h.sharedDB.Exec(ctx, sql, args...)
	return err
}

// Delete removes the server; channels and members go with it through
// the foreign keys.
func (h *ServerH) Delete(ctx context.Context) error {
	if err := h.requireRole(models.RoleAdmin); err != nil {
		return err
	}
	sql, args, _ := psql.Delete("servers").Where(sq.Eq{"id": h.rawServer.ID}).ToSql()
	_, err := h.sharedDB.Exec(ctx, sql, args...)
	return err
}

// ChangeMemberRole updates a member's role. Only an ADMIN of the same
// server may change roles, never their own, and the last ADMIN can't be
// demoted. All checks share the update's transaction.
func (h *ServerH) ChangeMemberRole(ctx context.Context, memberID int, role models.MemberRole) error {
	if !role.Valid() {
		return models.ErrInvalidFormat
	}
	return execTx(ctx, h.sharedDB, func(ctx context.Context, tx DBTX) error {
		target, err := readMember(ctx, tx, sq.Eq{"id": memberID, "server_id": h.rawServer.ID})
		if err != nil {
			return err
		}
		caller, err := readMember(ctx, tx, sq.Eq{"server_id": h.rawServer.ID, "profile_id": h.member.ProfileID})
		if err != nil {
			return models.ErrPermDenied
		}
		if caller.Role != models.RoleAdmin {
			return models.ErrPermDenied
		}
		if target.ID == caller.ID {
			return models.ErrPermDenied
		}
		if target.Role == models.RoleAdmin && role != models.RoleAdmin {
			if err := requireAnotherAdmin(ctx, tx, h.rawServer.ID, target.ID); err != nil {
				return err
			}
		}

		sql, args, _ := psql.
			Update("members").
			Set("role", role).
			Where(sq.Eq{"id": target.ID}).
			ToSql()
		_, err = tx.Exec(ctx, sql, args...)
		return err
	})
}

// DeleteMember kicks a member. Allowed for an ADMIN of the same server
// and for the member themselves; the last ADMIN can never be removed.
func (h *ServerH) DeleteMember(ctx context.Context, memberID int) error {
	return execTx(ctx, h.sharedDB, func(ctx context.Context, tx DBTX) error {
		target, err := readMember(ctx, tx, sq.Eq{"id": memberID, "server_id": h.rawServer.ID})
		if err != nil {
			return err
		}
		caller, err := readMember(ctx, tx, sq.Eq{"server_id": h.rawServer.ID, "profile_id": h.member.ProfileID})
		if err != nil {
			return models.ErrPermDenied
		}
		if caller.Role != models.RoleAdmin && target.ID != caller.ID {
			return models.ErrPermDenied
		}
		if target.Role == models.RoleAdmin {
			if err := requireAnotherAdmin(ctx, tx, h.rawServer.ID, target.ID); err != nil {
				return err
			}
		}

		sql, args, _ := psql.Delete("members").Where(sq.Eq{"id": target.ID}).ToSql()
		_, err = tx.Exec(ctx, sql, args...)
		return err
	})
}

func readServer(ctx context.Context, db DBTX, serverID int) (*models.Server, error) {
	server := &models.Server{}
	sql, args, _ := psql.
		Select("id", "name", "image_url", "invite_code", "profile_id", "created_at").
		From("servers").
		Where(sq.Eq{"id": serverID}).
		ToSql()

	err := pgxscan.Get(ctx, db, server, sql, args...)
	if pgxscan.NotFound(err) {
		return nil, models.ErrServerNotFound
	} else if err != nil {
		return nil, err
	}
	return server, nil
}

// requireAnotherAdmin fails unless some ADMIN other than excludeMemberID
// remains on the server.
func requireAnotherAdmin(ctx context.Context, db DBTX, serverID int, excludeMemberID int) error {
	sql, args, _ := psql.
		Select("COUNT(*)").
		From("members").
		Where(sq.Eq{"server_id": serverID, "role": models.RoleAdmin}).
		Where(sq.NotEq{"id": excludeMemberID}).
		ToSql()

	c := 0
	row := db.QueryRow(ctx, sql, args...)
	if err := row.Scan(&c); err != nil {
		return err
	}
	if c == 0 {
		return models.ErrPermDenied
	}
	return nil
}
