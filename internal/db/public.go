// This file contains operations which don't require a server handle:
// either nothing exists yet (server creation) or the caller is not a
// member yet (invite redemption).
package db

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"gitlab.com/ellera/guildhall/internal/models"
)

// CreateServer creates the server, its "general" channel and the
// creator's ADMIN membership in a single transaction. Either all three
// records exist afterwards or none do.
func (sdb *SharedDB) CreateServer(ctx context.Context, name string, creatorProfileID int, imageURL string) (*models.Server, error) {
	server := &models.Server{
		Name:       name,
		ImageURL:   imageURL,
		InviteCode: uuid.NewString(),
		ProfileID:  creatorProfileID,
	}
	err := execTx(ctx, sdb.db, func(ctx context.Context, tx DBTX) error {
		if _, err := readProfile(ctx, tx, sq.Eq{"id": creatorProfileID}); err != nil {
			return err
		}

		sql, args, _ := psql.
			Insert("servers").
			Columns("name", "image_url", "invite_code", "profile_id").
			Values(server.Name, server.ImageURL, server.InviteCode, server.ProfileID).
			Suffix("RETURNING id, created_at").
			ToSql()
		row := tx.QueryRow(ctx, sql, args...)
		if err := row.Scan(&server.ID, &server.CreatedAt); err != nil {
			return err
		}

		if _, err := insertChannel(ctx, tx, server.ID, models.DefaultChannelName, models.ChannelTypeText, creatorProfileID); err != nil {
			return err
		}
		_, err := insertMember(ctx, tx, server.ID, creatorProfileID, models.RoleAdmin)
		return err
	})
	if err != nil {
		return nil, err
	}
	return server, nil
}

// ListServersByMember returns every server the profile behind the email
// belongs to. An unknown email simply matches nothing.
func (sdb *SharedDB) ListServersByMember(ctx context.Context, email string) ([]models.Server, error) {
	servers := []models.Server{}
	sql, args, _ := psql.
		Select("servers.id", "servers.name", "servers.image_url",
			"servers.invite_code", "servers.profile_id", "servers.created_at").
		From("servers").
		Join("members ON members.server_id = servers.id").
		Join("profiles ON profiles.id = members.profile_id").
		Where(sq.Eq{"profiles.email": email}).
		OrderBy("servers.id").
		ToSql()

	err := pgxscan.Select(ctx, sdb.db, &servers, sql, args...)
	if err != nil {
		return nil, err
	}
	return servers, nil
}

// AddMemberByInvite redeems an invite code for the profile behind the
// email. Redeeming twice is a conflict, not a silent success; the
// existence check and the insert share one transaction and the unique
// (server_id, profile_id) index backs them up against races.
func (sdb *SharedDB) AddMemberByInvite(ctx context.Context, inviteCode string, email string) (*models.Server, error) {
	server := &models.Server{}
	err := execTx(ctx, sdb.db, func(ctx context.Context, tx DBTX) error {
		sql, args, _ := psql.
			Select("id", "name", "image_url", "invite_code", "profile_id", "created_at").
			From("servers").
			Where(sq.Eq{"invite_code": inviteCode}).
			ToSql()
		err := pgxscan.Get(ctx, tx, server, sql, args...)
		if pgxscan.NotFound(err) {
			return models.ErrServerNotFound
		} else if err != nil {
			return err
		}

		profile, err := readProfile(ctx, tx, sq.Eq{"email": email})
		if err != nil {
			return err
		}

		if _, err := readMember(ctx, tx, sq.Eq{"server_id": server.ID, "profile_id": profile.ID}); err == nil {
			return models.ErrAlreadyMember
		} else if !errors.Is(err, models.ErrMemberNotFound) {
			return err
		}

		_, err = insertMember(ctx, tx, server.ID, profile.ID, models.RoleGuest)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "members_server_id_profile_id_key" {
			return models.ErrAlreadyMember
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return server, nil
}

func insertChannel(ctx context.Context, db DBTX, serverID int, name string, channelType models.ChannelType, profileID int) (*models.Channel, error) {
	channel := &models.Channel{
		ServerID:  serverID,
		Name:      name,
		Type:      channelType,
		ProfileID: profileID,
	}
	sql, args, _ := psql.
		Insert("channels").
		Columns("server_id", "name", "type", "profile_id").
		Values(serverID, name, channelType, profileID).
		Suffix("RETURNING id, created_at").
		ToSql()

	row := db.QueryRow(ctx, sql, args...)
	err := row.Scan(&channel.ID, &channel.CreatedAt)
	if err != nil {
		return nil, err
	}
	return channel, nil
}

func insertMember(ctx context.Context, db DBTX, serverID int, profileID int, role models.MemberRole) (*models.Member, error) {
	member := &models.Member{
		ServerID:  serverID,
		ProfileID: profileID,
		Role:      role,
	}
	sql, args, _ := psql.
		Insert("members").
		Columns("server_id", "profile_id", "role").
		Values(serverID, profileID, role).
		Suffix("RETURNING id, created_at").
		ToSql()

	row := db.QueryRow(ctx, sql, args...)
	err := row.Scan(&member.ID, &member.CreatedAt)
	if err != nil {
		return nil, err
	}
	return member, nil
}

// GetMember and GetChannel resolve by bare id. The API layer uses them
// to find which server an id belongs to before building a handle; no
// authorization happens here.
func (sdb *SharedDB) GetMember(ctx context.Context, memberID int) (*models.Member, error) {
	return readMember(ctx, sdb.db, sq.Eq{"id": memberID})
}

func (sdb *SharedDB) GetChannel(ctx context.Context, channelID int) (*models.Channel, error) {
	return readChannel(ctx, sdb.db, sq.Eq{"id": channelID})
}

func readChannel(ctx context.Context, db DBTX, pred sq.Eq) (*models.Channel, error) {
	channel := &models.Channel{}
	sql, args, _ := psql.
		Select("id", "server_id", "name", "type", "profile_id", "created_at").
		From("channels").
		Where(pred).
		ToSql()

	err := pgxscan.Get(ctx, db, channel, sql, args...)
	if pgxscan.NotFound(err) {
		return nil, models.ErrChannelNotFound
	} else if err != nil {
		return nil, err
	}
	return channel, nil
}

func readMember(ctx context.Context, db DBTX, pred sq.Eq) (*models.Member, error) {
	member := &models.Member{}
	sql, args, _ := psql.
		Select("id", "server_id", "profile_id", "role", "created_at").
		From("members").
		Where(pred).
		ToSql()

	err := pgxscan.Get(ctx, db, member, sql, args...)
	if pgxscan.NotFound(err) {
		return nil, models.ErrMemberNotFound
	} else if err != nil {
		return nil, err
	}
	return member, nil
}
