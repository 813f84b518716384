package db

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/pgxscan"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"gitlab.com/ellera/guildhall/internal/models"
	"gitlab.com/ellera/guildhall/internal/utils"
)

// ProfileH is a capability handle on an authenticated profile.
// Holding one proves the profile exists and the caller is allowed
// to act as it.
type ProfileH struct {
	id       int
	email    string
	sharedDB DBTX
}

func (h ProfileH) ID() int {
	return h.id
}
func (h ProfileH) Email() string {
	return h.email
}

// CreateProfile inserts a profile built from verified identity claims.
// The email is the identity anchor and must be unique.
func (sdb *SharedDB) CreateProfile(ctx context.Context, profile *models.Profile) (*ProfileH, error) {
	if !utils.ValidateEmail(profile.Email) {
		return nil, models.ErrInvalidFormat
	}

	sql, args, _ := psql.
		Insert("profiles").
		Columns("name", "email", "image_url").
		Values(profile.Name, profile.Email, profile.ImageURL).
		Suffix("RETURNING id, created_at").
		ToSql()

	row := sdb.db.QueryRow(ctx, sql, args...)
	err := row.Scan(&profile.ID, &profile.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.ConstraintName == "profiles_email_key" {
		return nil, models.ErrEmailAlreadyUsed
	} else if err != nil {
		return nil, err
	}

	return &ProfileH{id: profile.ID, email: profile.Email, sharedDB: sdb.db}, nil
}

// GetProfileH resolves the acting profile by the email found in the
// caller's token claims.
func (sdb *SharedDB) GetProfileH(ctx context.Context, email string) (*ProfileH, error) {
	h := &ProfileH{email: email, sharedDB: sdb.db}
	sql, args, _ := psql.
		Select("id").
		From("profiles").
		Where(sq.Eq{"email": email}).
		ToSql()

	row := sdb.db.QueryRow(ctx, sql, args...)
	err := row.Scan(&h.id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrProfileNotFound
	} else if err != nil {
		return nil, err
	}
	return h, nil
}

func (sdb *SharedDB) GetProfileByID(ctx context.Context, id int) (*models.Profile, error) {
	return readProfile(ctx, sdb.db, sq.Eq{"id": id})
}

func (h ProfileH) Read(ctx context.Context) (*models.Profile, error) {
	return readProfile(ctx, h.sharedDB, sq.Eq{"id": h.id})
}

func readProfile(ctx context.Context, db DBTX, pred sq.Eq) (*models.Profile, error) {
	profile := &models.Profile{}
	sql, args, _ := psql.
		Select("id", "name", "email", "image_url", "created_at").
		From("profiles").
		Where(pred).
		ToSql()

	err := pgxscan.Get(ctx, db, profile, sql, args...)
	if pgxscan.NotFound(err) {
		return nil, models.ErrProfileNotFound
	} else if err != nil {
		return nil, err
	}
	return profile, nil
}
