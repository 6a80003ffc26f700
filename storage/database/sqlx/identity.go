package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/cbc-edu/eduplatform/core/identity"
)

type identityRow struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	Phone        string    `db:"phone"`
	PasswordHash []byte    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r identityRow) identity() identity.Identity {
	return identity.Identity{
		ID:           r.ID,
		Email:        r.Email,
		Phone:        r.Phone,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

const identityColumns = "id, email, phone, password_hash, created_at"

type identityRepository struct {
	db *sqlx.DB
}

var _ identity.Repository = (*identityRepository)(nil) // interface compliance check

func NewIdentityRepository(db *sqlx.DB) *identityRepository {
	return &identityRepository{db: db}
}

func insertIdentity(ctx context.Context, exec executor, ident identity.Identity) error {
	_, err := sqlx.NamedExecContext(ctx, exec,
		"INSERT INTO identities ("+identityColumns+") VALUES (:id, :email, :phone, :password_hash, :created_at)",
		identityRow{
			ID:           ident.ID,
			Email:        ident.Email,
			Phone:        ident.Phone,
			PasswordHash: ident.PasswordHash,
			CreatedAt:    ident.CreatedAt.UTC(),
		})
	return err
}

func (repo identityRepository) GetIdentityByID(ctx context.Context, id string) (identity.Identity, error) {
	if !validUUID(id) {
		return identity.Identity{}, identity.ErrNotFound
	}
	var row identityRow
	err := repo.db.GetContext(ctx, &row, "SELECT "+identityColumns+" FROM identities WHERE id = $1", id)
	if err != nil {
		return identity.Identity{}, trapNoRowsErr(err, identity.ErrNotFound, "finding identity by ID")
	}
	return row.identity(), nil
}

func (repo identityRepository) GetIdentityByEmail(ctx context.Context, email string) (identity.Identity, error) {
	var row identityRow
	err := repo.db.GetContext(ctx, &row, "SELECT "+identityColumns+" FROM identities WHERE email = $1", email)
	if err != nil {
		return identity.Identity{}, trapNoRowsErr(err, identity.ErrNotFound, "finding identity by email")
	}
	return row.identity(), nil
}

func (repo identityRepository) UpdatePassword(ctx context.Context, id string, hash []byte) error {
	if !validUUID(id) {
		return identity.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, "UPDATE identities SET password_hash = $1 WHERE id = $2", hash, id)
	if err != nil {
		return errors.Wrap(err, "updating password")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return identity.ErrNotFound
	}
	return nil
}
