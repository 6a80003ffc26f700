package inmemdb

import (
	"context"

	"github.com/cbc-edu/eduplatform/core/identity"
)

type identityRepository struct {
	db *accountTables
}

var _ identity.Repository = (*identityRepository)(nil) // interface compliance check

func NewIdentityRepository(db *DB) *identityRepository {
	return &identityRepository{db: db.accounts}
}

func (repo *identityRepository) GetIdentityByID(_ context.Context, id string) (identity.Identity, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if ident, ok := repo.db.identities[id]; ok {
		return *ident, nil
	}
	return identity.Identity{}, identity.ErrNotFound
}

func (repo *identityRepository) GetIdentityByEmail(_ context.Context, email string) (identity.Identity, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, ident := range repo.db.identities {
		if ident.Email == email {
			return *ident, nil
		}
	}
	return identity.Identity{}, identity.ErrNotFound
}

func (repo *identityRepository) UpdatePassword(_ context.Context, id string, hash []byte) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	ident, ok := repo.db.identities[id]
	if !ok {
		return identity.ErrNotFound
	}
	ident.PasswordHash = append([]byte(nil), hash...)
	return nil
}
