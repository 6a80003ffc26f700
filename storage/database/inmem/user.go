package inmemdb

import (
	"context"

	"github.com/pkg/errors"

	"github.com/cbc-edu/eduplatform/core/user"
)

type userRepository struct {
	db *accountTables
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db.accounts}
}

func (repo *userRepository) emailExists(email string) bool {
	for _, ident := range repo.db.identities {
		if ident.Email == email {
			return true
		}
	}
	return false
}

func (repo *userRepository) CheckEmailUniqueness(_ context.Context, email string) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if repo.emailExists(email) {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateAccount(_ context.Context, acct user.Account) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if repo.emailExists(acct.Identity.Email) {
		return user.ErrEmailExists
	}
	// same unique columns as the students and teachers tables; nothing is written on conflict
	if std := acct.Student; std != nil {
		for _, other := range repo.db.students {
			if other.AdmissionNumber == std.AdmissionNumber {
				return errors.Errorf("inserting student: admission number %q is taken", std.AdmissionNumber)
			}
		}
	}
	if tch := acct.Teacher; tch != nil {
		for _, other := range repo.db.teachers {
			if other.EmployeeNumber == tch.EmployeeNumber {
				return errors.Errorf("inserting teacher: employee number %q is taken", tch.EmployeeNumber)
			}
		}
	}

	ident := acct.Identity
	usr := acct.User
	repo.db.identities[ident.ID] = &ident
	repo.db.users[usr.ID] = &usr
	if acct.Student != nil {
		std := *acct.Student
		repo.db.students[std.UserID] = &std
	}
	if acct.Teacher != nil {
		tch := *acct.Teacher
		repo.db.teachers[tch.UserID] = &tch
	}
	return nil
}

func (repo *userRepository) GetUserByID(_ context.Context, id string) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if usr, ok := repo.db.users[id]; ok {
		return *usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, usr := range repo.db.users {
		if usr.Email == email {
			return *usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetStudent(_ context.Context, userID string) (user.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if std, ok := repo.db.students[userID]; ok {
		return *std, nil
	}
	return user.Student{}, user.ErrNotFound
}

func (repo *userRepository) GetTeacher(_ context.Context, userID string) (user.Teacher, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if tch, ok := repo.db.teachers[userID]; ok {
		return *tch, nil
	}
	return user.Teacher{}, user.ErrNotFound
}
