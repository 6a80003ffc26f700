package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/cbc-edu/eduplatform/core/user"
	"github.com/cbc-edu/eduplatform/storage/database"
)

type userRow struct {
	ID            string      `db:"id"`
	Name          string      `db:"name"`
	Email         string      `db:"email"`
	Phone         string      `db:"phone"`
	Role          string      `db:"role"`
	InstitutionID string      `db:"institution_id"`
	ProfileImage  null.String `db:"profile_image"`
	CreatedAt     time.Time   `db:"created_at"`
}

func toUserRow(usr user.User) userRow {
	return userRow{
		ID:            usr.ID,
		Name:          usr.Name,
		Email:         usr.Email,
		Phone:         usr.Phone,
		Role:          usr.Role,
		InstitutionID: usr.InstitutionID,
		ProfileImage:  null.StringFromPtr(usr.ProfileImage),
		CreatedAt:     usr.CreatedAt.UTC(),
	}
}

func (r userRow) user() user.User {
	return user.User{
		ID:            r.ID,
		Name:          r.Name,
		Email:         r.Email,
		Phone:         r.Phone,
		Role:          r.Role,
		InstitutionID: r.InstitutionID,
		ProfileImage:  r.ProfileImage.Ptr(),
		CreatedAt:     r.CreatedAt.UTC(),
	}
}

const userColumns = "id, name, email, phone, role, institution_id, profile_image, created_at"

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string) error {
	var exists bool
	err := repo.db.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM identities WHERE email = $1)", email)
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateAccount(ctx context.Context, acct user.Account) error {
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if err := insertIdentity(ctx, tx, acct.Identity); err != nil {
			return errors.Wrap(err, "inserting identity")
		}
		_, err := tx.NamedExecContext(ctx,
			"INSERT INTO users ("+userColumns+") "+
				"VALUES (:id, :name, :email, :phone, :role, :institution_id, :profile_image, :created_at)",
			toUserRow(acct.User))
		if err != nil {
			return errors.Wrap(err, "inserting user")
		}

		if std := acct.Student; std != nil {
			_, err = tx.ExecContext(ctx,
				"INSERT INTO students (user_id, admission_number, grade_level) VALUES ($1, $2, $3)",
				std.UserID, std.AdmissionNumber, std.GradeLevel)
			if err != nil {
				return errors.Wrap(err, "inserting student")
			}
		}
		if tch := acct.Teacher; tch != nil {
			_, err = tx.ExecContext(ctx,
				"INSERT INTO teachers (user_id, employee_number, qualification) VALUES ($1, $2, $3)",
				tch.UserID, tch.EmployeeNumber, tch.Qualification)
			if err != nil {
				return errors.Wrap(err, "inserting teacher")
			}
		}
		return nil
	})
	if database.IsUniqueViolation(err, "identities_email_key", "users_email_key") {
		return user.ErrEmailExists
	}
	return err
}

func (repo userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	if !validUUID(id) {
		return user.User{}, user.ErrNotFound
	}
	var row userRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+userColumns+" FROM users WHERE id = $1", id); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user by ID")
	}
	return row.user(), nil
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var row userRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+userColumns+" FROM users WHERE email = $1", email); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user by email")
	}
	return row.user(), nil
}

func (repo userRepository) GetStudent(ctx context.Context, userID string) (user.Student, error) {
	if !validUUID(userID) {
		return user.Student{}, user.ErrNotFound
	}
	var std user.Student
	err := repo.db.QueryRowxContext(ctx,
		"SELECT user_id, admission_number, grade_level FROM students WHERE user_id = $1", userID,
	).Scan(&std.UserID, &std.AdmissionNumber, &std.GradeLevel)
	if err != nil {
		return user.Student{}, trapNoRowsErr(err, user.ErrNotFound, "finding student")
	}
	return std, nil
}

func (repo userRepository) GetTeacher(ctx context.Context, userID string) (user.Teacher, error) {
	if !validUUID(userID) {
		return user.Teacher{}, user.ErrNotFound
	}
	var tch user.Teacher
	err := repo.db.QueryRowxContext(ctx,
		"SELECT user_id, employee_number, qualification FROM teachers WHERE user_id = $1", userID,
	).Scan(&tch.UserID, &tch.EmployeeNumber, &tch.Qualification)
	if err != nil {
		return user.Teacher{}, trapNoRowsErr(err, user.ErrNotFound, "finding teacher")
	}
	return tch, nil
}
