package user

import (
	"context"
	"net/mail"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/cbc-edu/eduplatform/core"
	"github.com/cbc-edu/eduplatform/core/identity"
)

// MsgAccountCreated is shown once registration succeeded.
const MsgAccountCreated = "Account created successfully! Please check your email to verify your account."

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound    = errors.New("user not found")
	ErrEmailExists = errors.New("a user with this email already exists")
)

type (
	Repository interface {
		// CheckEmailUniqueness returns ErrEmailExists when an identity already uses email.
		CheckEmailUniqueness(ctx context.Context, email string) error
		// CreateAccount writes the identity, the user and the role profile of acct at once:
		// either all of them are stored or none is.
		CreateAccount(ctx context.Context, acct Account) error
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		GetStudent(ctx context.Context, userID string) (Student, error)
		GetTeacher(ctx context.Context, userID string) (Teacher, error)
	}

	Service struct {
		repo          Repository
		mailSvc       core.EmailService
		validate      *validator.Validate
		institutionID string
	}
)

func NewService(
	repo Repository,
	mailSvc core.EmailService,
	validate *validator.Validate,
	conf *core.Config,
) *Service {
	institutionID := conf.InstitutionID
	if institutionID == "" {
		institutionID = core.DefaultInstitutionID
	}
	return &Service{
		repo:          repo,
		mailSvc:       mailSvc,
		validate:      validate,
		institutionID: institutionID,
	}
}

func (svc *Service) checkUniqueness(ctx context.Context, email string) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
		}
		return errors.Wrap(err, "checking email uniqueness")
	}
	return nil
}

// Register validates na, then creates the identity, the user and the role profile in one go.
// A welcome email is sent once the account exists.
func (svc *Service) Register(ctx context.Context, na NewAccount) (User, error) {
	if err := na.Validate(svc.validate); err != nil {
		return User{}, err
	}
	if err := svc.checkUniqueness(ctx, na.Email); err != nil {
		return User{}, err
	}

	ident, err := identity.NewIdentity(na.Email, na.Phone, na.Password)
	if err != nil {
		return User{}, errors.Wrap(err, "creating identity")
	}

	now := NowFunc()
	acct := Account{
		Identity: ident,
		User: User{
			ID:            ident.ID,
			Name:          na.Name,
			Email:         ident.Email,
			Phone:         ident.Phone,
			Role:          na.Role,
			InstitutionID: svc.institutionID,
			CreatedAt:     now.UTC(),
		},
	}
	switch na.Role {
	case RoleStudent:
		acct.Student = &Student{
			UserID:          ident.ID,
			AdmissionNumber: fallback(na.AdmissionNumber, "ADM", now),
			GradeLevel:      na.GradeLevel,
		}
	case RoleTeacher:
		acct.Teacher = &Teacher{
			UserID:         ident.ID,
			EmployeeNumber: fallback(na.EmployeeNumber, "EMP", now),
			Qualification:  na.Qualification,
		}
	}

	if err = svc.repo.CreateAccount(ctx, acct); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return User{}, core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
		}
		return User{}, errors.Wrap(err, "creating account")
	}

	svc.sendWelcomeMail(acct.User)
	return acct.User, nil
}

func (svc *Service) sendWelcomeMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Welcome",
		TemplateName: "welcome",
		TemplateData: usr,
	})
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

// GetProfile returns the user with id along with their role profile.
func (svc *Service) GetProfile(ctx context.Context, id string) (Profile, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	prof := Profile{User: usr}
	switch usr.Role {
	case RoleStudent:
		std, err := svc.repo.GetStudent(ctx, usr.ID)
		if err != nil && errors.Cause(err) != ErrNotFound {
			return Profile{}, errors.Wrap(err, "getting student")
		} else if err == nil {
			prof.Student = &std
		}
	case RoleTeacher:
		tch, err := svc.repo.GetTeacher(ctx, usr.ID)
		if err != nil && errors.Cause(err) != ErrNotFound {
			return Profile{}, errors.Wrap(err, "getting teacher")
		} else if err == nil {
			prof.Teacher = &tch
		}
	}
	return prof, nil
}

// fallback is val, or prefix followed by the unix time in milliseconds when val is empty.
func fallback(val, prefix string, now time.Time) string {
	if val != "" {
		return val
	}
	return prefix + strconv.FormatInt(now.UnixNano()/int64(time.Millisecond), 10)
}
