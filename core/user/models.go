package user

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cbc-edu/eduplatform/core"
	"github.com/cbc-edu/eduplatform/core/identity"
)

// Roles
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleParent  = "parent"
)

var (
	AllRoles = []string{RoleStudent, RoleTeacher, RoleParent}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Parent", Value: RoleParent},
	}

	// GradeLevels are the CBC grade levels a student can enrol in.
	GradeLevels = []string{"PP1", "PP2", "Grade 1", "Grade 2", "Grade 3"}
)

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	Role          string    `json:"role"`
	InstitutionID string    `json:"institution_id"`
	ProfileImage  *string   `json:"profile_image,omitempty"`
	CreatedAt     time.Time `json:"created_at"` // UTC
}

func (u User) IsStudent() bool { return u.Role == RoleStudent }
func (u User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u User) IsParent() bool  { return u.Role == RoleParent }

// Person is the log-friendly identification of the user.
func (u User) Person() core.Person {
	return core.Person{ID: u.ID, Name: u.Name, Email: u.Email}
}

type Student struct {
	UserID          string `json:"user_id"`
	AdmissionNumber string `json:"admission_number"`
	GradeLevel      string `json:"grade_level"`
}

type Teacher struct {
	UserID         string `json:"user_id"`
	EmployeeNumber string `json:"employee_number"`
	Qualification  string `json:"qualification"`
}

// Account is everything written when someone registers: their identity, their base profile and their role profile.
type Account struct {
	Identity identity.Identity
	User     User
	Student  *Student
	Teacher  *Teacher
}

// Profile is a User along with their role profile.
type Profile struct {
	User
	Student *Student `json:"student,omitempty"`
	Teacher *Teacher `json:"teacher,omitempty"`
}

// NewAccount contains information needed to register a new User.
type NewAccount struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required"`
	Phone           string `json:"phone"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm"`
	Role            string `json:"role" validate:"required,userrole"`

	// student
	GradeLevel      string `json:"grade_level" validate:"omitempty,gradelevel"`
	AdmissionNumber string `json:"admission_number"`

	// teacher
	EmployeeNumber string `json:"employee_number"`
	Qualification  string `json:"qualification"`
}

func (na *NewAccount) Validate(validate *validator.Validate) error {
	na.Name = core.CleanString(na.Name)
	na.Email = core.CleanString(na.Email, true /* lower */)
	na.Phone = core.CleanString(na.Phone)
	na.Role = core.CleanString(na.Role, true /* lower */)
	na.GradeLevel = core.CleanString(na.GradeLevel)
	na.AdmissionNumber = core.CleanString(na.AdmissionNumber)
	na.EmployeeNumber = core.CleanString(na.EmployeeNumber)
	na.Qualification = core.CleanString(na.Qualification)
	return validate.Struct(na)
}
