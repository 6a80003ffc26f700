package user

import (
	"unicode/utf8"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/cbc-edu/eduplatform/core"
)

var (
	userRoleTag  = "userrole"
	userRoleText = "invalid role"

	gradeLevelTag  = "gradelevel"
	gradeLevelText = "invalid grade level"

	// password policy
	pwdMinLen     = 6
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = "Password must be at least 6 characters"

	pwdMatchTag  = "pwdmatch"
	pwdMatchText = "Passwords do not match"
)

// InitValidators registers the user validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(userRoleTag, oneOfValidation(AllRoles))
	core.RegisterCustomTranslation(validate, translator, userRoleTag, userRoleText)

	_ = validate.RegisterValidation(gradeLevelTag, oneOfValidation(GradeLevels))
	core.RegisterCustomTranslation(validate, translator, gradeLevelTag, gradeLevelText)

	validate.RegisterStructValidation(newAccountStructValidation, NewAccount{})
	core.RegisterCustomTranslation(validate, translator, pwdMinLenTag, pwdMinLenText)
	core.RegisterCustomTranslation(validate, translator, pwdMatchTag, pwdMatchText)
}

// Custom Validators

func oneOfValidation(allowed []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		val := fl.Field().String()
		for _, a := range allowed {
			if val == a {
				return true
			}
		}
		return false
	}
}

// newAccountStructValidation applies the password policy:
// - password and confirmation match
// - minLen: 6
func newAccountStructValidation(sl validator.StructLevel) {
	na, ok := sl.Current().Interface().(NewAccount)
	if !ok {
		return
	}
	if na.Password != na.PasswordConfirm {
		sl.ReportError(na.PasswordConfirm, "password_confirm", "PasswordConfirm", pwdMatchTag, "")
	}
	if na.Password != "" && utf8.RuneCountInString(na.Password) < pwdMinLen {
		sl.ReportError(na.Password, "password", "Password", pwdMinLenTag, "")
	}
}
