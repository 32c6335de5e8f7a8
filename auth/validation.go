package auth

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var (
	emailPattern         = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	twoFactorCodePattern = regexp.MustCompile(`^\d{6}$`)
)

const MinPasswordLength = 8

// LoginRequest is the body of a password login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,dashboard_email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest is the body of an account registration. Field order is the order problems
// are reported in.
type RegisterRequest struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,dashboard_email"`
	Password  string `json:"password" validate:"required,min=8"`
}

// PasswordResetRequest is the body of a password reset request.
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,dashboard_email"`
}

// fieldMessages maps a struct field and failed tag to the message shown on the form.
var fieldMessages = map[string]map[string]string{
	"FirstName": {"required": "First name is required"},
	"LastName":  {"required": "Last name is required"},
	"Email": {
		"required":        "Email is required",
		"dashboard_email": "Please enter a valid email address",
	},
	"Password": {
		"required": "Password is required",
		"min":      "Password must be at least 8 characters long",
	},
}

// Validator runs the form checks performed before any network call.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new Validator instance
func NewValidator() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("dashboard_email", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	return &Validator{validate: v}
}

// ValidateLogin reports the first problem with a login form, if any.
func (v *Validator) ValidateLogin(req LoginRequest) error {
	req.Email = strings.TrimSpace(req.Email)
	return v.first(req)
}

// ValidateRegistration reports the first problem with a registration form, if any.
func (v *Validator) ValidateRegistration(req RegisterRequest) error {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.TrimSpace(req.Email)
	return v.first(req)
}

// ValidatePasswordReset reports a missing or malformed email on a reset request.
func (v *Validator) ValidatePasswordReset(req PasswordResetRequest) error {
	req.Email = strings.TrimSpace(req.Email)
	return v.first(req)
}

// ValidateTwoFactorCode checks an authenticator code is exactly six digits.
func (v *Validator) ValidateTwoFactorCode(code string) error {
	if !twoFactorCodePattern.MatchString(code) {
		return &ValidationError{Field: "Code", Message: "Please enter a valid 6-digit code"}
	}
	return nil
}

func (v *Validator) first(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errors.Wrap(err, "[Validator.first] validate")
	}
	fe := fieldErrs[0]
	msg, ok := fieldMessages[fe.StructField()][fe.Tag()]
	if !ok {
		msg = fe.Field() + " is invalid"
	}
	return &ValidationError{Field: fe.StructField(), Message: msg}
}
