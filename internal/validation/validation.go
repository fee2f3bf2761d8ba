// Package validation checks records against their schema rules before any write.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"task-manager/internal/domain"
)

const (
	PasswordMinLength = 7
	// bcrypt ignores everything past 72 bytes.
	PasswordMaxBytes = 72
	forbiddenWord    = "password"
)

// ErrValidation is matched by every FieldError.
var ErrValidation = errors.New("validation failed")

// FieldError describes a single violated rule.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *FieldError) Is(target error) bool {
	return target == ErrValidation
}

var validate = validator.New()

// ValidateUser runs every field rule of the user schema and joins the violations.
// Password rules apply only to a plaintext set in this operation.
func ValidateUser(u *domain.User) error {
	var errs []error
	if err := ValidateEmail(u.Email); err != nil {
		errs = append(errs, err)
	}
	if u.PasswordChanged() {
		if err := ValidatePassword(u.Password); err != nil {
			errs = append(errs, err)
		}
	} else if u.Password == "" {
		errs = append(errs, &FieldError{Field: "password", Message: "password is required"})
	}
	return errors.Join(errs...)
}

// ValidateEmail requires a syntactically valid address.
func ValidateEmail(email string) error {
	if email == "" {
		return &FieldError{Field: "email", Message: "email is required"}
	}
	if err := validate.Var(email, "email"); err != nil {
		return &FieldError{Field: "email", Message: "invalid email"}
	}
	return nil
}

// ValidatePassword checks a plaintext password.
func ValidatePassword(password string) error {
	if password == "" {
		return &FieldError{Field: "password", Message: "password is required"}
	}
	if utf8.RuneCountInString(password) < PasswordMinLength {
		return &FieldError{Field: "password", Message: fmt.Sprintf("password must be at least %d characters", PasswordMinLength)}
	}
	if len(password) > PasswordMaxBytes {
		return &FieldError{Field: "password", Message: fmt.Sprintf("password must not exceed %d bytes", PasswordMaxBytes)}
	}
	if strings.Contains(strings.ToLower(password), forbiddenWord) {
		return &FieldError{Field: "password", Message: `password can not contain "password"`}
	}
	return nil
}

// ValidateTask checks a task before it is written.
func ValidateTask(t *domain.Task) error {
	var errs []error
	if strings.TrimSpace(t.Description) == "" {
		errs = append(errs, &FieldError{Field: "description", Message: "description is required"})
	}
	if t.Owner == "" {
		errs = append(errs, &FieldError{Field: "owner", Message: "owner is required"})
	}
	return errors.Join(errs...)
}

// Messages flattens the field errors contained in err.
func Messages(err error) map[string]string {
	out := map[string]string{}
	collect(err, out)
	return out
}

func collect(err error, out map[string]string) {
	if err == nil {
		return
	}
	if fe, ok := err.(*FieldError); ok {
		if _, exists := out[fe.Field]; !exists {
			out[fe.Field] = fe.Message
		}
		return
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			collect(e, out)
		}
		return
	}
	if next := errors.Unwrap(err); next != nil {
		collect(next, out)
	}
}
