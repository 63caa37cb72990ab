package attendance

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStudent checks a roster entry before it is saved.
func ValidateStudent(s Student) error {
	s.Name = strings.TrimSpace(s.Name)
	if err := validate.Struct(s); err != nil {
		return invalid("invalid student: %s", describe(err))
	}
	return nil
}

// ValidateUser checks a dashboard user. Teachers must be assigned a grade.
func ValidateUser(u User) error {
	if err := validate.Struct(u); err != nil {
		return invalid("invalid user: %s", describe(err))
	}
	if !u.Role.Valid() {
		return invalid("invalid user: unknown role %q", u.Role)
	}
	if u.Role == RoleTeacher && (u.Grade < 1 || u.Grade > 12) {
		return invalid("invalid user: teachers need a grade between 1 and 12")
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, strings.ToLower(fe.Field())+" failed "+fe.Tag())
	}
	return strings.Join(parts, ", ")
}
