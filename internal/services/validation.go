package services

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"busmate/internal/apperrors"
	"busmate/internal/models"
)

// Departments offered at registration. An empty department is allowed.
var Departments = []string{
	"Polytechnic",
	"Btech cs",
	"Btech electrical",
	"Btech mechanical",
	"BBA",
	"MBA",
	"BCA",
	"MCA",
}

// NewValidator returns a validator that reports JSON field names and knows
// the department and user_type rules.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("department", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		if value == "" {
			return true
		}
		for _, d := range Departments {
			if d == value {
				return true
			}
		}
		return false
	})
	_ = v.RegisterValidation("user_type", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		return value == "" || models.UserType(value).Valid()
	})
	return v
}

// validationError turns the first failed rule into an apperrors validation error.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return apperrors.Validation(field, field+" is required")
	case "email":
		return apperrors.Validation(field, "enter a valid email address")
	case "max":
		return apperrors.Validation(field, field+" must be at most "+fe.Param()+" characters")
	case "min":
		return apperrors.Validation(field, field+" must be at least "+fe.Param()+" characters")
	case "department":
		return apperrors.Validation(field, "unknown department")
	case "user_type":
		return apperrors.Validation(field, "user type must be STUDENT or FACULTY")
	}
	return apperrors.Validation(field, "invalid value")
}
