package services

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"
)

var slugRE = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json field names, not Go ones.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	rules := map[string]validator.Func{
		"slug": func(fl validator.FieldLevel) bool {
			return slugRE.MatchString(fl.Field().String())
		},
		"role": func(fl validator.FieldLevel) bool {
			switch fl.Field().String() {
			case "", "user", "moderator", "admin":
				return true
			}
			return false
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}
	return v
}

// validateStruct runs the struct's validate tags and converts the first
// failure into a *ValidationError.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return invalid(fe.Field(), "%s", describe(fe))
	}
	return err
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "enter a valid email address"
	case "max":
		return "ensure this field has no more than " + fe.Param() + " characters"
	case "min", "gte":
		return "ensure this value is greater than or equal to " + fe.Param()
	case "lte":
		return "ensure this value is less than or equal to " + fe.Param()
	case "slug":
		return "enter a valid slug of letters, numbers, underscores or hyphens"
	case "role":
		return "must be one of: user, moderator, admin"
	}
	return "invalid value"
}

// ValidateEmail checks that email is a syntactically valid address of at
// most 40 characters.
func ValidateEmail(email string) error {
	if err := validate.Var(email, "required,email,max=40"); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return invalid("email", "%s", describe(verrs[0]))
		}
		return invalid("email", "enter a valid email address")
	}
	return nil
}

// cleanText trims s and puts it in Unicode NFC so that visually identical
// input compares and searches the same.
func cleanText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
