package widget

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	apperrors "github.com/alexjbarnes/ampwidgets/internal/errors"
	"github.com/go-playground/validator/v10"
)

// Attributes are the element's markup attributes.
type Attributes map[string]string

// Lookup reports the attribute value and whether it was set.
func (a Attributes) Lookup(name string) (string, bool) {
	v, ok := a[name]
	return v, ok
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report the markup attribute name instead of the Go field name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("attr"), ",")
		if name == "" {
			return f.Name
		}

		return name
	})

	if err := v.RegisterValidation("secure_url", validateSecureURL); err != nil {
		panic(err)
	}

	return v
}

func validateSecureURL(fl validator.FieldLevel) bool {
	return IsSecureURL(fl.Field().String())
}

// IsSecureURL accepts https URLs, protocol-relative URLs, and http URLs
// served from localhost.
func IsSecureURL(raw string) bool {
	if strings.HasPrefix(raw, "//") {
		return true
	}

	u, err := url.Parse(raw)
	if err != nil {
		return false
	}

	switch strings.ToLower(u.Scheme) {
	case "https":
		return u.Host != ""
	case "http":
		host := strings.ToLower(u.Hostname())
		return host == "localhost" || host == "127.0.0.1" || strings.HasSuffix(host, ".localhost")
	default:
		return false
	}
}

// validateAttributes checks attrs, a struct with `attr` and `validate`
// tags, and names the offending attribute in the error.
func validateAttributes(element string, attrs any) error {
	err := validate.Struct(attrs)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %s: %w", apperrors.ErrInvalidAttribute, element, err)
	}

	fe := verrs[0]

	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%w: <%s> %s must be available", apperrors.ErrInvalidAttribute, element, fe.Field())
	case "secure_url":
		return fmt.Errorf("%w: <%s> %s must start with \"https://\" or \"//\" or be served from localhost. Invalid value: %s",
			apperrors.ErrInvalidAttribute, element, fe.Field(), fe.Value())
	default:
		return fmt.Errorf("%w: <%s> %s failed %s", apperrors.ErrInvalidAttribute, element, fe.Field(), fe.Tag())
	}
}
