package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// minProductionSecretLength applies to JWT_SECRET outside of DEV.
const minProductionSecretLength = 16

// settings is a snapshot of the values the gateway cannot start without.
type settings struct {
	ClientID     string   `env:"OIDC_CLIENT_ID" validate:"required"`
	ClientSecret string   `env:"OIDC_CLIENT_SECRET" validate:"required"`
	Issuer       string   `env:"OIDC_ISSUER" validate:"required,url"`
	RedirectURI  string   `env:"OIDC_REDIRECT_URI" validate:"required,url"`
	Scopes       []string `env:"OIDC_SCOPE" validate:"required,min=1,dive,required"`
	JWTSecret    string   `env:"JWT_SECRET" validate:"required"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("env")
	})
	return v
}

// Validate checks that the OIDC and signing configuration is usable. All
// problems are reported together.
func Validate(c Config) error {
	s := settings{
		ClientID:     c.GetClientID(),
		ClientSecret: c.GetClientSecret(),
		Issuer:       c.GetIssuer(),
		RedirectURI:  c.GetRedirectURI(),
		Scopes:       c.GetScopes(),
		JWTSecret:    c.GetJWTSecret(),
	}

	var problems []string
	v := newValidator()
	if err := v.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("config: %w", err)
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}

	if c.GetEnv() != EnvDevelopment && s.JWTSecret != "" {
		if err := v.Var(s.JWTSecret, fmt.Sprintf("min=%d", minProductionSecretLength)); err != nil {
			problems = append(problems, fmt.Sprintf("JWT_SECRET must be at least %d characters outside %s", minProductionSecretLength, EnvDevelopment))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func describe(fe validator.FieldError) string {
	name := fe.Namespace()
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	switch fe.Tag() {
	case "required", "min":
		return name + " is required"
	case "url":
		return name + " must be an absolute URL"
	default:
		return fmt.Sprintf("%s failed %s", name, fe.Tag())
	}
}
