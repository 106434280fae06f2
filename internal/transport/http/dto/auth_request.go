package dto

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/holdfast/auth-service/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	// report json names in errors
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// validateStruct maps the first validator failure to a domain validation error.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.ErrInternal(err)
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return domain.ErrMissingField(fe.Field())
	case "max":
		return domain.ErrInvalidField(fe.Field(), "too long")
	default:
		return domain.ErrInvalidField(fe.Field(), fe.Tag())
	}
}

// -------- Federated login --------

// CallbackRequest carries the provider ID token obtained by the client.
type CallbackRequest struct {
	IDToken string `json:"id_token" validate:"required,max=16384"`
	Nonce   string `json:"nonce" validate:"max=512"`
}

func (r *CallbackRequest) Validate() error {
	r.IDToken = strings.TrimSpace(r.IDToken)
	return validateStruct(r)
}

// -------- Session tokens --------

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required,max=4096"`
}

func (r *RefreshRequest) Validate() error {
	r.RefreshToken = strings.TrimSpace(r.RefreshToken)
	return validateStruct(r)
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required,max=4096"`
}

func (r *LogoutRequest) Validate() error {
	r.RefreshToken = strings.TrimSpace(r.RefreshToken)
	return validateStruct(r)
}
