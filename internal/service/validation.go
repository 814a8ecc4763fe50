package service

import (
	"github.com/go-playground/validator/v10"

	"github.com/e-projects/platform-api/internal/models"
)

// RegisterValidations installs custom validation rules shared by the services.
func RegisterValidations(v *validator.Validate) error {
	return v.RegisterValidation("cpf", func(fl validator.FieldLevel) bool {
		return models.IsValidCPF(fl.Field().String())
	})
}
