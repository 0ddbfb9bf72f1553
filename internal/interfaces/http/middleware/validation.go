package middleware

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/omkarjtg/ecomm/internal/application/validation"
)

// SetupValidator makes gin's binding validator report fields by their JSON
// names, matching the inline errors produced by the services.
func SetupValidator() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		validation.RegisterJSONNames(v)
	}
}
