package web

import "github.com/go-playground/validator/v10"

// GetErrorMsg translates a field validation error into a readable message.
func GetErrorMsg(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return " is required"
	case "min":
		return " must be greater or equal to " + fe.Param()
	case "max":
		return " must be less or equal to " + fe.Param()
	case "gt":
		return " must be greater than " + fe.Param()
	default:
		return " is invalid"
	}
}
