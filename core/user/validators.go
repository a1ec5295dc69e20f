package user

import (
	"github.com/go-playground/validator/v10"

	"github.com/obeworks/kurikulum/core"
)

var (
	allRolesTag  = "allroles"
	allRolesText = "invalid roles"
)

func InitValidators(v *core.Validator) {
	_ = v.Validate.RegisterValidation(allRolesTag, allRolesValidation)
	core.RegisterCustomTranslation(v.Validate, v.Translator, allRolesTag, allRolesText)
}

func allRolesValidation(fl validator.FieldLevel) bool {
	roles, ok := fl.Field().Interface().([]string)
	if !ok {
		return false
	}
	for _, role := range roles {
		if _, known := rolePriorities[role]; !known {
			return false
		}
	}
	return true
}
