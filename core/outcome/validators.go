package outcome

import (
	"github.com/go-playground/validator/v10"

	"github.com/obeworks/kurikulum/core"
)

var (
	categoryTag  = "cpl_category"
	categoryText = "{0} must be one of attitude, knowledge, general_skill or specific_skill"
)

// InitValidators registers the outcome validation tags.
func InitValidators(v *core.Validator) {
	_ = v.Validate.RegisterValidation(categoryTag, categoryValidation)
	core.RegisterCustomTranslation(v.Validate, v.Translator, categoryTag, categoryText)
}

func categoryValidation(fl validator.FieldLevel) bool {
	return Category(fl.Field().String()).IsValid()
}
