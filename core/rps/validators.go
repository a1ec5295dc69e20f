package rps

import (
	"regexp"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/obeworks/kurikulum/core"
)

var (
	academicYearTag   = "academic_year"
	academicYearText  = "{0} must look like 2024/2025"
	academicYearRegex = regexp.MustCompile(`^(\d{4})/(\d{4})$`)

	termTag  = "rps_term"
	termText = "{0} must be one of ganjil, genap or antara"
	terms    = map[string]bool{"ganjil": true, "genap": true, "antara": true}

	decisionTag  = "approval_decision"
	decisionText = "{0} must be one of approved, rejected or revised"
)

// InitValidators registers the rps validation tags.
func InitValidators(v *core.Validator) {
	_ = v.Validate.RegisterValidation(academicYearTag, academicYearValidation)
	core.RegisterCustomTranslation(v.Validate, v.Translator, academicYearTag, academicYearText)

	_ = v.Validate.RegisterValidation(termTag, termValidation)
	core.RegisterCustomTranslation(v.Validate, v.Translator, termTag, termText)

	_ = v.Validate.RegisterValidation(decisionTag, decisionValidation)
	core.RegisterCustomTranslation(v.Validate, v.Translator, decisionTag, decisionText)
}

// academicYearValidation accepts "YYYY/YYYY" where the second year follows the first.
func academicYearValidation(fl validator.FieldLevel) bool {
	m := academicYearRegex.FindStringSubmatch(fl.Field().String())
	if m == nil {
		return false
	}
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	return end == start+1
}

func termValidation(fl validator.FieldLevel) bool {
	return terms[fl.Field().String()]
}

func decisionValidation(fl validator.FieldLevel) bool {
	_, err := ParseDecision(fl.Field().String())
	return err == nil
}
