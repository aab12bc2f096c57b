package collab

import (
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/sameeradaveen/lms-new-main/core"
)

var (
	noControlTag  = "nocontrol"
	noControlText = "control characters are not allowed"
)

// InitValidators registers the collab validations. core.InitValidators must run first.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(noControlTag, noControlValidation)
	core.RegisterCustomTranslation(validate, translator, noControlTag, noControlText)
}

func (jr *JoinRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(jr)
}

func noControlValidation(fl validator.FieldLevel) bool {
	for _, r := range fl.Field().String() {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}
