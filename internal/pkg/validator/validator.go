package validator

import (
	"encoding/json"
	"errors"
	"slices"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/shandysiswandi/otpgate/internal/pkg/strcase"
)

// SignaturePageOptions are the documents a device may be asked to capture.
var SignaturePageOptions = []string{"face", "id_card"}

var ErrTranslatorNotFound = errors.New("validator: english translator not found")

// Validator validates a struct using its `validate` tags.
type Validator interface {
	Validate(data any) error
}

// FieldErrors maps snake_case field names to English messages. The router
// renders it as the "fields" object of a 400 response.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	b, err := json.Marshal(map[string]string(fe))
	if err != nil || len(fe) == 0 {
		return "validation error"
	}
	return string(b)
}

func (fe FieldErrors) Values() map[string]string { return fe }

// rule is a custom tag with its English message. {0} is the field name.
type rule struct {
	tag     string
	message string
	fn      validator.Func
}

var rules = []rule{
	{
		tag:     "signature_page",
		message: "{0} entries must be distinct values of face or id_card",
		fn: func(fl validator.FieldLevel) bool {
			opts, ok := fl.Field().Interface().([]string)
			return ok && ValidSignaturePage(opts)
		},
	},
}

// V10 implements Validator with go-playground/validator.
type V10 struct {
	validate *validator.Validate
	trans    ut.Translator
}

func NewV10Validator() (*V10, error) {
	v := validator.New(validator.WithRequiredStructEnabled())

	lang := en.New()
	trans, ok := ut.New(lang, lang).GetTranslator("en")
	if !ok {
		return nil, ErrTranslatorNotFound
	}
	if err := enTranslations.RegisterDefaultTranslations(v, trans); err != nil {
		return nil, err
	}

	for _, r := range rules {
		if err := v.RegisterValidation(r.tag, r.fn); err != nil {
			return nil, err
		}
		if err := v.RegisterTranslation(r.tag, trans, addMessage(r.tag, r.message), translate); err != nil {
			return nil, err
		}
	}

	return &V10{validate: v, trans: trans}, nil
}

// Validate returns FieldErrors when a tag fails, or the underlying error for
// non-struct input.
func (v *V10) Validate(data any) error {
	err := v.validate.Struct(data)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		out[strcase.ToLowerSnake(fe.Field())] = fe.Translate(v.trans)
	}
	return out
}

func addMessage(tag, msg string) validator.RegisterTranslationsFunc {
	return func(t ut.Translator) error { return t.Add(tag, msg, false) }
}

func translate(t ut.Translator, fe validator.FieldError) string {
	msg, err := t.T(fe.Tag(), fe.Field())
	if err != nil {
		return fe.Field() + " is invalid"
	}
	return msg
}

// ValidSignaturePage reports whether every entry is a known option used once.
func ValidSignaturePage(opts []string) bool {
	seen := make(map[string]struct{}, len(opts))
	for _, o := range opts {
		if !slices.Contains(SignaturePageOptions, o) {
			return false
		}
		if _, dup := seen[o]; dup {
			return false
		}
		seen[o] = struct{}{}
	}
	return true
}
