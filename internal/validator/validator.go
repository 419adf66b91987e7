package validator

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/id"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	id_translations "github.com/go-playground/validator/v10/translations/id"
	"golang.org/x/text/language"
)

var (
	once    sync.Once
	uni     *ut.UniversalTranslator
	matcher = language.NewMatcher([]language.Tag{language.English, language.Indonesian})
)

// customMessages holds the texts for tags the stock translations lack.
var customMessages = map[string]map[string]string{
	"en": {"notblank": "{0} must not be blank"},
	"id": {"notblank": "{0} tidak boleh kosong"},
}

// Setup registers the validator on Gin's binding engine with English and
// Indonesian translations plus the notblank tag. Safe to call more than once.
func Setup() {
	once.Do(func() {
		v, ok := binding.Validator.Engine().(*govalidator.Validate)
		if !ok {
			return
		}

		// Use JSON tag name for field names in error messages.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("notblank", validators.NotBlank)

		enLocale := en.New()
		uni = ut.New(enLocale, enLocale, id.New())

		enTrans, _ := uni.GetTranslator("en")
		_ = en_translations.RegisterDefaultTranslations(v, enTrans)
		idTrans, _ := uni.GetTranslator("id")
		_ = id_translations.RegisterDefaultTranslations(v, idTrans)

		for lang, msgs := range customMessages {
			trans, _ := uni.GetTranslator(lang)
			for tag, text := range msgs {
				registerMessage(v, trans, tag, text)
			}
		}
	})
}

func registerMessage(v *govalidator.Validate, trans ut.Translator, tag, text string) {
	_ = v.RegisterTranslation(tag, trans,
		func(ut ut.Translator) error {
			return ut.Add(tag, text, true)
		},
		func(ut ut.Translator, fe govalidator.FieldError) string {
			msg, err := ut.T(tag, fe.Field())
			if err != nil {
				return fe.Error()
			}
			return msg
		},
	)
}

// translator picks the best supported language for an Accept-Language value.
func translator(lang string) ut.Translator {
	Setup()
	tags, _, _ := language.ParseAcceptLanguage(lang)
	_, idx, _ := matcher.Match(tags...)
	code := "en"
	if idx == 1 {
		code = "id"
	}
	trans, _ := uni.GetTranslator(code)
	return trans
}

// TranslateErrors renders a binding/validation error in English.
func TranslateErrors(err error) map[string]string {
	return TranslateErrorsLang(err, "en")
}

// TranslateErrorsLang takes a binding/validation error and returns a map of
// field name to human-readable message in the best match for lang. If the
// error is not a validation error, it returns a single-key map with "detail".
func TranslateErrorsLang(err error, lang string) map[string]string {
	fields := make(map[string]string)

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		trans := translator(lang)
		for _, fe := range ve {
			fields[fe.Field()] = fe.Translate(trans)
		}
		return fields
	}

	// Not a validation error (e.g., JSON syntax error).
	fields["detail"] = err.Error()
	return fields
}

// Bind binds and validates the request body into dst. Messages follow the
// request's Accept-Language header. Returns nil on success.
func Bind(c *gin.Context, dst interface{}) map[string]string {
	if err := c.ShouldBindJSON(dst); err != nil {
		return TranslateErrorsLang(err, c.GetHeader("Accept-Language"))
	}
	return nil
}
