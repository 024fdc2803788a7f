// Package validator validates structs with go-playground/validator and
// renders the failures as translated, human readable messages.
package validator

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
)

type Validator interface {
	Struct(s any) error
	StructCtx(ctx context.Context, s any) error
	Engine() *validator.Validate
}

// Validate is the shared instance used by config loading and request binding.
var Validate = New()

type Option func(*validatorImpl)

// WithLanguage selects the translation used for messages (en or zh).
func WithLanguage(lang string) Option {
	return func(v *validatorImpl) {
		v.lang = lang
	}
}

type validatorImpl struct {
	validate *validator.Validate
	trans    ut.Translator
	lang     string
}

func New(opts ...Option) Validator {
	v := &validatorImpl{validate: validator.New(validator.WithRequiredStructEnabled()), lang: "en"}
	for _, opt := range opts {
		opt(v)
	}

	// report json / mapstructure names rather than Go field names
	v.validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, key := range []string{"json", "mapstructure"} {
			name, _, _ := strings.Cut(f.Tag.Get(key), ",")
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})

	uni := ut.New(en.New(), en.New(), zh.New())
	switch v.lang {
	case "zh":
		v.trans, _ = uni.GetTranslator("zh")
		_ = zh_translations.RegisterDefaultTranslations(v.validate, v.trans)
	default:
		v.trans, _ = uni.GetTranslator("en")
		_ = en_translations.RegisterDefaultTranslations(v.validate, v.trans)
	}
	return v
}

func (v *validatorImpl) Struct(s any) error {
	return v.StructCtx(context.Background(), s)
}

func (v *validatorImpl) StructCtx(ctx context.Context, s any) error {
	if s == nil {
		return errors.New("validation target cannot be nil")
	}
	return v.translate(v.validate.StructCtx(ctx, s))
}

func (v *validatorImpl) Engine() *validator.Validate {
	return v.validate
}

func (v *validatorImpl) translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &ValidationErrors{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   fe.Namespace(),
			Tag:     fe.Tag(),
			Message: fe.Translate(v.trans),
		})
	}
	return out
}

// ValidationErrors lists every failed field of one validation run.
type ValidationErrors struct {
	Fields []FieldError
}

type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func (e *ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return strings.Join(msgs, "; ")
}

// Has reports whether field (its namespace suffix) failed validation.
func (e *ValidationErrors) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field || strings.HasSuffix(f.Field, "."+field) {
			return true
		}
	}
	return false
}

func IsValidationError(err error) bool {
	var ve *ValidationErrors
	return errors.As(err, &ve)
}
