// Package validation turns an untrusted form map into a ValidatedSubmission.
package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/repairdesk/internal/request/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// Validate trims every recognised field and requires name and phone.
// Unknown keys are ignored; absent optional keys become "".
func Validate(raw map[string]string) (domain.ValidatedSubmission, error) {
	sub := domain.ValidatedSubmission{
		Name:          field(raw, domain.FieldName),
		Phone:         field(raw, domain.FieldPhone),
		Brand:         field(raw, domain.FieldBrand),
		Problem:       field(raw, domain.FieldProblem),
		PreferredTime: field(raw, domain.FieldPreferredTime),
	}

	if err := validate.Struct(sub); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return domain.ValidatedSubmission{}, err
		}
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
		return domain.ValidatedSubmission{}, &domain.ValidationError{
			Reason: domain.ReasonMissingRequired,
			Fields: fields,
		}
	}

	return sub, nil
}

func field(raw map[string]string, key string) string {
	if raw == nil {
		return ""
	}
	return strings.TrimSpace(raw[key])
}
