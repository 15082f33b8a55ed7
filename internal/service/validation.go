package service

import (
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	customError "github.com/segyhp/credit-engine/pkg/errors"
)

// newValidator returns a validator that compares decimal.Decimal fields
// numerically, so tags like gt=0 and gte=0 work on amounts and rates.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

func validate(v *validator.Validate, request interface{}) error {
	if err := v.Struct(request); err != nil {
		return customError.WrapInvalidInput(err)
	}
	return nil
}
