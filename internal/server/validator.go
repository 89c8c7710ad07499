package server

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/uma-arai/sbcntr-library/internal/model"
)

// requestValidator は echo.Validator の実装です
type requestValidator struct {
	v *validator.Validate
}

func newRequestValidator() *requestValidator {
	return &requestValidator{v: validator.New()}
}

// Validate はリクエストを検証し、失敗した場合は ErrInvalidArgument を返します
func (rv *requestValidator) Validate(i interface{}) error {
	if err := rv.v.Struct(i); err != nil {
		return fmt.Errorf("%w: %s", model.ErrInvalidArgument, err.Error())
	}
	return nil
}
