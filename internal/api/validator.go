package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// CustomValidator はEcho用のカスタムバリデーター
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator は新しいバリデーターを作成する
// エラーメッセージには構造体のフィールド名ではなく JSON のキー名を使う
func NewValidator() *CustomValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &CustomValidator{validator: v}
}

// Validate はリクエストのバリデーションを実行する
func (cv *CustomValidator) Validate(i interface{}) error {
	err := cv.validator.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, describe(fe))
	}
	return echo.NewHTTPError(http.StatusBadRequest, ErrorResponse{
		Error:   "入力値が不正です",
		Reason:  "validation",
		Details: strings.Join(details, "; "),
	})
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s は必須です", fe.Field())
	case "required_with":
		return fmt.Sprintf("%s は %s と同時に指定してください", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s は %s 以上である必要があります", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s は %s 以下である必要があります", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s は %s のいずれかである必要があります", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s が不正です (%s)", fe.Field(), fe.Tag())
}
