package core

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// getValidator 返回全局校验器（线程安全，可复用），并注册 behavior_type 规则。
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		_ = v.RegisterValidation("behavior_type", func(fl validator.FieldLevel) bool {
			t, ok := fl.Field().Interface().(BehaviorType)
			return ok && t.Valid()
		})
		validate = v
	})
	return validate
}

// ValidateBehavior 是行为写入的唯一校验入口：
// userId、itemId 非空（去除首尾空白后），behaviorType 属于五种合法类型之一。
// 校验失败返回 INVALID_INPUT 的 DomainError。
func ValidateBehavior(b UserBehavior) error {
	b.UserID = strings.TrimSpace(b.UserID)
	b.ItemID = strings.TrimSpace(b.ItemID)

	err := getValidator().Struct(b)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return NewDomainError(ModuleBehavior, ErrorCodeInvalidInput, "behavior: "+err.Error())
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			fields = append(fields, fieldName(fe.Field())+" is required")
		case "behavior_type":
			fields = append(fields, fmt.Sprintf("invalid behavior type %q", b.Type.String()))
		default:
			fields = append(fields, fieldName(fe.Field())+" is invalid")
		}
	}
	return NewDomainError(ModuleBehavior, ErrorCodeInvalidInput, "behavior: "+strings.Join(fields, "; "))
}

func fieldName(structField string) string {
	switch structField {
	case "UserID":
		return "userId"
	case "ItemID":
		return "itemId"
	case "Type":
		return "behaviorType"
	default:
		return structField
	}
}
