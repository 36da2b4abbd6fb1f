package config

import (
	"fmt"
	"strings"
)

// FieldError 描述某个配置字段的非法取值，附带可用于覆盖该字段的环境变量名。
type FieldError struct {
	Field  string
	Value  any
	Reason string
}

// EnvKey 返回覆盖该字段的环境变量名，例如 RateLimit -> FILE_HUB_RATELIMIT。
func (e FieldError) EnvKey() string {
	return EnvPrefix + "_" + strings.ToUpper(e.Field)
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s=%v: %s (可用 %s 覆盖)", e.Field, e.Value, e.Reason, e.EnvKey())
}

func newFieldError(field string, value any, reason string) error {
	return FieldError{Field: field, Value: value, Reason: reason}
}
