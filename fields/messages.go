package fields

import (
	"fmt"
	"strings"
)

func MissingParameterMessage(property string) string {
	return property + " is required."
}

func NotInEnumMessage(property string, enum []string, current any) string {
	return fmt.Sprintf("%s should be in: %s - instead got %v.", property, strings.Join(enum, ", "), current)
}

func BadTypeMessage(property, expectedType, currentType string) string {
	return fmt.Sprintf("%s should be a %s - instead got a %s.", property, expectedType, currentType)
}

func ForbiddenOperatorMessage(property, op string) string {
	return fmt.Sprintf("Operator `%s` is not allowed for property %s.", op, property)
}

func ForbiddenFieldMessage(property string) string {
	return fmt.Sprintf("Field `%s` is not allowed or does not exist.", property)
}

// TypeName names the dynamic type of v for BadTypeMessage.
func TypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float32, float64, int, int32, int64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}
