package validation

import (
	"encoding/json"
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Init configures the global validator used by Gin's binding.
// - Uses json (or uri/form) tag names in errors.
// - Registers alias tags shared by the DTOs.
func Init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		Register(v)
	}
}

// Register applies the tag-name function and aliases to v.
func Register(v *validator.Validate) {
	v.RegisterTagNameFunc(fieldName)
	v.RegisterAlias("id", "required,gt=0") // path ids
	v.RegisterAlias("pagesize", "omitempty,min=1,max=50")
}

func fieldName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "uri", "form"} {
		name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return fld.Name
}

// ToDetails converts validation/binding errors into a map[field]message suitable for API error.details.
func ToDetails(err error) map[string]string {
	if err == nil {
		return nil
	}

	// Invalid JSON payloads
	var se *json.SyntaxError
	if errors.As(err, &se) {
		return map[string]string{"payload": "json inválido"}
	}
	var ute *json.UnmarshalTypeError
	if errors.As(err, &ute) {
		field := ute.Field
		if field == "" {
			field = "payload"
		}
		return map[string]string{field: "tipo inválido"}
	}
	var ne *strconv.NumError
	if errors.As(err, &ne) {
		return map[string]string{"payload": "número inválido"}
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			out[fe.Field()] = formatFieldError(fe)
		}
		return out
	}

	// Fallback
	return map[string]string{"payload": "payload inválido"}
}

func formatFieldError(fe validator.FieldError) string {
	param := fe.Param()

	// ActualTag resolves aliases to the tag that failed.
	switch fe.ActualTag() {
	case "required":
		return "é obrigatório"
	case "gt":
		return "deve ser maior que " + param
	case "gte":
		return "deve ser maior ou igual a " + param
	case "min":
		if isNumberKind(fe.Kind()) {
			return "deve ser no mínimo " + param
		}
		return "deve ter no mínimo " + param + " caracteres"
	case "max":
		if isNumberKind(fe.Kind()) {
			return "deve ser no máximo " + param
		}
		return "deve ter no máximo " + param + " caracteres"
	case "oneof":
		return "deve ser um de: " + strings.Join(strings.Fields(param), ", ")
	default:
		return "inválido (" + fe.ActualTag() + ")"
	}
}

func isNumberKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
