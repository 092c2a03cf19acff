package bill

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/erp-billing/internal/billing"
	"github.com/noah-isme/erp-billing/internal/common"
)

// FieldError describes one rejected draft field.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Validator checks bill drafts before they are persisted. The calculator
// itself accepts anything; these rules only guard what gets stored.
type Validator struct {
	v *validator.Validate
}

// NewValidator registers the draft rules.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("percent", validPercent); err != nil {
		panic(err)
	}
	return &Validator{v: v}
}

// Validate returns a 422 AppError listing every failing field, or nil.
func (v *Validator) Validate(draft billing.Bill) error {
	err := v.v.Struct(draft)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return common.BadRequest("invalid bill", err)
	}
	details := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, FieldError{
			Field:   fieldPath(fe.Namespace()),
			Rule:    fe.Tag(),
			Message: message(fe),
		})
	}
	return common.Validation(details)
}

func validPercent(fl validator.FieldLevel) bool {
	raw := strings.TrimSpace(fl.Field().String())
	if raw == "" {
		return true
	}
	v, err := strconv.ParseFloat(raw, 64)
	return err == nil && v >= 0 && v <= 100
}

// fieldPath turns "Bill.BillHeader.vendorId" into "vendorId". Go identifiers
// (embedded structs, the root type) start upper case; wire names do not.
func fieldPath(ns string) string {
	parts := strings.Split(ns, ".")
	kept := parts[:0]
	for _, p := range parts {
		if p == "" {
			continue
		}
		if r := []rune(p)[0]; unicode.IsUpper(r) {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, ".")
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "datetime":
		return "must be a date formatted YYYY-MM-DD"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		return "must contain at least " + fe.Param() + " item"
	case "number":
		return "must be a whole number"
	case "numeric":
		return "must be a number"
	case "percent":
		return "must be a percentage between 0 and 100"
	default:
		return "is invalid"
	}
}
