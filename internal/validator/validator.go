package validator

import (
	"reflect"
	"strings"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Validator is the main validator instance that combines all validation types
type Validator struct {
	structValidator   *validator.Validate
	questionValidator *QuestionValidator
}

// New creates a new centralized validator instance
func New() *Validator {
	structValidator := validator.New()

	// Register all custom validators once
	registerCustomValidators(structValidator)

	return &Validator{
		structValidator:   structValidator,
		questionValidator: NewQuestionValidator(),
	}
}

// ValidateStruct validates struct tags only
func (v *Validator) ValidateStruct(s interface{}) error {
	return v.structValidator.Struct(s)
}

// Validate validates struct tags and converts failures to ValidationErrors
func (v *Validator) Validate(s interface{}) error {
	if err := v.ValidateStruct(s); err != nil {
		if errs := ToValidationErrors(err); len(errs) > 0 {
			return errs
		}
		return err
	}
	return nil
}

// Question returns the answer key validator
func (v *Validator) Question() *QuestionValidator {
	return v.questionValidator
}

// registerCustomValidators registers all custom validation functions
func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("question_type", validateQuestionType)
	validate.RegisterValidation("integrity_event_type", validateIntegrityEventType)
	validate.RegisterValidation("weights_total", validateWeightsTotal)
	validate.RegisterValidation("unique_subjects", validateUniqueSubjects)

	// Custom tag name function for better error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateQuestionType(fl validator.FieldLevel) bool {
	return models.IsValidQuestionType(models.QuestionType(fl.Field().String()))
}

func validateIntegrityEventType(fl validator.FieldLevel) bool {
	return models.IsValidIntegrityEventType(models.IntegrityEventType(fl.Field().String()))
}

// validateWeightsTotal applies to a slice of structs carrying a float Weight
// field and checks the weights add up to exactly 100.
func validateWeightsTotal(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.Slice {
		return false
	}

	total := decimal.Zero
	for i := 0; i < field.Len(); i++ {
		w := reflect.Indirect(field.Index(i)).FieldByName("Weight")
		if !w.IsValid() || w.Kind() != reflect.Float64 {
			return false
		}
		total = total.Add(decimal.NewFromFloat(w.Float()))
	}
	return total.Equal(decimal.NewFromInt(100))
}

// validateUniqueSubjects checks a slice of structs has no repeated Name.
func validateUniqueSubjects(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.Slice {
		return false
	}

	seen := make(map[string]struct{}, field.Len())
	for i := 0; i < field.Len(); i++ {
		n := reflect.Indirect(field.Index(i)).FieldByName("Name")
		if !n.IsValid() || n.Kind() != reflect.String {
			return false
		}
		name := strings.TrimSpace(n.String())
		if _, dup := seen[name]; dup {
			return false
		}
		seen[name] = struct{}{}
	}
	return true
}
