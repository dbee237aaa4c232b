// Package validation checks incoming request bodies against their
// declarative rules and renders failures as a field-level error tree.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	validator "github.com/go-playground/validator/v10"
)

// ErrorTree is the structured validation failure returned in 400 bodies.
// Root-level problems land in Errors; per-field problems land in
// Properties keyed by the field's JSON name.
type ErrorTree struct {
	Errors     []string              `json:"errors"`
	Properties map[string]*ErrorTree `json:"properties,omitempty"`
}

// Validator validates request DTOs declared with `validate` struct tags.
type Validator struct {
	validate *validator.Validate
}

// New creates a Validator that reports fields by their JSON names.
func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{validate: v}
}

// ValidateStruct checks the value and returns a non-nil ErrorTree describing
// every violated rule, or nil when the value is valid.
func (v *Validator) ValidateStruct(value interface{}) *ErrorTree {
	err := v.validate.Struct(value)
	if err == nil {
		return nil
	}

	tree := &ErrorTree{
		Errors:     []string{},
		Properties: map[string]*ErrorTree{},
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		tree.Errors = append(tree.Errors, err.Error())
		return tree
	}

	for _, fieldError := range validationErrors {
		field := fieldError.Field()
		if field == "" {
			tree.Errors = append(tree.Errors, describeRule(fieldError))
			continue
		}
		branch, ok := tree.Properties[field]
		if !ok {
			branch = &ErrorTree{Errors: []string{}}
			tree.Properties[field] = branch
		}
		branch.Errors = append(branch.Errors, describeRule(fieldError))
	}

	return tree
}

func describeRule(fieldError validator.FieldError) string {
	switch fieldError.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a well-formed URL"
	case "min":
		return fmt.Sprintf("must be at least %s characters long", fieldError.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters long", fieldError.Param())
	}

	return fmt.Sprintf("failed the '%s' rule", fieldError.Tag())
}
