// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

// Package validation wraps go-playground/validator with a shared instance and
// translates field errors into the API's VALIDATION_ERROR shape.
//
//	type historyRequest struct {
//	    Limit int `validate:"min=1,max=500"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
//	}
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Code is the API error code for every validation failure.
const Code = "VALIDATION_ERROR"

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// GetValidator returns the shared validator. Struct metadata is cached on it,
// so every package validates through this instance.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// FieldError is one failed constraint.
type FieldError struct {
	Field   string
	Tag     string
	Param   string
	Value   interface{}
	Message string
}

// Error is the set of failed constraints of one struct.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// APIError mirrors api.Error without importing it.
type APIError struct {
	Code    string
	Message string
	Details map[string]interface{}
}

// ToAPIError converts e for an error response. A single failure carries its
// field, tag and value as details.
func (e *Error) ToAPIError() *APIError {
	out := &APIError{Code: Code, Message: e.Error()}
	if len(e.Fields) == 1 {
		f := e.Fields[0]
		out.Details = map[string]interface{}{"field": f.Field, "tag": f.Tag, "value": f.Value}
	} else if len(e.Fields) > 1 {
		fields := make([]map[string]interface{}, len(e.Fields))
		for i, f := range e.Fields {
			fields[i] = map[string]interface{}{"field": f.Field, "tag": f.Tag, "message": f.Message}
		}
		out.Details = map[string]interface{}{"fields": fields}
	}
	return out
}

// ValidateStruct validates s and returns nil or an *Error listing every
// failed field.
func ValidateStruct(s interface{}) *Error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &Error{Fields: []FieldError{{Field: "unknown", Tag: "unknown", Message: err.Error()}}}
	}

	fields := make([]FieldError, len(verrs))
	for i, fe := range verrs {
		fields[i] = FieldError{
			Field:   fieldName(fe),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Value:   fe.Value(),
			Message: Translate(fe),
		}
	}
	return &Error{Fields: fields}
}

// fieldName lower-cases the Go field name to match query parameter names.
func fieldName(fe validator.FieldError) string {
	return strings.ToLower(fe.Field())
}

// Translate renders fe as a sentence naming the field.
func Translate(fe validator.FieldError) string {
	field := fieldName(fe)
	param := fe.Param()

	switch fe.Tag() {
	case "required", "required_if":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, param)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, param)
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, param)
	case "ip|cidr":
		return fmt.Sprintf("%s: %v is not an address or CIDR", field, fe.Value())
	case "min":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
