// Package validator checks request and dependency structs with
// go-playground/validator and reports failures per field, keyed by the
// snake_case field name and translated to English.
package validator
