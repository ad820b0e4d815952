package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound      = errors.New("registro não encontrado")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidPhone  = errors.New("invalid phone number")
)

// MissingFieldsMessage is shown when required form fields are empty.
const MissingFieldsMessage = "Por favor, preencha todos os campos obrigatórios."

// FetchError wraps a failed read of the record table.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch registros (%s): %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// WriteError wraps a failed insert, update or delete.
type WriteError struct {
	Op  string
	ID  int64
	Err error
}

func (e *WriteError) Error() string {
	if e.ID != 0 {
		return fmt.Sprintf("%s registro %d: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("%s registro: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ValidationError lists per-field problems found before any write.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return MissingFieldsMessage
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Missing reports whether any required field was left empty.
func (e *ValidationError) Missing() bool {
	for _, v := range e.Fields {
		if v == "obrigatório" {
			return true
		}
	}
	return false
}

// UserMessage is the Portuguese text shown in the form.
func (e *ValidationError) UserMessage() string {
	if e.Missing() {
		return MissingFieldsMessage
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fieldLabels[k]+" "+e.Fields[k])
	}
	return "Verifique os campos: " + strings.Join(parts, "; ")
}

var fieldLabels = map[string]string{
	"titulo":  "Título",
	"valor":   "Valor",
	"data":    "Data",
	"celular": "Celular",
	"tipo":    "Tipo",
}

// AuthError carries the message shown on the auth page.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
