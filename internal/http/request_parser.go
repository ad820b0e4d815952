package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"registros/internal/core"
)

const maxBodyBytes = 1 << 20

// FilterParams is the parsed filter query shared by the list, the report,
// exports and the API.
type FilterParams struct {
	Filter  core.Filter
	Order   core.SortOrder
	GroupBy string
	// Periodo keeps the raw bucket key for re-rendering the filter bar.
	Periodo string
}

// ParseFilterParams reads categoria, periodo, pessoa, agrupar and ordem.
// An unknown periodo is an error; the other parameters fall back to
// their defaults.
func ParseFilterParams(query url.Values) (FilterParams, error) {
	p := FilterParams{
		Filter: core.Filter{
			Category: sanitizeInput(query.Get("categoria")),
			Person:   strings.TrimSpace(query.Get("pessoa")),
		},
		Order:   core.ParseSortOrder(query.Get("ordem"), core.Descending),
		GroupBy: GroupByPerson,
	}
	if strings.TrimSpace(query.Get("agrupar")) == GroupByCategory {
		p.GroupBy = GroupByCategory
	}
	if p.Filter.Person != "" {
		if _, err := strconv.ParseInt(p.Filter.Person, 10, 64); err != nil {
			return p, fmt.Errorf("invalid pessoa %q", p.Filter.Person)
		}
	}
	bucket, err := core.ParseDateBucket(query.Get("periodo"))
	if err != nil {
		return p, err
	}
	p.Filter.DateBucket = bucket
	p.Periodo = string(bucket)
	return p, nil
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads at most 1 MiB of the body once and keeps it
// for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' || strings.Contains(p.contentType, "application/json") {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.jsonData = nil
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
	}
	if p.formData != nil {
		return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
	}
	return ""
}

// Raw returns a value exactly as sent, without trimming or sanitizing.
// Passwords go through here so every entry path hashes the same bytes.
func (p *RequestBodyParser) Raw(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return stringValue(val)
		}
	}
	if p.formData != nil {
		return p.formData.Get(key)
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// Draft collects the record form fields.
func (p *RequestBodyParser) Draft() core.RecordDraft {
	return core.RecordDraft{
		Titulo:     p.Get("titulo"),
		Categoria:  p.Get("categoria"),
		Valor:      p.Get("valor"),
		Tipo:       p.Get("tipo"),
		Data:       p.Get("data"),
		Celular:    p.Get("celular"),
		Observacao: p.Get("observacao"),
	}
}

// stringValue converts a decoded JSON value to string. Numbers keep every
// digit so phone numbers survive the float64 round trip.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
