package core

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

const maxTituloLen = 200

// Known tipo values. Older rows use "expense" instead of "Saída".
const (
	TipoEntrada = "Entrada"
	TipoSaida   = "Saída"
	TipoExpense = "expense"
)

type (
	SortOrder string

	// Date is a calendar day. The zero value means "no date".
	Date struct {
		time.Time
	}

	// Record is one row of the registros table.
	Record struct {
		ID         int64               `json:"id"`
		Titulo     string              `json:"titulo,omitempty"`
		Categoria  string              `json:"categoria,omitempty"`
		Valor      decimal.NullDecimal `json:"valor"`
		Tipo       string              `json:"tipo,omitempty"`
		Data       Date                `json:"data"`
		Celular    *int64              `json:"celular,omitempty"`
		Observacao string              `json:"observacao,omitempty"`
		CreatedAt  time.Time           `json:"created_at"`
	}
)

// DefaultCategories is the category list offered by the record form.
var DefaultCategories = []string{
	"Alimentação",
	"Transporte",
	"Lazer",
	"Moradia",
	"Saúde",
	"Educação",
	"Outros",
}

// ParseSortOrder maps "asc"/"desc" to a SortOrder, defaulting to def.
func ParseSortOrder(s string, def SortOrder) SortOrder {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "ascending":
		return Ascending
	case "desc", "descending":
		return Descending
	default:
		return def
	}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate accepts YYYY-MM-DD (what date inputs post) and dd/MM/yyyy.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrInvalidDate
	}
	for _, layout := range []string{time.DateOnly, "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t}, nil
		}
	}
	// Timestamps coming back from some drivers carry a time part.
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return DateOf(t), nil
	}
	return Date{}, ErrInvalidDate
}

// IsEmpty reports whether the date is unset.
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// Label is the dd/MM key used by report buckets.
func (d Date) Label() string {
	if d.IsEmpty() {
		return ""
	}
	return d.Format("02/01")
}

// Display formats the date as dd/MM/yyyy, or "Sem data".
func (d Date) Display() string {
	if d.IsEmpty() {
		return "Sem data"
	}
	return d.Format("02/01/2006")
}

// ISO formats the date as YYYY-MM-DD, or "" when unset.
func (d Date) ISO() string {
	if d.IsEmpty() {
		return ""
	}
	return d.Format(time.DateOnly)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsEmpty() {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(d.ISO())), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == `""` {
		*d = Date{}
		return nil
	}
	unq, err := strconv.Unquote(s)
	if err != nil {
		return ErrInvalidDate
	}
	parsed, err := ParseDate(unq)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Amount returns valor, or zero when absent.
func (r Record) Amount() decimal.Decimal {
	if !r.Valor.Valid {
		return decimal.Zero
	}
	return r.Valor.Decimal
}

// DisplayTitle returns the title or "Sem título".
func (r Record) DisplayTitle() string {
	if strings.TrimSpace(r.Titulo) == "" {
		return "Sem título"
	}
	return r.Titulo
}

// IsExpense reports whether tipo marks the record as money going out.
func (r Record) IsExpense() bool {
	switch foldTipo(r.Tipo) {
	case "saida", "expense":
		return true
	}
	return false
}

// Signed returns valor with the sign implied by tipo.
func (r Record) Signed() decimal.Decimal {
	if r.IsExpense() {
		return r.Amount().Neg()
	}
	return r.Amount()
}

// Clone returns a deep copy so callers can't alias cached records.
func (r Record) Clone() Record {
	if r.Celular != nil {
		c := *r.Celular
		r.Celular = &c
	}
	return r
}

// CloneAll copies a slice of records.
func CloneAll(in []Record) []Record {
	if in == nil {
		return nil
	}
	out := make([]Record, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}

// Validate checks the fields the record form marks as required.
func (r Record) Validate() error {
	fields := map[string]string{}
	if strings.TrimSpace(r.Titulo) == "" {
		fields["titulo"] = "obrigatório"
	}
	if !r.Valor.Valid {
		fields["valor"] = "obrigatório"
	} else if !r.Valor.Decimal.IsPositive() {
		fields["valor"] = "deve ser maior que zero"
	}
	if r.Data.IsEmpty() {
		fields["data"] = "obrigatório"
	}
	if utf8.RuneCountInString(r.Titulo) > maxTituloLen {
		fields["titulo"] = "muito longo (máx. 200 caracteres)"
	}
	if r.Tipo != "" && !IsKnownTipo(r.Tipo) {
		fields["tipo"] = "inválido"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// IsKnownTipo reports whether s is one of the accepted tipo values.
func IsKnownTipo(s string) bool {
	switch foldTipo(s) {
	case "entrada", "saida", "expense":
		return true
	}
	return false
}
