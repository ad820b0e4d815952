package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// RecordDraft is the record form as typed by the user, before parsing.
type RecordDraft struct {
	Titulo     string `json:"titulo"`
	Categoria  string `json:"categoria"`
	Valor      string `json:"valor"`
	Tipo       string `json:"tipo"`
	Data       string `json:"data"`
	Celular    string `json:"celular"`
	Observacao string `json:"observacao"`
}

// DraftOf fills a draft from an existing record, for the edit dialog.
func DraftOf(r Record) RecordDraft {
	d := RecordDraft{
		Titulo:     r.Titulo,
		Categoria:  r.Categoria,
		Tipo:       r.Tipo,
		Data:       r.Data.ISO(),
		Celular:    PersonKey(r.Celular),
		Observacao: r.Observacao,
	}
	if r.Valor.Valid {
		d.Valor = FormatPlain(r.Valor.Decimal)
	}
	return d
}

// Parse converts the draft into a record. Every field problem is collected
// into one ValidationError so the form can show them together.
func (d RecordDraft) Parse() (Record, error) {
	fields := map[string]string{}
	rec := Record{
		Titulo:     cleanText(d.Titulo),
		Categoria:  cleanText(d.Categoria),
		Tipo:       cleanText(d.Tipo),
		Observacao: cleanText(d.Observacao),
	}

	if strings.TrimSpace(d.Valor) == "" {
		fields["valor"] = "obrigatório"
	} else if v, err := ParseAmount(d.Valor); err != nil {
		fields["valor"] = "valor inválido"
	} else {
		rec.Valor = decimal.NewNullDecimal(v)
	}

	if strings.TrimSpace(d.Data) == "" {
		fields["data"] = "obrigatório"
	} else if day, err := ParseDate(d.Data); err != nil {
		fields["data"] = "data inválida"
	} else {
		rec.Data = day
	}

	if cel, err := ParseCelular(d.Celular); err != nil {
		fields["celular"] = "número inválido"
	} else {
		rec.Celular = cel
	}

	if err := rec.Validate(); err != nil {
		if ve, ok := err.(*ValidationError); ok {
			for k, v := range ve.Fields {
				if _, exists := fields[k]; !exists {
					fields[k] = v
				}
			}
		}
	}

	if len(fields) > 0 {
		return Record{}, &ValidationError{Fields: fields}
	}
	return rec, nil
}

// cleanText trims whitespace and drops control characters other than tab
// and newlines.
func cleanText(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// ParseDraft is d.Parse for callers holding a draft value.
func ParseDraft(d RecordDraft) (Record, error) {
	return d.Parse()
}
