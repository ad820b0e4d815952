// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing amounts and phone numbers typed
// into the record form and for formatting values the way the UI shows them.
package core

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ParseAmount converts user text into a non-negative amount with 2 decimals.
//
// Everything except digits and separators is dropped first, so "R$ 12,50"
// parses. When both ',' and '.' appear the last one is the decimal
// separator. A single separator is decimal; repeated ones are grouping.
//
// Examples:
//   ParseAmount("12.34")       -> 12.34
//   ParseAmount("R$ 1.234,56") -> 1234.56
//   ParseAmount("1,234.56")    -> 1234.56
//   ParseAmount("abc")         -> ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	var b strings.Builder
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
			b.WriteRune(r)
		case r == ',' || r == '.':
			b.WriteRune(r)
		}
	}
	if digits == 0 {
		return decimal.Zero, ErrInvalidAmount
	}
	cleaned := normalizeSeparators(b.String())
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d.Round(2), nil
}

func normalizeSeparators(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		dec := lastComma
		if lastDot > lastComma {
			dec = lastDot
		}
		intPart := strings.NewReplacer(",", "", ".", "").Replace(s[:dec])
		fracPart := strings.NewReplacer(",", "", ".", "").Replace(s[dec+1:])
		return joinNumber(intPart, fracPart)
	case lastComma >= 0:
		return splitSingle(s, ",")
	case lastDot >= 0:
		return splitSingle(s, ".")
	default:
		return s
	}
}

func splitSingle(s, sep string) string {
	if strings.Count(s, sep) > 1 {
		return strings.ReplaceAll(s, sep, "")
	}
	parts := strings.SplitN(s, sep, 2)
	return joinNumber(parts[0], parts[1])
}

func joinNumber(intPart, fracPart string) string {
	if intPart == "" {
		intPart = "0"
	}
	if fracPart == "" {
		return intPart
	}
	return intPart + "." + fracPart
}

// ParseCelular strips formatting from a phone number. Empty input means
// "no person" and returns nil without error.
func ParseCelular(s string) (*int64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			return r
		}
		return -1
	}, s)
	if digits == "" {
		return nil, ErrInvalidPhone
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return nil, ErrInvalidPhone
	}
	return &n, nil
}

// FormatBRL renders an amount as Brazilian currency, e.g. "R$ 1.234,56".
// The digits come from the exact decimal value, so large amounts keep
// their cents.
func FormatBRL(d decimal.Decimal) string {
	neg := d.Round(2).IsNegative()
	fixed := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")
	s := "R$ " + groupThousands(intPart) + "," + frac
	if neg {
		return "-" + s
	}
	return s
}

// groupThousands inserts '.' every three digits from the right.
func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// FormatPlain renders an amount with a dot separator and 2 decimals, for
// form inputs and exports.
func FormatPlain(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// foldTipo lower-cases s and strips accents so "Saída" matches "saida".
// Chained transformers keep state, so one is built per call.
func foldTipo(s string) string {
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(folder, strings.TrimSpace(s))
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}
