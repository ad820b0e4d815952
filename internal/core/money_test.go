package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true}, // half-up rounding
		{" 2.50 ", "2.5", true},
		{"R$ 1.234,56", "1234.56", true},
		{"1,234.56", "1234.56", true},
		{"1.234.567", "1234567", true},
		{"-15", "15", true}, // sign is stripped with the other symbols
		{"abc", "", false},
		{"R$", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error, got %s", tc.in, got)
		}
	}
}

func TestParseCelular(t *testing.T) {
	got, err := ParseCelular("+55 (11) 98411-9222")
	if err != nil || got == nil || *got != 5511984119222 {
		t.Fatalf("unexpected %v %v", got, err)
	}

	got, err = ParseCelular("   ")
	if err != nil || got != nil {
		t.Fatalf("blank should be absent, got %v %v", got, err)
	}

	if _, err := ParseCelular("sem número"); err == nil {
		t.Fatal("expected error for text without digits")
	}
	if _, err := ParseCelular("99999999999999999999999"); err == nil {
		t.Fatal("expected overflow error")
	}
}

func TestFormatBRL(t *testing.T) {
	cases := map[string]string{
		"150":     "R$ 150,00",
		"1234.56": "R$ 1.234,56",
		"0":       "R$ 0,00",
		"-12":     "-R$ 12,00",
		"999":     "R$ 999,00",
		"1000":    "R$ 1.000,00",
		"-0.001":  "R$ 0,00",
		"0.005":   "R$ 0,01",
		"1234567": "R$ 1.234.567,00",

		"12345678901234567.89": "R$ 12.345.678.901.234.567,89",
	}
	for in, want := range cases {
		if got := FormatBRL(decimal.RequireFromString(in)); got != want {
			t.Errorf("FormatBRL(%s) = %q, want %q", in, got, want)
		}
	}
}
