// Package export writes filtered record lists as CSV or XLSX.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"registros/internal/core"
)

const sheetName = "Registros"

// Header is the column layout shared by exports and the Sheets mirror.
var Header = []string{"ID", "Data", "Título", "Categoria", "Tipo", "Valor", "Pessoa", "Observação"}

// Row renders r in Header order. Missing values are empty cells.
func Row(r core.Record) []string {
	valor := ""
	if r.Valor.Valid {
		valor = core.FormatPlain(r.Valor.Decimal)
	}
	data := ""
	if !r.Data.IsEmpty() {
		data = r.Data.ISO()
	}
	return []string{
		strconv.FormatInt(r.ID, 10),
		data,
		r.Titulo,
		r.Categoria,
		r.Tipo,
		valor,
		core.PersonLabel(r.Celular),
		r.Observacao,
	}
}

// textColumns are the Header positions holding free text.
var textColumns = []int{2, 3, 4, 6, 7}

// SafeRow is Row with free-text cells that a spreadsheet would read as a
// formula prefixed by a single quote. Used wherever the output is
// interpreted by a spreadsheet (CSV files, the Sheets mirror).
func SafeRow(r core.Record) []string {
	row := Row(r)
	for _, i := range textColumns {
		row[i] = EscapeFormula(row[i])
	}
	return row
}

// EscapeFormula neutralises values starting with =, +, -, @, tab or
// carriage return.
func EscapeFormula(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}

func totalRow(records []core.Record) []string {
	row := make([]string, len(Header))
	row[2] = "Total"
	row[5] = core.FormatPlain(core.SignedTotal(records))
	return row
}

// WriteCSV writes a header, one row per record and the signed total.
func WriteCSV(w io.Writer, records []core.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(SafeRow(r)); err != nil {
			return fmt.Errorf("writing registro %d: %w", r.ID, err)
		}
	}
	if err := cw.Write(totalRow(records)); err != nil {
		return fmt.Errorf("writing total: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes the same layout as WriteCSV into one worksheet. Valor
// cells are numeric so spreadsheet formulas work on them; text cells are
// stored as strings, never as formulas.
func WriteXLSX(w io.Writer, records []core.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	index, err := f.GetSheetIndex(sheetName)
	if err != nil {
		return fmt.Errorf("locating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	set := func(col, row int, v any) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return fmt.Errorf("cell %d,%d: %w", col, row, err)
		}
		if err := f.SetCellValue(sheetName, cell, v); err != nil {
			return fmt.Errorf("setting %s: %w", cell, err)
		}
		return nil
	}

	for col, h := range Header {
		if err := set(col+1, 1, h); err != nil {
			return err
		}
	}

	for i, r := range records {
		row := i + 2
		for col, v := range Row(r) {
			var value any = v
			switch col {
			case 0:
				value = r.ID
			case 5:
				if !r.Valor.Valid {
					continue
				}
				value = r.Valor.Decimal.InexactFloat64()
			}
			if err := set(col+1, row, value); err != nil {
				return err
			}
		}
	}

	last := len(records) + 2
	if err := set(3, last, "Total"); err != nil {
		return err
	}
	if err := set(6, last, core.SignedTotal(records).InexactFloat64()); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing xlsx: %w", err)
	}
	return nil
}
