package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// UncategorizedLabel groups records with no categoria in reports.
const UncategorizedLabel = "Sem categoria"

// Bucket holds the report totals for one dd/MM label.
type Bucket struct {
	Label      string
	Date       Date // earliest day seen with this label
	Total      decimal.Decimal
	ByPerson   map[string]decimal.Decimal // keyed by Person.Key
	ByCategory map[string]decimal.Decimal
	Count      int
}

// PersonTotal returns the subtotal for key, or zero.
func (b Bucket) PersonTotal(key string) decimal.Decimal {
	return b.ByPerson[key]
}

// CategoryTotal returns the subtotal for a category, or zero.
func (b Bucket) CategoryTotal(cat string) decimal.Decimal {
	return b.ByCategory[cat]
}

// Aggregate groups records by the dd/MM label of their date. Records
// without a date are skipped; a missing valor counts as zero. Amounts are
// summed as stored, without the tipo sign. Buckets come back in
// chronological order regardless of input order.
func Aggregate(records []Record) []Bucket {
	index := make(map[string]int)
	var buckets []Bucket

	for _, r := range records {
		if r.Data.IsEmpty() {
			continue
		}
		label := r.Data.Label()
		i, ok := index[label]
		if !ok {
			i = len(buckets)
			index[label] = i
			buckets = append(buckets, Bucket{
				Label:      label,
				Date:       r.Data,
				Total:      decimal.Zero,
				ByPerson:   make(map[string]decimal.Decimal),
				ByCategory: make(map[string]decimal.Decimal),
			})
		}
		b := &buckets[i]
		if r.Data.Before(b.Date.Time) {
			b.Date = r.Data
		}

		v := r.Amount()
		b.Total = b.Total.Add(v)
		b.Count++

		if r.Celular != nil {
			if p, ok := PersonByCelular(*r.Celular); ok {
				b.ByPerson[p.Key] = b.ByPerson[p.Key].Add(v)
			}
		}

		cat := r.Categoria
		if cat == "" {
			cat = UncategorizedLabel
		}
		b.ByCategory[cat] = b.ByCategory[cat].Add(v)
	}

	sort.SliceStable(buckets, func(i, j int) bool {
		return buckets[i].Date.Before(buckets[j].Date.Time)
	})
	return buckets
}

// Categories lists the distinct report series in first-seen order. Records
// without a category add UncategorizedLabel at the end when present.
func Categories(records []Record) []string {
	seen := make(map[string]bool)
	var out []string
	uncategorized := false
	for _, r := range records {
		if r.Data.IsEmpty() {
			continue
		}
		if r.Categoria == "" {
			uncategorized = true
			continue
		}
		if !seen[r.Categoria] {
			seen[r.Categoria] = true
			out = append(out, r.Categoria)
		}
	}
	if uncategorized {
		out = append(out, UncategorizedLabel)
	}
	return out
}

// SignedTotal is the list footer: "Saída" and "expense" subtract, anything
// else adds. Missing amounts count as zero.
func SignedTotal(records []Record) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.Signed())
	}
	return total
}

// KnownCategories merges the default form categories with the ones already
// used in records, keeping defaults first.
func KnownCategories(records []Record) []string {
	seen := make(map[string]bool, len(DefaultCategories))
	out := make([]string, 0, len(DefaultCategories))
	for _, c := range DefaultCategories {
		seen[c] = true
		out = append(out, c)
	}
	for _, r := range records {
		if r.Categoria != "" && !seen[r.Categoria] {
			seen[r.Categoria] = true
			out = append(out, r.Categoria)
		}
	}
	return out
}
