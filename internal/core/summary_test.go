package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAggregate_Empty(t *testing.T) {
	assert.Empty(t, Aggregate(nil))
	assert.Empty(t, Aggregate([]Record{}))
}

func TestAggregate_PersonScenario(t *testing.T) {
	in := []Record{
		{ID: 1, Valor: amount("100"), Data: NewDate(2024, 1, 1), Celular: cel(5511984119222)},
		{ID: 2, Valor: amount("50"), Data: NewDate(2024, 1, 1), Celular: cel(5511911407528)},
	}
	got := Aggregate(in)
	require.Len(t, got, 1)
	assert.Equal(t, "01/01", got[0].Label)
	assert.True(t, got[0].Total.Equal(dec("150")))
	assert.True(t, got[0].PersonTotal("tani").Equal(dec("100")))
	assert.True(t, got[0].PersonTotal("fla").Equal(dec("50")))
}

func TestAggregate_SortsChronologically(t *testing.T) {
	in := []Record{
		{ID: 1, Valor: amount("10"), Data: NewDate(2024, 3, 5)},
		{ID: 2, Valor: amount("20"), Data: NewDate(2024, 1, 20)},
		{ID: 3, Valor: amount("30"), Data: NewDate(2024, 2, 2)},
		{ID: 4, Valor: amount("5"), Data: NewDate(2024, 1, 20)},
	}
	got := Aggregate(in)
	labels := make([]string, 0, len(got))
	for _, b := range got {
		labels = append(labels, b.Label)
	}
	assert.Equal(t, []string{"20/01", "02/02", "05/03"}, labels)
	assert.True(t, got[0].Total.Equal(dec("25")))
	assert.Equal(t, 2, got[0].Count)
}

func TestAggregate_SkipsMissingDateAndDefaultsValor(t *testing.T) {
	in := []Record{
		{ID: 1, Valor: amount("10")},
		{ID: 2, Data: NewDate(2024, 5, 1), Categoria: "Lazer"},
		{ID: 3, Valor: amount("7"), Data: NewDate(2024, 5, 1)},
	}
	got := Aggregate(in)
	require.Len(t, got, 1)
	assert.True(t, got[0].Total.Equal(dec("7")))
	assert.True(t, got[0].CategoryTotal("Lazer").IsZero())
	assert.True(t, got[0].CategoryTotal(UncategorizedLabel).Equal(dec("7")))
	assert.Equal(t, 2, got[0].Count)
}

func TestAggregate_TotalMatchesLabelSum(t *testing.T) {
	in := sampleRecords()
	for _, b := range Aggregate(in) {
		sum := decimal.Zero
		for _, r := range in {
			if !r.Data.IsEmpty() && r.Data.Label() == b.Label {
				sum = sum.Add(r.Amount())
			}
		}
		assert.True(t, b.Total.Equal(sum), b.Label)
	}
}

func TestCategories(t *testing.T) {
	in := []Record{
		{Categoria: "Lazer", Data: NewDate(2024, 1, 1)},
		{Data: NewDate(2024, 1, 1)},
		{Categoria: "Moradia", Data: NewDate(2024, 1, 2)},
		{Categoria: "Lazer", Data: NewDate(2024, 1, 3)},
		{Categoria: "Saúde"}, // no date, not charted
	}
	assert.Equal(t, []string{"Lazer", "Moradia", UncategorizedLabel}, Categories(in))
}

func TestSignedTotal(t *testing.T) {
	in := []Record{
		{Valor: amount("100"), Tipo: TipoEntrada},
		{Valor: amount("30"), Tipo: TipoSaida},
		{Valor: amount("20"), Tipo: "expense"},
		{Valor: amount("5"), Tipo: "SAIDA"},
		{Valor: amount("1.5")},
		{Tipo: TipoSaida},
	}
	assert.Equal(t, "46.50", SignedTotal(in).StringFixed(2))
	assert.True(t, SignedTotal(nil).IsZero())
}

func TestKnownCategories(t *testing.T) {
	got := KnownCategories([]Record{{Categoria: "Pets"}, {Categoria: "Lazer"}})
	assert.Equal(t, append(append([]string{}, DefaultCategories...), "Pets"), got)
}
