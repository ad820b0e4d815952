package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"

	"registros/internal/cli"
	"registros/internal/core"
	"registros/internal/log"
	"registros/internal/records"
)

// bulkCreator is implemented by the SQL store.
type bulkCreator interface {
	BulkCreate(ctx context.Context, recs []core.Record) (int, error)
}

func main() {
	count := flag.Int("n", 50, "number of records to generate")
	seed := flag.Int64("seed", 0, "random seed (0 picks one from the clock)")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp, os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.DataBackend == "memory" {
		logger.Warn("Seeding the memory backend only lasts for this process")
	}

	ctx := context.Background()
	res := cli.OpenBackend(ctx, logger, cfg)
	defer func() {
		if err := res.Close(); err != nil {
			logger.Warn("Backend close error", log.FieldError, err)
		}
	}()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	recs := generate(gofakeit.New(*seed), *count, time.Now())

	n, err := store(ctx, res.Records, recs)
	if err != nil {
		logger.Error("Seeding failed", log.FieldError, err, "inserted", n)
		os.Exit(1)
	}
	logger.Info("Seeded registros", "count", n, "backend", cfg.DataBackend, "seed", *seed)
}

// generate builds n records dated within the 60 days before now.
func generate(f *gofakeit.Faker, n int, now time.Time) []core.Record {
	out := make([]core.Record, 0, n)
	for i := 0; i < n; i++ {
		person := core.KnownPeople[f.Number(0, len(core.KnownPeople)-1)]
		celular := person.Celular

		tipo := core.TipoSaida
		if f.Number(1, 5) == 1 {
			tipo = core.TipoEntrada
		}

		amount := decimal.NewFromFloat(f.Price(1, 500)).Round(2)
		out = append(out, core.Record{
			Titulo:     f.BuzzWord() + " " + f.Noun(),
			Categoria:  f.RandomString(core.DefaultCategories),
			Valor:      decimal.NewNullDecimal(amount),
			Tipo:       tipo,
			Data:       core.DateOf(now.AddDate(0, 0, -f.Number(0, 59))),
			Celular:    &celular,
			Observacao: f.Sentence(4),
		})
	}
	return out
}

func store(ctx context.Context, repo records.Repository, recs []core.Record) (int, error) {
	if bc, ok := repo.(bulkCreator); ok {
		return bc.BulkCreate(ctx, recs)
	}
	for i, r := range recs {
		if _, err := repo.CreateRecord(ctx, r); err != nil {
			return i, err
		}
	}
	return len(recs), nil
}
