package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registros/internal/config"
	"registros/internal/core"
)

func TestBackendType_IsValid(t *testing.T) {
	for _, bt := range GetBackendTypes() {
		assert.True(t, bt.IsValid(), bt)
	}
	assert.False(t, BackendType("sheets").IsValid())
	assert.Equal(t, []string{"memory", "sqlite", "postgres"}, GetBackendTypeStrings())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"postgres without url", Config{Type: PostgresBackend}, true},
		{"unknown", Config{Type: "csv"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	app := &config.Config{DataBackend: "sqlite", SQLiteDBPath: "data/r.db", SeedFile: "seed.json"}
	cfg, err := FromAppConfig(app)
	require.NoError(t, err)
	assert.Equal(t, SQLiteBackend, cfg.Type)
	assert.Equal(t, "data/r.db", cfg.SQLiteDBPath)
	assert.Equal(t, "seed.json", cfg.SeedFile)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.Error(t, err)
}

func TestCreateBackend_Memory(t *testing.T) {
	seed := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(seed, []byte(`[{"id": 3, "titulo": "Mercado", "valor": "12.50", "data": "2024-03-05"}]`), 0o600))

	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend, SeedFile: seed})
	require.NoError(t, err)
	defer res.Close()

	require.NotNil(t, res.Pinger)
	assert.NoError(t, res.Pinger.Ping(context.Background()))
	assert.NotNil(t, res.Users)

	recs, err := res.Records.FetchRecords(context.Background(), core.Descending)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Mercado", recs[0].Titulo)
}

func TestCreateBackend_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "registros.db")

	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path})
	require.NoError(t, err)
	defer res.Close()

	require.NotNil(t, res.Pinger)
	assert.NoError(t, res.Pinger.Ping(context.Background()))

	recs, err := res.Records.FetchRecords(context.Background(), core.Ascending)
	require.NoError(t, err)
	assert.Empty(t, recs)
}
