package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"registros/internal/core"
)

const selectRecordColumns = `id, titulo, categoria, valor, tipo, data, celular, observacao, created_at`

// scanRecord reads one registros row. Column order follows selectRecordColumns.
func scanRecord(s scanner) (core.Record, error) {
	var (
		r          core.Record
		titulo     sql.NullString
		categoria  sql.NullString
		tipo       sql.NullString
		celular    sql.NullInt64
		observacao sql.NullString
	)
	if err := s.Scan(&r.ID, &titulo, &categoria, &r.Valor, &tipo, &r.Data, &celular, &observacao, &r.CreatedAt); err != nil {
		return core.Record{}, err
	}
	r.Titulo = titulo.String
	r.Categoria = categoria.String
	r.Tipo = tipo.String
	r.Observacao = observacao.String
	if celular.Valid {
		n := celular.Int64
		r.Celular = &n
	}
	return r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func (s *Store) FetchRecords(ctx context.Context, order core.SortOrder) ([]core.Record, error) {
	dir := "ASC"
	if order == core.Descending {
		dir = "DESC"
	}
	// Rows without data go last in both directions.
	query := fmt.Sprintf(`SELECT %s FROM registros ORDER BY data IS NULL, data %s, id %s`,
		selectRecordColumns, dir, dir)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &core.FetchError{Op: string(s.dialect), Err: err}
	}
	defer rows.Close()

	out := []core.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, &core.FetchError{Op: string(s.dialect), Err: fmt.Errorf("scanning registro: %w", err)}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &core.FetchError{Op: string(s.dialect), Err: err}
	}
	return out, nil
}

func (s *Store) GetRecord(ctx context.Context, id int64) (core.Record, error) {
	query := s.rebind(`SELECT ` + selectRecordColumns + ` FROM registros WHERE id = ?`)
	r, err := scanRecord(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Record{}, core.ErrNotFound
	}
	if err != nil {
		return core.Record{}, &core.FetchError{Op: "get", Err: err}
	}
	return r, nil
}

func (s *Store) CreateRecord(ctx context.Context, r core.Record) (core.Record, error) {
	query := s.rebind(`
		INSERT INTO registros (titulo, categoria, valor, tipo, data, celular, observacao, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	r.CreatedAt = s.now().UTC()
	err := s.db.QueryRowContext(ctx, query,
		nullString(r.Titulo),
		nullString(r.Categoria),
		r.Valor,
		nullString(r.Tipo),
		r.Data,
		nullInt(r.Celular),
		nullString(r.Observacao),
		r.CreatedAt,
	).Scan(&r.ID)
	if err != nil {
		return core.Record{}, &core.WriteError{Op: "create", Err: err}
	}

	slog.InfoContext(ctx, "Registro saved",
		"id", r.ID,
		"titulo", r.Titulo,
		"dialect", s.dialect)
	return r, nil
}

func (s *Store) UpdateRecord(ctx context.Context, r core.Record) (core.Record, error) {
	query := s.rebind(`
		UPDATE registros
		SET titulo = ?, categoria = ?, valor = ?, tipo = ?, data = ?, celular = ?, observacao = ?
		WHERE id = ?
	`)

	res, err := s.db.ExecContext(ctx, query,
		nullString(r.Titulo),
		nullString(r.Categoria),
		r.Valor,
		nullString(r.Tipo),
		r.Data,
		nullInt(r.Celular),
		nullString(r.Observacao),
		r.ID,
	)
	if err != nil {
		return core.Record{}, &core.WriteError{Op: "update", ID: r.ID, Err: err}
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.Record{}, &core.WriteError{Op: "update", ID: r.ID, Err: core.ErrNotFound}
	}

	stored, err := s.GetRecord(ctx, r.ID)
	if err != nil {
		return core.Record{}, &core.WriteError{Op: "update", ID: r.ID, Err: err}
	}
	return stored, nil
}

func (s *Store) DeleteRecord(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM registros WHERE id = ?`), id)
	if err != nil {
		return &core.WriteError{Op: "delete", ID: id, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &core.WriteError{Op: "delete", ID: id, Err: err}
	}
	if n == 0 {
		return &core.WriteError{Op: "delete", ID: id, Err: core.ErrNotFound}
	}
	return nil
}

// BulkCreate inserts records in one transaction. Used by the seed command.
func (s *Store) BulkCreate(ctx context.Context, recs []core.Record) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("creating transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.rebind(`
		INSERT INTO registros (titulo, categoria, valor, tipo, data, celular, observacao, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`))
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		if _, err := stmt.ExecContext(ctx,
			nullString(r.Titulo), nullString(r.Categoria), r.Valor, nullString(r.Tipo),
			r.Data, nullInt(r.Celular), nullString(r.Observacao), s.now().UTC(),
		); err != nil {
			return 0, fmt.Errorf("inserting registro: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return len(recs), nil
}
