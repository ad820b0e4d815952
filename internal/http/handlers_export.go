package http

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"registros/internal/core"
	"registros/internal/export"
	"registros/internal/log"
)

const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "csv", contentTypeCSV, export.WriteCSV)
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, "xlsx", contentTypeXLSX, export.WriteXLSX)
}

// export writes the filtered list into a buffer before sending so a
// failure still yields a proper status code.
func (s *Server) export(w http.ResponseWriter, r *http.Request, ext, contentType string, write func(io.Writer, []core.Record) error) {
	ctx := r.Context()
	logger := log.FromContext(ctx).WithComponent(log.ComponentExport)
	params, err := ParseFilterParams(r.URL.Query())
	if err != nil {
		BadRequestError(msgBadFilter).Write(w)
		return
	}
	rows, err := s.records.List(ctx, params.Order, params.Filter, s.now())
	if err != nil {
		logger.ErrorContext(ctx, "Failed to list registros for export",
			log.FieldError, err,
			log.FieldOperation, log.OpExport)
		InternalServerError(msgLoadFailed).Write(w)
		return
	}

	var buf bytes.Buffer
	if err := write(&buf, rows); err != nil {
		logger.ErrorContext(ctx, "Failed to encode export",
			log.FieldError, err,
			"format", ext,
			log.FieldOperation, log.OpExport)
		InternalServerError("Erro ao exportar registros").Write(w)
		return
	}

	s.appMetrics.exports.Add(1)
	logger.InfoContext(ctx, "Registros exported",
		"format", ext,
		"count", len(rows),
		log.FieldOperation, log.OpExport)

	filename := fmt.Sprintf("registros-%s.%s", core.DateOf(s.now()).ISO(), ext)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
