package http

import (
	"net/http"

	"registros/internal/log"
)

func (s *Server) loadReport(r *http.Request) reportView {
	ctx := r.Context()
	params, perr := ParseFilterParams(r.URL.Query())
	view := reportView{
		pageView: s.page(r, "Relatório"),
		Filter:   s.newFilterView(ctx, params),
	}
	if perr != nil {
		view.Error = msgBadFilter
		view.Chart = buildChart(nil, nil, params.GroupBy)
		return view
	}

	rep, err := s.records.Report(ctx, params.Filter, s.now())
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Failed to build report",
			log.FieldError, err,
			log.FieldOperation, log.OpReport)
		view.Error = msgLoadFailed
		view.Chart = buildChart(nil, nil, params.GroupBy)
		return view
	}
	view.Chart = buildChart(rep.Buckets, rep.Categories, params.GroupBy)
	view.Records = rep.Total
	return view
}

func (s *Server) handleReportPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "report.html", s.loadReport(r))
}

func (s *Server) handleReportPartial(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "chart", s.loadReport(r))
}
